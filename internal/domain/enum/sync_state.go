package enum

import "encoding/json"

// SyncState is the reconciler's state machine position
type SyncState int

const (
	SyncStateIdle     SyncState = 0
	SyncStateDraining SyncState = 1
	SyncStateError    SyncState = 2 // last drain failed; cleared by the next success
)

func (s SyncState) String() string {
	return [...]string{"idle", "draining", "error"}[s]
}

func (s SyncState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// SyncFilter selects bills by sync status in history views
type SyncFilter string

const (
	SyncFilterAll     SyncFilter = "all"
	SyncFilterSynced  SyncFilter = "synced"
	SyncFilterPending SyncFilter = "pending"
)

// Package analytics derives filtered views and metrics from an in-memory bill set.
//
// Every function is pure: inputs are never mutated and the same inputs always
// produce the same output. Calendar boundaries are computed in the location of
// the reference time passed by the caller.
package analytics

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/enum"
	"github.com/shopspring/decimal"
)

// StaffAll disables the staff filter
const StaffAll = "all"

// Interval is a time window. End is exclusive unless EndInclusive is set.
type Interval struct {
	Start        time.Time
	End          time.Time
	EndInclusive bool
}

// Contains reports whether t lies in the interval
func (iv Interval) Contains(t time.Time) bool {
	if t.Before(iv.Start) {
		return false
	}
	if iv.EndInclusive {
		return !t.After(iv.End)
	}
	return t.Before(iv.End)
}

// Midnight returns the start of t's calendar day in t's location
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// RangeBounds resolves a named range against now. Ranges that include the
// current day end at now.
func RangeBounds(r enum.DateRange, now time.Time) Interval {
	today := Midnight(now)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	switch r {
	case enum.DateRangeYesterday:
		return Interval{Start: today.AddDate(0, 0, -1), End: today}
	case enum.DateRangeLast7Days:
		return Interval{Start: today.AddDate(0, 0, -7), End: now, EndInclusive: true}
	case enum.DateRangeLast30Days:
		return Interval{Start: today.AddDate(0, 0, -30), End: now, EndInclusive: true}
	case enum.DateRangeThisMonth:
		return Interval{Start: monthStart, End: now, EndInclusive: true}
	case enum.DateRangeLastMonth:
		return Interval{Start: monthStart.AddDate(0, -1, 0), End: monthStart}
	default:
		return Interval{Start: today, End: now, EndInclusive: true}
	}
}

// FilterByDateRange keeps bills whose timestamp falls in the named range
func FilterByDateRange(bills []entity.Bill, r enum.DateRange, now time.Time) []entity.Bill {
	iv := RangeBounds(r, now)
	return filter(bills, func(b *entity.Bill) bool {
		return iv.Contains(b.Timestamp)
	})
}

// FilterByStaff keeps bills created by staffID, or all bills for StaffAll
func FilterByStaff(bills []entity.Bill, staffID string) []entity.Bill {
	if staffID == StaffAll || staffID == "" {
		return clone(bills)
	}
	return filter(bills, func(b *entity.Bill) bool {
		return b.CreatedBy == staffID
	})
}

// HistoryFilter narrows the bill history view. Zero fields are ignored.
type HistoryFilter struct {
	Search     string
	StartDate  *time.Time
	EndDate    *time.Time
	MinAmount  *decimal.Decimal
	MaxAmount  *decimal.Decimal
	SyncStatus enum.SyncFilter
}

// FilterHistory applies the history view filters. EndDate includes its whole day.
func FilterHistory(bills []entity.Bill, f HistoryFilter) []entity.Bill {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	var startAt, endBefore time.Time
	if f.StartDate != nil {
		startAt = *f.StartDate
	}
	if f.EndDate != nil {
		endBefore = Midnight(*f.EndDate).AddDate(0, 0, 1)
	}

	return filter(bills, func(b *entity.Bill) bool {
		if search != "" &&
			!strings.Contains(strings.ToLower(b.CustomerName), search) &&
			!strings.Contains(strconv.FormatInt(b.LocalID, 10), search) &&
			!strings.Contains(strings.ToLower(b.Number()), search) {
			return false
		}
		if f.StartDate != nil && b.Timestamp.Before(startAt) {
			return false
		}
		if f.EndDate != nil && !b.Timestamp.Before(endBefore) {
			return false
		}
		if f.MinAmount != nil && b.TotalAmount.LessThan(*f.MinAmount) {
			return false
		}
		if f.MaxAmount != nil && b.TotalAmount.GreaterThan(*f.MaxAmount) {
			return false
		}
		switch f.SyncStatus {
		case enum.SyncFilterSynced:
			return b.Synced
		case enum.SyncFilterPending:
			return !b.Synced
		}
		return true
	})
}

// PendingCount counts bills not yet confirmed remotely
func PendingCount(bills []entity.Bill) int {
	n := 0
	for i := range bills {
		if !bills[i].Synced {
			n++
		}
	}
	return n
}

// StaffMembers lists the distinct creators in name order
func StaffMembers(bills []entity.Bill) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for i := range bills {
		id := bills[i].CreatedBy
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SortNewestFirst returns the bills ordered by timestamp descending.
// Equal timestamps keep their input order.
func SortNewestFirst(bills []entity.Bill) []entity.Bill {
	out := clone(bills)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func filter(bills []entity.Bill, keep func(*entity.Bill) bool) []entity.Bill {
	out := make([]entity.Bill, 0, len(bills))
	for i := range bills {
		if keep(&bills[i]) {
			out = append(out, bills[i])
		}
	}
	return out
}

func clone(bills []entity.Bill) []entity.Bill {
	out := make([]entity.Bill, len(bills))
	copy(out, bills)
	return out
}

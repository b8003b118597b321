package enum

// Role is the kind of session a bill was captured under
type Role string

const (
	RoleStaff Role = "staff"
	RoleOwner Role = "owner"
)

// Delivery records where a freshly captured bill ended up
type Delivery string

const (
	DeliveryRemote Delivery = "remote"
	DeliveryQueued Delivery = "queued"
)

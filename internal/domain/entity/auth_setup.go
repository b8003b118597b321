package entity

import "time"

// AuthSetup is the last-known owner/staff credential record kept on the device.
// Only bcrypt hashes are stored.
type AuthSetup struct {
	OwnerEmail        string    `json:"owner_email"`
	OwnerPasswordHash string    `json:"owner_password_hash"`
	StaffPINHash      string    `json:"staff_pin_hash"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Session identifies who is capturing bills on this device
type Session struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	StaffID   string    `json:"staff_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

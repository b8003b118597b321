package request

// SetupRequest configures the owner credentials and the staff PIN
type SetupRequest struct {
	OwnerEmail    string `json:"owner_email" binding:"required,email"`
	OwnerPassword string `json:"owner_password" binding:"required,min=8"`
	StaffPIN      string `json:"staff_pin" binding:"required,numeric,min=4,max=12"`
}

// OwnerLoginRequest represents an owner login request
type OwnerLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// StaffLoginRequest represents a staff PIN login. StaffName becomes the
// creator of captured bills.
type StaffLoginRequest struct {
	StaffName string `json:"staff_name" binding:"required,max=100"`
	PIN       string `json:"pin" binding:"required,numeric"`
}

package domain

import "time"

const (
	RoleOperator = "operator"
	RoleDriver   = "driver"
)

// User models a site operator account. Drivers do not have accounts; they
// authenticate with a booking confirmation code.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

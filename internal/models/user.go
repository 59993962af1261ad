package models

// Role determines which view set a user sees: guests browse and register,
// hosts create and manage. The two are mutually exclusive.
type Role string

// Role constants
const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
)

// User is the current authenticated identity. It is owned by the app state
// machine and read-only everywhere else.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	Contact    string `json:"contact,omitempty"`
	Occupation string `json:"occupation,omitempty"`
	Address    string `json:"address,omitempty"`
}

// IsHost reports whether the user manages events rather than registering
// for them.
func (u *User) IsHost() bool {
	return u.Role == RoleHost
}

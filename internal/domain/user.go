package domain

import "time"

// Role is the permission level of a login.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// ID returns the numeric role id the mobile client switches on (1 = admin).
func (r Role) ID() int {
	if r == RoleAdmin {
		return 1
	}
	return 2
}

// RoleFromID is the inverse of Role.ID.
func RoleFromID(id int) Role {
	if id == 1 {
		return RoleAdmin
	}
	return RoleCustomer
}

// UserStatus is the login state tracked by the login guard.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
	UserBlocked  UserStatus = "blocked"
)

// User is a login identity linked to a client.
type User struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	PasswordHash   string     `json:"-"`
	ClientID       int64      `json:"client_id"`
	Role           Role       `json:"role"`
	Status         UserStatus `json:"status"`
	FailedAttempts int        `json:"failed_attempts"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
}

// UserSummary is the admin dashboard row for a user.
type UserSummary struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	ClientName     string     `json:"client_name"`
	Status         UserStatus `json:"status"`
	Role           Role       `json:"role"`
	FailedAttempts int        `json:"failed_attempts"`
}

// AuthResult is returned by a successful login.
type AuthResult struct {
	UserID   int64      `json:"userId"`
	Username string     `json:"username"`
	Role     Role       `json:"role"`
	RoleID   int        `json:"role_id"`
	ClientID int64      `json:"clientId"`
	Status   UserStatus `json:"status"`
}

// NewAuthResult projects a user into the login response.
func NewAuthResult(u User) AuthResult {
	return AuthResult{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
		RoleID:   u.Role.ID(),
		ClientID: u.ClientID,
		Status:   u.Status,
	}
}

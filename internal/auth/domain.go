package auth

import "time"

// User represents an authenticated user account.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CompanyID    int64
	AccessLevel  string
	RoleID       int64
	RoleCode     string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

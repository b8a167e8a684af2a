package model

import "time"

// User is a planner account as stored in the `users` table.  Planners
// confirm reservations; viewers may only read rollups and grids.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  FullName     – name stamped into prepared_by on confirmation.
//  PasswordHash – bcrypt hashed password.
//  Role         – PLANNER or VIEWER.
//  IsActive     – whether the account may log in.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	FullName     string    // users.full_name
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
}

const (
	RolePlanner = "PLANNER"
	RoleViewer  = "VIEWER"
)

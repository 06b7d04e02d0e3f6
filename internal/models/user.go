package models

// User is an account holding exactly one role.
type User struct {
	ID           int64  `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password_hash" json:"-"`
	RoleID       int64  `db:"role_id" json:"-"`
	Role         Role   `db:"-" json:"role"`
}

// DefaultRoleName is assigned to every newly registered user.
const DefaultRoleName = "viewer"

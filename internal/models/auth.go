package models

import (
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued session token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

// RegisterRequest creates a viewer account.
type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AssignRoleRequest replaces a user's role.
type AssignRoleRequest struct {
	Username string `json:"username" validate:"required"`
	RoleName string `json:"roleName" validate:"required"`
}

// CreateRoleRequest defines a new role.
type CreateRoleRequest struct {
	RoleName    string   `json:"roleName" validate:"required"`
	Permissions []string `json:"permissions" validate:"required"`
}

// Claims is the verified identity carried by a session token. The user id travels in "sub".
type Claims struct {
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// UserID parses the numeric subject.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject %q: %w", c.Subject, err)
	}
	return id, nil
}

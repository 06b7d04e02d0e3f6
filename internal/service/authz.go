package service

import "github.com/noah-isme/docmgmt-api/internal/models"

// AccessRule declares what a caller must hold to reach an operation. Empty sets impose no requirement.
type AccessRule struct {
	Roles       []string
	Permissions []string
}

// Public is the rule for operations open to any authenticated caller.
var Public = AccessRule{}

// AuthorizeRole is true when no roles are required or the caller's role is one of them.
func AuthorizeRole(claims *models.Claims, required []string) bool {
	if len(required) == 0 {
		return true
	}
	if claims == nil {
		return false
	}
	for _, role := range required {
		if claims.Role == role {
			return true
		}
	}
	return false
}

// AuthorizePermissions is true when every required permission is held by the caller.
func AuthorizePermissions(claims *models.Claims, required []string) bool {
	if len(required) == 0 {
		return true
	}
	if claims == nil {
		return false
	}
	held := make(map[string]struct{}, len(claims.Permissions))
	for _, p := range claims.Permissions {
		held[p] = struct{}{}
	}
	for _, p := range required {
		if _, ok := held[p]; !ok {
			return false
		}
	}
	return true
}

// Allows evaluates the role check before the permission check.
func (r AccessRule) Allows(claims *models.Claims) bool {
	return AuthorizeRole(claims, r.Roles) && AuthorizePermissions(claims, r.Permissions)
}

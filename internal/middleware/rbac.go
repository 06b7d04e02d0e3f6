package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/docmgmt-api/internal/service"
	appErrors "github.com/noah-isme/docmgmt-api/pkg/errors"
	"github.com/noah-isme/docmgmt-api/pkg/response"
)

// RequireAccess enforces a route's access rule. It must run after JWT.
func RequireAccess(rule service.AccessRule, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}

		if !service.AuthorizeRole(claims, rule.Roles) {
			logger.Debug("role check failed", zap.String("path", c.FullPath()), zap.String("role", claims.Role), zap.Strings("required", rule.Roles))
			response.Abort(c, appErrors.Clone(appErrors.ErrForbidden, "Insufficient role"))
			return
		}
		if !service.AuthorizePermissions(claims, rule.Permissions) {
			logger.Debug("permission check failed", zap.String("path", c.FullPath()), zap.Strings("held", claims.Permissions), zap.Strings("required", rule.Permissions))
			response.Abort(c, appErrors.Clone(appErrors.ErrForbidden, "Insufficient permissions"))
			return
		}

		c.Next()
	}
}

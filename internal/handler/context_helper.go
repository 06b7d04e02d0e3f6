package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docmgmt-api/internal/middleware"
	appErrors "github.com/noah-isme/docmgmt-api/pkg/errors"
)

// currentUserID resolves the numeric id of the authenticated caller.
func currentUserID(c *gin.Context) (int64, error) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return 0, appErrors.ErrUnauthorized
	}
	id, err := claims.UserID()
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token subject")
	}
	return id, nil
}

func parseIDParam(c *gin.Context, name, label string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrInvalidInput, "invalid "+label+" id")
	}
	return id, nil
}

func invalidBody(err error) error {
	return appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid request body")
}

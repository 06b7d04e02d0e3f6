package middleware

import (
	"bytes"
	"io"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/docmgmt-api/pkg/errors"
	"github.com/noah-isme/docmgmt-api/pkg/response"
	"github.com/noah-isme/docmgmt-api/pkg/signature"
)

const maxCallbackBody = 1 << 20

// CallbackSignature verifies the HMAC signature of callback bodies when the signer has a secret.
func CallbackSignature(signer *signature.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !signer.Enabled() {
			c.Next()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
		if err != nil {
			response.Abort(c, appErrors.Clone(appErrors.ErrInvalidInput, "unable to read request body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if err := signer.Verify(body, c.GetHeader(signature.Header)); err != nil {
			response.Abort(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid callback signature"))
			return
		}
		c.Next()
	}
}

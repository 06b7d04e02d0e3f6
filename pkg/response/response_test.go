package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/docmgmt-api/pkg/errors"
)

func newContext(method, path string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, nil)
	return c, w
}

func TestErrorWritesEnvelope(t *testing.T) {
	c, w := newContext(http.MethodGet, "/document/42")

	Error(c, appErrors.Clone(appErrors.ErrNotFound, "document not found"))

	require.Equal(t, http.StatusNotFound, w.Code)
	var body ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusNotFound, body.StatusCode)
	assert.Equal(t, "NotFound", body.Code)
	assert.Equal(t, "document not found", body.Message)
	assert.Equal(t, "/document/42", body.Path)
	assert.Equal(t, http.MethodGet, body.Method)
	assert.NotEmpty(t, body.Timestamp)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestErrorHidesUnclassifiedDetail(t *testing.T) {
	c, w := newContext(http.MethodPost, "/ingestion/trigger")

	Error(c, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
	assert.Contains(t, w.Body.String(), "InternalServerError")
}

package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/docmgmt-api/internal/models"
	"github.com/noah-isme/docmgmt-api/internal/service"
	appErrors "github.com/noah-isme/docmgmt-api/pkg/errors"
	"github.com/noah-isme/docmgmt-api/pkg/response"
	"github.com/noah-isme/docmgmt-api/pkg/signature"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubValidator struct {
	token  string
	claims *models.Claims
}

func (s stubValidator) ValidateToken(token string) (*models.Claims, error) {
	if token != s.token {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

func envelopeCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env response.ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Code
}

func TestJWT(t *testing.T) {
	claims := &models.Claims{Username: "alice", Role: models.RoleAdmin}
	r := gin.New()
	r.GET("/private", JWT(stubValidator{token: "good", claims: claims}), func(c *gin.Context) {
		got, ok := ClaimsFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, got.Username)
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"invalid token", "Bearer bad", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
		{"case insensitive scheme", "bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "alice", w.Body.String())
			} else {
				assert.Equal(t, "Unauthenticated", envelopeCode(t, w))
			}
		})
	}
}

func TestRequireAccess(t *testing.T) {
	rule := service.AccessRule{Roles: []string{models.RoleAdmin}, Permissions: []string{models.PermissionWrite}}

	cases := []struct {
		name   string
		claims *models.Claims
		status int
		code   string
	}{
		{"no claims", nil, http.StatusUnauthorized, "Unauthenticated"},
		{"wrong role", &models.Claims{Role: models.RoleViewer, Permissions: []string{"write"}}, http.StatusForbidden, "Forbidden"},
		{"missing permission", &models.Claims{Role: models.RoleAdmin, Permissions: []string{"read"}}, http.StatusForbidden, "Forbidden"},
		{"allowed", &models.Claims{Role: models.RoleAdmin, Permissions: []string{"read", "write"}}, http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/upload", func(c *gin.Context) {
				if tc.claims != nil {
					c.Set(ContextUserKey, tc.claims)
				}
				c.Next()
			}, RequireAccess(rule, nil), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", nil))
			assert.Equal(t, tc.status, w.Code)
			if tc.code != "" {
				assert.Equal(t, tc.code, envelopeCode(t, w))
			}
		})
	}
}

func TestCallbackSignature(t *testing.T) {
	signer := signature.NewSigner("secret", time.Minute)
	body := []byte(`{"id":1,"status":"COMPLETED"}`)

	newRouter := func(s *signature.Signer) *gin.Engine {
		r := gin.New()
		r.POST("/callback", CallbackSignature(s), func(c *gin.Context) {
			data, err := io.ReadAll(c.Request.Body)
			require.NoError(t, err)
			c.String(http.StatusOK, string(data))
		})
		return r
	}

	t.Run("valid signature keeps body readable", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/callback", bytes.NewReader(body))
		req.Header.Set(signature.Header, signer.Sign(body))
		w := httptest.NewRecorder()
		newRouter(signer).ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, string(body), w.Body.String())
	})

	t.Run("tampered body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/callback", bytes.NewReader([]byte(`{"id":2,"status":"COMPLETED"}`)))
		req.Header.Set(signature.Header, signer.Sign(body))
		w := httptest.NewRecorder()
		newRouter(signer).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("disabled signer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/callback", bytes.NewReader(body))
		w := httptest.NewRecorder()
		newRouter(signature.NewSigner("", 0)).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	r := gin.New()
	r.Use(Recovery(zap.New(core)))
	r.GET("/boom", func(c *gin.Context) {
		panic(errors.New("boom"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var env response.ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "InternalServerError", env.Code)
	assert.NotContains(t, env.Message, "boom")
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestAudit(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.Claims{Username: "alice"})
		c.Next()
	})
	r.DELETE("/document/:id", Audit(logger, "delete", "document"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.DELETE("/fail/:id", Audit(logger, "delete", "document"), func(c *gin.Context) {
		response.Error(c, appErrors.ErrNotFound)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/document/7", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/fail/7", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	entries := logs.FilterMessage("audit").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "delete", fields["action"])
	assert.Equal(t, "7", fields["resource_id"])
	assert.Equal(t, "alice", fields["username"])
}

func TestMetricsMiddleware(t *testing.T) {
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	var during float64
	r.GET("/document/:id", func(c *gin.Context) {
		during = inFlightValue(t, metrics, "document")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/document/1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), during)
	assert.Equal(t, float64(0), inFlightValue(t, metrics, "document"))

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() != "http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "path" && l.GetValue() == "/document/:id" {
					found = true
				}
			}
		}
	}
	assert.True(t, found)
}

func inFlightValue(t *testing.T, metrics *service.MetricsService, group string) float64 {
	t.Helper()
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "http_requests_in_flight" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "group" && l.GetValue() == group {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	return -1
}

func TestRouteGroup(t *testing.T) {
	assert.Equal(t, "document", routeGroup("/document/:id"))
	assert.Equal(t, "ingestion", routeGroup("/ingestion/status/:id"))
	assert.Equal(t, "health", routeGroup("/health"))
	assert.Equal(t, "root", routeGroup("/"))
	assert.Equal(t, unmatchedRoute, routeGroup(unmatchedRoute))
}

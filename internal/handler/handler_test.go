package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docmgmt-api/internal/middleware"
	"github.com/noah-isme/docmgmt-api/internal/models"
	"github.com/noah-isme/docmgmt-api/pkg/response"
)

const testSecret = "handler-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newContext(w *httptest.ResponseRecorder, claims *models.Claims) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c
}

func claimsFor(id int64, role string, permissions ...string) *models.Claims {
	return &models.Claims{
		Username:    role + "-user",
		Role:        role,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id, 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func signToken(t *testing.T, claims *models.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.ErrorEnvelope {
	t.Helper()
	var env response.ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

// memoryDocuments stands in for the documents table.
type memoryDocuments struct {
	mu   sync.Mutex
	next int64
	rows map[int64]models.Document
}

func newMemoryDocuments() *memoryDocuments {
	return &memoryDocuments{rows: map[int64]models.Document{}}
}

func (m *memoryDocuments) Create(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	doc.ID = m.next
	m.rows[doc.ID] = *doc
	return nil
}

func (m *memoryDocuments) FindByID(ctx context.Context, id int64) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &doc, nil
}

func (m *memoryDocuments) FindByName(ctx context.Context, name string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *models.Document
	for id, doc := range m.rows {
		if doc.DocumentName == name && (found == nil || id < found.ID) {
			d := doc
			found = &d
		}
	}
	if found == nil {
		return nil, sql.ErrNoRows
	}
	return found, nil
}

func (m *memoryDocuments) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.rows, id)
	return nil
}

type staticOwners struct{}

func (staticOwners) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return &models.User{ID: id, Username: "owner"}, nil
}

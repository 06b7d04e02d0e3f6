package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/noah-isme/docmgmt-api/internal/models"
	"github.com/noah-isme/docmgmt-api/pkg/middleware/requestid"
)

type submitRequest struct {
	Input       models.IngestionInput `json:"input"`
	CallbackURL string                `json:"callbackUrl"`
}

type submitResponse struct {
	ID int64 `json:"id"`
}

// HTTPBackend submits input to an external processor that answers with the task id
// and later calls back on its own.
type HTTPBackend struct {
	endpoint    string
	token       string
	callbackURL string
	client      *http.Client
}

// NewHTTPBackend configures the processor endpoint. token is sent as a bearer credential when set.
func NewHTTPBackend(endpoint, token, callbackURL string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPBackend{endpoint: endpoint, token: token, callbackURL: callbackURL, client: client}
}

// Submit posts the input and returns the id assigned by the processor.
func (b *HTTPBackend) Submit(ctx context.Context, input models.IngestionInput) (int64, error) {
	payload, err := json.Marshal(submitRequest{Input: input, CallbackURL: b.callbackURL})
	if err != nil {
		return 0, fmt.Errorf("marshal ingestion request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build ingestion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		req.Header.Set(requestid.Header, reqID)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("submit ingestion: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("read ingestion response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("processor returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var out submitResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("decode ingestion response: %w", err)
	}
	if out.ID <= 0 {
		return 0, fmt.Errorf("processor returned invalid task id %d", out.ID)
	}
	return out.ID, nil
}

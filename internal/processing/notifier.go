package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/noah-isme/docmgmt-api/pkg/signature"
)

// HTTPNotifier delivers completion callbacks over HTTP.
type HTTPNotifier struct {
	url    string
	client *http.Client
	signer *signature.Signer
}

// NewHTTPNotifier builds a notifier posting to callbackURL. A disabled signer sends unsigned bodies.
func NewHTTPNotifier(callbackURL string, signer *signature.Signer, client *http.Client) *HTTPNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPNotifier{url: callbackURL, client: client, signer: signer}
}

// Notify posts cb and fails on any non-2xx answer.
func (n *HTTPNotifier) Notify(ctx context.Context, cb Callback) error {
	body, err := json.Marshal(cb)
	if err != nil {
		return fmt.Errorf("marshal callback: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sig := n.signer.Sign(body); sig != "" {
		req.Header.Set(signature.Header, sig)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post callback: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback rejected with status %d", resp.StatusCode)
	}
	return nil
}

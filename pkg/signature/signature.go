package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Header carries the signature of an ingestion callback body.
const Header = "X-Callback-Signature"

// Signer creates and validates HMAC-SHA256 signatures over request bodies.
// A signer without a secret is disabled: Sign returns "" and Verify accepts everything.
type Signer struct {
	secret []byte
	skew   time.Duration
	now    func() time.Time
}

// NewSigner constructs a signer. skew bounds how old a signed timestamp may be.
func NewSigner(secret string, skew time.Duration) *Signer {
	if skew <= 0 {
		skew = 5 * time.Minute
	}
	return &Signer{secret: []byte(secret), skew: skew, now: time.Now}
}

// Enabled reports whether signatures are produced and enforced.
func (s *Signer) Enabled() bool {
	return s != nil && len(s.secret) > 0
}

// Sign returns a header value of the form "t=<unix>,v1=<hex>".
func (s *Signer) Sign(body []byte) string {
	if !s.Enabled() {
		return ""
	}
	ts := strconv.FormatInt(s.now().Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, s.mac(ts, body))
}

// Verify checks a header value produced by Sign.
func (s *Signer) Verify(body []byte, header string) error {
	if !s.Enabled() {
		return nil
	}
	ts, sig, err := parseHeader(header)
	if err != nil {
		return err
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid signature timestamp")
	}
	age := s.now().Sub(time.Unix(unix, 0))
	if age > s.skew || age < -s.skew {
		return fmt.Errorf("signature expired")
	}
	expected := s.mac(ts, body)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

func (s *Signer) mac(ts string, body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(ts))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseHeader(header string) (ts, sig string, err error) {
	if header == "" {
		return "", "", fmt.Errorf("signature missing")
	}
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			sig = value
		}
	}
	if ts == "" || sig == "" {
		return "", "", fmt.Errorf("invalid signature format")
	}
	return ts, sig, nil
}

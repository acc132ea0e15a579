package search

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	signScheme     = "DINING1-HMAC-SHA256"
	signDateFormat = "20060102T150405Z"
	headerSignDate = "X-Signature-Date"
)

// SigningTransport signs every outbound index request: HMAC-SHA256 over the
// method, path, request date and body digest, carried in the Authorization
// header. The index rejects unsigned or stale requests.
type SigningTransport struct {
	accessKey string
	secret    []byte
	base      http.RoundTripper
	now       func() time.Time
}

// NewSigningTransport wraps base (http.DefaultTransport when nil) with
// request signing.
func NewSigningTransport(accessKey, secretKey string, base http.RoundTripper) *SigningTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &SigningTransport{
		accessKey: accessKey,
		secret:    []byte(secretKey),
		base:      base,
		now:       time.Now,
	}
}

// RoundTrip signs the request and forwards it to the base transport.
func (t *SigningTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("sign request: read body: %w", err)
		}
		body = b
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	date := t.now().UTC().Format(signDateFormat)
	req.Header.Set(headerSignDate, date)
	req.Header.Set("Authorization", fmt.Sprintf("%s Credential=%s, Signature=%s",
		signScheme, t.accessKey, t.signature(req.Method, req.URL.Path, date, body)))

	return t.base.RoundTrip(req)
}

func (t *SigningTransport) signature(method, path, date string, body []byte) string {
	bodyHash := sha256.Sum256(body)
	toSign := method + "\n" + path + "\n" + date + "\n" + hex.EncodeToString(bodyHash[:])

	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(toSign))
	return hex.EncodeToString(mac.Sum(nil))
}

// Package webhook accepts Box upload notifications and hands them to the
// pipeline.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxAge is used when the delivery carries no cache-control max-age.
const DefaultMaxAge = 600 * time.Second

// Verification errors.
var (
	ErrMissingTimestamp = errors.New("missing or malformed delivery timestamp")
	ErrStaleMessage     = errors.New("message older than max-age")
	ErrFutureMessage    = errors.New("message timestamp is in the future")
	ErrBadSignature     = errors.New("signature does not match")
	ErrNoKeys           = errors.New("no signature keys configured")
)

// Verifier checks Box webhook signatures against a primary and an optional
// secondary key.
type Verifier struct {
	now       func() time.Time
	primary   []byte
	secondary []byte
}

// NewVerifier creates a verifier. At least one key is required.
func NewVerifier(primary, secondary string) (*Verifier, error) {
	if primary == "" && secondary == "" {
		return nil, ErrNoKeys
	}
	return &Verifier{
		primary:   []byte(primary),
		secondary: []byte(secondary),
		now:       time.Now,
	}, nil
}

// WithClock sets the clock used for freshness checks.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Verify checks freshness first, then the primary signature and finally the
// secondary one.
func (v *Verifier) Verify(body []byte, h http.Header) error {
	stamp := h.Get("Box-Delivery-Timestamp")
	delivered, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrMissingTimestamp, stamp)
	}

	now := v.now().Truncate(time.Second)
	if now.Add(-MaxAge(h)).After(delivered) {
		return fmt.Errorf("%w: delivered %s", ErrStaleMessage, stamp)
	}
	if delivered.After(now) {
		return fmt.Errorf("%w: delivered %s", ErrFutureMessage, stamp)
	}

	if h.Get("Box-Signature-Version") != "1" || h.Get("Box-Signature-Algorithm") != "HmacSHA256" {
		return fmt.Errorf("%w: unsupported signature version or algorithm", ErrBadSignature)
	}
	if matches(v.primary, body, stamp, h.Get("Box-Signature-Primary")) {
		return nil
	}
	if matches(v.secondary, body, stamp, h.Get("Box-Signature-Secondary")) {
		return nil
	}
	return ErrBadSignature
}

// Sign returns the signature Box would send for body with key. Used by
// tests and the local replay command.
func Sign(key, body []byte, timestamp string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	mac.Write([]byte(timestamp))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func matches(key, body []byte, timestamp, signature string) bool {
	if len(key) == 0 || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(key, body, timestamp)), []byte(signature))
}

// MaxAge reads max-age from the cache-control header.
func MaxAge(h http.Header) time.Duration {
	for _, directive := range strings.Split(h.Get("Cache-Control"), ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		if secs, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return DefaultMaxAge
}

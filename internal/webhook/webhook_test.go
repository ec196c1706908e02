package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/bates-must-flow/internal/engine"
	"github.com/Veraticus/bates-must-flow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBody = `{
  "type": "skill_invocation",
  "token": {"read": {"access_token": "read-token"}, "write": {"access_token": "write-token"}},
  "source": {"type": "file", "id": "f1", "name": "scan.pdf", "size": 2048, "parent": {"id": "up1"}},
  "event": {"type": "FILE.UPLOADED", "created_by": {"id": "u1"}}
}`

var deliveredAt = time.Date(2025, time.May, 1, 15, 0, 0, 0, time.UTC)

func signedHeader(t *testing.T, body string, at time.Time, primary, secondary string) http.Header {
	t.Helper()
	stamp := at.Format(time.RFC3339)
	h := http.Header{}
	h.Set("Box-Delivery-Timestamp", stamp)
	h.Set("Box-Signature-Version", "1")
	h.Set("Box-Signature-Algorithm", "HmacSHA256")
	if primary != "" {
		h.Set("Box-Signature-Primary", Sign([]byte(primary), []byte(body), stamp))
	}
	if secondary != "" {
		h.Set("Box-Signature-Secondary", Sign([]byte(secondary), []byte(body), stamp))
	}
	return h
}

func newVerifier(t *testing.T, now time.Time) *Verifier {
	t.Helper()
	v, err := NewVerifier("primary-key", "secondary-key")
	require.NoError(t, err)
	return v.WithClock(func() time.Time { return now })
}

func TestVerifier_Verify(t *testing.T) {
	tests := []struct {
		name    string
		header  func() http.Header
		now     time.Time
		wantErr error
	}{
		{
			name:   "primary signature",
			header: func() http.Header { return signedHeader(t, sampleBody, deliveredAt, "primary-key", "") },
			now:    deliveredAt.Add(time.Minute),
		},
		{
			name:   "secondary signature after key rotation",
			header: func() http.Header { return signedHeader(t, sampleBody, deliveredAt, "old-key", "secondary-key") },
			now:    deliveredAt.Add(time.Minute),
		},
		{
			name:    "wrong keys",
			header:  func() http.Header { return signedHeader(t, sampleBody, deliveredAt, "old-key", "older-key") },
			now:     deliveredAt.Add(time.Minute),
			wantErr: ErrBadSignature,
		},
		{
			name:    "older than default max age",
			header:  func() http.Header { return signedHeader(t, sampleBody, deliveredAt, "primary-key", "") },
			now:     deliveredAt.Add(11 * time.Minute),
			wantErr: ErrStaleMessage,
		},
		{
			name: "cache control extends max age",
			header: func() http.Header {
				h := signedHeader(t, sampleBody, deliveredAt, "primary-key", "")
				h.Set("Cache-Control", "max-age=3600")
				return h
			},
			now: deliveredAt.Add(30 * time.Minute),
		},
		{
			name:    "future timestamp",
			header:  func() http.Header { return signedHeader(t, sampleBody, deliveredAt, "primary-key", "") },
			now:     deliveredAt.Add(-time.Minute),
			wantErr: ErrFutureMessage,
		},
		{
			name: "unsupported algorithm",
			header: func() http.Header {
				h := signedHeader(t, sampleBody, deliveredAt, "primary-key", "")
				h.Set("Box-Signature-Algorithm", "HmacSHA1")
				return h
			},
			now:     deliveredAt,
			wantErr: ErrBadSignature,
		},
		{
			name: "missing timestamp",
			header: func() http.Header {
				h := signedHeader(t, sampleBody, deliveredAt, "primary-key", "")
				h.Del("Box-Delivery-Timestamp")
				return h
			},
			now:     deliveredAt,
			wantErr: ErrMissingTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newVerifier(t, tt.now).Verify([]byte(sampleBody), tt.header())
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifier_TamperedBody(t *testing.T) {
	h := signedHeader(t, sampleBody, deliveredAt, "primary-key", "secondary-key")
	err := newVerifier(t, deliveredAt).Verify([]byte(strings.Replace(sampleBody, "f1", "f2", 1)), h)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestNewVerifier_RequiresKey(t *testing.T) {
	_, err := NewVerifier("", "")
	assert.ErrorIs(t, err, ErrNoKeys)
}

func TestMaxAge(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, DefaultMaxAge, MaxAge(h))
	h.Set("Cache-Control", "no-cache, max-age=120")
	assert.Equal(t, 120*time.Second, MaxAge(h))
	h.Set("Cache-Control", "max-age=soon")
	assert.Equal(t, DefaultMaxAge, MaxAge(h))
}

func TestParseEvent(t *testing.T) {
	event, err := ParseEvent([]byte(sampleBody))
	require.NoError(t, err)
	assert.Equal(t, model.UploadEvent{
		AccessToken:      "read-token",
		FileID:           "f1",
		OriginalFileName: "scan.pdf",
		ParentFolderID:   "up1",
		UserID:           "u1",
		Size:             2048,
	}, event)

	_, err = ParseEvent([]byte(`{"source": {"id": "f1"}}`))
	assert.ErrorIs(t, err, ErrMissingFields)
	assert.ErrorContains(t, err, "source.parent.id")

	_, err = ParseEvent([]byte(`not json`))
	assert.Error(t, err)
}

type recordingProcessor struct {
	release chan struct{}
	events  []model.UploadEvent
	mu      sync.Mutex
}

func (p *recordingProcessor) Process(_ context.Context, event model.UploadEvent) engine.Outcome {
	if p.release != nil {
		<-p.release
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return engine.Outcome{Stage: model.StageFinalized}
}

func post(h http.Handler, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_AcceptsSignedDelivery(t *testing.T) {
	proc := &recordingProcessor{}
	h := NewHandler(newVerifier(t, deliveredAt), proc, 2, nil)

	rec := post(h, sampleBody, signedHeader(t, sampleBody, deliveredAt, "primary-key", ""))
	h.Wait()

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, proc.events, 1)
	assert.Equal(t, "f1", proc.events[0].FileID)
}

func TestHandler_Rejects(t *testing.T) {
	proc := &recordingProcessor{}
	h := NewHandler(newVerifier(t, deliveredAt), proc, 2, nil)

	rec := post(h, sampleBody, signedHeader(t, sampleBody, deliveredAt, "wrong", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := `{"source": {"id": "f1"}}`
	rec = post(h, body, signedHeader(t, body, deliveredAt, "primary-key", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	getRec := httptest.NewRecorder()
	h.ServeHTTP(getRec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, getRec.Code)

	h.Wait()
	assert.Empty(t, proc.events)
}

func TestHandler_BoundsInflight(t *testing.T) {
	proc := &recordingProcessor{release: make(chan struct{})}
	h := NewHandler(nil, proc, 1, nil)

	first := post(h, sampleBody, nil)
	second := post(h, sampleBody, nil)

	assert.Equal(t, http.StatusAccepted, first.Code)
	assert.Equal(t, http.StatusServiceUnavailable, second.Code)
	assert.Equal(t, "30", second.Header().Get("Retry-After"))

	close(proc.release)
	h.Wait()
	assert.Len(t, proc.events, 1)
}

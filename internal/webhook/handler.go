package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Veraticus/bates-must-flow/internal/common"
	"github.com/Veraticus/bates-must-flow/internal/engine"
	"github.com/Veraticus/bates-must-flow/internal/model"
)

const maxBodyBytes = 1 << 20

// Processor runs one upload through the pipeline.
type Processor interface {
	Process(ctx context.Context, event model.UploadEvent) engine.Outcome
}

// Handler verifies deliveries and processes accepted uploads in the
// background, at most maxInflight at a time.
type Handler struct {
	verifier  *Verifier
	processor Processor
	logger    *slog.Logger
	slots     chan struct{}
	wg        sync.WaitGroup
}

// NewHandler creates a handler. A nil verifier accepts unsigned deliveries.
func NewHandler(verifier *Verifier, processor Processor, maxInflight int, logger *slog.Logger) *Handler {
	if maxInflight <= 0 {
		maxInflight = 1
	}
	return &Handler{
		verifier:  verifier,
		processor: processor,
		logger:    common.OrDefault(logger),
		slots:     make(chan struct{}, maxInflight),
	}
}

// ServeHTTP answers 202 once an upload is queued for processing. Rejected
// deliveries get 4xx and are never processed.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if h.verifier != nil {
		if err := h.verifier.Verify(body, r.Header); err != nil {
			h.logger.Warn("Rejected webhook delivery", "error", err, "remote", r.RemoteAddr)
			http.Error(w, "invalid webhook signature", http.StatusBadRequest)
			return
		}
	}

	event, err := ParseEvent(body)
	if err != nil {
		h.logger.Warn("Rejected webhook payload", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	select {
	case h.slots <- struct{}{}:
	default:
		h.logger.Warn("Webhook busy, asking sender to retry", "file_id", event.FileID)
		w.Header().Set("Retry-After", "30")
		http.Error(w, "busy", http.StatusServiceUnavailable)
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() { <-h.slots }()
		h.processor.Process(context.WithoutCancel(r.Context()), event)
	}()

	w.WriteHeader(http.StatusAccepted)
}

// Wait blocks until every accepted upload has been processed.
func (h *Handler) Wait() {
	h.wg.Wait()
}

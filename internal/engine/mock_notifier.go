package engine

import (
	"context"
	"sync"

	"github.com/Veraticus/bates-must-flow/internal/model"
)

// MockNotifier records notifications.
type MockNotifier struct {
	NotifyFn func(ctx context.Context, perr *model.ProcessingError, originalFileName, link string) error
	Calls    []MockNotifyCall
	mu       sync.Mutex
}

// MockNotifyCall records one Notify call.
type MockNotifyCall struct {
	Error            *model.ProcessingError
	OriginalFileName string
	Link             string
}

// Notify records the call.
func (m *MockNotifier) Notify(ctx context.Context, perr *model.ProcessingError, originalFileName, link string) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockNotifyCall{Error: perr, OriginalFileName: originalFileName, Link: link})
	m.mu.Unlock()

	if m.NotifyFn != nil {
		return m.NotifyFn(ctx, perr, originalFileName, link)
	}
	return nil
}

// MockRecorder keeps recorded runs in memory.
type MockRecorder struct {
	Err  error
	Runs []model.RunRecord
	mu   sync.Mutex
}

// RecordRun stores rec unless Err is set.
func (m *MockRecorder) RecordRun(_ context.Context, rec model.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Runs = append(m.Runs, rec)
	return nil
}

var (
	_ Notifier    = (*MockNotifier)(nil)
	_ RunRecorder = (*MockRecorder)(nil)
)

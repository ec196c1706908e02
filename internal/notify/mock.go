package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/Veraticus/bates-must-flow/internal/common"
	"github.com/Veraticus/bates-must-flow/internal/model"
)

// MockSender records sent messages.
type MockSender struct {
	SendFn func(ctx context.Context, from string, msg Message) error
	Sent   []Message
	mu     sync.Mutex
}

// Send records msg.
func (m *MockSender) Send(ctx context.Context, from string, msg Message) error {
	if m.SendFn != nil {
		if err := m.SendFn(ctx, from, msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, msg)
	return nil
}

// MockDirectory maps user IDs to emails.
type MockDirectory map[string]string

// UserEmail returns the mapped email or common.ErrNotFound.
func (d MockDirectory) UserEmail(_ context.Context, _ model.Credentials, userID string) (string, error) {
	if email, ok := d[userID]; ok {
		return email, nil
	}
	return "", fmt.Errorf("user %s: %w", userID, common.ErrNotFound)
}

var (
	_ Sender        = (*MockSender)(nil)
	_ UserDirectory = MockDirectory(nil)
)

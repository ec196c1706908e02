package routing

import (
	"context"
	"sync"

	"github.com/Veraticus/bates-must-flow/internal/model"
)

// MockLister serves a fixed folder tree for tests.
type MockLister struct {
	ListFoldersFn func(ctx context.Context, creds model.Credentials, parentID string) ([]model.Folder, error)
	Tree          map[string][]model.Folder
	Calls         []string
	mu            sync.Mutex
}

// NewMockLister creates a lister over the given parent ID to children tree.
func NewMockLister(tree map[string][]model.Folder) *MockLister {
	return &MockLister{Tree: tree}
}

// ListFolders records the call and returns the children of parentID.
func (m *MockLister) ListFolders(ctx context.Context, creds model.Credentials, parentID string) ([]model.Folder, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, parentID)
	m.mu.Unlock()

	if m.ListFoldersFn != nil {
		return m.ListFoldersFn(ctx, creds, parentID)
	}
	return m.Tree[parentID], nil
}

var _ FolderLister = (*MockLister)(nil)

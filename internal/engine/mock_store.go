package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Veraticus/bates-must-flow/internal/model"
	"github.com/Veraticus/bates-must-flow/internal/pdftext"
)

// MockStore is a test implementation of DocumentStore. Unset funcs serve
// Folders and Files.
type MockStore struct {
	GetFolderNameFn func(ctx context.Context, creds model.Credentials, folderID string) (string, error)
	DownloadFn      func(ctx context.Context, creds model.Credentials, fileID string) (io.ReadCloser, error)
	RenameAndMoveFn func(ctx context.Context, creds model.Credentials, fileID, newName, targetFolderID string) error
	Folders         map[string]string
	Files           map[string][]byte
	Moves           []MockMove
	LookupCalls     int
	DownloadCalls   int
	mu              sync.Mutex
}

// MockMove records a RenameAndMove call.
type MockMove struct {
	FileID         string
	NewName        string
	TargetFolderID string
}

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		Folders: make(map[string]string),
		Files:   make(map[string][]byte),
	}
}

// GetFolderName returns the configured folder name.
func (m *MockStore) GetFolderName(ctx context.Context, creds model.Credentials, folderID string) (string, error) {
	m.mu.Lock()
	m.LookupCalls++
	m.mu.Unlock()

	if m.GetFolderNameFn != nil {
		return m.GetFolderNameFn(ctx, creds, folderID)
	}
	name, ok := m.Folders[folderID]
	if !ok {
		return "", fmt.Errorf("folder %s not found", folderID)
	}
	return name, nil
}

// Download returns the configured file content.
func (m *MockStore) Download(ctx context.Context, creds model.Credentials, fileID string) (io.ReadCloser, error) {
	m.mu.Lock()
	m.DownloadCalls++
	m.mu.Unlock()

	if m.DownloadFn != nil {
		return m.DownloadFn(ctx, creds, fileID)
	}
	data, ok := m.Files[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s not found", fileID)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// RenameAndMove records the move.
func (m *MockStore) RenameAndMove(ctx context.Context, creds model.Credentials, fileID, newName, targetFolderID string) error {
	if m.RenameAndMoveFn != nil {
		if err := m.RenameAndMoveFn(ctx, creds, fileID, newName, targetFolderID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Moves = append(m.Moves, MockMove{FileID: fileID, NewName: newName, TargetFolderID: targetFolderID})
	return nil
}

// MockDocument is a Document whose pages are already region text. A
// non-empty Broken makes PageText panic with it.
type MockDocument struct {
	Broken string
	Pages  []string
}

// NumPages returns the number of pages.
func (d MockDocument) NumPages() int { return len(d.Pages) }

// PageText returns the page's text regardless of region.
func (d MockDocument) PageText(index int, _ pdftext.Region) string {
	if d.Broken != "" {
		panic(d.Broken)
	}
	return d.Pages[index]
}

// MockOpener maps file content to prepared documents.
type MockOpener struct {
	Docs      map[string]MockDocument
	OpenCalls int
}

// Open returns the document registered under string(data).
func (o *MockOpener) Open(data []byte) (pdftext.Document, error) {
	o.OpenCalls++
	doc, ok := o.Docs[string(data)]
	if !ok {
		return nil, fmt.Errorf("not a PDF: %d bytes", len(data))
	}
	return doc, nil
}

var (
	_ DocumentStore  = (*MockStore)(nil)
	_ DocumentOpener = (*MockOpener)(nil)
)

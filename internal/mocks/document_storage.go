package mocks

import (
	"context"
	"sync"

	"github.com/quickserve/dispatch-api/internal/service"
)

// MockDocumentStorage implements service.DocumentStorage for testing
type MockDocumentStorage struct {
	// UploadFn allows test cases to mock the upload
	UploadFn func(ctx context.Context, doc service.Document) (string, error)

	// Default response values. When URL is empty, uploads return
	// "https://files.test/<name>".
	URL string
	Err error

	// Call tracking for verification
	Calls struct {
		mu    sync.Mutex
		Count int
		Names []string
	}
}

var _ service.DocumentStorage = (*MockDocumentStorage)(nil)

// Upload implements the service.DocumentStorage interface
func (m *MockDocumentStorage) Upload(ctx context.Context, doc service.Document) (string, error) {
	m.Calls.mu.Lock()
	m.Calls.Count++
	m.Calls.Names = append(m.Calls.Names, doc.Name)
	m.Calls.mu.Unlock()

	if m.UploadFn != nil {
		return m.UploadFn(ctx, doc)
	}
	if m.Err != nil {
		return "", m.Err
	}
	if m.URL != "" {
		return m.URL, nil
	}
	return "https://files.test/" + doc.Name, nil
}

// UploadCount returns the number of uploads attempted.
func (m *MockDocumentStorage) UploadCount() int {
	m.Calls.mu.Lock()
	defer m.Calls.mu.Unlock()
	return m.Calls.Count
}

package mocks

import (
	"context"
	"sync"

	"github.com/quickserve/dispatch-api/internal/service"
)

// MockImageAnalyzer implements service.ImageAnalyzer for testing
type MockImageAnalyzer struct {
	// AnalyzeImageFn allows test cases to mock the analysis
	AnalyzeImageFn func(ctx context.Context, img service.Document, services []string) (*service.ImageSuggestion, error)

	// Default response values
	Suggestion *service.ImageSuggestion
	Err        error

	// Call tracking for verification
	Calls struct {
		mu       sync.Mutex
		Count    int
		Services [][]string
	}
}

var _ service.ImageAnalyzer = (*MockImageAnalyzer)(nil)

// AnalyzeImage implements the service.ImageAnalyzer interface
func (m *MockImageAnalyzer) AnalyzeImage(ctx context.Context, img service.Document, services []string) (*service.ImageSuggestion, error) {
	m.Calls.mu.Lock()
	m.Calls.Count++
	m.Calls.Services = append(m.Calls.Services, services)
	m.Calls.mu.Unlock()

	if m.AnalyzeImageFn != nil {
		return m.AnalyzeImageFn(ctx, img, services)
	}
	return m.Suggestion, m.Err
}

// CallCount returns the number of analyses requested.
func (m *MockImageAnalyzer) CallCount() int {
	m.Calls.mu.Lock()
	defer m.Calls.mu.Unlock()
	return m.Calls.Count
}

package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/patentgate/internal/resource"
)

// MockSolver implements resource.Solver for testing
type MockSolver struct {
	SuggestFn func(ctx context.Context, image []byte, mimeType string) (string, error)

	// Default response values
	Answer string
	Err    error

	mu    sync.Mutex
	calls int
}

var _ resource.Solver = (*MockSolver)(nil)

// Suggest implements resource.Solver.
func (m *MockSolver) Suggest(ctx context.Context, image []byte, mimeType string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.SuggestFn != nil {
		return m.SuggestFn(ctx, image, mimeType)
	}
	return m.Answer, m.Err
}

// Calls returns how often Suggest was called.
func (m *MockSolver) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

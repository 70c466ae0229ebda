package embedding

import (
	"context"
	"errors"
	"sync"
)

// MockEmbedder is a test double with deterministic outputs.
// Vectors[i] is returned for the i-th Embed call; FailOn maps a call
// index to the error returned instead.
type MockEmbedder struct {
	Vectors [][]float32
	Dims    int
	FailOn  map[int]error
	LoadErr error

	// Hook, when set, runs before each Embed call with the call index.
	Hook func(ctx context.Context, call int)

	mu     sync.Mutex
	calls  []string
	loads  int
	active int
	peak   int
}

func (m *MockEmbedder) Name() string { return "mock" }

func (m *MockEmbedder) Load(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	return m.LoadErr
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	call := len(m.calls)
	m.calls = append(m.calls, text)
	m.active++
	if m.active > m.peak {
		m.peak = m.active
	}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.active--
		m.mu.Unlock()
	}()

	if m.Hook != nil {
		m.Hook(ctx, call)
	}
	if err, ok := m.FailOn[call]; ok {
		if err == nil {
			err = errors.New("mock embed failure")
		}
		return nil, err
	}
	if call < len(m.Vectors) {
		return append([]float32(nil), m.Vectors[call]...), nil
	}
	dims := m.Dims
	if dims <= 0 {
		dims = 4
	}
	v := make([]float32, dims)
	v[call%dims] = 1
	return v, nil
}

// Calls returns the texts passed to Embed, in call order.
func (m *MockEmbedder) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Loads returns how many times Load was invoked.
func (m *MockEmbedder) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// PeakConcurrency returns the highest number of simultaneous Embed calls observed.
func (m *MockEmbedder) PeakConcurrency() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

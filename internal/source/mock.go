package source

import (
	"context"
	"sync"

	"github.com/ayusman/retarget/internal/pose"
)

// MockSource is a test implementation of the Source interface.
// It allows tests to control the frames returned.
type MockSource struct {
	mu     sync.Mutex
	frames []pose.Frame
	err    error
	calls  int
	closed bool
}

// NewMockSource creates a new MockSource instance.
func NewMockSource() *MockSource {
	return &MockSource{}
}

// SetFrames sets the frames returned by Next, in order. After the last one
// Next keeps returning it.
func (m *MockSource) SetFrames(frames ...pose.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = frames
}

// SetError sets the error that will be returned by Next.
func (m *MockSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Next has been called.
func (m *MockSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// IsClosed reports whether Close was called.
func (m *MockSource) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Next returns the pre-configured frames or error.
func (m *MockSource) Next(ctx context.Context) (pose.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return pose.Frame{}, m.err
	}
	if len(m.frames) == 0 {
		return pose.Frame{}, ErrExhausted
	}
	f := m.frames[0]
	if len(m.frames) > 1 {
		m.frames = m.frames[1:]
	}
	return f, nil
}

// Close marks the source closed.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

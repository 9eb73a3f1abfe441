package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera plays back pre-built frames for testing. The last frame
// repeats once playback reaches the end.
type MockCamera struct {
	mu     sync.Mutex
	frames []gocv.Mat
	index  int
	open   bool
	reads  int
}

// NewMockCamera creates a camera that yields the given frames in order.
func NewMockCamera(frames ...gocv.Mat) *MockCamera {
	return &MockCamera{frames: frames}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

func (c *MockCamera) Read(dst *gocv.Mat) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return ErrNotOpen
	}
	if len(c.frames) == 0 {
		return ErrNoFrame
	}
	c.frames[c.index].CopyTo(dst)
	if c.index < len(c.frames)-1 {
		c.index++
	}
	c.reads++
	return nil
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Reads returns how many frames were read.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Package capture reads video frames for pose estimation using GoCV.
package capture

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// Default capture settings.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
	DefaultFPS    = 30
)

// ErrNotOpen is returned when reading from a closed camera.
var ErrNotOpen = errors.New("camera is not open")

// ErrNoFrame is returned when the device or file yields no frame.
var ErrNoFrame = errors.New("no frame available")

// Camera is a video frame source.
type Camera interface {
	Open() error
	Close() error
	// Read fills dst with the next frame.
	Read(dst *gocv.Mat) error
	IsOpen() bool
}

// VideoCamera captures from a device index or a video file.
type VideoCamera struct {
	source  string
	fps     int
	mu      sync.Mutex
	capture *gocv.VideoCapture
}

// NewVideoCamera creates a camera for source, which is either a device index
// such as "0" or a path to a video file.
func NewVideoCamera(source string, fps int) *VideoCamera {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &VideoCamera{source: source, fps: fps}
}

// device returns the device index, or the source itself for files.
func (c *VideoCamera) device() interface{} {
	if id, err := strconv.Atoi(c.source); err == nil {
		return id
	}
	return c.source
}

// Open starts the capture at 640x480.
func (c *VideoCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.device())
	if err != nil {
		return fmt.Errorf("open camera %s: %w", c.source, err)
	}
	capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	return nil
}

// Close releases the capture.
func (c *VideoCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}

// Read fills dst with the next frame.
func (c *VideoCamera) Read(dst *gocv.Mat) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return ErrNotOpen
	}
	if ok := c.capture.Read(dst); !ok || dst.Empty() {
		return ErrNoFrame
	}
	return nil
}

// IsOpen reports whether the capture is running.
func (c *VideoCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture != nil
}

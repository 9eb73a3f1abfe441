package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/retarget/internal/capture"
	"github.com/ayusman/retarget/internal/pose"
)

// CameraSource estimates joints from live video. Frames that the motion gate
// finds still reuse the previous estimate.
type CameraSource struct {
	camera    capture.Camera
	estimator Estimator
	gate      *capture.MotionGate
	frame     gocv.Mat
	last      []pose.JointSample
	skipped   int
}

// NewCameraSource creates a source over cam. A motionThreshold of zero or
// less estimates every frame.
func NewCameraSource(cam capture.Camera, est Estimator, motionThreshold float64) *CameraSource {
	s := &CameraSource{
		camera:    cam,
		estimator: est,
		frame:     gocv.NewMat(),
	}
	if motionThreshold > 0 {
		s.gate = capture.NewMotionGate(motionThreshold)
	}
	return s
}

// Next reads a frame and returns its joints. The camera opens on first use.
// Next is not safe for concurrent use.
func (s *CameraSource) Next(ctx context.Context) (pose.Frame, error) {
	if err := ctx.Err(); err != nil {
		return pose.Frame{}, err
	}
	if !s.camera.IsOpen() {
		if err := s.camera.Open(); err != nil {
			return pose.Frame{}, err
		}
	}

	if err := s.camera.Read(&s.frame); err != nil {
		if errors.Is(err, capture.ErrNoFrame) {
			return pose.Frame{}, fmt.Errorf("%w: %v", ErrExhausted, err)
		}
		return pose.Frame{}, err
	}
	now := time.Now()

	if s.gate != nil && s.last != nil {
		if moved, _ := s.gate.Changed(s.frame); !moved {
			s.skipped++
			return pose.Frame{Timestamp: now, Samples: append([]pose.JointSample(nil), s.last...)}, nil
		}
	} else if s.gate != nil {
		s.gate.Changed(s.frame)
	}

	samples, err := s.estimator.Estimate(ctx, s.frame)
	if err != nil {
		return pose.Frame{}, fmt.Errorf("estimate: %w", err)
	}
	if len(samples) == 0 {
		s.last = nil
	} else {
		s.last = samples
	}
	return pose.Frame{Timestamp: now, Samples: samples}, nil
}

// Skipped returns how many frames reused the previous estimate.
func (s *CameraSource) Skipped() int {
	return s.skipped
}

// Close releases the camera, estimator and frame buffer.
func (s *CameraSource) Close() error {
	err := errors.Join(s.camera.Close(), s.estimator.Close())
	if s.gate != nil {
		s.gate.Close()
	}
	s.frame.Close()
	return err
}

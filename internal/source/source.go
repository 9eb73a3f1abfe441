// Package source supplies joint frames to the retargeting pipeline.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ayusman/retarget/internal/pose"
)

// ErrExhausted is returned by Next once a finite source has no more frames.
var ErrExhausted = errors.New("source exhausted")

// Source produces joint frames. Next blocks until a frame is available or
// ctx is done.
type Source interface {
	Next(ctx context.Context) (pose.Frame, error)
	Close() error
}

// ReplaySource plays back frames recorded as JSON lines.
type ReplaySource struct {
	mu     sync.Mutex
	frames []pose.Frame
	pos    int
	loop   bool
}

// NewReplaySource decodes one pose.Frame per JSON value from r.
// When loop is set the frames repeat forever.
func NewReplaySource(r io.Reader, loop bool) (*ReplaySource, error) {
	dec := json.NewDecoder(r)
	var frames []pose.Frame
	for {
		var f pose.Frame
		err := dec.Decode(&f)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", len(frames), err)
		}
		frames = append(frames, f)
	}
	return &ReplaySource{frames: frames, loop: loop}, nil
}

// OpenReplay reads a recording from path.
func OpenReplay(path string, loop bool) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()
	return NewReplaySource(f, loop)
}

// Len returns the number of recorded frames.
func (s *ReplaySource) Len() int {
	return len(s.frames)
}

// Next returns the next recorded frame stamped with the current time.
func (s *ReplaySource) Next(ctx context.Context) (pose.Frame, error) {
	if err := ctx.Err(); err != nil {
		return pose.Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= len(s.frames) {
		if !s.loop || len(s.frames) == 0 {
			return pose.Frame{}, ErrExhausted
		}
		s.pos = 0
	}
	f := s.frames[s.pos]
	s.pos++
	f.Timestamp = time.Now()
	return f, nil
}

// Close is a no-op.
func (s *ReplaySource) Close() error {
	return nil
}

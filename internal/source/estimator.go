package source

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/pose"
)

// Estimator turns a video frame into joint samples. It returns no samples
// when no subject is visible.
type Estimator interface {
	Estimate(ctx context.Context, frame gocv.Mat) ([]pose.JointSample, error)
	Close() error
}

// EstimatorConfig configures a ProcessEstimator.
type EstimatorConfig struct {
	// Command is the estimator program and its arguments.
	Command []string
	// MinScore drops joints reported with a lower confidence.
	MinScore float64
	// IdleTimeout stops the process after this long without a request.
	// Zero selects 30s.
	IdleTimeout time.Duration
}

// DefaultEstimatorConfig returns an EstimatorConfig with default values.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		Command:     []string{"python3", "scripts/pose_service.py"},
		MinScore:    0.5,
		IdleTimeout: 30 * time.Second,
	}
}

// ProcessEstimator runs a pose estimation program as a long lived child
// process. Each request is a 4-byte big-endian length followed by a JPEG
// frame on stdin; each response is one JSON line on stdout:
//
//	{"joints": [{"name": "nose", "score": 0.9, "x": 0.5, "y": 0.2, "z": 0}]}
//
// Coordinates are normalized image coordinates with y pointing down; they
// are converted to a y-up frame centered on the image.
type ProcessEstimator struct {
	config    EstimatorConfig
	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	idleTimer *time.Timer
}

// NewProcessEstimator creates an estimator. The process starts lazily on
// the first request.
func NewProcessEstimator(config EstimatorConfig) (*ProcessEstimator, error) {
	if len(config.Command) == 0 {
		return nil, errors.New("estimator command is empty")
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 30 * time.Second
	}
	return &ProcessEstimator{config: config}, nil
}

type wireJoint struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// Estimate sends frame to the process and decodes its joints.
func (e *ProcessEstimator) Estimate(ctx context.Context, frame gocv.Mat) ([]pose.JointSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	data := buf.GetBytes()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureStarted(); err != nil {
		return nil, err
	}

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))
	if _, err := e.stdin.Write(length); err != nil {
		e.shutdown()
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := e.stdin.Write(data); err != nil {
		e.shutdown()
		return nil, fmt.Errorf("write frame: %w", err)
	}

	line, err := e.stdout.ReadString('\n')
	if err != nil {
		e.shutdown()
		return nil, fmt.Errorf("read response: %w", err)
	}

	var response struct {
		Joints []wireJoint `json:"joints"`
	}
	if err := json.Unmarshal([]byte(line), &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	e.resetIdleTimer()
	return e.samples(response.Joints), nil
}

// samples keeps the known joints above the score threshold.
func (e *ProcessEstimator) samples(joints []wireJoint) []pose.JointSample {
	known := make(map[string]bool, len(pose.JointArrayOrder))
	for _, name := range pose.JointArrayOrder {
		known[name] = true
	}

	out := make([]pose.JointSample, 0, len(joints))
	for _, j := range joints {
		if !known[j.Name] || j.Score < e.config.MinScore {
			continue
		}
		out = append(out, pose.JointSample{
			Name:     j.Name,
			Score:    j.Score,
			Position: geom.Vec3{X: j.X - 0.5, Y: 0.5 - j.Y, Z: -j.Z},
		})
	}
	return out
}

// Close shuts down the process.
func (e *ProcessEstimator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown()
}

func (e *ProcessEstimator) ensureStarted() error {
	if e.cmd != nil {
		return nil
	}

	cmd := exec.Command(e.config.Command[0], e.config.Command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start estimator: %w", err)
	}

	e.cmd = cmd
	e.stdin = stdin
	e.stdout = bufio.NewReader(stdout)
	return nil
}

func (e *ProcessEstimator) shutdown() error {
	if e.cmd == nil {
		return nil
	}
	if e.idleTimer != nil {
		e.idleTimer.Stop()
		e.idleTimer = nil
	}

	e.stdin.Close()
	err := e.cmd.Wait()
	e.cmd = nil
	e.stdin = nil
	e.stdout = nil
	return err
}

func (e *ProcessEstimator) resetIdleTimer() {
	if e.idleTimer != nil {
		e.idleTimer.Stop()
	}
	e.idleTimer = time.AfterFunc(e.config.IdleTimeout, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.shutdown()
	})
}

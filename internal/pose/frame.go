package pose

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ayusman/retarget/internal/geom"
)

// Frame is one detector tick: the joints observed at a point in time.
// Joints that were not detected are simply absent.
type Frame struct {
	Timestamp time.Time     `json:"timestamp"`
	Samples   []JointSample `json:"samples"`
}

// ErrInvalidSample is returned by Validate for a nameless sample or a score
// outside [0, 1].
var ErrInvalidSample = errors.New("invalid joint sample")

// Validate checks every sample has a joint name and a confidence in [0, 1].
func (f Frame) Validate() error {
	for i, s := range f.Samples {
		if s.Name == "" {
			return fmt.Errorf("sample %d: joint name is required: %w", i, ErrInvalidSample)
		}
		if math.IsNaN(s.Score) || s.Score < 0 || s.Score > 1 {
			return fmt.Errorf("sample %d (%s): score %v outside [0, 1]: %w", i, s.Name, s.Score, ErrInvalidSample)
		}
	}
	return nil
}

// SamplesFromArray decodes a flat x,y,z array laid out in JointArrayOrder.
// Every decoded joint gets score 1. Trailing joints may be omitted.
func SamplesFromArray(values []float64) ([]JointSample, error) {
	if len(values)%3 != 0 {
		return nil, fmt.Errorf("joint array length %d is not a multiple of 3", len(values))
	}
	n := len(values) / 3
	if n > len(JointArrayOrder) {
		return nil, fmt.Errorf("joint array has %d joints, expected at most %d", n, len(JointArrayOrder))
	}

	samples := make([]JointSample, 0, n)
	for i := 0; i < n; i++ {
		samples = append(samples, JointSample{
			Name:     JointArrayOrder[i],
			Score:    1,
			Position: geom.Vec3{X: values[3*i], Y: values[3*i+1], Z: values[3*i+2]},
		})
	}
	return samples, nil
}

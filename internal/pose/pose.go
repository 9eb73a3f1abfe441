// Package pose holds per-joint sample histories and produces temporally
// smoothed joint positions from a noisy detector stream.
package pose

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/retarget/internal/geom"
)

// Smoothing defaults.
const (
	// DefaultWindowSize is the number of recent samples kept per joint.
	DefaultWindowSize = 5
	// DefaultSpatialRadius is the distance gate for samples that contribute
	// to the smoothed position.
	DefaultSpatialRadius = 0.5
)

var (
	// ErrDuplicateJoint is returned when a joint name is added twice.
	ErrDuplicateJoint = errors.New("joint already exists")
	// ErrUnknownJoint is returned when a joint name was never added.
	ErrUnknownJoint = errors.New("unknown joint")
)

// JointSample is a single detector observation of a named joint.
type JointSample struct {
	Name     string    `json:"name"`
	Score    float64   `json:"score"`
	Position geom.Vec3 `json:"position"`
}

// JointHistory is the bounded recent history of one joint plus its smoothed estimate.
type JointHistory struct {
	samples  []JointSample
	smoothed JointSample
}

// AvatarPose tracks the joint histories of one subject across frames.
// It is not safe for concurrent use.
type AvatarPose struct {
	windowSize int
	radius     float64
	joints     map[string]*JointHistory
}

// NewAvatarPose creates an empty pose. Non-positive arguments select the defaults.
func NewAvatarPose(windowSize int, radius float64) *AvatarPose {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if radius <= 0 {
		radius = DefaultSpatialRadius
	}
	return &AvatarPose{
		windowSize: windowSize,
		radius:     radius,
		joints:     make(map[string]*JointHistory),
	}
}

// WindowSize returns the history capacity per joint.
func (p *AvatarPose) WindowSize() int {
	return p.windowSize
}

// Radius returns the spatial smoothing radius.
func (p *AvatarPose) Radius() float64 {
	return p.radius
}

// AddJoint starts tracking a joint. The history holds the single sample and
// the smoothed value equals the raw one.
func (p *AvatarPose) AddJoint(name string, position geom.Vec3, score float64) error {
	if _, ok := p.joints[name]; ok {
		return fmt.Errorf("add %q: %w", name, ErrDuplicateJoint)
	}

	sample := JointSample{Name: name, Score: score, Position: position}
	h := &JointHistory{
		samples:  make([]JointSample, 0, p.windowSize),
		smoothed: sample,
	}
	h.samples = append(h.samples, sample)
	p.joints[name] = h
	return nil
}

// UpdateJoint records a new observation of a tracked joint and recomputes its
// smoothed value.
func (p *AvatarPose) UpdateJoint(name string, position geom.Vec3, score float64) error {
	h, ok := p.joints[name]
	if !ok {
		return fmt.Errorf("update %q: %w", name, ErrUnknownJoint)
	}

	sample := JointSample{Name: name, Score: score, Position: position}

	// Shift left once the window is full, dropping the oldest sample.
	if len(h.samples) >= p.windowSize {
		copy(h.samples, h.samples[1:])
		h.samples = h.samples[:p.windowSize-1]
	}
	h.samples = append(h.samples, sample)

	h.smoothed = smooth(h.samples, sample, p.radius)
	return nil
}

// smooth averages position and score over the samples closer than radius to
// latest. The mean is unweighted.
func smooth(samples []JointSample, latest JointSample, radius float64) JointSample {
	var sum geom.Vec3
	var score float64
	n := 0
	for _, s := range samples {
		if geom.Distance(s.Position, latest.Position) < radius {
			sum = r3.Add(sum, s.Position)
			score += s.Score
			n++
		}
	}

	if n == 0 {
		return latest
	}

	return JointSample{
		Name:     latest.Name,
		Score:    score / float64(n),
		Position: r3.Scale(1/float64(n), sum),
	}
}

// Observe adds the joint on first sight and updates it afterwards.
func (p *AvatarPose) Observe(s JointSample) error {
	if p.Has(s.Name) {
		return p.UpdateJoint(s.Name, s.Position, s.Score)
	}
	return p.AddJoint(s.Name, s.Position, s.Score)
}

// GetJoint returns the smoothed position of a tracked joint.
func (p *AvatarPose) GetJoint(name string) (geom.Vec3, error) {
	h, ok := p.joints[name]
	if !ok {
		return geom.Vec3{}, fmt.Errorf("get %q: %w", name, ErrUnknownJoint)
	}
	return h.smoothed.Position, nil
}

// Smoothed returns the full smoothed sample of a tracked joint.
func (p *AvatarPose) Smoothed(name string) (JointSample, error) {
	h, ok := p.joints[name]
	if !ok {
		return JointSample{}, fmt.Errorf("get %q: %w", name, ErrUnknownJoint)
	}
	return h.smoothed, nil
}

// Raw returns the most recent unsmoothed sample of a tracked joint.
func (p *AvatarPose) Raw(name string) (JointSample, error) {
	h, ok := p.joints[name]
	if !ok {
		return JointSample{}, fmt.Errorf("get %q: %w", name, ErrUnknownJoint)
	}
	return h.samples[len(h.samples)-1], nil
}

// History returns a copy of the samples currently held for a joint, oldest first.
func (p *AvatarPose) History(name string) []JointSample {
	h, ok := p.joints[name]
	if !ok {
		return nil
	}
	out := make([]JointSample, len(h.samples))
	copy(out, h.samples)
	return out
}

// Has reports whether the joint is tracked.
func (p *AvatarPose) Has(name string) bool {
	_, ok := p.joints[name]
	return ok
}

// Names returns the tracked joint names in sorted order.
func (p *AvatarPose) Names() []string {
	names := make([]string, 0, len(p.joints))
	for name := range p.joints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Positions returns the smoothed position of every tracked joint.
func (p *AvatarPose) Positions() map[string]geom.Vec3 {
	out := make(map[string]geom.Vec3, len(p.joints))
	for name, h := range p.joints {
		out[name] = h.smoothed.Position
	}
	return out
}

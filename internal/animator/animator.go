// Package animator drives one rig from a stream of joint frames: it smooths
// the joints, solves bone rotations, poses the skeleton and refreshes the
// debug overlay.
package animator

import (
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/retarget/internal/debugviz"
	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/pose"
	"github.com/ayusman/retarget/internal/retarget"
	"github.com/ayusman/retarget/internal/rig"
)

// Result is the outcome of one animation tick.
type Result struct {
	Sequence  int64                    `json:"sequence"`
	Timestamp time.Time                `json:"timestamp"`
	Rotations retarget.BoneRotationSet `json:"rotations"`
	Joints    map[string]geom.Vec3     `json:"joints"`
	Root      geom.Vec3                `json:"root"`
}

// Animator serializes ticks for one subject. It is safe for concurrent use.
type Animator struct {
	mu       sync.Mutex
	pose     *pose.AvatarPose
	binder   *rig.Binder
	viz      *debugviz.Visualizer
	debug    bool
	sequence int64
	last     Result
}

// New binds sk and returns an animator for it.
func New(sk rig.Skeleton, config retarget.Config) (*Animator, error) {
	config = withRotations(config)
	b, err := rig.Bind(sk, config)
	if err != nil {
		return nil, err
	}
	return &Animator{
		pose:   pose.NewAvatarPose(config.HistoryWindowSize, config.SpatialSmoothingRadius),
		binder: b,
		viz:    debugviz.New(config.DebugOffset),
		debug:  true,
		last:   Result{Rotations: retarget.IdentityRotations()},
	}, nil
}

// Update runs one tick. Every sample is rotated by the input rotation and
// observed; the joints seen in this frame are then solved from their
// smoothed positions. Joints absent from the frame count as missing.
func (a *Animator) Update(f pose.Frame) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	config := a.binder.Config()
	joints := make(retarget.JointSet, len(f.Samples))
	for _, s := range f.Samples {
		s.Position = config.InputRotation.Rotate(s.Position)
		if err := a.pose.Observe(s); err != nil {
			return Result{}, fmt.Errorf("observe %q: %w", s.Name, err)
		}
		p, err := a.pose.GetJoint(s.Name)
		if err != nil {
			return Result{}, err
		}
		joints[s.Name] = p
	}

	rot := a.binder.Solver().Solve(joints)
	a.binder.Apply(rot, joints)

	if a.debug {
		a.viz.Update(joints)
	}

	a.sequence++
	ts := f.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	res := Result{
		Sequence:  a.sequence,
		Timestamp: ts,
		Rotations: rot,
		Joints:    joints,
	}
	if config.RootMotion {
		res.Root = r3.Add(joints.Root(), config.Offset)
	}
	a.last = res
	return res, nil
}

// UpdateFromArray runs one tick from a flat x,y,z array in
// pose.JointArrayOrder.
func (a *Animator) UpdateFromArray(values []float64) (Result, error) {
	samples, err := pose.SamplesFromArray(values)
	if err != nil {
		return Result{}, err
	}
	return a.Update(pose.Frame{Timestamp: time.Now(), Samples: samples})
}

// Last returns the result of the most recent tick.
func (a *Animator) Last() Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	res := a.last
	res.Rotations = res.Rotations.Clone()
	return res
}

// Joints returns the smoothed position of every joint seen so far.
func (a *Animator) Joints() map[string]geom.Vec3 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pose.Positions()
}

// Config returns the current options.
func (a *Animator) Config() retarget.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.binder.Config()
}

func (a *Animator) update(fn func(*retarget.Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.binder.Config()
	fn(&c)
	c = withRotations(c)
	a.binder.SetConfig(c)
	a.viz.SetOffset(c.DebugOffset)
}

// withRotations replaces unset quaternions with the identity.
func withRotations(c retarget.Config) retarget.Config {
	if c.InputRotation == (geom.Quat{}) {
		c.InputRotation = geom.Identity()
	}
	if c.PreRotation == (geom.Quat{}) {
		c.PreRotation = geom.Identity()
	}
	return c
}

// SetConfig replaces all options. The rest pose is not recaptured.
func (a *Animator) SetConfig(c retarget.Config) {
	a.update(func(dst *retarget.Config) { *dst = c })
}

// SetFlip toggles the left/right swap.
func (a *Animator) SetFlip(flip bool) {
	a.update(func(c *retarget.Config) { c.UseFlip = flip })
}

// SetRootMotion toggles moving the rig root with the hips.
func (a *Animator) SetRootMotion(on bool) {
	a.update(func(c *retarget.Config) { c.RootMotion = on })
}

// SetDebug toggles the debug overlay. A disabled overlay keeps its last scene.
func (a *Animator) SetDebug(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.debug = on
}

// Debug reports whether the debug overlay is updated.
func (a *Animator) Debug() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.debug
}

// Scene returns the current debug overlay.
func (a *Animator) Scene() debugviz.Scene {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.viz.Scene()
}

// Reset clears the joint history and returns every bone to identity.
func (a *Animator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.binder.Config()
	a.pose = pose.NewAvatarPose(c.HistoryWindowSize, c.SpatialSmoothingRadius)
	a.binder.Solver().Reset()
	a.sequence = 0
	a.last = Result{Rotations: retarget.IdentityRotations()}
}

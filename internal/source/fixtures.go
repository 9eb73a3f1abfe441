package source

import (
	"time"

	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/pose"
)

func frame(positions map[string]geom.Vec3) pose.Frame {
	f := pose.Frame{Timestamp: time.Now()}
	for _, name := range pose.JointArrayOrder {
		p, ok := positions[name]
		if !ok {
			continue
		}
		f.Samples = append(f.Samples, pose.JointSample{Name: name, Score: 0.9, Position: p})
	}
	return f
}

// UprightFrame returns a standing subject with straight legs and hanging arms.
func UprightFrame() pose.Frame {
	return frame(map[string]geom.Vec3{
		pose.Nose:          {Y: 3},
		pose.LeftShoulder:  {X: -1, Y: 2},
		pose.RightShoulder: {X: 1, Y: 2},
		pose.LeftElbow:     {X: -1, Y: 1},
		pose.RightElbow:    {X: 1, Y: 1},
		pose.LeftWrist:     {X: -1, Y: 0},
		pose.RightWrist:    {X: 1, Y: 0},
		pose.LeftHip:       {X: -1, Y: 0},
		pose.RightHip:      {X: 1, Y: 0},
		pose.LeftKnee:      {X: -1, Y: -1},
		pose.RightKnee:     {X: 1, Y: -1},
		pose.LeftAnkle:     {X: -1, Y: -2},
		pose.RightAnkle:    {X: 1, Y: -2},
	})
}

// TPoseFrame returns a standing subject with arms stretched sideways.
func TPoseFrame() pose.Frame {
	return frame(map[string]geom.Vec3{
		pose.Nose:          {Y: 3},
		pose.LeftShoulder:  {X: -1, Y: 2},
		pose.RightShoulder: {X: 1, Y: 2},
		pose.LeftElbow:     {X: -2, Y: 2},
		pose.RightElbow:    {X: 2, Y: 2},
		pose.LeftWrist:     {X: -3, Y: 2},
		pose.RightWrist:    {X: 3, Y: 2},
		pose.LeftHip:       {X: -1, Y: 0},
		pose.RightHip:      {X: 1, Y: 0},
		pose.LeftKnee:      {X: -1, Y: -1},
		pose.RightKnee:     {X: 1, Y: -1},
		pose.LeftAnkle:     {X: -1, Y: -2},
		pose.RightAnkle:    {X: 1, Y: -2},
	})
}

// WithoutJoints returns a copy of f lacking the named joints.
func WithoutJoints(f pose.Frame, names ...string) pose.Frame {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := pose.Frame{Timestamp: f.Timestamp}
	for _, s := range f.Samples {
		if !drop[s.Name] {
			out.Samples = append(out.Samples, s)
		}
	}
	return out
}

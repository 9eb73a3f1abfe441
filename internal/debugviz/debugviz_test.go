package debugviz

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/pose"
)

const epsilon = 1e-9

func fullBody() map[string]geom.Vec3 {
	return map[string]geom.Vec3{
		pose.Nose:          {Y: 3},
		pose.LeftShoulder:  {X: -1, Y: 2},
		pose.RightShoulder: {X: 1, Y: 2},
		pose.LeftElbow:     {X: -1, Y: 1},
		pose.RightElbow:    {X: 1, Y: 1},
		pose.LeftWrist:     {X: -1, Y: 0.5},
		pose.RightWrist:    {X: 1, Y: 0.5},
		pose.LeftHip:       {X: -0.5, Y: 0.1},
		pose.RightHip:      {X: 0.5, Y: 0.1},
		pose.LeftKnee:      {X: -0.5, Y: -1},
		pose.RightKnee:     {X: 0.5, Y: -1},
		pose.LeftAnkle:     {X: -0.5, Y: -2},
		pose.RightAnkle:    {X: 0.5, Y: -2},
	}
}

func findConnector(t *testing.T, s Scene, from, to string) Connector {
	t.Helper()
	for _, c := range s.Connectors {
		if c.From == from && c.To == to {
			return c
		}
	}
	t.Fatalf("no connector %s-%s", from, to)
	return Connector{}
}

func TestVisualizer_Layout(t *testing.T) {
	v := New(geom.Vec3{})
	s := v.Scene()

	assert.Len(t, s.Markers, len(pose.JointArrayOrder))
	assert.Len(t, s.Connectors, 14)
	assert.Equal(t, ColorLeft, findConnector(t, s, pose.LeftElbow, pose.LeftWrist).Color)
	assert.Equal(t, ColorRight, findConnector(t, s, pose.RightKnee, pose.RightAnkle).Color)
	assert.Equal(t, ColorNeutral, findConnector(t, s, pose.LeftHip, pose.RightHip).Color)
	for _, m := range s.Markers {
		assert.False(t, m.Visible, "marker %s visible before update", m.Joint)
	}
}

func TestVisualizer_Update(t *testing.T) {
	offset := geom.Vec3{X: 2}
	v := New(offset)
	v.Update(fullBody())
	s := v.Scene()

	for _, m := range s.Markers {
		require.True(t, m.Visible, m.Joint)
		want := fullBody()[m.Joint]
		want.X += 2
		assert.True(t, geom.ApproxEqualVec(want, m.Position, epsilon), "%s: expected %v, got %v", m.Joint, want, m.Position)
		assert.InDelta(t, MarkerScale, m.Scale.X, epsilon)
	}

	c := findConnector(t, s, pose.LeftShoulder, pose.LeftElbow)
	require.True(t, c.Visible)
	assert.True(t, geom.ApproxEqualVec(geom.Vec3{X: 1, Y: 1.5}, c.Position, epsilon), "midpoint %v", c.Position)
	assert.True(t, geom.ApproxEqualVec(geom.Down, c.Up, epsilon), "up %v", c.Up)
	assert.InDelta(t, 1.0, c.Length, epsilon)
	assert.InDelta(t, 0.5, c.Scale.Y, epsilon)
	assert.InDelta(t, ConnectorWidth, c.Scale.X, epsilon)

	// The cylinder's local up axis must follow the segment.
	assert.True(t, geom.ApproxEqualVec(geom.Down, c.Rotation.Rotate(geom.Up), 1e-6))

	diag := findConnector(t, s, pose.LeftHip, pose.LeftKnee)
	assert.InDelta(t, 1.1, diag.Length, 1e-9)
	assert.InDelta(t, 0.55, diag.Scale.Y, 1e-9)
}

func TestVisualizer_MissingJoint(t *testing.T) {
	v := New(geom.Vec3{})
	v.Update(fullBody())

	joints := fullBody()
	delete(joints, pose.LeftElbow)
	joints[pose.RightKnee] = geom.Vec3{}
	v.Update(joints)
	s := v.Scene()

	for _, m := range s.Markers {
		hidden := m.Joint == pose.LeftElbow || m.Joint == pose.RightKnee
		assert.Equal(t, !hidden, m.Visible, m.Joint)
	}
	assert.False(t, findConnector(t, s, pose.LeftShoulder, pose.LeftElbow).Visible)
	assert.False(t, findConnector(t, s, pose.LeftElbow, pose.LeftWrist).Visible)
	assert.False(t, findConnector(t, s, pose.RightHip, pose.RightKnee).Visible)
	assert.True(t, findConnector(t, s, pose.LeftHip, pose.LeftKnee).Visible)
}

func TestVisualizer_EmptyUpdate(t *testing.T) {
	v := New(geom.Vec3{})
	v.Update(nil)
	for _, c := range v.Scene().Connectors {
		assert.False(t, c.Visible)
		assert.False(t, math.IsNaN(c.Length))
	}
}

func TestImageRenderer_Project(t *testing.T) {
	r := NewImageRenderer(200, 100, 10)
	assert.Equal(t, 100, r.project(geom.Vec3{}).X)
	assert.Equal(t, 50, r.project(geom.Vec3{}).Y)
	assert.Equal(t, 110, r.project(geom.Vec3{X: 1}).X)
	assert.Equal(t, 40, r.project(geom.Vec3{Y: 1}).Y)
}

func TestImageRenderer_Render(t *testing.T) {
	v := New(geom.Vec3{})
	v.Update(fullBody())

	r := NewImageRenderer(160, 120, 20)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, v.Scene()))

	// JPEG start-of-image marker.
	require.Greater(t, buf.Len(), 2)
	assert.Equal(t, []byte{0xFF, 0xD8}, buf.Bytes()[:2])
	assert.Equal(t, "image/jpeg", r.ContentType())
}

func TestPlotRenderer_Render(t *testing.T) {
	v := New(geom.Vec3{})
	v.Update(fullBody())

	r := NewPlotRenderer("pose")
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, v.Scene()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	buf.Reset()
	require.NoError(t, r.Render(&buf, New(geom.Vec3{}).Scene()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

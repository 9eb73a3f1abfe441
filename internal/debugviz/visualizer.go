// Package debugviz mirrors the smoothed joint set as simple primitives for
// human inspection. Nothing here feeds back into the solver.
package debugviz

import (
	"image/color"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/pose"
)

// Primitive sizes.
const (
	MarkerScale    = 0.1
	ConnectorWidth = 0.1
)

// Side colors.
var (
	ColorLeft    = color.RGBA{R: 255, A: 255}
	ColorRight   = color.RGBA{G: 255, A: 255}
	ColorNeutral = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Marker is a sphere placed at a joint.
type Marker struct {
	Joint    string
	Position geom.Vec3
	Scale    geom.Vec3
	Visible  bool
}

// Connector is a cylinder spanning two joints. Its local Y axis runs along
// the segment and Scale.Y is half the segment length.
type Connector struct {
	From, To string
	Color    color.RGBA
	Position geom.Vec3
	Up       geom.Vec3
	Rotation geom.Quat
	Scale    geom.Vec3
	Length   float64
	Visible  bool
}

// Scene is a snapshot of all primitives.
type Scene struct {
	Markers    []Marker
	Connectors []Connector
}

type connection struct {
	from, to string
	color    color.RGBA
}

var connections = []connection{
	{pose.Nose, pose.LeftShoulder, ColorLeft},
	{pose.Nose, pose.RightShoulder, ColorRight},
	{pose.LeftShoulder, pose.RightShoulder, ColorNeutral},
	{pose.LeftShoulder, pose.LeftHip, ColorLeft},
	{pose.LeftShoulder, pose.LeftElbow, ColorLeft},
	{pose.LeftElbow, pose.LeftWrist, ColorLeft},
	{pose.RightShoulder, pose.RightElbow, ColorRight},
	{pose.RightElbow, pose.RightWrist, ColorRight},
	{pose.RightShoulder, pose.RightHip, ColorRight},
	{pose.LeftHip, pose.RightHip, ColorNeutral},
	{pose.LeftHip, pose.LeftKnee, ColorLeft},
	{pose.LeftKnee, pose.LeftAnkle, ColorLeft},
	{pose.RightHip, pose.RightKnee, ColorRight},
	{pose.RightKnee, pose.RightAnkle, ColorRight},
}

// Visualizer keeps one marker per joint and one connector per bone segment.
type Visualizer struct {
	offset     geom.Vec3
	markers    []Marker
	index      map[string]int
	connectors []Connector
}

// New creates a visualizer whose primitives are shifted by offset.
func New(offset geom.Vec3) *Visualizer {
	v := &Visualizer{
		offset: offset,
		index:  make(map[string]int, len(pose.JointArrayOrder)),
	}
	for i, name := range pose.JointArrayOrder {
		v.markers = append(v.markers, Marker{
			Joint: name,
			Scale: geom.Vec3{X: MarkerScale, Y: MarkerScale, Z: MarkerScale},
		})
		v.index[name] = i
	}
	for _, c := range connections {
		v.connectors = append(v.connectors, Connector{
			From:     c.from,
			To:       c.to,
			Color:    c.color,
			Rotation: geom.Identity(),
			Scale:    geom.Vec3{X: ConnectorWidth, Y: 1, Z: ConnectorWidth},
		})
	}
	return v
}

// SetOffset moves all primitives on the next Update.
func (v *Visualizer) SetOffset(offset geom.Vec3) {
	v.offset = offset
}

// Update repositions every primitive. Joints that are absent or at the
// origin hide their marker and any connector touching them.
func (v *Visualizer) Update(positions map[string]geom.Vec3) {
	for i := range v.markers {
		m := &v.markers[i]
		p, ok := positions[m.Joint]
		m.Visible = ok && !geom.IsZero(p)
		if m.Visible {
			m.Position = r3.Add(p, v.offset)
		}
	}

	for i := range v.connectors {
		c := &v.connectors[i]
		from, to := v.marker(c.From), v.marker(c.To)
		c.Visible = from.Visible && to.Visible
		if !c.Visible {
			continue
		}

		d := r3.Sub(to.Position, from.Position)
		c.Position = geom.Midpoint(from.Position, to.Position)
		c.Up = geom.Normalize(d)
		c.Rotation = geom.FromToRotation(geom.Up, d)
		c.Length = r3.Norm(d)
		c.Scale.Y = c.Length * 0.5
	}
}

func (v *Visualizer) marker(name string) Marker {
	return v.markers[v.index[name]]
}

// Scene returns a copy of the current primitives.
func (v *Visualizer) Scene() Scene {
	return Scene{
		Markers:    append([]Marker(nil), v.markers...),
		Connectors: append([]Connector(nil), v.connectors...),
	}
}

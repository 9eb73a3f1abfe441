// Package sink forwards solved poses to external rig applications. Each sink
// is a program that reads one JSON request on stdin and writes one JSON
// response on stdout.
package sink

import (
	"encoding/json"

	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/rig"
)

// Manifest describes a sink's metadata and rig naming.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Executable  string `json:"executable"`
	// BoneMap maps the sink's bone names to canonical bone names. When empty,
	// BonePrefix is prepended to the canonical names instead.
	BoneMap    map[string]string `json:"boneMap,omitempty"`
	BonePrefix string            `json:"bonePrefix,omitempty"`
}

// Rotation is a unit quaternion on the wire.
type Rotation struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Request is sent to a sink for every solved frame.
type Request struct {
	Session   string              `json:"session"`
	Sequence  int64               `json:"sequence"`
	Rotations map[string]Rotation `json:"rotations"`
	Root      [3]float64          `json:"root"`
	// Unmapped lists canonical bones the sink has no name for.
	Unmapped []string `json:"unmapped,omitempty"`
}

// Response represents the response from a sink.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Sink is a discovered sink with its manifest and location.
type Sink struct {
	Manifest   Manifest
	Path       string
	Executable string
	Bones      rig.BoneMap
}

// boneMap builds the rig naming declared by a manifest.
func (m Manifest) boneMap() (rig.BoneMap, error) {
	switch {
	case len(m.BoneMap) > 0:
		return rig.NewBoneMap(m.BoneMap)
	case m.BonePrefix != "":
		return rig.PrefixedBoneMap(m.BonePrefix), nil
	default:
		return rig.CanonicalBoneMap(), nil
	}
}

func wireRotation(q geom.Quat) Rotation {
	return Rotation{W: q.Real, X: q.Imag, Y: q.Jmag, Z: q.Kmag}
}

package retarget

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/retarget/internal/geom"
)

// TPose holds the rest-pose unit direction of every bone the solver drives.
// Directions are axis aligned and never change after construction.
type TPose struct {
	RootLeftHip       geom.Vec3
	RootRightHip      geom.Vec3
	HipNeck           geom.Vec3
	NeckLeftShoulder  geom.Vec3
	NeckRightShoulder geom.Vec3

	LeftHipLeftKnee     geom.Vec3
	LeftKneeLeftAnkle   geom.Vec3
	RightHipRightKnee   geom.Vec3
	RightKneeRightAnkle geom.Vec3

	LeftShoulderLeftElbow   geom.Vec3
	LeftElbowLeftWrist      geom.Vec3
	RightShoulderRightElbow geom.Vec3
	RightElbowRightWrist    geom.Vec3
}

// DefaultTPose returns the classic T-pose: legs straight down and arms
// stretched out sideways.
func DefaultTPose() TPose {
	return TPose{
		RootLeftHip:       geom.Left,
		RootRightHip:      geom.Right,
		HipNeck:           geom.Up,
		NeckLeftShoulder:  geom.Left,
		NeckRightShoulder: geom.Right,

		LeftHipLeftKnee:     geom.Down,
		LeftKneeLeftAnkle:   geom.Down,
		RightHipRightKnee:   geom.Down,
		RightKneeRightAnkle: geom.Down,

		LeftShoulderLeftElbow:   geom.Left,
		LeftElbowLeftWrist:      geom.Left,
		RightShoulderRightElbow: geom.Right,
		RightElbowRightWrist:    geom.Right,
	}
}

// TPoseBones are the bones whose rest positions CaptureTPose needs.
var TPoseBones = []Bone{
	LeftUpperLeg, RightUpperLeg, LeftLowerLeg, RightLowerLeg, LeftFoot, RightFoot,
	LeftUpperArm, RightUpperArm, LeftLowerArm, RightLowerArm, LeftHand, RightHand,
}

// CaptureTPose derives the reference directions from the rest global
// positions of a skeleton, snapping each bone onto its dominant axis.
func CaptureTPose(rest map[Bone]geom.Vec3) (TPose, error) {
	for _, b := range TPoseBones {
		if _, ok := rest[b]; !ok {
			return TPose{}, fmt.Errorf("capture t-pose: missing rest position for %s", b)
		}
	}

	dir := func(from, to geom.Vec3) geom.Vec3 {
		return geom.SnapToAxis(r3.Sub(to, from))
	}

	root := geom.Midpoint(rest[LeftUpperLeg], rest[RightUpperLeg])
	neck := geom.Midpoint(rest[LeftUpperArm], rest[RightUpperArm])

	return TPose{
		RootLeftHip:       dir(root, rest[LeftUpperLeg]),
		RootRightHip:      dir(root, rest[RightUpperLeg]),
		HipNeck:           dir(root, neck),
		NeckLeftShoulder:  dir(neck, rest[LeftUpperArm]),
		NeckRightShoulder: dir(neck, rest[RightUpperArm]),

		LeftHipLeftKnee:     dir(rest[LeftUpperLeg], rest[LeftLowerLeg]),
		LeftKneeLeftAnkle:   dir(rest[LeftLowerLeg], rest[LeftFoot]),
		RightHipRightKnee:   dir(rest[RightUpperLeg], rest[RightLowerLeg]),
		RightKneeRightAnkle: dir(rest[RightLowerLeg], rest[RightFoot]),

		LeftShoulderLeftElbow:   dir(rest[LeftUpperArm], rest[LeftLowerArm]),
		LeftElbowLeftWrist:      dir(rest[LeftLowerArm], rest[LeftHand]),
		RightShoulderRightElbow: dir(rest[RightUpperArm], rest[RightLowerArm]),
		RightElbowRightWrist:    dir(rest[RightLowerArm], rest[RightHand]),
	}, nil
}

// SpineWeights split the torso bend between the spine and chest bones.
type SpineWeights struct {
	Spine float64
	Chest float64
}

// DefaultSpineWeights splits the bend evenly.
func DefaultSpineWeights() SpineWeights {
	return SpineWeights{Spine: 0.5, Chest: 0.5}
}

// NewSpineWeights derives the weights from the rest local heights of the
// spine and chest bones. Degenerate heights fall back to the defaults.
func NewSpineWeights(spineHeight, chestHeight float64) SpineWeights {
	sum := spineHeight + chestHeight
	if sum == 0 {
		return DefaultSpineWeights()
	}
	return SpineWeights{Spine: spineHeight / sum, Chest: chestHeight / sum}
}

package rig

import (
	"fmt"

	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/retarget"
)

// DefaultLayout returns a humanoid in the classic T-pose, about 1.7 units tall.
func DefaultLayout() Layout {
	return humanoidLayout(false)
}

// ArmsDownLayout returns a humanoid standing with its arms hanging at its sides.
func ArmsDownLayout() Layout {
	return humanoidLayout(true)
}

// LayoutByName returns a built-in layout: "default" or "arms-down".
func LayoutByName(name string) (Layout, error) {
	switch name {
	case "", "default":
		return DefaultLayout(), nil
	case "arms-down":
		return ArmsDownLayout(), nil
	default:
		return nil, fmt.Errorf("unknown layout %q", name)
	}
}

func humanoidLayout(armsDown bool) Layout {
	l := Layout{
		{Bone: retarget.Hips, Parent: NoParent, Position: geom.Vec3{Y: 1.0}},
		{Bone: retarget.Spine, Parent: retarget.Hips, Position: geom.Vec3{Y: 0.1}},
		{Bone: retarget.Chest, Parent: retarget.Spine, Position: geom.Vec3{Y: 0.15}},
		{Bone: retarget.Neck, Parent: retarget.Chest, Position: geom.Vec3{Y: 0.25}},
		{Bone: retarget.Head, Parent: retarget.Neck, Position: geom.Vec3{Y: 0.1}},
	}
	l = append(l, sideLayout(-1, armsDown)...)
	l = append(l, sideLayout(1, armsDown)...)
	return l
}

// sideLayout lays out one leg and one arm. sign is -1 for left and 1 for right.
func sideLayout(sign float64, armsDown bool) Layout {
	left := sign < 0
	pick := func(l, r retarget.Bone) retarget.Bone {
		if left {
			return l
		}
		return r
	}

	upperLeg := pick(retarget.LeftUpperLeg, retarget.RightUpperLeg)
	lowerLeg := pick(retarget.LeftLowerLeg, retarget.RightLowerLeg)
	foot := pick(retarget.LeftFoot, retarget.RightFoot)
	shoulder := pick(retarget.LeftShoulder, retarget.RightShoulder)
	upperArm := pick(retarget.LeftUpperArm, retarget.RightUpperArm)
	lowerArm := pick(retarget.LeftLowerArm, retarget.RightLowerArm)
	hand := pick(retarget.LeftHand, retarget.RightHand)

	// Arm segments run outward, or downward when the arms hang.
	along := func(length float64) geom.Vec3 {
		if armsDown {
			return geom.Vec3{Y: -length}
		}
		return geom.Vec3{X: sign * length}
	}

	l := Layout{
		{Bone: upperLeg, Parent: retarget.Hips, Position: geom.Vec3{X: sign * 0.1, Y: -0.05}},
		{Bone: lowerLeg, Parent: upperLeg, Position: geom.Vec3{Y: -0.45}},
		{Bone: foot, Parent: lowerLeg, Position: geom.Vec3{Y: -0.45}},
		{Bone: shoulder, Parent: retarget.Chest, Position: geom.Vec3{X: sign * 0.05, Y: 0.2}},
		{Bone: upperArm, Parent: shoulder, Position: geom.Vec3{X: sign * 0.1}},
		{Bone: lowerArm, Parent: upperArm, Position: along(0.3)},
		{Bone: hand, Parent: lowerArm, Position: along(0.25)},
	}

	first := retarget.LeftThumbProximal
	if !left {
		first = retarget.RightThumbProximal
	}
	for finger := 0; finger < 5; finger++ {
		proximal := first + retarget.Bone(3*finger)
		base := along(0.04)
		base.Z = 0.03 - 0.015*float64(finger)
		l = append(l,
			BoneSpec{Bone: proximal, Parent: hand, Position: base},
			BoneSpec{Bone: proximal + 1, Parent: proximal, Position: along(0.03)},
			BoneSpec{Bone: proximal + 2, Parent: proximal + 1, Position: along(0.02)},
		)
	}
	return l
}

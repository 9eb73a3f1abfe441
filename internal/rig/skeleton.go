// Package rig binds solved bone rotations to a skeleton.
package rig

import (
	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/retarget"
)

// Skeleton is the minimal capability a rig needs to be driven by the solver.
type Skeleton interface {
	// HasBone reports whether the skeleton has the bone.
	HasBone(b retarget.Bone) bool
	// RestLocalRotation is the bone's rotation relative to its parent in the rest pose.
	RestLocalRotation(b retarget.Bone) geom.Quat
	// RestGlobalRotation is the bone's accumulated rotation in the rest pose.
	RestGlobalRotation(b retarget.Bone) geom.Quat
	// RestLocalPosition is the bone's offset from its parent in the rest pose.
	RestLocalPosition(b retarget.Bone) geom.Vec3
	// RestGlobalPosition is the bone's position in rig space in the rest pose.
	RestGlobalPosition(b retarget.Bone) geom.Vec3
	// SetBoneLocalRotation poses the bone relative to its parent.
	SetBoneLocalRotation(b retarget.Bone, q geom.Quat)
	// SetRootPosition moves the whole rig.
	SetRootPosition(p geom.Vec3)
}

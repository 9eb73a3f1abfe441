package rig

import (
	"fmt"

	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/retarget"
)

// NoParent marks the root bone of a layout.
const NoParent retarget.Bone = -1

// BoneSpec describes one bone of a rest pose.
type BoneSpec struct {
	Bone     retarget.Bone
	Parent   retarget.Bone
	Position geom.Vec3
	Rotation geom.Quat
}

// Layout is a rest pose. Parents must appear before their children.
type Layout []BoneSpec

type humanoidBone struct {
	spec  BoneSpec
	local geom.Quat
}

// Humanoid is an in-memory skeleton.
type Humanoid struct {
	bones map[retarget.Bone]*humanoidBone
	order []retarget.Bone
	root  geom.Vec3
}

var _ Skeleton = (*Humanoid)(nil)

// NewHumanoid builds a skeleton from a layout posed at rest.
func NewHumanoid(layout Layout) (*Humanoid, error) {
	h := &Humanoid{bones: make(map[retarget.Bone]*humanoidBone, len(layout))}
	for _, spec := range layout {
		if _, ok := h.bones[spec.Bone]; ok {
			return nil, fmt.Errorf("duplicate bone %s", spec.Bone)
		}
		if spec.Parent != NoParent {
			if _, ok := h.bones[spec.Parent]; !ok {
				return nil, fmt.Errorf("bone %s: parent %s not defined before child", spec.Bone, spec.Parent)
			}
		}
		if spec.Rotation == (geom.Quat{}) {
			spec.Rotation = geom.Identity()
		}
		h.bones[spec.Bone] = &humanoidBone{spec: spec, local: spec.Rotation}
		h.order = append(h.order, spec.Bone)
	}
	return h, nil
}

// Bones returns the skeleton's bones, parents first.
func (h *Humanoid) Bones() []retarget.Bone {
	return append([]retarget.Bone(nil), h.order...)
}

// HasBone implements Skeleton.
func (h *Humanoid) HasBone(b retarget.Bone) bool {
	_, ok := h.bones[b]
	return ok
}

// RestLocalRotation implements Skeleton.
func (h *Humanoid) RestLocalRotation(b retarget.Bone) geom.Quat {
	if hb, ok := h.bones[b]; ok {
		return hb.spec.Rotation
	}
	return geom.Identity()
}

// RestLocalPosition implements Skeleton.
func (h *Humanoid) RestLocalPosition(b retarget.Bone) geom.Vec3 {
	if hb, ok := h.bones[b]; ok {
		return hb.spec.Position
	}
	return geom.Vec3{}
}

// RestGlobalRotation implements Skeleton.
func (h *Humanoid) RestGlobalRotation(b retarget.Bone) geom.Quat {
	_, rot, _ := geom.DecomposeTRS(h.transform(b, true))
	return rot
}

// RestGlobalPosition implements Skeleton.
func (h *Humanoid) RestGlobalPosition(b retarget.Bone) geom.Vec3 {
	return geom.TransformPoint(h.transform(b, true), geom.Vec3{})
}

// SetBoneLocalRotation implements Skeleton. Unknown bones are ignored.
func (h *Humanoid) SetBoneLocalRotation(b retarget.Bone, q geom.Quat) {
	if hb, ok := h.bones[b]; ok {
		hb.local = q
	}
}

// SetRootPosition implements Skeleton.
func (h *Humanoid) SetRootPosition(p geom.Vec3) {
	h.root = p
}

// RootPosition returns the rig offset set by SetRootPosition.
func (h *Humanoid) RootPosition() geom.Vec3 {
	return h.root
}

// LocalRotation returns the current local rotation of a bone.
func (h *Humanoid) LocalRotation(b retarget.Bone) geom.Quat {
	if hb, ok := h.bones[b]; ok {
		return hb.local
	}
	return geom.Identity()
}

// GlobalPosition returns the current posed position of a bone, including the root offset.
func (h *Humanoid) GlobalPosition(b retarget.Bone) geom.Vec3 {
	m := geom.TRS(h.root, geom.Identity(), geom.Vec3{X: 1, Y: 1, Z: 1}).Mul4(h.transform(b, false))
	return geom.TransformPoint(m, geom.Vec3{})
}

// GlobalRotation returns the current posed rotation of a bone.
func (h *Humanoid) GlobalRotation(b retarget.Bone) geom.Quat {
	_, rot, _ := geom.DecomposeTRS(h.transform(b, false))
	return rot
}

// ResetPose returns every bone to its rest rotation.
func (h *Humanoid) ResetPose() {
	for _, hb := range h.bones {
		hb.local = hb.spec.Rotation
	}
}

// transform returns the rig-space matrix of a bone, either at rest or posed.
func (h *Humanoid) transform(b retarget.Bone, rest bool) geom.Mat4 {
	unit := geom.Vec3{X: 1, Y: 1, Z: 1}
	hb, ok := h.bones[b]
	if !ok {
		return geom.TRS(geom.Vec3{}, geom.Identity(), unit)
	}

	rot := hb.local
	if rest {
		rot = hb.spec.Rotation
	}
	local := geom.TRS(hb.spec.Position, rot, unit)
	if hb.spec.Parent == NoParent {
		return local
	}
	return h.transform(hb.spec.Parent, rest).Mul4(local)
}

package rig

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/retarget"
)

// ErrMissingBone is returned by Bind when a skeleton lacks a required bone.
var ErrMissingBone = errors.New("missing required bone")

// RequiredBones must all be present for a skeleton to be bound.
var RequiredBones = []retarget.Bone{
	retarget.Hips, retarget.Spine, retarget.Chest,
	retarget.LeftUpperLeg, retarget.RightUpperLeg,
	retarget.LeftLowerLeg, retarget.RightLowerLeg,
	retarget.LeftFoot, retarget.RightFoot,
	retarget.LeftShoulder, retarget.RightShoulder,
	retarget.LeftUpperArm, retarget.RightUpperArm,
	retarget.LeftLowerArm, retarget.RightLowerArm,
	retarget.LeftHand, retarget.RightHand,
}

// Binder applies solved rotations to a bound skeleton.
type Binder struct {
	skeleton  Skeleton
	config    retarget.Config
	restLocal retarget.BoneRotationSet
	solver    *retarget.Solver
}

// Bind captures the rest pose of a skeleton and builds a solver for it.
// It fails if any required bone is missing.
func Bind(sk Skeleton, config retarget.Config) (*Binder, error) {
	var missing []retarget.Bone
	for _, b := range RequiredBones {
		if !sk.HasBone(b) {
			missing = append(missing, b)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("bind skeleton: %v: %w", missing, ErrMissingBone)
	}

	restLocal := retarget.BoneRotationSet{}
	restGlobal := retarget.BoneRotationSet{}
	for _, b := range retarget.AllBones() {
		if !sk.HasBone(b) {
			continue
		}
		restLocal[b] = sk.RestLocalRotation(b)
		restGlobal[b] = sk.RestGlobalRotation(b)
	}

	restPositions := make(map[retarget.Bone]geom.Vec3, len(retarget.TPoseBones))
	for _, b := range retarget.TPoseBones {
		restPositions[b] = sk.RestGlobalPosition(b)
	}
	tpose, err := retarget.CaptureTPose(restPositions)
	if err != nil {
		return nil, fmt.Errorf("bind skeleton: %w", err)
	}

	spine := retarget.NewSpineWeights(
		sk.RestLocalPosition(retarget.Spine).Y,
		sk.RestLocalPosition(retarget.Chest).Y,
	)

	return &Binder{
		skeleton:  sk,
		config:    config,
		restLocal: restLocal,
		solver:    retarget.NewSolver(config, tpose, restGlobal, spine),
	}, nil
}

// Solver returns the solver built for the bound skeleton.
func (b *Binder) Solver() *retarget.Solver {
	return b.solver
}

// Skeleton returns the bound skeleton.
func (b *Binder) Skeleton() Skeleton {
	return b.skeleton
}

// Config returns the binder configuration.
func (b *Binder) Config() retarget.Config {
	return b.config
}

// SetConfig replaces the runtime options. The rest pose is not recaptured.
func (b *Binder) SetConfig(config retarget.Config) {
	b.config = config
	b.solver.SetFlip(config.UseFlip)
}

// Apply poses the skeleton. Each solved rotation is composed with the bone's
// rest rotation in the order that bone's rest orientation was captured in.
// joints supplies the mid-hip position for root motion.
func (b *Binder) Apply(rot retarget.BoneRotationSet, joints retarget.JointSet) {
	// Hips: solved then rest, behind the optional pre-rotation.
	hips := rot.Get(retarget.Hips).Mul(b.restLocal.Get(retarget.Hips))
	if b.config.UseAdditionalRotation {
		hips = b.config.PreRotation.Mul(hips)
	}
	b.set(retarget.Hips, hips)

	// Legs, spine and chest: solved then rest.
	for _, bone := range []retarget.Bone{
		retarget.LeftUpperLeg, retarget.LeftLowerLeg,
		retarget.RightUpperLeg, retarget.RightLowerLeg,
		retarget.Spine, retarget.Chest,
	} {
		b.set(bone, rot.Get(bone).Mul(b.restLocal.Get(bone)))
	}

	// Arms: rest then solved.
	for _, bone := range []retarget.Bone{
		retarget.LeftUpperArm, retarget.LeftLowerArm,
		retarget.RightUpperArm, retarget.RightLowerArm,
	} {
		b.set(bone, b.restLocal.Get(bone).Mul(rot.Get(bone)))
	}

	// Hands and fingers stay at rest.
	for _, bone := range retarget.FingerBones {
		b.set(bone, b.restLocal.Get(bone))
	}

	if b.config.RootMotion {
		b.skeleton.SetRootPosition(r3.Add(joints.Root(), b.config.Offset))
	}
}

func (b *Binder) set(bone retarget.Bone, q geom.Quat) {
	if !b.skeleton.HasBone(bone) {
		return
	}
	b.skeleton.SetBoneLocalRotation(bone, q)
}

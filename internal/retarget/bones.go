package retarget

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ayusman/retarget/internal/geom"
)

// Bone identifies a canonical humanoid bone.
type Bone int

// Humanoid bones. Values follow the common humanoid avatar numbering so that
// bone maps exported from animation tools line up.
const (
	Hips          Bone = 0
	LeftUpperLeg  Bone = 1
	RightUpperLeg Bone = 2
	LeftLowerLeg  Bone = 3
	RightLowerLeg Bone = 4
	LeftFoot      Bone = 5
	RightFoot     Bone = 6
	Spine         Bone = 7
	Chest         Bone = 8
	Neck          Bone = 9
	Head          Bone = 10
	LeftShoulder  Bone = 11
	RightShoulder Bone = 12
	LeftUpperArm  Bone = 13
	RightUpperArm Bone = 14
	LeftLowerArm  Bone = 15
	RightLowerArm Bone = 16
	LeftHand      Bone = 17
	RightHand     Bone = 18

	LeftThumbProximal       Bone = 24
	LeftThumbIntermediate   Bone = 25
	LeftThumbDistal         Bone = 26
	LeftIndexProximal       Bone = 27
	LeftIndexIntermediate   Bone = 28
	LeftIndexDistal         Bone = 29
	LeftMiddleProximal      Bone = 30
	LeftMiddleIntermediate  Bone = 31
	LeftMiddleDistal        Bone = 32
	LeftRingProximal        Bone = 33
	LeftRingIntermediate    Bone = 34
	LeftRingDistal          Bone = 35
	LeftLittleProximal      Bone = 36
	LeftLittleIntermediate  Bone = 37
	LeftLittleDistal        Bone = 38
	RightThumbProximal      Bone = 39
	RightThumbIntermediate  Bone = 40
	RightThumbDistal        Bone = 41
	RightIndexProximal      Bone = 42
	RightIndexIntermediate  Bone = 43
	RightIndexDistal        Bone = 44
	RightMiddleProximal     Bone = 45
	RightMiddleIntermediate Bone = 46
	RightMiddleDistal       Bone = 47
	RightRingProximal       Bone = 48
	RightRingIntermediate   Bone = 49
	RightRingDistal         Bone = 50
	RightLittleProximal     Bone = 51
	RightLittleIntermediate Bone = 52
	RightLittleDistal       Bone = 53
)

var boneNames = map[Bone]string{
	Hips:          "Hips",
	LeftUpperLeg:  "LeftUpperLeg",
	RightUpperLeg: "RightUpperLeg",
	LeftLowerLeg:  "LeftLowerLeg",
	RightLowerLeg: "RightLowerLeg",
	LeftFoot:      "LeftFoot",
	RightFoot:     "RightFoot",
	Spine:         "Spine",
	Chest:         "Chest",
	Neck:          "Neck",
	Head:          "Head",
	LeftShoulder:  "LeftShoulder",
	RightShoulder: "RightShoulder",
	LeftUpperArm:  "LeftUpperArm",
	RightUpperArm: "RightUpperArm",
	LeftLowerArm:  "LeftLowerArm",
	RightLowerArm: "RightLowerArm",
	LeftHand:      "LeftHand",
	RightHand:     "RightHand",

	LeftThumbProximal:       "LeftThumbProximal",
	LeftThumbIntermediate:   "LeftThumbIntermediate",
	LeftThumbDistal:         "LeftThumbDistal",
	LeftIndexProximal:       "LeftIndexProximal",
	LeftIndexIntermediate:   "LeftIndexIntermediate",
	LeftIndexDistal:         "LeftIndexDistal",
	LeftMiddleProximal:      "LeftMiddleProximal",
	LeftMiddleIntermediate:  "LeftMiddleIntermediate",
	LeftMiddleDistal:        "LeftMiddleDistal",
	LeftRingProximal:        "LeftRingProximal",
	LeftRingIntermediate:    "LeftRingIntermediate",
	LeftRingDistal:          "LeftRingDistal",
	LeftLittleProximal:      "LeftLittleProximal",
	LeftLittleIntermediate:  "LeftLittleIntermediate",
	LeftLittleDistal:        "LeftLittleDistal",
	RightThumbProximal:      "RightThumbProximal",
	RightThumbIntermediate:  "RightThumbIntermediate",
	RightThumbDistal:        "RightThumbDistal",
	RightIndexProximal:      "RightIndexProximal",
	RightIndexIntermediate:  "RightIndexIntermediate",
	RightIndexDistal:        "RightIndexDistal",
	RightMiddleProximal:     "RightMiddleProximal",
	RightMiddleIntermediate: "RightMiddleIntermediate",
	RightMiddleDistal:       "RightMiddleDistal",
	RightRingProximal:       "RightRingProximal",
	RightRingIntermediate:   "RightRingIntermediate",
	RightRingDistal:         "RightRingDistal",
	RightLittleProximal:     "RightLittleProximal",
	RightLittleIntermediate: "RightLittleIntermediate",
	RightLittleDistal:       "RightLittleDistal",
}

var bonesByName = func() map[string]Bone {
	m := make(map[string]Bone, len(boneNames))
	for b, name := range boneNames {
		m[name] = b
	}
	return m
}()

// String returns the canonical bone name.
func (b Bone) String() string {
	if name, ok := boneNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Bone(%d)", int(b))
}

// ParseBone returns the bone with the given canonical name.
func ParseBone(name string) (Bone, error) {
	b, ok := bonesByName[name]
	if !ok {
		return 0, fmt.Errorf("unknown bone %q", name)
	}
	return b, nil
}

// Mirror returns the bone on the opposite side of the body.
// Central bones are returned unchanged.
func (b Bone) Mirror() Bone {
	switch {
	case b >= LeftUpperLeg && b <= RightFoot, b >= LeftShoulder && b <= RightHand:
		// Left and right bones alternate.
		if (b-LeftUpperLeg)%2 == 0 {
			return b + 1
		}
		return b - 1
	case b >= LeftThumbProximal && b <= LeftLittleDistal:
		return b + (RightThumbProximal - LeftThumbProximal)
	case b >= RightThumbProximal && b <= RightLittleDistal:
		return b - (RightThumbProximal - LeftThumbProximal)
	default:
		return b
	}
}

// AllBones returns every known bone in ascending order.
func AllBones() []Bone {
	bones := make([]Bone, 0, len(boneNames))
	for b := range boneNames {
		bones = append(bones, b)
	}
	sort.Slice(bones, func(i, j int) bool { return bones[i] < bones[j] })
	return bones
}

// SolvedBones are the bones whose rotation the solver writes.
var SolvedBones = []Bone{
	Hips,
	LeftUpperLeg, RightUpperLeg, LeftLowerLeg, RightLowerLeg,
	Spine, Chest,
	LeftUpperArm, RightUpperArm, LeftLowerArm, RightLowerArm,
}

// FingerBones are the hand and finger bones, held at their rest rotation.
var FingerBones = func() []Bone {
	bones := []Bone{LeftHand, RightHand}
	for b := LeftThumbProximal; b <= RightLittleDistal; b++ {
		bones = append(bones, b)
	}
	return bones
}()

// BoneRotationSet maps bones to rotations.
type BoneRotationSet map[Bone]geom.Quat

// IdentityRotations returns a set with the identity rotation for every solved bone.
func IdentityRotations() BoneRotationSet {
	s := make(BoneRotationSet, len(SolvedBones))
	for _, b := range SolvedBones {
		s[b] = geom.Identity()
	}
	return s
}

// Get returns the rotation for a bone, or the identity if it is not set.
func (s BoneRotationSet) Get(b Bone) geom.Quat {
	if q, ok := s[b]; ok {
		return q
	}
	return geom.Identity()
}

// Clone returns a copy of the set.
func (s BoneRotationSet) Clone() BoneRotationSet {
	out := make(BoneRotationSet, len(s))
	for b, q := range s {
		out[b] = q
	}
	return out
}

type wireQuat struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// MarshalJSON encodes the set as an object keyed by bone name.
func (s BoneRotationSet) MarshalJSON() ([]byte, error) {
	out := make(map[string]wireQuat, len(s))
	for b, q := range s {
		out[b.String()] = wireQuat{W: q.Real, X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an object keyed by bone name.
func (s *BoneRotationSet) UnmarshalJSON(data []byte) error {
	var in map[string]wireQuat
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := make(BoneRotationSet, len(in))
	for name, q := range in {
		b, err := ParseBone(name)
		if err != nil {
			return err
		}
		out[b] = geom.NewQuat(q.W, q.X, q.Y, q.Z)
	}
	*s = out
	return nil
}

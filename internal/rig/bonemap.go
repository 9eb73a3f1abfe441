package rig

import (
	"fmt"
	"sort"

	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/retarget"
)

// BoneMap translates between a rig's own bone names and canonical bones.
// It is immutable once built.
type BoneMap struct {
	byName map[string]retarget.Bone
	byBone map[retarget.Bone]string
}

// NewBoneMap builds a map from rig bone names to canonical bone names.
func NewBoneMap(names map[string]string) (BoneMap, error) {
	m := BoneMap{
		byName: make(map[string]retarget.Bone, len(names)),
		byBone: make(map[retarget.Bone]string, len(names)),
	}
	for rigName, canonical := range names {
		b, err := retarget.ParseBone(canonical)
		if err != nil {
			return BoneMap{}, fmt.Errorf("bone map entry %q: %w", rigName, err)
		}
		if prev, ok := m.byBone[b]; ok {
			return BoneMap{}, fmt.Errorf("bone map: %s mapped by both %q and %q", b, prev, rigName)
		}
		m.byName[rigName] = b
		m.byBone[b] = rigName
	}
	return m, nil
}

// CanonicalBoneMap maps every canonical bone name to itself.
func CanonicalBoneMap() BoneMap {
	names := make(map[string]string)
	for _, b := range retarget.AllBones() {
		names[b.String()] = b.String()
	}
	m, _ := NewBoneMap(names)
	return m
}

// PrefixedBoneMap maps "<prefix><Bone>" names, as exported by many DCC tools
// (for example "mixamorig:Hips"), to canonical bones.
func PrefixedBoneMap(prefix string) BoneMap {
	names := make(map[string]string)
	for _, b := range retarget.AllBones() {
		names[prefix+b.String()] = b.String()
	}
	m, _ := NewBoneMap(names)
	return m
}

// Lookup returns the canonical bone for a rig bone name.
func (m BoneMap) Lookup(rigName string) (retarget.Bone, bool) {
	b, ok := m.byName[rigName]
	return b, ok
}

// Name returns the rig bone name of a canonical bone.
func (m BoneMap) Name(b retarget.Bone) (string, bool) {
	name, ok := m.byBone[b]
	return name, ok
}

// Len returns the number of mapped bones.
func (m BoneMap) Len() int {
	return len(m.byName)
}

// Entries returns the rig name to canonical name table.
func (m BoneMap) Entries() map[string]string {
	out := make(map[string]string, len(m.byName))
	for name, b := range m.byName {
		out[name] = b.String()
	}
	return out
}

// Rename keys a rotation set by rig bone names. Unmapped bones are dropped
// and their canonical names returned, sorted.
func (m BoneMap) Rename(set retarget.BoneRotationSet) (map[string]geom.Quat, []string) {
	out := make(map[string]geom.Quat, len(set))
	var unmapped []string
	for b, q := range set {
		name, ok := m.byBone[b]
		if !ok {
			unmapped = append(unmapped, b.String())
			continue
		}
		out[name] = q
	}
	sort.Strings(unmapped)
	return out, unmapped
}

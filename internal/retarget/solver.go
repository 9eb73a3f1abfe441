// Package retarget converts measured joint positions into bone-local rotations
// for a humanoid rig.
package retarget

import (
	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/graph"
	"github.com/ayusman/retarget/internal/pose"
)

// Names of the synthetic nodes in the solve graph.
const (
	RootNode       = "root"
	RootMirrorNode = "root mirror"
	NeckNode       = "neck"
)

// JointSet maps joint names to positions for one solve tick.
// A joint that was not observed reads as the zero vector.
type JointSet map[string]geom.Vec3

// Root returns the mid-hip position.
func (j JointSet) Root() geom.Vec3 {
	return geom.Midpoint(j[pose.LeftHip], j[pose.RightHip])
}

// Solver turns joint sets into bone rotations. It keeps the last solved
// rotations so that bones without a valid observation hold their pose.
type Solver struct {
	config  Config
	tpose   TPose
	global  BoneRotationSet
	spine   SpineWeights
	current BoneRotationSet
	graph   *graph.Graph
}

// NewSolver creates a solver. global holds the rest global rotation of each
// bone of the bound rig; missing bones are treated as identity.
func NewSolver(config Config, tpose TPose, global BoneRotationSet, spine SpineWeights) *Solver {
	if global == nil {
		global = BoneRotationSet{}
	}
	return &Solver{
		config:  config,
		tpose:   tpose,
		global:  global.Clone(),
		spine:   spine,
		current: IdentityRotations(),
	}
}

// Config returns the solver configuration.
func (s *Solver) Config() Config {
	return s.config
}

// SetFlip toggles the left/right swap for subsequent solves.
func (s *Solver) SetFlip(flip bool) {
	s.config.UseFlip = flip
}

// TPose returns the reference pose.
func (s *Solver) TPose() TPose {
	return s.tpose
}

// Graph returns the graph built by the last Solve, or nil.
func (s *Solver) Graph() *graph.Graph {
	return s.graph
}

// Current returns a copy of the last solved rotations.
func (s *Solver) Current() BoneRotationSet {
	return s.current.Clone()
}

// Reset returns every bone to the identity rotation.
func (s *Solver) Reset() {
	s.current = IdentityRotations()
	s.graph = nil
}

// Resolve maps the solver's left/right view onto the input joint names.
// With flip enabled the solver's left hip is read from the input's right hip.
func (s *Solver) Resolve(joints JointSet) JointSet {
	if !s.config.UseFlip {
		return joints
	}
	out := make(JointSet, len(joints))
	for name, p := range joints {
		out[pose.Mirror(name)] = p
	}
	return out
}

// Solve builds the joint graph from the measured positions, extracts the
// local rotation of every joint and composes the bone rotations.
func (s *Solver) Solve(joints JointSet) BoneRotationSet {
	j := s.Resolve(joints)
	tp := s.tpose

	lShoulder, rShoulder := j[pose.LeftShoulder], j[pose.RightShoulder]
	lElbow, rElbow := j[pose.LeftElbow], j[pose.RightElbow]
	lWrist, rWrist := j[pose.LeftWrist], j[pose.RightWrist]
	lHip, rHip := j[pose.LeftHip], j[pose.RightHip]
	lKnee, rKnee := j[pose.LeftKnee], j[pose.RightKnee]
	lAnkle, rAnkle := j[pose.LeftAnkle], j[pose.RightAnkle]

	root := j.Root()
	neck := geom.Midpoint(lShoulder, rShoulder)

	g := graph.New()
	rootID := g.AddJoint(RootNode, root, tp.RootLeftHip)
	mirrorID := g.AddJoint(RootMirrorNode, root, tp.HipNeck)
	lHipID := g.AddJoint(pose.LeftHip, lHip, tp.LeftHipLeftKnee)
	rHipID := g.AddJoint(pose.RightHip, rHip, tp.RightHipRightKnee)
	lKneeID := g.AddJoint(pose.LeftKnee, lKnee, tp.LeftKneeLeftAnkle)
	rKneeID := g.AddJoint(pose.RightKnee, rKnee, tp.RightKneeRightAnkle)
	lAnkleID := g.AddJoint(pose.LeftAnkle, lAnkle, geom.Vec3{})
	rAnkleID := g.AddJoint(pose.RightAnkle, rAnkle, geom.Vec3{})
	neckID := g.AddJoint(NeckNode, neck, tp.NeckLeftShoulder)
	lShoulderID := g.AddJoint(pose.LeftShoulder, lShoulder, tp.LeftShoulderLeftElbow)
	rShoulderID := g.AddJoint(pose.RightShoulder, rShoulder, tp.RightShoulderRightElbow)
	lElbowID := g.AddJoint(pose.LeftElbow, lElbow, tp.LeftElbowLeftWrist)
	rElbowID := g.AddJoint(pose.RightElbow, rElbow, tp.RightElbowRightWrist)
	lWristID := g.AddJoint(pose.LeftWrist, lWrist, geom.Vec3{})
	rWristID := g.AddJoint(pose.RightWrist, rWrist, geom.Vec3{})

	// The left hip must stay the root's first child.
	g.AddChild(rootID, lHipID)
	g.AddChild(rootID, rHipID)
	g.AddChild(rootID, mirrorID)
	g.AddChild(lHipID, lKneeID)
	g.AddChild(rHipID, rKneeID)
	g.AddChild(lKneeID, lAnkleID)
	g.AddChild(rKneeID, rAnkleID)
	g.AddChild(mirrorID, neckID)
	g.AddChild(neckID, lShoulderID)
	g.AddChild(neckID, rShoulderID)
	g.AddChild(lShoulderID, lElbowID)
	g.AddChild(rShoulderID, rElbowID)
	g.AddChild(lElbowID, lWristID)
	g.AddChild(rElbowID, rWristID)

	g.ComputeNodeLocals(rootID)
	s.graph = g

	rot := s.current.Clone()
	rot[Hips] = g.Rotation(rootID)

	// Legs
	s.limb(rot, lKnee, lAnkle, g.Rotation(lHipID), g.Rotation(lKneeID),
		Hips, LeftUpperLeg, LeftLowerLeg)
	s.limb(rot, rKnee, rAnkle, g.Rotation(rHipID), g.Rotation(rKneeID),
		Hips, RightUpperLeg, RightLowerLeg)

	// Spine and chest share the torso bend by rest height.
	torso := g.Rotation(mirrorID)
	rot[Spine] = geom.Slerp(geom.Identity(), torso, s.spine.Spine)
	rot[Chest] = geom.Slerp(geom.Identity(), torso, s.spine.Chest)

	// Arms
	s.limb(rot, lElbow, lWrist, g.Rotation(lShoulderID), g.Rotation(lElbowID),
		LeftShoulder, LeftUpperArm, LeftLowerArm)
	s.limb(rot, rElbow, rWrist, g.Rotation(rShoulderID), g.Rotation(rElbowID),
		RightShoulder, RightUpperArm, RightLowerArm)

	s.current = rot
	return rot.Clone()
}

// limb writes the upper and lower rotation of a two-segment limb. The upper
// bone needs the middle joint and the lower bone also needs the end joint;
// skipped bones keep their previous value.
func (s *Solver) limb(rot BoneRotationSet, middle, end geom.Vec3, upperLocal, lowerLocal geom.Quat, parent, upper, lower Bone) {
	if geom.IsZero(middle) {
		return
	}
	rot[upper] = s.rebase(parent, upperLocal)
	if geom.IsZero(end) {
		return
	}
	rot[lower] = s.rebase(upper, lowerLocal)
}

// rebase expresses a graph-space rotation in the local axes of a bone:
// inverse(G) * r * G, where G is the bone's rest global rotation.
func (s *Solver) rebase(b Bone, r geom.Quat) geom.Quat {
	g := s.global.Get(b)
	return g.Inverse().Mul(r).Mul(g)
}

// GlobalJoints returns the solved global position of every joint in the last
// graph, or nil before the first solve.
func (s *Solver) GlobalJoints() JointSet {
	if s.graph == nil {
		return nil
	}
	out := make(JointSet, s.graph.Len())
	for id := graph.NodeID(0); int(id) < s.graph.Len(); id++ {
		out[s.graph.Name(id)] = s.graph.GlobalPosition(id)
	}
	return out
}

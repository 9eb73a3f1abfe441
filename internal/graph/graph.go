// Package graph implements the joint hierarchy used to extract per-joint local
// rotations from measured joint positions.
//
// Nodes live in an arena owned by the Graph. A parent owns its children by
// index and every child keeps a non-owning index back to its parent.
package graph

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/retarget/internal/geom"
)

// NodeID identifies a node within its Graph.
type NodeID int

// NoNode is the parent of a root node.
const NoNode NodeID = -1

// Kind distinguishes plain degree-of-freedom carriers from named joints.
type Kind int

const (
	// KindDOF carries a position and rotation only.
	KindDOF Kind = iota
	// KindJoint adds a name, a target position and a reference direction.
	KindJoint
)

type node struct {
	kind     Kind
	parent   NodeID
	children []NodeID

	position       geom.Vec3
	rotation       geom.Quat
	globalPosition geom.Vec3
	globalRotation geom.Quat

	name             string
	target           geom.Vec3
	initialDirection geom.Vec3
}

// Graph is a tree of DOF and joint nodes.
type Graph struct {
	nodes []node
	names map[string]NodeID
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{names: make(map[string]NodeID)}
}

// AddDOF adds an unnamed node with the given local position and rotation.
func (g *Graph) AddDOF(position geom.Vec3, rotation geom.Quat) NodeID {
	g.nodes = append(g.nodes, node{
		kind:           KindDOF,
		parent:         NoNode,
		position:       position,
		rotation:       rotation,
		globalRotation: geom.Identity(),
	})
	return NodeID(len(g.nodes) - 1)
}

// AddJoint adds a named joint node. target is the measured position and
// initialDirection is the rest-pose direction from this joint to its first child.
func (g *Graph) AddJoint(name string, target, initialDirection geom.Vec3) NodeID {
	g.nodes = append(g.nodes, node{
		kind:             KindJoint,
		parent:           NoNode,
		rotation:         geom.Identity(),
		globalRotation:   geom.Identity(),
		name:             name,
		target:           target,
		initialDirection: initialDirection,
	})
	id := NodeID(len(g.nodes) - 1)
	g.names[name] = id
	return id
}

// AddChild makes child a child of parent. It panics if child already has a
// parent or if the edge would make a node its own child.
func (g *Graph) AddChild(parent, child NodeID) {
	if parent == child {
		panic(fmt.Sprintf("graph: node %d cannot be its own child", parent))
	}
	c := g.node(child)
	if c.parent != NoNode {
		panic(fmt.Sprintf("graph: node %d already has parent %d", child, c.parent))
	}
	p := g.node(parent)
	p.children = append(p.children, child)
	c.parent = parent
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Lookup returns the joint node with the given name.
func (g *Graph) Lookup(name string) (NodeID, bool) {
	id, ok := g.names[name]
	return id, ok
}

// Kind returns the kind of a node.
func (g *Graph) Kind(id NodeID) Kind { return g.node(id).kind }

// Name returns the name of a joint node, or "" for a DOF node.
func (g *Graph) Name(id NodeID) string { return g.node(id).name }

// Parent returns the parent of a node, or NoNode for a root.
func (g *Graph) Parent(id NodeID) NodeID { return g.node(id).parent }

// Children returns the children of a node in insertion order.
func (g *Graph) Children(id NodeID) []NodeID {
	return append([]NodeID(nil), g.node(id).children...)
}

// IsLeaf reports whether the node has no children.
func (g *Graph) IsLeaf(id NodeID) bool { return len(g.node(id).children) == 0 }

// IsRoot reports whether the node has no parent.
func (g *Graph) IsRoot(id NodeID) bool { return g.node(id).parent == NoNode }

// FirstChild returns the first child of a node. It panics on a leaf.
func (g *Graph) FirstChild(id NodeID) NodeID {
	n := g.node(id)
	if len(n.children) == 0 {
		panic(fmt.Sprintf("graph: node %d (%s) has no children", id, n.name))
	}
	return n.children[0]
}

// Position returns the local position of a node in its parent's frame.
func (g *Graph) Position(id NodeID) geom.Vec3 { return g.node(id).position }

// SetPosition sets the local position of a node.
func (g *Graph) SetPosition(id NodeID, p geom.Vec3) { g.node(id).position = p }

// Rotation returns the local rotation of a node.
func (g *Graph) Rotation(id NodeID) geom.Quat { return g.node(id).rotation }

// SetRotation sets the local rotation of a node.
func (g *Graph) SetRotation(id NodeID, r geom.Quat) { g.node(id).rotation = r }

// GlobalPosition returns the position computed by the last UpdateGlobalPosition.
func (g *Graph) GlobalPosition(id NodeID) geom.Vec3 { return g.node(id).globalPosition }

// GlobalRotation returns the accumulated rotation computed by the last UpdateGlobalPosition.
func (g *Graph) GlobalRotation(id NodeID) geom.Quat { return g.node(id).globalRotation }

// Target returns the working target position of a joint node.
func (g *Graph) Target(id NodeID) geom.Vec3 { return g.node(id).target }

// InitialDirection returns the rest-pose direction of a joint node to its first child.
func (g *Graph) InitialDirection(id NodeID) geom.Vec3 { return g.node(id).initialDirection }

// UpdateGlobalPosition recomputes global positions and rotations for the
// subtree at id. global = offset + parentGlobalRotation * localPosition.
func (g *Graph) UpdateGlobalPosition(id NodeID, offset geom.Vec3) {
	parentRot := geom.Identity()
	if p := g.node(id).parent; p != NoNode {
		parentRot = g.node(p).globalRotation
	}
	g.updateGlobal(id, offset, parentRot)
}

func (g *Graph) updateGlobal(id NodeID, offset geom.Vec3, parentRot geom.Quat) {
	n := g.node(id)
	n.globalPosition = r3.Add(offset, parentRot.Rotate(n.position))
	n.globalRotation = parentRot.Mul(n.rotation)
	for _, c := range n.children {
		g.updateGlobal(c, n.globalPosition, n.globalRotation)
	}
}

// ComputeNodeLocals turns the measured targets of the subtree at id into local
// positions and rotations. Each joint is rotated so that its reference
// direction points at its first child. It panics if id is a leaf.
func (g *Graph) ComputeNodeLocals(id NodeID) {
	g.computeLocals(id)

	var offset geom.Vec3
	if p := g.node(id).parent; p != NoNode {
		offset = g.node(p).globalPosition
	}
	g.UpdateGlobalPosition(id, offset)
}

func (g *Graph) computeLocals(id NodeID) {
	t := g.node(id).target
	g.translateSubtree(id, t)
	g.node(id).position = t

	first := g.FirstChild(id)
	r := geom.FromToRotation(g.node(id).initialDirection, g.node(first).target)
	g.node(id).rotation = r
	g.rotateSubtree(id, r.Inverse())

	for _, c := range g.node(id).children {
		if g.IsLeaf(c) {
			// Leaves end in this node's frame.
			g.node(c).position = g.node(c).target
			continue
		}
		g.computeLocals(c)
	}
}

func (g *Graph) translateSubtree(id NodeID, t geom.Vec3) {
	n := g.node(id)
	n.target = r3.Sub(n.target, t)
	for _, c := range n.children {
		g.translateSubtree(c, t)
	}
}

func (g *Graph) rotateSubtree(id NodeID, r geom.Quat) {
	n := g.node(id)
	n.target = r.Rotate(n.target)
	for _, c := range n.children {
		g.rotateSubtree(c, r)
	}
}

func (g *Graph) node(id NodeID) *node {
	if id < 0 || int(id) >= len(g.nodes) {
		panic(fmt.Sprintf("graph: invalid node %d", id))
	}
	return &g.nodes[id]
}

// String renders every root subtree, one node per line, indented by depth.
func (g *Graph) String() string {
	var b strings.Builder
	for i := range g.nodes {
		if g.nodes[i].parent == NoNode {
			g.write(&b, NodeID(i), 0)
		}
	}
	return b.String()
}

func (g *Graph) write(b *strings.Builder, id NodeID, depth int) {
	n := g.node(id)
	b.WriteString(strings.Repeat("  ", depth))
	if n.kind == KindJoint {
		fmt.Fprintf(b, "%s ", n.name)
	} else {
		fmt.Fprintf(b, "dof#%d ", id)
	}
	fmt.Fprintf(b, "pos=%s global=%s rot=%s",
		fmtVec(n.position), fmtVec(n.globalPosition), fmtQuat(n.rotation))
	if n.kind == KindJoint {
		fmt.Fprintf(b, " dir=%s target=%s", fmtVec(n.initialDirection), fmtVec(n.target))
	}
	b.WriteByte('\n')
	for _, c := range n.children {
		g.write(b, c, depth+1)
	}
}

func fmtVec(v geom.Vec3) string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v.X, v.Y, v.Z)
}

func fmtQuat(q geom.Quat) string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f, %.3f)", q.Real, q.Imag, q.Jmag, q.Kmag)
}

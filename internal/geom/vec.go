// Package geom provides the small vector, quaternion and matrix toolkit used by
// the retargeting core.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is a point or direction in 3D space.
type Vec3 = r3.Vec

// Axis-aligned unit directions. Y is up and X points to the subject's right.
var (
	Up      = Vec3{Y: 1}
	Down    = Vec3{Y: -1}
	Left    = Vec3{X: -1}
	Right   = Vec3{X: 1}
	Forward = Vec3{Z: 1}
	Back    = Vec3{Z: -1}
)

// IsZero reports whether v is exactly the zero vector.
// A zero position is the sentinel for a joint that was not observed.
func IsZero(v Vec3) bool {
	return v == Vec3{}
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Vec3) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Vec3) Vec3 {
	return r3.Scale(0.5, r3.Add(a, b))
}

// Normalize returns v scaled to unit length, or the zero vector if v is zero.
func Normalize(v Vec3) Vec3 {
	n := r3.Norm(v)
	if n == 0 {
		return Vec3{}
	}
	return r3.Scale(1/n, v)
}

// SnapToAxis returns the signed unit axis closest to v.
// The zero vector snaps to the zero vector.
func SnapToAxis(v Vec3) Vec3 {
	ax, ay, az := math.Abs(v.X), math.Abs(v.Y), math.Abs(v.Z)
	switch {
	case ax == 0 && ay == 0 && az == 0:
		return Vec3{}
	case ax >= ay && ax >= az:
		return Vec3{X: math.Copysign(1, v.X)}
	case ay >= az:
		return Vec3{Y: math.Copysign(1, v.Y)}
	default:
		return Vec3{Z: math.Copysign(1, v.Z)}
	}
}

// MirrorX reflects v across the YZ plane.
func MirrorX(v Vec3) Vec3 {
	return Vec3{X: -v.X, Y: v.Y, Z: v.Z}
}

// ApproxEqualVec reports whether every component of a and b differs by at most tol.
func ApproxEqualVec(a, b Vec3, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol &&
		math.Abs(a.Y-b.Y) <= tol &&
		math.Abs(a.Z-b.Z) <= tol
}

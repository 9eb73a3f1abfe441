package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Quat is a rotation quaternion. Real is the scalar part and Imag, Jmag and
// Kmag hold the x, y and z components.
type Quat quat.Number

// Identity returns the identity rotation.
func Identity() Quat {
	return Quat{Real: 1}
}

// NewQuat returns the quaternion w + xi + yj + zk.
func NewQuat(w, x, y, z float64) Quat {
	return Quat{Real: w, Imag: x, Jmag: y, Kmag: z}
}

// AxisAngle returns the rotation of angle radians around axis.
// A zero axis or angle yields the identity.
func AxisAngle(axis Vec3, angle float64) Quat {
	if IsZero(axis) || angle == 0 {
		return Identity()
	}
	return Quat(r3.NewRotation(angle, axis))
}

// FromEuler returns the rotation for Euler angles in degrees, applied
// around Z first, then X, then Y.
func FromEuler(x, y, z float64) Quat {
	qx := AxisAngle(Right, x*math.Pi/180)
	qy := AxisAngle(Up, y*math.Pi/180)
	qz := AxisAngle(Forward, z*math.Pi/180)
	return qy.Mul(qx).Mul(qz)
}

// Mul returns q*r, the rotation r followed by q.
func (q Quat) Mul(r Quat) Quat {
	return Quat(quat.Mul(quat.Number(q), quat.Number(r)))
}

// Inverse returns the inverse rotation.
func (q Quat) Inverse() Quat {
	return Quat(quat.Inv(quat.Number(q)))
}

// Norm returns the magnitude of q.
func (q Quat) Norm() float64 {
	return quat.Abs(quat.Number(q))
}

// Normalize returns q scaled to unit length. A zero quaternion becomes the identity.
func (q Quat) Normalize() Quat {
	n := q.Norm()
	if n == 0 {
		return Identity()
	}
	return Quat(quat.Scale(1/n, quat.Number(q)))
}

// Dot returns the four-dimensional dot product of q and r.
func (q Quat) Dot(r Quat) float64 {
	return q.Real*r.Real + q.Imag*r.Imag + q.Jmag*r.Jmag + q.Kmag*r.Kmag
}

// Rotate applies the rotation to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	return r3.Rotation(q).Rotate(v)
}

// Mirror returns the rotation reflected across the YZ plane, so that
// q.Mirror().Rotate(MirrorX(v)) == MirrorX(q.Rotate(v)).
func (q Quat) Mirror() Quat {
	return Quat{Real: q.Real, Imag: q.Imag, Jmag: -q.Jmag, Kmag: -q.Kmag}
}

// ApproxEqual reports whether q and r represent the same rotation within tol.
// q and -q are the same rotation.
func (q Quat) ApproxEqual(r Quat, tol float64) bool {
	same := math.Abs(q.Real-r.Real) <= tol && math.Abs(q.Imag-r.Imag) <= tol &&
		math.Abs(q.Jmag-r.Jmag) <= tol && math.Abs(q.Kmag-r.Kmag) <= tol
	if same {
		return true
	}
	return math.Abs(q.Real+r.Real) <= tol && math.Abs(q.Imag+r.Imag) <= tol &&
		math.Abs(q.Jmag+r.Jmag) <= tol && math.Abs(q.Kmag+r.Kmag) <= tol
}

// Angle returns the rotation angle of q in radians, in [0, pi].
func (q Quat) Angle() float64 {
	w := math.Abs(q.Normalize().Real)
	if w > 1 {
		w = 1
	}
	return 2 * math.Acos(w)
}

// FromToRotation returns the shortest rotation that turns the direction of
// from onto the direction of to. Zero inputs yield the identity.
func FromToRotation(from, to Vec3) Quat {
	f, t := Normalize(from), Normalize(to)
	if IsZero(f) || IsZero(t) {
		return Identity()
	}

	d := r3.Dot(f, t)
	if d >= 1-1e-12 {
		return Identity()
	}
	if d <= -1+1e-12 {
		// Opposite directions: any perpendicular axis works.
		axis := r3.Cross(Right, f)
		if r3.Norm(axis) < 1e-6 {
			axis = r3.Cross(Up, f)
		}
		return AxisAngle(axis, math.Pi)
	}

	c := r3.Cross(f, t)
	return Quat{Real: 1 + d, Imag: c.X, Jmag: c.Y, Kmag: c.Z}.Normalize()
}

// Slerp interpolates along the shortest arc from a to b. t=0 yields a, t=1 yields b.
func Slerp(a, b Quat, t float64) Quat {
	a, b = a.Normalize(), b.Normalize()
	cos := a.Dot(b)
	if cos < 0 {
		b = Quat(quat.Scale(-1, quat.Number(b)))
		cos = -cos
	}

	if cos > 1-1e-9 {
		// Nearly parallel, fall back to normalized lerp.
		q := quat.Add(quat.Scale(1-t, quat.Number(a)), quat.Scale(t, quat.Number(b)))
		return Quat(q).Normalize()
	}

	theta := math.Acos(cos)
	sin := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sin
	wb := math.Sin(t*theta) / sin
	return Quat(quat.Add(quat.Scale(wa, quat.Number(a)), quat.Scale(wb, quat.Number(b))))
}

// LookRotation returns the rotation whose local Z axis points along forward
// and whose local Y axis is as close as possible to up.
func LookRotation(forward, up Vec3) Quat {
	z := Normalize(forward)
	if IsZero(z) {
		return Identity()
	}
	x := Normalize(r3.Cross(up, z))
	if IsZero(x) {
		// up is parallel to forward
		x = Normalize(r3.Cross(Up, z))
		if IsZero(x) {
			x = Normalize(r3.Cross(Forward, z))
		}
	}
	y := r3.Cross(z, x)

	m := mgl64.Mat4{
		x.X, x.Y, x.Z, 0,
		y.X, y.Y, y.Z, 0,
		z.X, z.Y, z.Z, 0,
		0, 0, 0, 1,
	}
	return fromMgl(mgl64.Mat4ToQuat(m)).Normalize()
}

func (q Quat) mgl() mgl64.Quat {
	return mgl64.Quat{W: q.Real, V: mgl64.Vec3{q.Imag, q.Jmag, q.Kmag}}
}

func fromMgl(q mgl64.Quat) Quat {
	return Quat{Real: q.W, Imag: q.V[0], Jmag: q.V[1], Kmag: q.V[2]}
}

package geom

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Mat4 is a column-major 4x4 affine transform.
type Mat4 = mgl64.Mat4

// TRS composes a transform that scales, then rotates, then translates.
func TRS(position Vec3, rotation Quat, scale Vec3) Mat4 {
	t := mgl64.Translate3D(position.X, position.Y, position.Z)
	r := rotation.Normalize().mgl().Mat4()
	s := mgl64.Scale3D(scale.X, scale.Y, scale.Z)
	return t.Mul4(r).Mul4(s)
}

// DecomposeTRS splits m into translation, rotation and per-axis scale.
// The rotation is rebuilt from the Z and Y columns, so shear is discarded.
func DecomposeTRS(m Mat4) (position Vec3, rotation Quat, scale Vec3) {
	c0, c1, c2, c3 := m.Col(0).Vec3(), m.Col(1).Vec3(), m.Col(2).Vec3(), m.Col(3)

	position = Vec3{X: c3[0], Y: c3[1], Z: c3[2]}
	rotation = LookRotation(
		Vec3{X: c2[0], Y: c2[1], Z: c2[2]},
		Vec3{X: c1[0], Y: c1[1], Z: c1[2]},
	)
	scale = Vec3{X: c0.Len(), Y: c1.Len(), Z: c2.Len()}
	return position, rotation, scale
}

// TransformPoint applies m to the point p.
func TransformPoint(m Mat4, p Vec3) Vec3 {
	v := m.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	return Vec3{X: v[0], Y: v[1], Z: v[2]}
}

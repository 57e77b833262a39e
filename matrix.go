package gldraw

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Axis selects a rotation axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// String returns the string representation of Axis.
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return "?"
	}
}

// Rotate returns the homogeneous rotation by angle radians about axis.
func Rotate(axis Axis, angle float32) mgl32.Mat4 {
	switch axis {
	case AxisX:
		return mgl32.HomogRotate3DX(angle)
	case AxisY:
		return mgl32.HomogRotate3DY(angle)
	case AxisZ:
		return mgl32.HomogRotate3DZ(angle)
	default:
		return mgl32.Ident4()
	}
}

// IsOrthonormal reports whether the upper 3x3 block of m has unit-length,
// mutually orthogonal columns within eps.
func IsOrthonormal(m mgl32.Mat4, eps float32) bool {
	c0 := m.Col(0).Vec3()
	c1 := m.Col(1).Vec3()
	c2 := m.Col(2).Vec3()
	near := func(a, b float32) bool {
		d := a - b
		return d <= eps && d >= -eps
	}
	return near(c0.Dot(c0), 1) && near(c1.Dot(c1), 1) && near(c2.Dot(c2), 1) &&
		near(c0.Dot(c1), 0) && near(c0.Dot(c2), 0) && near(c1.Dot(c2), 0)
}

// RotationTrace returns the trace of the upper 3x3 block, 1+2cos(θ) for a
// pure rotation by θ.
func RotationTrace(m mgl32.Mat4) float32 {
	return m.At(0, 0) + m.At(1, 1) + m.At(2, 2)
}

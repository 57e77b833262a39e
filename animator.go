package gldraw

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Rotation is a fixed per-frame angle, in radians, about one axis.
type Rotation struct {
	Axis  Axis
	Angle float32
}

// Animator maps the previous frame's model matrix to the next one.
//
// Translate and Scale are applied once by Start. Step composes every
// rotation, in order, onto the running matrix: M' = M·R1·R2…
// The rate is per frame, so speed follows the display refresh rate and
// floating point drift accumulates over long runs.
type Animator struct {
	Translate mgl32.Vec3
	Scale     mgl32.Vec3
	Rotations []Rotation
}

// NewAnimator returns an animator with unit scale, no translation and
// the given rotations.
func NewAnimator(rotations ...Rotation) Animator {
	return Animator{
		Scale:     mgl32.Vec3{1, 1, 1},
		Rotations: rotations,
	}
}

// Start returns the initial matrix identity·T·S.
func (a Animator) Start() mgl32.Mat4 {
	s := a.Scale
	if s == (mgl32.Vec3{}) {
		s = mgl32.Vec3{1, 1, 1}
	}
	return mgl32.Ident4().
		Mul4(mgl32.Translate3D(a.Translate[0], a.Translate[1], a.Translate[2])).
		Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
}

// Step returns m with one frame of rotation composed onto it.
func (a Animator) Step(m mgl32.Mat4) mgl32.Mat4 {
	for _, r := range a.Rotations {
		if r.Angle == 0 {
			continue
		}
		m = m.Mul4(Rotate(r.Axis, r.Angle))
	}
	return m
}

// Advance applies n steps to m.
func (a Animator) Advance(m mgl32.Mat4, n int) mgl32.Mat4 {
	for range n {
		m = a.Step(m)
	}
	return m
}

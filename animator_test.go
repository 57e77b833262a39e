package gldraw

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestAnimatorStart(t *testing.T) {
	tests := []struct {
		name string
		a    Animator
		want mgl32.Mat4
	}{
		{"zero value is identity", Animator{}, mgl32.Ident4()},
		{"new animator", NewAnimator(Rotation{AxisZ, 1}), mgl32.Ident4()},
		{
			"translate then scale",
			Animator{Translate: mgl32.Vec3{0.2, 0.5, 0}, Scale: mgl32.Vec3{0.25, 0.25, 0.25}},
			mgl32.Translate3D(0.2, 0.5, 0).Mul4(mgl32.Scale3D(0.25, 0.25, 0.25)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Start(); !got.ApproxEqual(tt.want) {
				t.Errorf("Start() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestAnimatorStepOrder tests that rotations compose on the right, in order.
func TestAnimatorStepOrder(t *testing.T) {
	a := NewAnimator(Rotation{AxisZ, 0.3}, Rotation{AxisX, 0.2})
	m := mgl32.Translate3D(1, 2, 3)
	want := m.Mul4(mgl32.HomogRotate3DZ(0.3)).Mul4(mgl32.HomogRotate3DX(0.2))
	if got := a.Step(m); !got.ApproxEqualThreshold(want, 1e-6) {
		t.Errorf("Step() = %v, want %v", got, want)
	}

	reversed := m.Mul4(mgl32.HomogRotate3DX(0.2)).Mul4(mgl32.HomogRotate3DZ(0.3))
	if got := a.Step(m); got.ApproxEqualThreshold(reversed, 1e-6) {
		t.Error("Step() composed rotations in reverse order")
	}
}

func TestAnimatorStepWithoutRotation(t *testing.T) {
	m := mgl32.Translate3D(1, 0, 0)
	for _, a := range []Animator{{}, NewAnimator(Rotation{AxisY, 0})} {
		if got := a.Step(m); got != m {
			t.Errorf("Step() = %v, want unchanged %v", got, m)
		}
	}
}

func TestAnimatorAdvance(t *testing.T) {
	a := NewAnimator(Rotation{AxisY, 0.05})
	m := a.Start()
	stepped := m
	for range 7 {
		stepped = a.Step(stepped)
	}
	if got := a.Advance(m, 7); got != stepped {
		t.Errorf("Advance(7) = %v, want %v", got, stepped)
	}
	if got := a.Advance(m, 0); got != m {
		t.Errorf("Advance(0) = %v, want %v", got, m)
	}
}

// TestIncrementalRotationDrift tests that 10,000 incremental steps stay a
// rotation by the accumulated angle within float32 tolerance.
func TestIncrementalRotationDrift(t *testing.T) {
	const (
		frames = 10000
		angle  = 0.01
		eps    = 1e-2
	)
	a := NewAnimator(Rotation{AxisZ, angle})
	m := a.Advance(a.Start(), frames)

	if !IsOrthonormal(m, eps) {
		t.Errorf("matrix after %d steps is not orthonormal: %v", frames, m)
	}
	want := 1 + 2*float32(math.Cos(frames*angle))
	if d := RotationTrace(m) - want; d > eps || d < -eps {
		t.Errorf("RotationTrace = %v, want %v", RotationTrace(m), want)
	}
}

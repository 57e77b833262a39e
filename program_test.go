package gldraw_test

import (
	"errors"
	"testing"

	"github.com/gogpu/gldraw"
	"github.com/gogpu/gldraw/backend/soft"
)

func TestProgramBindings(t *testing.T) {
	ctx := soft.New(0, 0)
	p, err := gldraw.CompileProgram(ctx, gldraw.TexturedShaders()[gldraw.WGSL])
	if err != nil {
		t.Fatalf("CompileProgram: %v", err)
	}
	if _, err := p.Attribute(gldraw.AttrPosition); !errors.Is(err, gldraw.ErrNotLinked) {
		t.Errorf("Attribute before Link = %v, want ErrNotLinked", err)
	}
	if err := p.Link(); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := p.Link(); err != nil {
		t.Errorf("second Link: %v", err)
	}
	if n := ctx.Stats().Programs; n != 1 {
		t.Errorf("Programs = %d after two Link calls, want 1", n)
	}

	attrs := []struct {
		name string
		want int
	}{
		{gldraw.AttrPosition, 0},
		{gldraw.AttrUV, 1},
	}
	for _, a := range attrs {
		slot, err := p.Attribute(a.name)
		if err != nil {
			t.Errorf("Attribute(%q): %v", a.name, err)
			continue
		}
		if slot.Location != a.want {
			t.Errorf("Attribute(%q).Location = %d, want %d", a.name, slot.Location, a.want)
		}
	}
	for _, name := range []string{gldraw.UniformMatrix, gldraw.UniformView, gldraw.UniformProject, gldraw.UniformTexture} {
		if _, err := p.Uniform(name); err != nil {
			t.Errorf("Uniform(%q): %v", name, err)
		}
	}

	_, err = p.Uniform("Matrix")
	var ube *gldraw.UnknownBindingError
	if !errors.As(err, &ube) || ube.Kind != gldraw.BindingUniform {
		t.Errorf("Uniform(Matrix) = %v, want unknown uniform", err)
	}
	_, err = p.Attribute(gldraw.AttrColor)
	if !errors.As(err, &ube) || ube.Kind != gldraw.BindingAttribute {
		t.Errorf("Attribute(color) = %v, want unknown attribute", err)
	}
}

func TestProgramRelease(t *testing.T) {
	ctx := soft.New(0, 0)
	p, err := gldraw.CompileProgram(ctx, gldraw.ColorShaders()[gldraw.WGSL])
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Link(); err != nil {
		t.Fatal(err)
	}
	p.Release()
	p.Release()
	if p.Linked() || p.ID() != 0 {
		t.Errorf("Linked=%v ID=%d after Release", p.Linked(), p.ID())
	}
	if err := p.Link(); !errors.Is(err, gldraw.ErrReleased) {
		t.Errorf("Link after Release = %v, want ErrReleased", err)
	}
	if _, err := p.Attribute(gldraw.AttrPosition); !errors.Is(err, gldraw.ErrReleased) {
		t.Errorf("Attribute after Release = %v, want ErrReleased", err)
	}
	if _, err := p.Uniform(gldraw.UniformMatrix); !errors.Is(err, gldraw.ErrReleased) {
		t.Errorf("Uniform after Release = %v, want ErrReleased", err)
	}
	if n := ctx.Live(); n != 0 {
		t.Errorf("Live() = %d, want 0", n)
	}
}

func TestCompileProgramVertexError(t *testing.T) {
	ctx := soft.New(0, 0)
	src := gldraw.ColorShaders()[gldraw.WGSL]
	src.Vertex = "@vertex fn vs_main() -> vec4<f32> {"
	_, err := gldraw.CompileProgram(ctx, src)
	var sce *gldraw.ShaderCompileError
	if !errors.As(err, &sce) {
		t.Fatalf("CompileProgram() = %v, want ShaderCompileError", err)
	}
	if sce.Stage.String() == "" || sce.Log == "" {
		t.Errorf("error = %+v, want stage and log", sce)
	}
	if n := ctx.Live(); n != 0 {
		t.Errorf("Live() = %d, want 0", n)
	}
}

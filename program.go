package gldraw

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// ShaderSource is a vertex and fragment shader pair in one language.
type ShaderSource struct {
	Vertex   string
	Fragment string
}

// AttributeSlot is a resolved vertex attribute location.
type AttributeSlot struct {
	Name     string
	Location int
}

// UniformSlot is a resolved uniform location.
type UniformSlot struct {
	Name     string
	Location int
}

// Program is a compiled vertex+fragment shader pair. It must be linked
// before bindings can be resolved or it can be used for drawing.
type Program struct {
	ctx    Context
	source ShaderSource
	vs, fs ShaderID
	id       ProgramID
	linked   bool
	released bool

	attributes map[string]AttributeSlot
	uniforms   map[string]UniformSlot
}

// CompileProgram compiles both stages of src.
// A failing stage returns a *ShaderCompileError carrying the compiler log;
// nothing stays allocated in that case.
func CompileProgram(ctx Context, src ShaderSource) (*Program, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	vs, err := compileStage(ctx, gputypes.ShaderStageVertex, src.Vertex)
	if err != nil {
		return nil, err
	}
	fs, err := compileStage(ctx, gputypes.ShaderStageFragment, src.Fragment)
	if err != nil {
		ctx.DeleteShader(vs)
		return nil, err
	}
	return &Program{
		ctx:        ctx,
		source:     src,
		vs:         vs,
		fs:         fs,
		attributes: make(map[string]AttributeSlot),
		uniforms:   make(map[string]UniformSlot),
	}, nil
}

func compileStage(ctx Context, stage gputypes.ShaderStage, source string) (ShaderID, error) {
	sh, err := ctx.CreateShader(stage)
	if err != nil {
		return 0, fmt.Errorf("gldraw: create %s shader: %w", stageName(stage), err)
	}
	ok, log := ctx.CompileShader(sh, source)
	if !ok {
		ctx.DeleteShader(sh)
		return 0, &ShaderCompileError{Stage: stage, Log: log}
	}
	return sh, nil
}

// Link links the compiled stages into an executable program.
// A false link status returns a *LinkError carrying the program log.
// Linking an already linked program does nothing.
func (p *Program) Link() error {
	if p.released {
		return ErrReleased
	}
	if p.linked {
		return nil
	}
	id, err := p.ctx.CreateProgram()
	if err != nil {
		return fmt.Errorf("gldraw: create program: %w", err)
	}
	ok, log := p.ctx.LinkProgram(id, p.vs, p.fs)
	if !ok {
		p.ctx.DeleteProgram(id)
		return &LinkError{Log: log}
	}
	p.id = id
	p.linked = true
	Logger().Debug("gldraw: program linked", "id", id)
	return nil
}

// Linked reports whether Link succeeded.
func (p *Program) Linked() bool { return p.linked }

// ID returns the linked program handle, or zero.
func (p *Program) ID() ProgramID { return p.id }

// Attribute resolves a vertex attribute by exact name.
func (p *Program) Attribute(name string) (AttributeSlot, error) {
	if p.released {
		return AttributeSlot{}, ErrReleased
	}
	if !p.linked {
		return AttributeSlot{}, ErrNotLinked
	}
	if s, ok := p.attributes[name]; ok {
		return s, nil
	}
	loc := p.ctx.AttribLocation(p.id, name)
	if loc < 0 {
		return AttributeSlot{}, &UnknownBindingError{Kind: BindingAttribute, Name: name}
	}
	s := AttributeSlot{Name: name, Location: loc}
	p.attributes[name] = s
	return s, nil
}

// Uniform resolves a uniform by exact name.
func (p *Program) Uniform(name string) (UniformSlot, error) {
	if p.released {
		return UniformSlot{}, ErrReleased
	}
	if !p.linked {
		return UniformSlot{}, ErrNotLinked
	}
	if s, ok := p.uniforms[name]; ok {
		return s, nil
	}
	loc := p.ctx.UniformLocation(p.id, name)
	if loc < 0 {
		return UniformSlot{}, &UnknownBindingError{Kind: BindingUniform, Name: name}
	}
	s := UniformSlot{Name: name, Location: loc}
	p.uniforms[name] = s
	return s, nil
}

// BindAttribute feeds slot from buf on the currently bound vertex array.
// The buffer is bound before the attribute pointer is set; the pointer
// captures whichever buffer is bound at that moment.
func (p *Program) BindAttribute(slot AttributeSlot, buf *GeometryBuffer) {
	p.ctx.BindBuffer(buf.ID())
	p.ctx.VertexAttribPointer(slot.Location, buf.Format())
	p.ctx.EnableVertexAttribArray(slot.Location)
}

// Use makes p the current program.
func (p *Program) Use() { p.ctx.UseProgram(p.id) }

// SetMatrix uploads m to a mat4 uniform of the current program.
func (p *Program) SetMatrix(slot UniformSlot, m mgl32.Mat4) {
	p.ctx.UniformMatrix4fv(slot.Location, m)
}

// SetSampler points a sampler uniform of the current program at a texture unit.
func (p *Program) SetSampler(slot UniformSlot, unit int) {
	p.ctx.Uniform1i(slot.Location, unit)
}

// Release deletes the program and its shaders. It is safe to call more
// than once.
func (p *Program) Release() {
	if p.id != 0 {
		p.ctx.DeleteProgram(p.id)
		p.id = 0
	}
	if p.vs != 0 {
		p.ctx.DeleteShader(p.vs)
		p.vs = 0
	}
	if p.fs != 0 {
		p.ctx.DeleteShader(p.fs)
		p.fs = 0
	}
	p.linked = false
	p.released = true
}

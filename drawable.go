package gldraw

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// State is the lifecycle state of a Drawable.
type State int

const (
	// Uninitialized means no GPU resources exist yet.
	Uninitialized State = iota
	// Initialized means resources are allocated and bound.
	Initialized
	// Rendering means at least one frame has been drawn.
	Rendering
	// Released means resources were freed; the drawable is unusable.
	Released
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Initialized:
		return "Initialized"
	case Rendering:
		return "Rendering"
	case Released:
		return "Released"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// samplerUnit is the texture unit drawables sample from.
const samplerUnit = 0

type matrixUniform struct {
	slot UniformSlot
	m    mgl32.Mat4
}

// Drawable draws one Variant with its own buffers, program and transform.
//
// All methods must be called on the goroutine that owns the Context.
// GPU objects are allocated only by Initialize; Draw uploads the model
// matrix and issues one draw call.
type Drawable struct {
	ctx      Context
	variant  Variant
	animator Animator
	log      *slog.Logger

	state State
	err   error // sticky initialization failure

	vao       VertexArrayID
	buffers   []*GeometryBuffer
	program   *Program
	matrix    UniformSlot
	uniforms  []matrixUniform
	sampler   UniformSlot
	texture   *Texture
	transform mgl32.Mat4
	frame     int
}

// NewDrawable validates v and returns an uninitialized drawable.
// The attribute data is copied; later changes to v do not affect it.
func NewDrawable(ctx Context, v Variant, opts ...Option) (*Drawable, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if _, ok := v.Shaders[ctx.Language()]; !ok {
		return nil, fmt.Errorf("%w: %s has no %s shaders", ErrNoShaderSource, v.Name, ctx.Language())
	}

	o := drawableOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	anim := v.Animator
	if o.animator != nil {
		anim = *o.animator
	}
	if o.replaceRotations {
		anim.Rotations = o.rotations
	}
	anim.Rotations = slices.Clone(anim.Rotations)
	l := o.logger
	if l == nil {
		l = Logger()
	}

	v.Attributes = slices.Clone(v.Attributes)
	for i := range v.Attributes {
		v.Attributes[i].Data = slices.Clone(v.Attributes[i].Data)
	}

	return &Drawable{
		ctx:       ctx,
		variant:   v,
		animator:  anim,
		log:       l.With("drawable", v.Name),
		transform: mgl32.Ident4(),
		frame:     -1,
	}, nil
}

// Initialize uploads buffers, compiles and links the program, resolves
// every binding and sets the depth-test state. It runs once: a second call
// returns ErrAlreadyInitialized without allocating anything, and a failed
// call leaves the drawable permanently unusable.
func (d *Drawable) Initialize() error {
	switch {
	case d.state == Released:
		return ErrReleased
	case d.err != nil:
		return d.err
	case d.state != Uninitialized:
		return ErrAlreadyInitialized
	}
	if err := d.initialize(); err != nil {
		d.releaseResources()
		d.err = fmt.Errorf("gldraw: initialize %s: %w", d.variant.Name, err)
		d.log.Error("gldraw: initialize failed", "err", err)
		return d.err
	}
	d.transform = d.animator.Start()
	d.state = Initialized
	d.log.Info("gldraw: drawable initialized",
		"vertices", d.variant.VertexCount(), "depthTest", d.variant.DepthTest)
	return nil
}

func (d *Drawable) initialize() error {
	if err := checkContext(d.ctx); err != nil {
		return err
	}
	vao, err := d.ctx.CreateVertexArray()
	if err != nil {
		return fmt.Errorf("create vertex array: %w", err)
	}
	d.vao = vao
	d.ctx.BindVertexArray(vao)

	for _, a := range d.variant.Attributes {
		buf, err := UploadBuffer(d.ctx, a.Name, a.Data, a.Components)
		if err != nil {
			return err
		}
		d.buffers = append(d.buffers, buf)
	}

	prog, err := CompileProgram(d.ctx, d.variant.Shaders[d.ctx.Language()])
	if err != nil {
		return err
	}
	d.program = prog
	if err := prog.Link(); err != nil {
		return err
	}
	prog.Use()

	for _, buf := range d.buffers {
		slot, err := prog.Attribute(buf.Name())
		if err != nil {
			return err
		}
		prog.BindAttribute(slot, buf)
		d.log.Debug("gldraw: attribute bound", "name", slot.Name, "location", slot.Location)
	}

	if d.matrix, err = prog.Uniform(UniformMatrix); err != nil {
		return err
	}
	names := make([]string, 0, len(d.variant.Uniforms))
	for name := range d.variant.Uniforms {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		slot, err := prog.Uniform(name)
		if err != nil {
			return err
		}
		d.uniforms = append(d.uniforms, matrixUniform{slot: slot, m: d.variant.Uniforms[name]})
	}

	if tex := d.variant.Texture; tex != nil {
		if d.sampler, err = prog.Uniform(UniformTexture); err != nil {
			return err
		}
		if err := tex.attach(d.ctx); err != nil {
			return err
		}
		d.texture = tex
		prog.SetSampler(d.sampler, samplerUnit)
	}

	d.applyDepthTest()
	return nil
}

func (d *Drawable) applyDepthTest() {
	if d.variant.DepthTest {
		d.ctx.Enable(DepthTest)
	} else {
		d.ctx.Disable(DepthTest)
	}
}

// MaxCatchUpSteps bounds the animator steps a single Draw composes when
// frame indices are skipped.
const MaxCatchUpSteps = 60

// Draw advances the transform to frame and issues the draw call.
//
// The first Draw composes exactly one animator step, whatever its index,
// and anchors the frame count there. After that, each index past the last
// drawn one composes one step, so skipped frames are caught up (at most
// MaxCatchUpSteps per call) and a repeated or older index redraws without
// rotating.
//
// Draw allocates nothing, with one exception: the first Draw after a
// texture finishes decoding uploads its pixels and mipmaps, which creates
// the texture's storage. Until then the sampled pixels are unspecified.
func (d *Drawable) Draw(frame int) error {
	switch {
	case d.state == Released:
		return ErrReleased
	case d.err != nil:
		return d.err
	case d.state == Uninitialized:
		return ErrNotInitialized
	}
	switch {
	case d.state == Initialized:
		d.transform = d.animator.Step(d.transform)
		d.frame = frame
	case frame > d.frame:
		d.transform = d.animator.Advance(d.transform, min(frame-d.frame, MaxCatchUpSteps))
		d.frame = frame
	}

	d.program.Use()
	d.ctx.BindVertexArray(d.vao)
	if d.texture != nil {
		d.texture.bind(samplerUnit)
	}
	d.applyDepthTest()
	d.program.SetMatrix(d.matrix, d.transform)
	for _, u := range d.uniforms {
		d.program.SetMatrix(u.slot, u.m)
	}
	d.ctx.DrawArrays(d.variant.Topology, 0, d.variant.VertexCount())
	d.state = Rendering
	return nil
}

// Release frees every GPU object the drawable owns. It is safe to call
// more than once.
func (d *Drawable) Release() {
	if d.state == Released {
		return
	}
	d.releaseResources()
	d.state = Released
	d.log.Debug("gldraw: drawable released")
}

func (d *Drawable) releaseResources() {
	for _, b := range d.buffers {
		b.Release()
	}
	d.buffers = nil
	if d.program != nil {
		d.program.Release()
		d.program = nil
	}
	if d.texture != nil {
		d.texture.detach()
		d.texture = nil
	}
	if d.vao != 0 {
		d.ctx.DeleteVertexArray(d.vao)
		d.vao = 0
	}
	d.uniforms = nil
}

// State returns the lifecycle state.
func (d *Drawable) State() State { return d.state }

// Err returns the initialization failure, if any.
func (d *Drawable) Err() error { return d.err }

// Variant returns the variant the drawable was created from.
func (d *Drawable) Variant() Variant { return d.variant }

// Transform returns the current model matrix.
func (d *Drawable) Transform() mgl32.Mat4 { return d.transform }

// Frame returns the last frame index drawn, or -1.
func (d *Drawable) Frame() int { return d.frame }

// Buffers returns the uploaded geometry buffers in attribute order.
func (d *Drawable) Buffers() []*GeometryBuffer { return slices.Clone(d.buffers) }

// Program returns the linked program, or nil before Initialize.
func (d *Drawable) Program() *Program { return d.program }

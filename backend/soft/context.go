// Package soft implements gldraw.Context in memory.
//
// It compiles and links WGSL with naga, tracks every GPU object it hands
// out, records draw calls, and rasterizes triangle lists into a
// Framebuffer. The rasterizer does not execute shader code: it follows the
// binding-name contract of the bundled shaders (clip position is
// projection·view·matrix·position, color comes from the "color" varying
// or from the "textureID" sampler at "uv").
//
// Errors that OpenGL would report through glGetError are recorded the
// same way: the first one sticks until Err is called.
package soft

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gldraw"
	"github.com/gogpu/gldraw/backend"
	"github.com/gogpu/gldraw/internal/parallel"
	"github.com/gogpu/gldraw/internal/shader"
	"github.com/gogpu/gputypes"
)

// GL-style errors recorded by the context.
var (
	// ErrInvalidOperation mirrors GL_INVALID_OPERATION.
	ErrInvalidOperation = errors.New("soft: invalid operation")
	// ErrInvalidValue mirrors GL_INVALID_VALUE.
	ErrInvalidValue = errors.New("soft: invalid value")
	// ErrInvalidEnum mirrors GL_INVALID_ENUM.
	ErrInvalidEnum = errors.New("soft: invalid enum")
)

// maxTextureUnits is the number of sampler units the context exposes.
const maxTextureUnits = 8

// MaxRecordedDraws is the number of most recent draw calls Draws keeps.
// Stats.DrawCalls counts every call.
const MaxRecordedDraws = 1024

func init() {
	backend.Register(backend.BackendSoft, func(cfg backend.Config) (gldraw.Context, error) {
		return New(cfg.Width, cfg.Height), nil
	})
}

// Stats counts GPU objects created over the context's lifetime and the
// per-frame work issued.
type Stats struct {
	Buffers        int
	VertexArrays   int
	Shaders        int
	Programs       int
	Textures       int
	BufferUploads  int
	TextureUploads int
	UniformUploads int
	DrawCalls      int
}

// DrawCall is a recorded DrawArrays call.
type DrawCall struct {
	Program   gldraw.ProgramID
	Topology  gputypes.PrimitiveTopology
	First     int
	Count     int
	DepthTest bool
	// Matrices holds the mat4 uniforms of the program at draw time, by name.
	Matrices map[string]mgl32.Mat4
	// Samplers holds the texture bound to each sampler uniform, by name.
	Samplers map[string]gldraw.TextureID
}

type bufferObject struct {
	data  []float32
	usage gputypes.BufferUsage
}

type attribPointer struct {
	buffer     gldraw.BufferID
	components int
	enabled    bool
}

type vertexArray struct {
	attribs map[int]*attribPointer
}

type shaderObject struct {
	stage  gputypes.ShaderStage
	module *shader.Module
}

type programObject struct {
	layout   *shader.Layout
	names    map[int]string // uniform location -> name
	kinds    map[int]shader.ResourceKind
	matrices map[int]mgl32.Mat4
	samplers map[int]int // sampler location -> texture unit
}

type textureObject struct {
	levels []*image.RGBA
}

// Context is an in-memory gldraw.Context. It is not safe for concurrent use.
type Context struct {
	fb *Framebuffer

	nextID   uint32
	buffers  map[gldraw.BufferID]*bufferObject
	arrays   map[gldraw.VertexArrayID]*vertexArray
	shaders  map[gldraw.ShaderID]*shaderObject
	programs map[gldraw.ProgramID]*programObject
	textures map[gldraw.TextureID]*textureObject

	boundBuffer gldraw.BufferID
	boundArray  gldraw.VertexArrayID
	current     gldraw.ProgramID
	activeUnit  int
	units       [maxTextureUnits]gldraw.TextureID
	depthTest   bool

	lost  bool
	err   error
	stats Stats
	draws []DrawCall

	pool *parallel.WorkerPool
}

var (
	_ gldraw.Context      = (*Context)(nil)
	_ gldraw.Loser        = (*Context)(nil)
	_ gldraw.LoggerSetter = (*Context)(nil)
)

// New creates a context rendering into a width×height framebuffer.
// A zero size creates a context that records calls without rasterizing.
func New(width, height int) *Context {
	c := &Context{
		buffers:  make(map[gldraw.BufferID]*bufferObject),
		arrays:   make(map[gldraw.VertexArrayID]*vertexArray),
		shaders:  make(map[gldraw.ShaderID]*shaderObject),
		programs: make(map[gldraw.ProgramID]*programObject),
		textures: make(map[gldraw.TextureID]*textureObject),
	}
	if width > 0 && height > 0 {
		c.fb = NewFramebuffer(width, height)
	}
	return c
}

// SetWorkers rasterizes with n goroutines, each filling its own band of
// rows. n <= 1 rasterizes on the calling goroutine. Call Close to stop
// the workers.
func (c *Context) SetWorkers(n int) {
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}
	if n > 1 {
		c.pool = parallel.NewWorkerPool(n)
	}
}

// Close stops the rasterizer workers, if any. GPU objects are kept.
func (c *Context) Close() {
	c.SetWorkers(0)
}

// SetLogger implements gldraw.LoggerSetter by setting the package logger.
func (c *Context) SetLogger(l *slog.Logger) { SetLogger(l) }

// Framebuffer returns the render target, or nil for a recording-only context.
func (c *Context) Framebuffer() *Framebuffer { return c.fb }

// Clear clears the color buffer to col and the depth buffer to the far plane.
func (c *Context) Clear(col color.RGBA) {
	if c.fb == nil {
		return
	}
	c.fb.Clear(col)
	c.fb.ClearDepth()
}

// Stats returns the allocation and work counters.
func (c *Context) Stats() Stats { return c.stats }

// Draws returns the most recent draw calls, oldest first, at most
// MaxRecordedDraws of them.
func (c *Context) Draws() []DrawCall { return c.draws }

// ResetDraws forgets the recorded draw calls.
func (c *Context) ResetDraws() { c.draws = nil }

// Live returns the number of GPU objects that have not been deleted.
func (c *Context) Live() int {
	return len(c.buffers) + len(c.arrays) + len(c.shaders) + len(c.programs) + len(c.textures)
}

// DepthTestEnabled reports the current depth-test capability.
func (c *Context) DepthTestEnabled() bool { return c.depthTest }

// Err returns and clears the first recorded error.
func (c *Context) Err() error {
	err := c.err
	c.err = nil
	return err
}

// Lose simulates a lost device. Later object creation fails.
func (c *Context) Lose() { c.lost = true }

// IsLost implements gldraw.Loser.
func (c *Context) IsLost() bool { return c.lost }

func (c *Context) fail(err error, format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
	}
	slogger().Debug("soft: gl error", "err", err, "detail", fmt.Sprintf(format, args...))
}

func (c *Context) newID() (uint32, error) {
	if c.lost {
		return 0, &gldraw.ContextUnavailableError{Reason: "context lost"}
	}
	c.nextID++
	return c.nextID, nil
}

// Language implements gldraw.Context.
func (c *Context) Language() gldraw.Language { return gldraw.WGSL }

// CreateBuffer implements gldraw.Context.
func (c *Context) CreateBuffer() (gldraw.BufferID, error) {
	id, err := c.newID()
	if err != nil {
		return 0, err
	}
	b := gldraw.BufferID(id)
	c.buffers[b] = &bufferObject{}
	c.stats.Buffers++
	return b, nil
}

// BindBuffer implements gldraw.Context.
func (c *Context) BindBuffer(b gldraw.BufferID) {
	if _, ok := c.buffers[b]; !ok && b != 0 {
		c.fail(ErrInvalidValue, "bind unknown buffer %d", b)
		return
	}
	c.boundBuffer = b
}

// BufferData implements gldraw.Context.
func (c *Context) BufferData(data []float32, usage gputypes.BufferUsage) {
	buf, ok := c.buffers[c.boundBuffer]
	if !ok {
		c.fail(ErrInvalidOperation, "buffer data with no buffer bound")
		return
	}
	buf.data = append([]float32(nil), data...)
	buf.usage = usage
	c.stats.BufferUploads++
}

// BufferSize implements gldraw.Context.
func (c *Context) BufferSize(b gldraw.BufferID) int {
	buf, ok := c.buffers[b]
	if !ok {
		return 0
	}
	return len(buf.data)
}

// DeleteBuffer implements gldraw.Context.
func (c *Context) DeleteBuffer(b gldraw.BufferID) {
	delete(c.buffers, b)
	if c.boundBuffer == b {
		c.boundBuffer = 0
	}
}

// CreateVertexArray implements gldraw.Context.
func (c *Context) CreateVertexArray() (gldraw.VertexArrayID, error) {
	id, err := c.newID()
	if err != nil {
		return 0, err
	}
	v := gldraw.VertexArrayID(id)
	c.arrays[v] = &vertexArray{attribs: make(map[int]*attribPointer)}
	c.stats.VertexArrays++
	return v, nil
}

// BindVertexArray implements gldraw.Context.
func (c *Context) BindVertexArray(v gldraw.VertexArrayID) {
	if _, ok := c.arrays[v]; !ok && v != 0 {
		c.fail(ErrInvalidOperation, "bind unknown vertex array %d", v)
		return
	}
	c.boundArray = v
}

// DeleteVertexArray implements gldraw.Context.
func (c *Context) DeleteVertexArray(v gldraw.VertexArrayID) {
	delete(c.arrays, v)
	if c.boundArray == v {
		c.boundArray = 0
	}
}

// CreateShader implements gldraw.Context.
func (c *Context) CreateShader(stage gputypes.ShaderStage) (gldraw.ShaderID, error) {
	if stage != gputypes.ShaderStageVertex && stage != gputypes.ShaderStageFragment {
		c.fail(ErrInvalidEnum, "shader stage %d", uint32(stage))
		return 0, fmt.Errorf("%w: shader stage %d", ErrInvalidEnum, uint32(stage))
	}
	id, err := c.newID()
	if err != nil {
		return 0, err
	}
	s := gldraw.ShaderID(id)
	c.shaders[s] = &shaderObject{stage: stage}
	c.stats.Shaders++
	return s, nil
}

// CompileShader implements gldraw.Context.
func (c *Context) CompileShader(s gldraw.ShaderID, source string) (bool, string) {
	sh, ok := c.shaders[s]
	if !ok {
		c.fail(ErrInvalidValue, "compile unknown shader %d", s)
		return false, fmt.Sprintf("unknown shader %d", s)
	}
	m, err := shader.Compile(sh.stage, source)
	if err != nil {
		sh.module = nil
		return false, err.Error()
	}
	sh.module = m
	return true, ""
}

// DeleteShader implements gldraw.Context.
func (c *Context) DeleteShader(s gldraw.ShaderID) {
	delete(c.shaders, s)
}

// CreateProgram implements gldraw.Context.
func (c *Context) CreateProgram() (gldraw.ProgramID, error) {
	id, err := c.newID()
	if err != nil {
		return 0, err
	}
	p := gldraw.ProgramID(id)
	c.programs[p] = &programObject{}
	c.stats.Programs++
	return p, nil
}

// LinkProgram implements gldraw.Context.
func (c *Context) LinkProgram(p gldraw.ProgramID, vs, fs gldraw.ShaderID) (bool, string) {
	prog, ok := c.programs[p]
	if !ok {
		c.fail(ErrInvalidValue, "link unknown program %d", p)
		return false, fmt.Sprintf("unknown program %d", p)
	}
	v, fr := c.shaders[vs], c.shaders[fs]
	if v == nil || fr == nil {
		return false, "vertex and fragment shaders must both be attached"
	}
	if v.module == nil || fr.module == nil {
		return false, "attached shader is not compiled"
	}
	layout, err := shader.Link(v.module, fr.module)
	if err != nil {
		return false, err.Error()
	}
	prog.layout = layout
	prog.names = make(map[int]string, len(layout.Resources))
	prog.kinds = make(map[int]shader.ResourceKind, len(layout.Resources))
	prog.matrices = make(map[int]mgl32.Mat4)
	prog.samplers = make(map[int]int)
	for name, r := range layout.Resources {
		loc := uniformLocation(r)
		prog.names[loc] = name
		prog.kinds[loc] = r.Kind
	}
	return true, ""
}

// uniformLocation flattens a group/binding pair into one location.
func uniformLocation(r shader.Resource) int {
	return int(r.Group)*16 + int(r.Binding)
}

// UseProgram implements gldraw.Context.
func (c *Context) UseProgram(p gldraw.ProgramID) {
	if p == 0 {
		c.current = 0
		return
	}
	prog, ok := c.programs[p]
	if !ok || prog.layout == nil {
		c.fail(ErrInvalidOperation, "use unlinked program %d", p)
		return
	}
	c.current = p
}

// DeleteProgram implements gldraw.Context.
func (c *Context) DeleteProgram(p gldraw.ProgramID) {
	delete(c.programs, p)
	if c.current == p {
		c.current = 0
	}
}

// AttribLocation implements gldraw.Context.
func (c *Context) AttribLocation(p gldraw.ProgramID, name string) int {
	prog, ok := c.programs[p]
	if !ok || prog.layout == nil {
		c.fail(ErrInvalidOperation, "attribute lookup on unlinked program %d", p)
		return -1
	}
	io, ok := prog.layout.Attributes[name]
	if !ok {
		return -1
	}
	return int(io.Location)
}

// UniformLocation implements gldraw.Context.
func (c *Context) UniformLocation(p gldraw.ProgramID, name string) int {
	prog, ok := c.programs[p]
	if !ok || prog.layout == nil {
		c.fail(ErrInvalidOperation, "uniform lookup on unlinked program %d", p)
		return -1
	}
	r, ok := prog.layout.Resources[name]
	if !ok {
		return -1
	}
	return uniformLocation(r)
}

// VertexAttribPointer implements gldraw.Context.
func (c *Context) VertexAttribPointer(loc int, format gputypes.VertexFormat) {
	va, ok := c.arrays[c.boundArray]
	if !ok {
		c.fail(ErrInvalidOperation, "attribute pointer with no vertex array bound")
		return
	}
	if c.boundBuffer == 0 {
		c.fail(ErrInvalidOperation, "attribute pointer %d with no buffer bound", loc)
		return
	}
	if loc < 0 {
		c.fail(ErrInvalidValue, "attribute location %d", loc)
		return
	}
	comps := int(format.Size() / 4)
	if comps < 1 || comps > 4 {
		c.fail(ErrInvalidEnum, "vertex format %s", format)
		return
	}
	ap := va.attribs[loc]
	if ap == nil {
		ap = &attribPointer{}
		va.attribs[loc] = ap
	}
	ap.buffer = c.boundBuffer
	ap.components = comps
}

// EnableVertexAttribArray implements gldraw.Context.
func (c *Context) EnableVertexAttribArray(loc int) {
	va, ok := c.arrays[c.boundArray]
	if !ok {
		c.fail(ErrInvalidOperation, "enable attribute with no vertex array bound")
		return
	}
	ap := va.attribs[loc]
	if ap == nil {
		ap = &attribPointer{}
		va.attribs[loc] = ap
	}
	ap.enabled = true
}

func (c *Context) currentProgram() *programObject {
	prog, ok := c.programs[c.current]
	if !ok {
		return nil
	}
	return prog
}

// UniformMatrix4fv implements gldraw.Context. Location -1 is ignored.
func (c *Context) UniformMatrix4fv(loc int, m mgl32.Mat4) {
	if loc == -1 {
		return
	}
	prog := c.currentProgram()
	if prog == nil {
		c.fail(ErrInvalidOperation, "uniform upload with no program in use")
		return
	}
	if kind, ok := prog.kinds[loc]; !ok || kind != shader.ResourceUniform {
		c.fail(ErrInvalidOperation, "uniform location %d is not a matrix", loc)
		return
	}
	prog.matrices[loc] = m
	c.stats.UniformUploads++
}

// Uniform1i implements gldraw.Context. Location -1 is ignored.
func (c *Context) Uniform1i(loc int, v int) {
	if loc == -1 {
		return
	}
	prog := c.currentProgram()
	if prog == nil {
		c.fail(ErrInvalidOperation, "uniform upload with no program in use")
		return
	}
	if kind, ok := prog.kinds[loc]; !ok || kind != shader.ResourceTexture {
		c.fail(ErrInvalidOperation, "uniform location %d is not a sampler", loc)
		return
	}
	if v < 0 || v >= maxTextureUnits {
		c.fail(ErrInvalidValue, "texture unit %d", v)
		return
	}
	prog.samplers[loc] = v
}

// Enable implements gldraw.Context.
func (c *Context) Enable(cp gldraw.Capability) {
	switch cp {
	case gldraw.DepthTest:
		c.depthTest = true
	default:
		c.fail(ErrInvalidEnum, "capability %d", int(cp))
	}
}

// Disable implements gldraw.Context.
func (c *Context) Disable(cp gldraw.Capability) {
	switch cp {
	case gldraw.DepthTest:
		c.depthTest = false
	default:
		c.fail(ErrInvalidEnum, "capability %d", int(cp))
	}
}

// CreateTexture implements gldraw.Context.
func (c *Context) CreateTexture() (gldraw.TextureID, error) {
	id, err := c.newID()
	if err != nil {
		return 0, err
	}
	t := gldraw.TextureID(id)
	c.textures[t] = &textureObject{}
	c.stats.Textures++
	return t, nil
}

// ActiveTexture implements gldraw.Context.
func (c *Context) ActiveTexture(unit int) {
	if unit < 0 || unit >= maxTextureUnits {
		c.fail(ErrInvalidEnum, "texture unit %d", unit)
		return
	}
	c.activeUnit = unit
}

// BindTexture implements gldraw.Context.
func (c *Context) BindTexture(t gldraw.TextureID) {
	if _, ok := c.textures[t]; !ok && t != 0 {
		c.fail(ErrInvalidValue, "bind unknown texture %d", t)
		return
	}
	c.units[c.activeUnit] = t
}

// TexImage2D implements gldraw.Context.
func (c *Context) TexImage2D(img *image.RGBA) {
	tex, ok := c.textures[c.units[c.activeUnit]]
	if !ok {
		c.fail(ErrInvalidOperation, "texture upload with no texture bound")
		return
	}
	if img == nil || img.Rect.Empty() {
		c.fail(ErrInvalidValue, "empty texture image")
		return
	}
	level := image.NewRGBA(image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy()))
	for y := range level.Rect.Dy() {
		src := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		copy(level.Pix[y*level.Stride:y*level.Stride+level.Rect.Dx()*4], img.Pix[src:src+level.Rect.Dx()*4])
	}
	tex.levels = []*image.RGBA{level}
	c.stats.TextureUploads++
}

// GenerateMipmap implements gldraw.Context.
func (c *Context) GenerateMipmap() {
	tex, ok := c.textures[c.units[c.activeUnit]]
	if !ok || len(tex.levels) == 0 {
		c.fail(ErrInvalidOperation, "generate mipmap on empty texture")
		return
	}
	tex.levels = mipChain(tex.levels[0])
}

// DeleteTexture implements gldraw.Context.
func (c *Context) DeleteTexture(t gldraw.TextureID) {
	delete(c.textures, t)
	for i := range c.units {
		if c.units[i] == t {
			c.units[i] = 0
		}
	}
}

// TextureLevels returns the number of mip levels stored for t.
func (c *Context) TextureLevels(t gldraw.TextureID) int {
	tex, ok := c.textures[t]
	if !ok {
		return 0
	}
	return len(tex.levels)
}

// DrawArrays implements gldraw.Context.
func (c *Context) DrawArrays(topology gputypes.PrimitiveTopology, first, count int) {
	if topology != gputypes.PrimitiveTopologyTriangleList {
		c.fail(ErrInvalidEnum, "topology %s", topology)
		return
	}
	if first < 0 || count < 0 {
		c.fail(ErrInvalidValue, "draw range %d+%d", first, count)
		return
	}
	prog := c.currentProgram()
	if prog == nil {
		c.fail(ErrInvalidOperation, "draw with no program in use")
		return
	}
	va, ok := c.arrays[c.boundArray]
	if !ok {
		c.fail(ErrInvalidOperation, "draw with no vertex array bound")
		return
	}
	streams := make(map[string]stream, len(prog.layout.Attributes))
	for name, io := range prog.layout.Attributes {
		ap := va.attribs[int(io.Location)]
		if ap == nil || !ap.enabled {
			continue
		}
		buf, ok := c.buffers[ap.buffer]
		if !ok {
			c.fail(ErrInvalidOperation, "attribute %q reads deleted buffer %d", name, ap.buffer)
			return
		}
		if (first+count)*ap.components > len(buf.data) {
			c.fail(ErrInvalidOperation, "attribute %q has %d vertices, draw needs %d",
				name, len(buf.data)/ap.components, first+count)
			return
		}
		streams[name] = stream{data: buf.data, components: ap.components}
	}

	call := DrawCall{
		Program:   c.current,
		Topology:  topology,
		First:     first,
		Count:     count,
		DepthTest: c.depthTest,
		Matrices:  make(map[string]mgl32.Mat4),
		Samplers:  make(map[string]gldraw.TextureID),
	}
	for loc, m := range prog.matrices {
		call.Matrices[prog.names[loc]] = m
	}
	for loc, unit := range prog.samplers {
		call.Samplers[prog.names[loc]] = c.units[unit]
	}
	if len(c.draws) == MaxRecordedDraws {
		n := copy(c.draws, c.draws[MaxRecordedDraws/2:])
		clear(c.draws[n:])
		c.draws = c.draws[:n]
	}
	c.draws = append(c.draws, call)
	c.stats.DrawCalls++

	if c.fb == nil {
		return
	}
	var tex *image.RGBA
	if id, ok := call.Samplers[gldraw.UniformTexture]; ok {
		if t := c.textures[id]; t != nil && len(t.levels) > 0 {
			tex = t.levels[0]
		}
	}
	c.rasterize(pipelineState{
		streams:   streams,
		mvp:       mvp(call.Matrices),
		depthTest: c.depthTest,
		texture:   tex,
		sampled:   len(call.Samplers) > 0,
	}, first, count)
}

// Package wgpu implements gldraw.Context on a WebGPU HAL device from
// github.com/gogpu/wgpu.
//
// GL-style state (bound buffer, vertex array, program, texture units) is
// tracked on the CPU. Each DrawArrays call records one render pass into an
// offscreen RGBA8 color target with a depth attachment, submits it and
// waits on a fence. Render pipelines are created lazily per program,
// vertex layout and depth-test state, then cached until the program is
// deleted. ReadPixels copies the color target back to memory.
//
// Open creates its own Vulkan device. NewWithDevice and NewFromProvider
// render on a device owned by the host application.
package wgpu

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gldraw"
	"github.com/gogpu/gldraw/backend"
	"github.com/gogpu/gldraw/internal/shader"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Register the Vulkan HAL backend for Open.
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// GL-style errors recorded by the context.
var (
	ErrInvalidOperation = errors.New("wgpu: invalid operation")
	ErrInvalidValue     = errors.New("wgpu: invalid value")
	ErrInvalidEnum      = errors.New("wgpu: invalid enum")
)

// maxTextureUnits is the number of sampler units the context exposes.
const maxTextureUnits = 8

func init() {
	backend.Register(backend.BackendWGPU, func(cfg backend.Config) (gldraw.Context, error) {
		return Open(cfg.Width, cfg.Height)
	})
}

// Stats counts GPU objects created over the context's lifetime and the
// work submitted to the queue.
type Stats struct {
	Buffers        int
	VertexArrays   int
	Shaders        int
	Programs       int
	Textures       int
	Pipelines      int
	BufferUploads  int
	TextureUploads int
	UniformUploads int
	DrawCalls      int
	Submits        int
}

type bufferObject struct {
	data  []float32
	usage gputypes.BufferUsage
	buf   hal.Buffer
	size  uint64
}

type attribPointer struct {
	buffer  gldraw.BufferID
	format  gputypes.VertexFormat
	enabled bool
}

type vertexArray struct {
	attribs map[int]*attribPointer
}

type shaderObject struct {
	stage  gputypes.ShaderStage
	source string
	module *shader.Module
}

type textureObject struct {
	levels []*image.RGBA
	tex    hal.Texture
	view   hal.TextureView
}

// Context is a gldraw.Context on a HAL device. It is not safe for
// concurrent use.
type Context struct {
	instance hal.Instance // nil when the device is borrowed
	device   hal.Device
	queue    hal.Queue
	owned    bool

	width, height uint32
	format        gputypes.TextureFormat
	target        *renderTarget
	sampler       hal.Sampler
	incomplete    *textureObject

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

	lost   bool
	closed bool
	err    error
	stats  Stats
}

var (
	_ gldraw.Context      = (*Context)(nil)
	_ gldraw.Loser        = (*Context)(nil)
	_ gldraw.LoggerSetter = (*Context)(nil)
)

// Open creates a Vulkan instance and device and a width×height render
// target on it. Failures are reported as *gldraw.ContextUnavailableError.
func Open(width, height int) (*Context, error) {
	if width <= 0 || height <= 0 {
		return nil, &gldraw.ContextUnavailableError{Reason: fmt.Sprintf("wgpu: invalid target size %dx%d", width, height)}
	}
	be, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, &gldraw.ContextUnavailableError{Reason: "wgpu: vulkan backend not available"}
	}
	instance, err := be.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, &gldraw.ContextUnavailableError{Reason: "wgpu: create instance: " + err.Error()}
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, &gldraw.ContextUnavailableError{Reason: "wgpu: no GPU adapters found"}
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, &gldraw.ContextUnavailableError{Reason: "wgpu: open device: " + err.Error()}
	}
	c, err := newContext(openDev.Device, openDev.Queue, width, height, gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	c.instance = instance
	c.owned = true
	slogger().Info("wgpu: context ready", "adapter", selected.Info.Name, "width", width, "height", height)
	return c, nil
}

// NewWithDevice renders on a device owned by the caller. Close releases
// the context's objects but leaves the device open.
func NewWithDevice(device hal.Device, queue hal.Queue, width, height int) (*Context, error) {
	if device == nil || queue == nil {
		return nil, &gldraw.ContextUnavailableError{Reason: "wgpu: nil device or queue"}
	}
	if width <= 0 || height <= 0 {
		return nil, &gldraw.ContextUnavailableError{Reason: fmt.Sprintf("wgpu: invalid target size %dx%d", width, height)}
	}
	return newContext(device, queue, width, height, gputypes.TextureFormatRGBA8Unorm)
}

// NewFromProvider renders on the device of a gpucontext host, such as a
// gogpu application window. The provider must also expose its HAL objects
// through HalDevice and HalQueue. The color target uses the provider's
// surface format when it is RGBA8 or BGRA8.
func NewFromProvider(provider gpucontext.DeviceProvider, width, height int) (*Context, error) {
	if provider == nil {
		return nil, &gldraw.ContextUnavailableError{Reason: "wgpu: nil device provider"}
	}
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, &gldraw.ContextUnavailableError{Reason: "wgpu: provider does not expose HAL types"}
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, &gldraw.ContextUnavailableError{Reason: "wgpu: provider HalDevice is not hal.Device"}
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, &gldraw.ContextUnavailableError{Reason: "wgpu: provider HalQueue is not hal.Queue"}
	}
	if width <= 0 || height <= 0 {
		return nil, &gldraw.ContextUnavailableError{Reason: fmt.Sprintf("wgpu: invalid target size %dx%d", width, height)}
	}
	format := gputypes.TextureFormatRGBA8Unorm
	if f := provider.SurfaceFormat(); f == gputypes.TextureFormatBGRA8Unorm {
		format = f
	}
	return newContext(device, queue, width, height, format)
}

func newContext(device hal.Device, queue hal.Queue, width, height int, format gputypes.TextureFormat) (*Context, error) {
	c := &Context{
		device:   device,
		queue:    queue,
		width:    uint32(width),  //nolint:gosec // validated positive
		height:   uint32(height), //nolint:gosec // validated positive
		format:   format,
		buffers:  make(map[gldraw.BufferID]*bufferObject),
		arrays:   make(map[gldraw.VertexArrayID]*vertexArray),
		shaders:  make(map[gldraw.ShaderID]*shaderObject),
		programs: make(map[gldraw.ProgramID]*programObject),
		textures: make(map[gldraw.TextureID]*textureObject),
	}
	target, err := newRenderTarget(device, c.width, c.height, format)
	if err != nil {
		return nil, &gldraw.ContextUnavailableError{Reason: "wgpu: " + err.Error()}
	}
	c.target = target
	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "gldraw_sampler",
		AddressModeU: gputypes.AddressModeRepeat,
		AddressModeV: gputypes.AddressModeRepeat,
		AddressModeW: gputypes.AddressModeRepeat,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		target.destroy(device)
		return nil, &gldraw.ContextUnavailableError{Reason: "wgpu: create sampler: " + err.Error()}
	}
	c.sampler = sampler
	return c, nil
}

// Close destroys every object the context still holds, then the device
// and instance if Open created them. The context is lost afterwards.
func (c *Context) Close() {
	if c.closed {
		return
	}
	for id := range c.programs {
		c.DeleteProgram(id)
	}
	for id := range c.buffers {
		c.DeleteBuffer(id)
	}
	for id := range c.textures {
		c.DeleteTexture(id)
	}
	clear(c.arrays)
	clear(c.shaders)
	if c.incomplete != nil {
		c.destroyTexture(c.incomplete)
		c.incomplete = nil
	}
	if c.sampler != nil {
		c.device.DestroySampler(c.sampler)
		c.sampler = nil
	}
	if c.target != nil {
		c.target.destroy(c.device)
		c.target = nil
	}
	if c.owned {
		c.device.Destroy()
		if c.instance != nil {
			c.instance.Destroy()
		}
	}
	c.closed = true
	c.lost = true
}

// SetLogger implements gldraw.LoggerSetter by setting the package logger.
func (c *Context) SetLogger(l *slog.Logger) { SetLogger(l) }

// Size returns the render target size in pixels.
func (c *Context) Size() (width, height int) { return int(c.width), int(c.height) }

// Format returns the color target format.
func (c *Context) Format() gputypes.TextureFormat { return c.format }

// Stats returns the allocation and work counters.
func (c *Context) Stats() Stats { return c.stats }

// Live returns the number of GL-style objects that have not been deleted.
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

// Lose marks the device as lost. Later object creation fails.
func (c *Context) Lose() { c.lost = true }

// IsLost implements gldraw.Loser.
func (c *Context) IsLost() bool { return c.lost }

func (c *Context) fail(err error, format string, args ...any) {
	detail := fmt.Sprintf(format, args...)
	if c.err == nil {
		c.err = fmt.Errorf("%w: %s", err, detail)
	}
	slogger().Debug("wgpu: gl error", "err", err, "detail", detail)
}

func (c *Context) newID() (uint32, error) {
	if c.lost {
		return 0, &gldraw.ContextUnavailableError{Reason: "context lost"}
	}
	c.nextID++
	return c.nextID, nil
}

// Clear clears the color target to col and the depth buffer to the far
// plane.
func (c *Context) Clear(col color.RGBA) {
	if c.lost {
		return
	}
	if err := c.target.clear(c.device, c.queue, col); err != nil {
		c.fail(ErrInvalidOperation, "clear: %v", err)
		return
	}
	c.stats.Submits++
}

// ReadPixels copies the color target into a new RGBA image.
func (c *Context) ReadPixels() (*image.RGBA, error) {
	if c.lost {
		return nil, &gldraw.ContextUnavailableError{Reason: "context lost"}
	}
	img, err := c.target.read(c.device, c.queue)
	if err != nil {
		return nil, fmt.Errorf("wgpu: read pixels: %w", err)
	}
	c.stats.Submits++
	return img, nil
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

// BufferData implements gldraw.Context. The device buffer is recreated
// when the size changes and rewritten in place otherwise.
func (c *Context) BufferData(data []float32, usage gputypes.BufferUsage) {
	buf, ok := c.buffers[c.boundBuffer]
	if !ok {
		c.fail(ErrInvalidOperation, "buffer data with no buffer bound")
		return
	}
	size := uint64(len(data)) * 4
	if buf.buf != nil && buf.size != size {
		c.device.DestroyBuffer(buf.buf)
		buf.buf = nil
	}
	if buf.buf == nil && size > 0 {
		hb, err := c.device.CreateBuffer(&hal.BufferDescriptor{
			Label: fmt.Sprintf("gldraw_buffer_%d", c.boundBuffer),
			Size:  size,
			Usage: usage | gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			c.fail(ErrInvalidOperation, "create buffer: %v", err)
			return
		}
		buf.buf = hb
	}
	buf.data = append([]float32(nil), data...)
	buf.usage = usage
	buf.size = size
	if size > 0 {
		c.queue.WriteBuffer(buf.buf, 0, floatBytes(data))
	}
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
	buf, ok := c.buffers[b]
	if !ok {
		return
	}
	if buf.buf != nil {
		c.device.DestroyBuffer(buf.buf)
	}
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

// CompileShader implements gldraw.Context. Sources are validated with
// naga here; device shader modules are created when a program links.
func (c *Context) CompileShader(s gldraw.ShaderID, source string) (bool, string) {
	sh, ok := c.shaders[s]
	if !ok {
		c.fail(ErrInvalidValue, "compile unknown shader %d", s)
		return false, fmt.Sprintf("unknown shader %d", s)
	}
	m, err := shader.Compile(sh.stage, source)
	if err != nil {
		sh.module, sh.source = nil, ""
		return false, err.Error()
	}
	sh.module, sh.source = m, source
	return true, ""
}

// DeleteShader implements gldraw.Context.
func (c *Context) DeleteShader(s gldraw.ShaderID) {
	delete(c.shaders, s)
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
	if comps := format.Size() / 4; comps < 1 || comps > 4 {
		c.fail(ErrInvalidEnum, "vertex format %s", format)
		return
	}
	ap := va.attribs[loc]
	if ap == nil {
		ap = &attribPointer{}
		va.attribs[loc] = ap
	}
	ap.buffer = c.boundBuffer
	ap.format = format
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
	ub, ok := prog.uniforms[loc]
	if !ok {
		c.fail(ErrInvalidOperation, "uniform location %d is not a matrix", loc)
		return
	}
	c.queue.WriteBuffer(ub, 0, floatBytes(m[:]))
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
	prog.units[loc] = v
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

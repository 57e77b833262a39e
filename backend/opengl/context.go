// Package opengl implements gldraw.Context on desktop OpenGL 4.1 core
// through go-gl, in a window opened with GLFW.
//
// GLFW and OpenGL calls must happen on the main OS thread. Programs using
// this backend lock it from an init function:
//
//	func init() { runtime.LockOSThread() }
package opengl

import (
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gldraw"
	"github.com/gogpu/gldraw/backend"
	"github.com/gogpu/gputypes"
)

func init() {
	backend.Register(backend.BackendGL, func(cfg backend.Config) (gldraw.Context, error) {
		return Open(cfg)
	})
}

// Context is a gldraw.Context bound to one GLFW window.
type Context struct {
	window *glfw.Window
	log    *slog.Logger
	closed bool
}

var (
	_ gldraw.Context      = (*Context)(nil)
	_ gldraw.Loser        = (*Context)(nil)
	_ gldraw.LoggerSetter = (*Context)(nil)
)

// Open initializes GLFW, opens a window with a 4.1 core forward-compatible
// context, makes it current and loads the OpenGL entry points. Any failure
// is reported as a *gldraw.ContextUnavailableError.
func Open(cfg backend.Config) (*Context, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &gldraw.ContextUnavailableError{Reason: fmt.Sprintf("invalid window size %dx%d", cfg.Width, cfg.Height)}
	}
	if err := glfw.Init(); err != nil {
		return nil, &gldraw.ContextUnavailableError{Reason: "glfw: " + err.Error()}
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	if cfg.Hidden {
		glfw.WindowHint(glfw.Visible, glfw.False)
	}
	title := cfg.Title
	if title == "" {
		title = "gldraw"
	}
	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, &gldraw.ContextUnavailableError{Reason: "glfw: create window: " + err.Error()}
	}
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, &gldraw.ContextUnavailableError{Reason: "gl: " + err.Error()}
	}
	glfw.SwapInterval(1)

	c := &Context{window: window, log: gldraw.Logger()}
	w, h := window.GetFramebufferSize()
	gl.Viewport(0, 0, int32(w), int32(h))
	c.log.Info("opengl: context ready",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)))
	return c, nil
}

// SetLogger implements gldraw.LoggerSetter.
func (c *Context) SetLogger(l *slog.Logger) {
	if l == nil {
		l = gldraw.Logger()
	}
	c.log = l
}

// Window returns the GLFW window the context renders to.
func (c *Context) Window() *glfw.Window { return c.window }

// ShouldClose reports whether the user asked to close the window.
func (c *Context) ShouldClose() bool { return c.closed || c.window.ShouldClose() }

// Clear clears the color and depth buffers.
func (c *Context) Clear(r, g, b, a float32) {
	gl.ClearColor(r, g, b, a)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// Present swaps buffers and processes window events.
func (c *Context) Present() {
	c.window.SwapBuffers()
	glfw.PollEvents()
	w, h := c.window.GetFramebufferSize()
	gl.Viewport(0, 0, int32(w), int32(h))
}

// Close destroys the window and terminates GLFW.
func (c *Context) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.window.Destroy()
	glfw.Terminate()
}

// IsLost implements gldraw.Loser. A closed window has no context.
func (c *Context) IsLost() bool { return c.closed }

func (c *Context) unavailable() error {
	if c.closed {
		return &gldraw.ContextUnavailableError{Reason: "window closed"}
	}
	return nil
}

// Language implements gldraw.Context.
func (c *Context) Language() gldraw.Language { return gldraw.GLSL }

// CreateBuffer implements gldraw.Context.
func (c *Context) CreateBuffer() (gldraw.BufferID, error) {
	if err := c.unavailable(); err != nil {
		return 0, err
	}
	var id uint32
	gl.GenBuffers(1, &id)
	return gldraw.BufferID(id), nil
}

// BindBuffer implements gldraw.Context.
func (c *Context) BindBuffer(b gldraw.BufferID) { gl.BindBuffer(gl.ARRAY_BUFFER, uint32(b)) }

// BufferData implements gldraw.Context.
func (c *Context) BufferData(data []float32, usage gputypes.BufferUsage) {
	hint := uint32(gl.STATIC_DRAW)
	if usage.Contains(gputypes.BufferUsageMapWrite) {
		hint = gl.DYNAMIC_DRAW
	}
	if len(data) == 0 {
		gl.BufferData(gl.ARRAY_BUFFER, 0, nil, hint)
		return
	}
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data), hint)
}

// BufferSize implements gldraw.Context. It binds b.
func (c *Context) BufferSize(b gldraw.BufferID) int {
	var size int32
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(b))
	gl.GetBufferParameteriv(gl.ARRAY_BUFFER, gl.BUFFER_SIZE, &size)
	return int(size) / 4
}

// DeleteBuffer implements gldraw.Context.
func (c *Context) DeleteBuffer(b gldraw.BufferID) {
	id := uint32(b)
	gl.DeleteBuffers(1, &id)
}

// CreateVertexArray implements gldraw.Context.
func (c *Context) CreateVertexArray() (gldraw.VertexArrayID, error) {
	if err := c.unavailable(); err != nil {
		return 0, err
	}
	var id uint32
	gl.GenVertexArrays(1, &id)
	return gldraw.VertexArrayID(id), nil
}

// BindVertexArray implements gldraw.Context.
func (c *Context) BindVertexArray(v gldraw.VertexArrayID) { gl.BindVertexArray(uint32(v)) }

// DeleteVertexArray implements gldraw.Context.
func (c *Context) DeleteVertexArray(v gldraw.VertexArrayID) {
	id := uint32(v)
	gl.DeleteVertexArrays(1, &id)
}

// CreateShader implements gldraw.Context.
func (c *Context) CreateShader(stage gputypes.ShaderStage) (gldraw.ShaderID, error) {
	if err := c.unavailable(); err != nil {
		return 0, err
	}
	var kind uint32
	switch stage {
	case gputypes.ShaderStageVertex:
		kind = gl.VERTEX_SHADER
	case gputypes.ShaderStageFragment:
		kind = gl.FRAGMENT_SHADER
	default:
		return 0, fmt.Errorf("opengl: unsupported shader stage %s", stage)
	}
	return gldraw.ShaderID(gl.CreateShader(kind)), nil
}

// CompileShader implements gldraw.Context.
func (c *Context) CompileShader(s gldraw.ShaderID, source string) (bool, string) {
	id := uint32(s)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(id, 1, csources, nil)
	free()
	gl.CompileShader(id)

	var status int32
	gl.GetShaderiv(id, gl.COMPILE_STATUS, &status)
	if status == gl.TRUE {
		return true, ""
	}
	var logLength int32
	gl.GetShaderiv(id, gl.INFO_LOG_LENGTH, &logLength)
	log := strings.Repeat("\x00", int(logLength+1))
	gl.GetShaderInfoLog(id, logLength, nil, gl.Str(log))
	return false, strings.TrimRight(log, "\x00\n")
}

// DeleteShader implements gldraw.Context.
func (c *Context) DeleteShader(s gldraw.ShaderID) { gl.DeleteShader(uint32(s)) }

// CreateProgram implements gldraw.Context.
func (c *Context) CreateProgram() (gldraw.ProgramID, error) {
	if err := c.unavailable(); err != nil {
		return 0, err
	}
	return gldraw.ProgramID(gl.CreateProgram()), nil
}

// LinkProgram implements gldraw.Context.
func (c *Context) LinkProgram(p gldraw.ProgramID, vs, fs gldraw.ShaderID) (bool, string) {
	id := uint32(p)
	gl.AttachShader(id, uint32(vs))
	gl.AttachShader(id, uint32(fs))
	gl.LinkProgram(id)
	gl.DetachShader(id, uint32(vs))
	gl.DetachShader(id, uint32(fs))

	var status int32
	gl.GetProgramiv(id, gl.LINK_STATUS, &status)
	if status == gl.TRUE {
		return true, ""
	}
	var logLength int32
	gl.GetProgramiv(id, gl.INFO_LOG_LENGTH, &logLength)
	log := strings.Repeat("\x00", int(logLength+1))
	gl.GetProgramInfoLog(id, logLength, nil, gl.Str(log))
	return false, strings.TrimRight(log, "\x00\n")
}

// UseProgram implements gldraw.Context.
func (c *Context) UseProgram(p gldraw.ProgramID) { gl.UseProgram(uint32(p)) }

// DeleteProgram implements gldraw.Context.
func (c *Context) DeleteProgram(p gldraw.ProgramID) { gl.DeleteProgram(uint32(p)) }

// AttribLocation implements gldraw.Context.
func (c *Context) AttribLocation(p gldraw.ProgramID, name string) int {
	return int(gl.GetAttribLocation(uint32(p), gl.Str(name+"\x00")))
}

// UniformLocation implements gldraw.Context.
func (c *Context) UniformLocation(p gldraw.ProgramID, name string) int {
	return int(gl.GetUniformLocation(uint32(p), gl.Str(name+"\x00")))
}

// VertexAttribPointer implements gldraw.Context. Attributes are tightly
// packed float32 streams.
func (c *Context) VertexAttribPointer(loc int, format gputypes.VertexFormat) {
	gl.VertexAttribPointerWithOffset(uint32(loc), int32(format.Size()/4), gl.FLOAT, false, 0, 0)
}

// EnableVertexAttribArray implements gldraw.Context.
func (c *Context) EnableVertexAttribArray(loc int) { gl.EnableVertexAttribArray(uint32(loc)) }

// UniformMatrix4fv implements gldraw.Context. mgl32 matrices are already
// column-major.
func (c *Context) UniformMatrix4fv(loc int, m mgl32.Mat4) {
	gl.UniformMatrix4fv(int32(loc), 1, false, &m[0])
}

// Uniform1i implements gldraw.Context.
func (c *Context) Uniform1i(loc int, v int) { gl.Uniform1i(int32(loc), int32(v)) }

func capability(cp gldraw.Capability) uint32 {
	switch cp {
	case gldraw.DepthTest:
		return gl.DEPTH_TEST
	default:
		return 0
	}
}

// Enable implements gldraw.Context.
func (c *Context) Enable(cp gldraw.Capability) {
	if v := capability(cp); v != 0 {
		gl.Enable(v)
	}
}

// Disable implements gldraw.Context.
func (c *Context) Disable(cp gldraw.Capability) {
	if v := capability(cp); v != 0 {
		gl.Disable(v)
	}
}

// DrawArrays implements gldraw.Context.
func (c *Context) DrawArrays(topology gputypes.PrimitiveTopology, first, count int) {
	var mode uint32
	switch topology {
	case gputypes.PrimitiveTopologyTriangleList:
		mode = gl.TRIANGLES
	case gputypes.PrimitiveTopologyTriangleStrip:
		mode = gl.TRIANGLE_STRIP
	case gputypes.PrimitiveTopologyLineList:
		mode = gl.LINES
	case gputypes.PrimitiveTopologyLineStrip:
		mode = gl.LINE_STRIP
	case gputypes.PrimitiveTopologyPointList:
		mode = gl.POINTS
	default:
		c.log.Warn("opengl: unsupported topology", "topology", topology)
		return
	}
	gl.DrawArrays(mode, int32(first), int32(count))
}

// CreateTexture implements gldraw.Context.
func (c *Context) CreateTexture() (gldraw.TextureID, error) {
	if err := c.unavailable(); err != nil {
		return 0, err
	}
	var id uint32
	gl.GenTextures(1, &id)
	return gldraw.TextureID(id), nil
}

// ActiveTexture implements gldraw.Context.
func (c *Context) ActiveTexture(unit int) { gl.ActiveTexture(gl.TEXTURE0 + uint32(unit)) }

// BindTexture implements gldraw.Context.
func (c *Context) BindTexture(t gldraw.TextureID) { gl.BindTexture(gl.TEXTURE_2D, uint32(t)) }

// TexImage2D implements gldraw.Context. It also sets trilinear filtering
// and repeat wrapping on the bound texture.
func (c *Context) TexImage2D(img *image.RGBA) {
	if img == nil || img.Rect.Empty() {
		return
	}
	if img.Stride != img.Rect.Dx()*4 || img.Rect.Min != (image.Point{}) {
		packed := image.NewRGBA(image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy()))
		for y := range packed.Rect.Dy() {
			src := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
			copy(packed.Pix[y*packed.Stride:], img.Pix[src:src+packed.Stride])
		}
		img = packed
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8,
		int32(img.Rect.Dx()), int32(img.Rect.Dy()), 0,
		gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
}

// GenerateMipmap implements gldraw.Context.
func (c *Context) GenerateMipmap() { gl.GenerateMipmap(gl.TEXTURE_2D) }

// DeleteTexture implements gldraw.Context.
func (c *Context) DeleteTexture(t gldraw.TextureID) {
	id := uint32(t)
	gl.DeleteTextures(1, &id)
}

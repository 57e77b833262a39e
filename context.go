package gldraw

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// Handles name GPU objects owned by a Context. Zero is never a valid handle.
type (
	BufferID      uint32
	VertexArrayID uint32
	ShaderID      uint32
	ProgramID     uint32
	TextureID     uint32
)

// Capability is a piece of fixed-function state toggled with Enable/Disable.
type Capability int

const (
	// DepthTest discards fragments that are farther than the stored depth.
	DepthTest Capability = iota + 1
)

// String returns the string representation of Capability.
func (c Capability) String() string {
	switch c {
	case DepthTest:
		return "DepthTest"
	default:
		return "Unknown"
	}
}

// Language identifies the shading language a Context compiles.
type Language int

const (
	// WGSL is the WebGPU shading language.
	WGSL Language = iota
	// GLSL is OpenGL 4.1 core GLSL.
	GLSL
)

// String returns the string representation of Language.
func (l Language) String() string {
	switch l {
	case WGSL:
		return "WGSL"
	case GLSL:
		return "GLSL"
	default:
		return "Unknown"
	}
}

// Context is the graphics capability set consumed by gldraw.
//
// A Context is owned by one goroutine. All calls must happen on that
// goroutine; implementations are not reentrant. The core never creates,
// resizes or recovers a context.
//
// Locations returned by AttribLocation and UniformLocation are -1 when
// the name is not active in the program.
type Context interface {
	// Language reports the shading language CompileShader expects.
	Language() Language

	CreateBuffer() (BufferID, error)
	BindBuffer(b BufferID)
	// BufferData uploads data into the currently bound buffer.
	BufferData(data []float32, usage gputypes.BufferUsage)
	// BufferSize returns the number of floats stored in b.
	BufferSize(b BufferID) int
	DeleteBuffer(b BufferID)

	CreateVertexArray() (VertexArrayID, error)
	BindVertexArray(v VertexArrayID)
	DeleteVertexArray(v VertexArrayID)

	CreateShader(stage gputypes.ShaderStage) (ShaderID, error)
	// CompileShader compiles source into s and returns the compile status
	// and the info log.
	CompileShader(s ShaderID, source string) (ok bool, log string)
	DeleteShader(s ShaderID)

	CreateProgram() (ProgramID, error)
	// LinkProgram attaches vs and fs to p and links it, returning the link
	// status and the program log.
	LinkProgram(p ProgramID, vs, fs ShaderID) (ok bool, log string)
	UseProgram(p ProgramID)
	DeleteProgram(p ProgramID)
	AttribLocation(p ProgramID, name string) int
	UniformLocation(p ProgramID, name string) int

	// VertexAttribPointer associates attribute loc with the currently
	// bound buffer, read as tightly packed float32 components.
	VertexAttribPointer(loc int, format gputypes.VertexFormat)
	EnableVertexAttribArray(loc int)
	UniformMatrix4fv(loc int, m mgl32.Mat4)
	Uniform1i(loc int, v int)

	Enable(c Capability)
	Disable(c Capability)
	DrawArrays(topology gputypes.PrimitiveTopology, first, count int)

	CreateTexture() (TextureID, error)
	ActiveTexture(unit int)
	BindTexture(t TextureID)
	// TexImage2D uploads img to the texture bound on the active unit as
	// RGBA8 level 0.
	TexImage2D(img *image.RGBA)
	GenerateMipmap()
	DeleteTexture(t TextureID)
}

// Loser is implemented by contexts that can report a lost device.
type Loser interface {
	IsLost() bool
}

// checkContext returns a ContextUnavailableError when ctx cannot be used.
func checkContext(ctx Context) error {
	if ctx == nil {
		return &ContextUnavailableError{Reason: "nil context"}
	}
	if l, ok := ctx.(Loser); ok && l.IsLost() {
		return &ContextUnavailableError{Reason: "context lost"}
	}
	return nil
}

package gldraw

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// Drawable and geometry errors.
var (
	// ErrComponentMismatch is returned when attribute data is not a whole
	// number of vertices, or the component count is not 2, 3 or 4.
	ErrComponentMismatch = errors.New("gldraw: attribute data does not match components per vertex")

	// ErrVertexCountMismatch is returned when the attributes of one
	// drawable disagree on the number of vertices.
	ErrVertexCountMismatch = errors.New("gldraw: attributes have different vertex counts")

	// ErrNoAttributes is returned for a variant without any attribute.
	ErrNoAttributes = errors.New("gldraw: variant has no attributes")

	// ErrAlreadyInitialized is returned when Initialize is called twice.
	ErrAlreadyInitialized = errors.New("gldraw: drawable already initialized")

	// ErrNotInitialized is returned when drawing before Initialize.
	ErrNotInitialized = errors.New("gldraw: drawable not initialized")

	// ErrReleased is returned when using a drawable or program after Release.
	ErrReleased = errors.New("gldraw: resource has been released")

	// ErrNotLinked is returned when resolving bindings before Link.
	ErrNotLinked = errors.New("gldraw: program is not linked")

	// ErrTextureNotReady is returned by Texture.Image before decoding completes.
	ErrTextureNotReady = errors.New("gldraw: texture is not ready")

	// ErrNoShaderSource is returned when a variant has no shader pair
	// for the context's shading language.
	ErrNoShaderSource = errors.New("gldraw: no shader source for shading language")
)

// ContextUnavailableError reports that no usable graphics context exists.
// It is fatal for startup.
type ContextUnavailableError struct {
	Reason string
}

func (e *ContextUnavailableError) Error() string {
	if e.Reason == "" {
		return "gldraw: graphics context unavailable"
	}
	return "gldraw: graphics context unavailable: " + e.Reason
}

// ShaderCompileError reports a failed shader stage together with the
// compiler diagnostic text.
type ShaderCompileError struct {
	Stage gputypes.ShaderStage
	Log   string
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("gldraw: %s shader compile failed: %s", stageName(e.Stage), e.Log)
}

// LinkError reports a failed program link together with the program log.
type LinkError struct {
	Log string
}

func (e *LinkError) Error() string {
	return "gldraw: program link failed: " + e.Log
}

// BindingKind distinguishes attribute and uniform lookups.
type BindingKind int

const (
	// BindingAttribute is a per-vertex input.
	BindingAttribute BindingKind = iota
	// BindingUniform is a per-draw constant.
	BindingUniform
)

// String returns the string representation of BindingKind.
func (k BindingKind) String() string {
	switch k {
	case BindingAttribute:
		return "attribute"
	case BindingUniform:
		return "uniform"
	default:
		return fmt.Sprintf("BindingKind(%d)", int(k))
	}
}

// UnknownBindingError reports an attribute or uniform name that the
// linked program does not expose.
type UnknownBindingError struct {
	Kind BindingKind
	Name string
}

func (e *UnknownBindingError) Error() string {
	return fmt.Sprintf("gldraw: unknown %s %q", e.Kind, e.Name)
}

func stageName(s gputypes.ShaderStage) string {
	switch s {
	case gputypes.ShaderStageVertex:
		return "vertex"
	case gputypes.ShaderStageFragment:
		return "fragment"
	default:
		return fmt.Sprintf("stage(%d)", uint32(s))
	}
}

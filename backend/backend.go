package backend

import (
	"errors"

	"github.com/gogpu/gldraw"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not registered.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Backend name constants.
const (
	// BackendSoft is the name of the in-memory reference rasterizer.
	BackendSoft = "soft"
	// BackendGL is the name of the desktop OpenGL 4.1 core backend.
	BackendGL = "gl"
	// BackendWGPU is the name of the offscreen WebGPU HAL backend.
	BackendWGPU = "wgpu"
)

// Config describes the drawing surface a backend renders to.
type Config struct {
	Width  int
	Height int

	// Title and Hidden apply to backends that open a window.
	Title  string
	Hidden bool
}

// Factory opens a gldraw.Context for a surface.
//
// Factories for window-bound APIs create the window themselves and must be
// called from the main goroutine with its OS thread locked.
type Factory func(cfg Config) (gldraw.Context, error)

// Package backend provides a registry of gldraw.Context implementations.
//
// Backends register a Factory from an init() function and are opened by
// name at runtime:
//
//	import _ "github.com/gogpu/gldraw/backend/soft"
//
//	ctx, err := backend.Open(backend.BackendSoft, backend.Config{Width: 640, Height: 480})
//
// OpenDefault tries the windowed OpenGL backend, then the offscreen WebGPU
// backend, and falls back to the software backend, which is always
// available when imported.
//
// # Available Backends
//
// - "soft": in-memory reference rasterizer (backend/soft)
// - "gl": desktop OpenGL 4.1 core via go-gl (backend/opengl)
// - "wgpu": offscreen rendering on a gogpu/wgpu HAL device (backend/wgpu)
package backend

// Package gldraw provides immediate-mode draw objects on top of a small
// GL-style graphics context.
//
// # Overview
//
// A Drawable owns everything one shape needs on the GPU: one buffer per
// vertex attribute, a compiled and linked shader program, the resolved
// attribute and uniform locations, an optional texture and a model matrix
// that an Animator advances once per frame. What differs between shapes
// is data, described by a Variant:
//
//   - Triangle: 3 vertices, per-vertex color, no depth test, spins about Z
//   - Cube: 36 vertices, one color per face, depth tested, spins about Z then X
//   - TexturedQuad: 6 vertices with uv, sampled texture, depth tested,
//     perspective camera, spins about X then Y
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/gldraw"
//		"github.com/gogpu/gldraw/backend/soft"
//	)
//
//	ctx := soft.New(640, 480)
//	d, err := gldraw.NewDrawable(ctx, gldraw.Triangle())
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := d.Initialize(); err != nil {
//		log.Fatal(err)
//	}
//	defer d.Release()
//
//	for frame := range 60 {
//		ctx.Clear(color.RGBA{A: 255})
//		if err := d.Draw(frame); err != nil {
//			log.Fatal(err)
//		}
//	}
//	_ = ctx.Framebuffer().SavePNG("triangle.png")
//
// # Contexts
//
// The Context interface is the GL capability set the package consumes.
// Two implementations ship with it:
//
//   - backend/soft: in-memory, compiles WGSL with naga and rasterizes into
//     a framebuffer; used by tests and headless rendering
//   - backend/opengl: desktop OpenGL 4.1 core through go-gl and GLFW
//
// backend.OpenDefault picks the first one that opens.
//
// # Threading
//
// A Context and every Drawable created on it belong to one goroutine.
// Texture decoding is the only work done elsewhere: LoadTexture decodes on
// its own goroutine and the drawable uploads the pixels during the first
// Draw after decoding finishes.
//
// # Errors
//
// Startup failures are typed: *ContextUnavailableError,
// *ShaderCompileError and *LinkError carry the driver's text, and
// *UnknownBindingError names an attribute or uniform the program does not
// expose. A failed Initialize is sticky: the drawable never draws.
//
// # Logging
//
// The package is silent by default. SetLogger installs a *slog.Logger for
// the package; WithLogger overrides it for one drawable.
package gldraw

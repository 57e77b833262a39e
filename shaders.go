package gldraw

import (
	_ "embed"
)

// Embedded shader sources. Attribute and uniform names in these files are
// the names drawables resolve, so they must stay in sync with variant.go.

//go:embed shaders/color.vert.wgsl
var colorVertexWGSL string

//go:embed shaders/color.frag.wgsl
var colorFragmentWGSL string

//go:embed shaders/textured.vert.wgsl
var texturedVertexWGSL string

//go:embed shaders/textured.frag.wgsl
var texturedFragmentWGSL string

//go:embed shaders/color.vert.glsl
var colorVertexGLSL string

//go:embed shaders/color.frag.glsl
var colorFragmentGLSL string

//go:embed shaders/textured.vert.glsl
var texturedVertexGLSL string

//go:embed shaders/textured.frag.glsl
var texturedFragmentGLSL string

// ColorShaders returns the per-vertex color shader pairs.
func ColorShaders() map[Language]ShaderSource {
	return map[Language]ShaderSource{
		WGSL: {Vertex: colorVertexWGSL, Fragment: colorFragmentWGSL},
		GLSL: {Vertex: colorVertexGLSL, Fragment: colorFragmentGLSL},
	}
}

// TexturedShaders returns the sampled texture shader pairs.
func TexturedShaders() map[Language]ShaderSource {
	return map[Language]ShaderSource{
		WGSL: {Vertex: texturedVertexWGSL, Fragment: texturedFragmentWGSL},
		GLSL: {Vertex: texturedVertexGLSL, Fragment: texturedFragmentGLSL},
	}
}

package gldraw

import (
	"fmt"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// Binding names shared with the embedded shaders.
const (
	AttrPosition   = "position"
	AttrColor      = "color"
	AttrUV         = "uv"
	UniformMatrix  = "matrix"
	UniformView    = "view"
	UniformProject = "projection"
	UniformTexture = "textureID"
)

// Attribute is one named vertex stream.
type Attribute struct {
	Name       string
	Components int
	Data       []float32
}

// VertexCount returns the number of whole vertices in Data.
func (a Attribute) VertexCount() int {
	if a.Components <= 0 {
		return 0
	}
	return len(a.Data) / a.Components
}

// Variant describes one kind of drawable shape as data: its attributes,
// shaders, fixed state and animation.
type Variant struct {
	Name       string
	Attributes []Attribute
	Topology   gputypes.PrimitiveTopology
	DepthTest  bool
	Animator   Animator
	Shaders    map[Language]ShaderSource

	// Uniforms are constant matrices uploaded every frame next to the
	// model matrix, such as view and projection.
	Uniforms map[string]mgl32.Mat4

	// Texture, if set, is sampled through the UniformTexture sampler on
	// texture unit 0.
	Texture *Texture
}

// HasAttribute reports whether the variant declares the named attribute.
func (v Variant) HasAttribute(name string) bool {
	for _, a := range v.Attributes {
		if a.Name == name {
			return true
		}
	}
	return false
}

// HasColor reports whether the variant carries per-vertex colors.
func (v Variant) HasColor() bool { return v.HasAttribute(AttrColor) }

// HasUV reports whether the variant carries texture coordinates.
func (v Variant) HasUV() bool { return v.HasAttribute(AttrUV) }

// Is3D reports whether the variant draws with depth testing.
func (v Variant) Is3D() bool { return v.DepthTest }

// VertexCount returns the shared vertex count of all attributes.
func (v Variant) VertexCount() int {
	if len(v.Attributes) == 0 {
		return 0
	}
	return v.Attributes[0].VertexCount()
}

// Validate checks component counts and that every attribute has the same
// number of vertices.
func (v Variant) Validate() error {
	if len(v.Attributes) == 0 {
		return ErrNoAttributes
	}
	want := -1
	for _, a := range v.Attributes {
		n, err := vertexCount(a.Data, a.Components)
		if err != nil {
			return fmt.Errorf("gldraw: %s attribute %q: %w", v.Name, a.Name, err)
		}
		if want < 0 {
			want = n
			continue
		}
		if n != want {
			return fmt.Errorf("%w: %s attribute %q has %d vertices, want %d",
				ErrVertexCountMismatch, v.Name, a.Name, n, want)
		}
	}
	return nil
}

// Default per-frame rotation angles, in radians.
const (
	triangleSpin = 0.01
	cubeSpinZ    = 0.01
	cubeSpinX    = 0.007
	quadSpinX    = 0.01
	quadSpinY    = 0.013
)

// Triangle returns the flat RGB triangle: no depth test, spinning about Z.
func Triangle() Variant {
	return Variant{
		Name: "triangle",
		Attributes: []Attribute{
			{Name: AttrPosition, Components: 3, Data: []float32{
				0, 0.5, 0,
				-0.433, -0.25, 0,
				0.433, -0.25, 0,
			}},
			{Name: AttrColor, Components: 3, Data: []float32{
				1, 0, 0,
				0, 1, 0,
				0, 0, 1,
			}},
		},
		Topology: gputypes.PrimitiveTopologyTriangleList,
		Animator: Animator{
			Translate: mgl32.Vec3{0.2, 0.5, 0},
			Scale:     mgl32.Vec3{0.25, 0.25, 0.25},
			Rotations: []Rotation{{Axis: AxisZ, Angle: triangleSpin}},
		},
		Shaders: ColorShaders(),
	}
}

// cubeFaces lists the two triangles of each cube face, CCW from outside.
// Faces: +Z, -Z, +Y, -Y, +X, -X.
var cubeFaces = [6][18]float32{
	{-1, -1, 1, 1, -1, 1, 1, 1, 1, -1, -1, 1, 1, 1, 1, -1, 1, 1},
	{1, -1, -1, -1, -1, -1, -1, 1, -1, 1, -1, -1, -1, 1, -1, 1, 1, -1},
	{-1, 1, 1, 1, 1, 1, 1, 1, -1, -1, 1, 1, 1, 1, -1, -1, 1, -1},
	{-1, -1, -1, 1, -1, -1, 1, -1, 1, -1, -1, -1, 1, -1, 1, -1, -1, 1},
	{1, -1, 1, 1, -1, -1, 1, 1, -1, 1, -1, 1, 1, 1, -1, 1, 1, 1},
	{-1, -1, -1, -1, -1, 1, -1, 1, 1, -1, -1, -1, -1, 1, 1, -1, 1, -1},
}

// CubeVertices is the number of vertices in a cube: 6 faces, 2 triangles each.
const CubeVertices = 36

// Cube returns the depth-tested cube spinning about Z then X.
//
// colors holds either 6 face colors, each repeated over the face's 6
// vertices, or 36 per-vertex colors. Nil picks 6 random distinct face
// colors from a time-seeded source; use RandomFaceColors for a fixed seed.
func Cube(colors []mgl32.Vec3) (Variant, error) {
	if colors == nil {
		colors = RandomFaceColors(rand.Uint64())
	}
	var colorData []float32
	switch len(colors) {
	case 6:
		colorData = make([]float32, 0, CubeVertices*3)
		for _, c := range colors {
			for range 6 {
				colorData = append(colorData, c[0], c[1], c[2])
			}
		}
	case CubeVertices:
		colorData = make([]float32, 0, CubeVertices*3)
		for _, c := range colors {
			colorData = append(colorData, c[0], c[1], c[2])
		}
	default:
		return Variant{}, fmt.Errorf("%w: cube needs 6 or %d colors, got %d",
			ErrVertexCountMismatch, CubeVertices, len(colors))
	}

	positions := make([]float32, 0, CubeVertices*3)
	for _, f := range cubeFaces {
		positions = append(positions, f[:]...)
	}

	return Variant{
		Name: "cube",
		Attributes: []Attribute{
			{Name: AttrPosition, Components: 3, Data: positions},
			{Name: AttrColor, Components: 3, Data: colorData},
		},
		Topology:  gputypes.PrimitiveTopologyTriangleList,
		DepthTest: true,
		Animator: Animator{
			Scale: mgl32.Vec3{0.5, 0.5, 0.5},
			Rotations: []Rotation{
				{Axis: AxisZ, Angle: cubeSpinZ},
				{Axis: AxisX, Angle: cubeSpinX},
			},
		},
		Shaders: ColorShaders(),
	}, nil
}

// RandomFaceColors returns 6 distinct random colors from a seeded source.
func RandomFaceColors(seed uint64) []mgl32.Vec3 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	colors := make([]mgl32.Vec3, 0, 6)
	for len(colors) < 6 {
		c := mgl32.Vec3{rng.Float32(), rng.Float32(), rng.Float32()}
		dup := false
		for _, prev := range colors {
			if prev == c {
				dup = true
				break
			}
		}
		if !dup {
			colors = append(colors, c)
		}
	}
	return colors
}

// QuadVertices is the number of vertices in the textured quad.
const QuadVertices = 6

// TexturedQuad returns the depth-tested quad sampling tex, spinning about
// X then Y, seen through a perspective camera at z=3.
// aspect is the viewport width over height; zero means 1.
func TexturedQuad(tex *Texture, aspect float32) Variant {
	if aspect <= 0 {
		aspect = 1
	}
	return Variant{
		Name: "textured-quad",
		Attributes: []Attribute{
			{Name: AttrPosition, Components: 3, Data: []float32{
				-1, -1, 0,
				1, -1, 0,
				1, 1, 0,
				-1, -1, 0,
				1, 1, 0,
				-1, 1, 0,
			}},
			{Name: AttrUV, Components: 2, Data: []float32{
				0, 1,
				1, 1,
				1, 0,
				0, 1,
				1, 0,
				0, 0,
			}},
		},
		Topology:  gputypes.PrimitiveTopologyTriangleList,
		DepthTest: true,
		Animator: Animator{
			Scale: mgl32.Vec3{1, 1, 1},
			Rotations: []Rotation{
				{Axis: AxisX, Angle: quadSpinX},
				{Axis: AxisY, Angle: quadSpinY},
			},
		},
		Shaders: TexturedShaders(),
		Uniforms: map[string]mgl32.Mat4{
			UniformView: mgl32.LookAtV(
				mgl32.Vec3{0, 0, 3}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0}),
			UniformProject: mgl32.Perspective(mgl32.DegToRad(45), aspect, 0.1, 100),
		},
		Texture: tex,
	}
}

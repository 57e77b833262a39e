package soft

import (
	"image"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gldraw"
	"github.com/gogpu/gldraw/internal/parallel"
	xdraw "golang.org/x/image/draw"
)

// minW is the smallest clip-space w accepted; triangles with a vertex
// closer to the eye plane are dropped instead of clipped.
const minW = 1e-5

type stream struct {
	data       []float32
	components int
}

// vec4 reads vertex i, filling missing components from (0, 0, 0, 1).
func (s stream) vec4(i int) mgl32.Vec4 {
	v := mgl32.Vec4{0, 0, 0, 1}
	base := i * s.components
	for k := 0; k < s.components && k < 4; k++ {
		v[k] = s.data[base+k]
	}
	return v
}

type pipelineState struct {
	streams   map[string]stream
	mvp       mgl32.Mat4
	depthTest bool
	texture   *image.RGBA
	sampled   bool
}

// vertex is a transformed vertex in screen space. Attributes are stored
// divided by w for perspective-correct interpolation.
type vertex struct {
	x, y, z float32
	invW    float32
	color   mgl32.Vec4
	uv      mgl32.Vec2
}

// mvp composes projection·view·matrix, treating missing matrices as identity.
func mvp(m map[string]mgl32.Mat4) mgl32.Mat4 {
	get := func(name string) mgl32.Mat4 {
		if v, ok := m[name]; ok {
			return v
		}
		return mgl32.Ident4()
	}
	return get(gldraw.UniformProject).Mul4(get(gldraw.UniformView)).Mul4(get(gldraw.UniformMatrix))
}

func (c *Context) rasterize(ps pipelineState, first, count int) {
	pos, ok := ps.streams[gldraw.AttrPosition]
	if !ok {
		return
	}
	col, hasColor := ps.streams[gldraw.AttrColor]
	uv, hasUV := ps.streams[gldraw.AttrUV]

	w, h := float32(c.fb.Width()), float32(c.fb.Height())
	tris := make([][3]vertex, 0, count/3)
	culled := 0
	for i := first; i+2 < first+count; i += 3 {
		var tri [3]vertex
		visible := true
		for k := range 3 {
			clip := ps.mvp.Mul4x1(pos.vec4(i + k))
			if clip.W() <= minW {
				visible = false
				break
			}
			inv := 1 / clip.W()
			v := vertex{
				x:    (clip.X()*inv + 1) / 2 * w,
				y:    (1 - clip.Y()*inv) / 2 * h,
				z:    (clip.Z()*inv + 1) / 2,
				invW: inv,
			}
			if hasColor {
				cv := col.vec4(i + k)
				v.color = cv.Mul(inv)
			}
			if hasUV {
				t := uv.vec4(i + k)
				v.uv = mgl32.Vec2{t.X() * inv, t.Y() * inv}
			}
			tri[k] = v
		}
		if !visible {
			culled++
			continue
		}
		tris = append(tris, tri)
	}
	if culled > 0 {
		slogger().Debug("soft: dropped triangles behind the eye", "count", culled)
	}

	if c.pool == nil {
		c.fillBand(ps, tris, hasColor, parallel.Band{Y0: 0, Y1: c.fb.Height()})
		return
	}
	// Bands own disjoint rows, so color and depth writes never overlap.
	bands := parallel.Bands(c.fb.Height(), c.pool.Workers())
	work := make([]func(), len(bands))
	for i, b := range bands {
		work[i] = func() { c.fillBand(ps, tris, hasColor, b) }
	}
	c.pool.ExecuteAll(work)
}

func (c *Context) fillBand(ps pipelineState, tris [][3]vertex, hasColor bool, b parallel.Band) {
	for _, t := range tris {
		c.fillTriangle(ps, t, hasColor, b)
	}
}

func edge(a, b vertex, px, py float32) float32 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// fillTriangle covers the pixels of t whose rows fall inside band.
func (c *Context) fillTriangle(ps pipelineState, t [3]vertex, hasColor bool, band parallel.Band) {
	area := edge(t[0], t[1], t[2].x, t[2].y)
	if area == 0 {
		return
	}
	fb := c.fb
	minX := max(0, int(math.Floor(float64(min(t[0].x, t[1].x, t[2].x)))))
	maxX := min(fb.Width()-1, int(math.Ceil(float64(max(t[0].x, t[1].x, t[2].x)))))
	minY := max(band.Y0, int(math.Floor(float64(min(t[0].y, t[1].y, t[2].y)))))
	maxY := min(band.Y1-1, int(math.Ceil(float64(max(t[0].y, t[1].y, t[2].y)))))

	for y := minY; y <= maxY; y++ {
		py := float32(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float32(x) + 0.5
			w0 := edge(t[1], t[2], px, py) / area
			w1 := edge(t[2], t[0], px, py) / area
			w2 := edge(t[0], t[1], px, py) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*t[0].z + w1*t[1].z + w2*t[2].z
			if z < 0 || z > 1 {
				continue
			}
			if ps.depthTest && !fb.depthTest(x, y, z) {
				continue
			}
			invW := w0*t[0].invW + w1*t[1].invW + w2*t[2].invW
			fb.SetPixel(x, y, shade(ps, t, w0, w1, w2, 1/invW, hasColor))
		}
	}
}

// shade computes the fragment color from interpolated attributes.
func shade(ps pipelineState, t [3]vertex, w0, w1, w2, wc float32, hasColor bool) color.RGBA {
	switch {
	case ps.sampled:
		if ps.texture == nil {
			return color.RGBA{A: 255}
		}
		u := (w0*t[0].uv[0] + w1*t[1].uv[0] + w2*t[2].uv[0]) * wc
		v := (w0*t[0].uv[1] + w1*t[1].uv[1] + w2*t[2].uv[1]) * wc
		return sampleNearest(ps.texture, u, v)
	case hasColor:
		cv := t[0].color.Mul(w0).Add(t[1].color.Mul(w1)).Add(t[2].color.Mul(w2)).Mul(wc)
		return color.RGBA{R: to8(cv[0]), G: to8(cv[1]), B: to8(cv[2]), A: 255}
	default:
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
}

// sampleNearest reads the texel under (u, v) with clamp-to-edge addressing.
func sampleNearest(img *image.RGBA, u, v float32) color.RGBA {
	b := img.Rect
	x := int(clamp01(u) * float32(b.Dx()))
	y := int(clamp01(v) * float32(b.Dy()))
	x = min(x, b.Dx()-1)
	y = min(y, b.Dy()-1)
	return img.RGBAAt(b.Min.X+x, b.Min.Y+y)
}

// mipChain returns base followed by successively halved levels down to 1×1.
func mipChain(base *image.RGBA) []*image.RGBA {
	levels := []*image.RGBA{base}
	cur := base
	for cur.Rect.Dx() > 1 || cur.Rect.Dy() > 1 {
		next := image.NewRGBA(image.Rect(0, 0, max(1, cur.Rect.Dx()/2), max(1, cur.Rect.Dy()/2)))
		xdraw.ApproxBiLinear.Scale(next, next.Rect, cur, cur.Rect, xdraw.Src, nil)
		levels = append(levels, next)
		cur = next
	}
	return levels
}

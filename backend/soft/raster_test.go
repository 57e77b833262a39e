package soft

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gldraw"
)

func TestMVPDefaultsToIdentity(t *testing.T) {
	if got := mvp(nil); got != mgl32.Ident4() {
		t.Errorf("mvp(nil) = %v, want identity", got)
	}
	model := mgl32.Translate3D(1, 2, 3)
	proj := mgl32.Scale3D(2, 2, 2)
	got := mvp(map[string]mgl32.Mat4{
		gldraw.UniformMatrix:  model,
		gldraw.UniformProject: proj,
	})
	if want := proj.Mul4(model); !got.ApproxEqual(want) {
		t.Errorf("mvp = %v, want %v", got, want)
	}
}

func TestSampleNearest(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	img.SetRGBA(1, 0, color.RGBA{G: 255, A: 255})
	img.SetRGBA(0, 1, color.RGBA{B: 255, A: 255})
	img.SetRGBA(1, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	tests := []struct {
		u, v float32
		want color.RGBA
	}{
		{0.25, 0.25, color.RGBA{R: 255, A: 255}},
		{0.75, 0.25, color.RGBA{G: 255, A: 255}},
		{0.25, 0.75, color.RGBA{B: 255, A: 255}},
		{1, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255}},
		{-3, 0, color.RGBA{R: 255, A: 255}},
	}
	for _, tt := range tests {
		if got := sampleNearest(img, tt.u, tt.v); got != tt.want {
			t.Errorf("sampleNearest(%v, %v) = %v, want %v", tt.u, tt.v, got, tt.want)
		}
	}
}

func TestMipChain(t *testing.T) {
	levels := mipChain(image.NewRGBA(image.Rect(0, 0, 8, 2)))
	want := []image.Point{{8, 2}, {4, 1}, {2, 1}, {1, 1}}
	if len(levels) != len(want) {
		t.Fatalf("len(levels) = %d, want %d", len(levels), len(want))
	}
	for i, l := range levels {
		if got := l.Rect.Size(); got != want[i] {
			t.Errorf("level %d size = %v, want %v", i, got, want[i])
		}
	}
}

func TestFramebufferClearAndSave(t *testing.T) {
	fb := NewFramebuffer(3, 2)
	fb.Clear(color.RGBA{R: 10, G: 20, B: 30, A: 255})
	if got := fb.Pixel(2, 1); got != (color.RGBA{R: 10, G: 20, B: 30, A: 255}) {
		t.Errorf("Pixel = %v after Clear", got)
	}
	if got := fb.Depth(0, 0); got != 1 {
		t.Errorf("Depth = %v, want 1", got)
	}
	if !fb.depthTest(0, 0, 0.5) {
		t.Error("depthTest(0.5) failed against far plane")
	}
	if fb.depthTest(0, 0, 0.7) {
		t.Error("depthTest(0.7) passed behind stored 0.5")
	}
	if got := fb.Bounds(); got != image.Rect(0, 0, 3, 2) {
		t.Errorf("Bounds() = %v", got)
	}
	if err := fb.SavePNG(filepath.Join(t.TempDir(), "out.png")); err != nil {
		t.Errorf("SavePNG: %v", err)
	}
}

func TestRasterizeDropsTrianglesBehindEye(t *testing.T) {
	c := New(4, 4)
	c.Clear(color.RGBA{A: 255})
	pos := []float32{-1, -1, 0, 3, -1, 0, -1, 3, 0}
	c.rasterize(pipelineState{
		streams: map[string]stream{gldraw.AttrPosition: {data: pos, components: 3}},
		mvp:     mgl32.Ident4().Mul(-1), // w = -1 for every vertex
	}, 0, 3)
	if got := c.Framebuffer().Pixel(1, 1); got != (color.RGBA{A: 255}) {
		t.Errorf("Pixel = %v, want untouched", got)
	}

	c.rasterize(pipelineState{
		streams: map[string]stream{gldraw.AttrPosition: {data: pos, components: 3}},
		mvp:     mgl32.Ident4(),
	}, 0, 3)
	if got := c.Framebuffer().Pixel(1, 1); got != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("Pixel = %v, want white without color or texture", got)
	}
}

// TestParallelMatchesSerial tests that banded rasterization writes the
// same pixels as a single pass.
func TestParallelMatchesSerial(t *testing.T) {
	ps := pipelineState{
		streams: map[string]stream{
			gldraw.AttrPosition: {data: []float32{-0.9, -0.8, 0, 0.7, -0.6, 0, 0.1, 0.9, 0}, components: 3},
			gldraw.AttrColor:    {data: []float32{1, 0, 0, 0, 1, 0, 0, 0, 1}, components: 3},
		},
		mvp: mgl32.Ident4(),
	}

	serial := New(37, 23)
	serial.rasterize(ps, 0, 3)

	banded := New(37, 23)
	banded.SetWorkers(4)
	defer banded.Close()
	banded.rasterize(ps, 0, 3)

	a, b := serial.Framebuffer().Data(), banded.Framebuffer().Data()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("byte %d differs: serial %d, banded %d", i, a[i], b[i])
		}
	}
}

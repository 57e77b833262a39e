package soft

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
)

// Framebuffer is an RGBA8 color buffer with a float depth buffer.
type Framebuffer struct {
	width  int
	height int
	data   []uint8 // RGBA format, 4 bytes per pixel
	depth  []float32
}

// NewFramebuffer creates a framebuffer with the given dimensions, cleared
// to transparent black and far depth.
func NewFramebuffer(width, height int) *Framebuffer {
	fb := &Framebuffer{
		width:  width,
		height: height,
		data:   make([]uint8, width*height*4),
		depth:  make([]float32, width*height),
	}
	fb.ClearDepth()
	return fb
}

// Width returns the width of the framebuffer.
func (f *Framebuffer) Width() int {
	return f.width
}

// Height returns the height of the framebuffer.
func (f *Framebuffer) Height() int {
	return f.height
}

// Data returns the raw pixel data (RGBA format).
func (f *Framebuffer) Data() []uint8 {
	return f.data
}

// SetPixel sets the color of a single pixel.
func (f *Framebuffer) SetPixel(x, y int, c color.RGBA) {
	if x < 0 || x >= f.width || y < 0 || y >= f.height {
		return
	}
	i := (y*f.width + x) * 4
	f.data[i+0] = c.R
	f.data[i+1] = c.G
	f.data[i+2] = c.B
	f.data[i+3] = c.A
}

// Pixel returns the color of a single pixel.
func (f *Framebuffer) Pixel(x, y int) color.RGBA {
	if x < 0 || x >= f.width || y < 0 || y >= f.height {
		return color.RGBA{}
	}
	i := (y*f.width + x) * 4
	return color.RGBA{R: f.data[i+0], G: f.data[i+1], B: f.data[i+2], A: f.data[i+3]}
}

// Depth returns the stored depth of a pixel, 1 being the far plane.
func (f *Framebuffer) Depth(x, y int) float32 {
	if x < 0 || x >= f.width || y < 0 || y >= f.height {
		return 1
	}
	return f.depth[y*f.width+x]
}

// depthTest compares z against the stored depth with a less-than test and
// stores it when it passes.
func (f *Framebuffer) depthTest(x, y int, z float32) bool {
	i := y*f.width + x
	if z >= f.depth[i] {
		return false
	}
	f.depth[i] = z
	return true
}

// Clear fills the entire color buffer with a color.
func (f *Framebuffer) Clear(c color.RGBA) {
	for i := 0; i < len(f.data); i += 4 {
		f.data[i+0] = c.R
		f.data[i+1] = c.G
		f.data[i+2] = c.B
		f.data[i+3] = c.A
	}
}

// ClearDepth resets every depth value to the far plane.
func (f *Framebuffer) ClearDepth() {
	for i := range f.depth {
		f.depth[i] = 1
	}
}

// ToImage converts the color buffer to an image.RGBA.
func (f *Framebuffer) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	copy(img.Pix, f.data)
	return img
}

// SavePNG saves the color buffer to a PNG file.
func (f *Framebuffer) SavePNG(path string) error {
	file, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()

	return png.Encode(file, f.ToImage())
}

// At implements the image.Image interface.
func (f *Framebuffer) At(x, y int) color.Color {
	return f.Pixel(x, y)
}

// Bounds implements the image.Image interface.
func (f *Framebuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.width, f.height)
}

// ColorModel implements the image.Image interface.
func (f *Framebuffer) ColorModel() color.Model {
	return color.RGBAModel
}

func to8(v float32) uint8 {
	return uint8(math.Round(float64(clamp01(v) * 255)))
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package wgpu

import (
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gldraw"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

func newTestContext(t *testing.T, w, h int) *Context {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	c, err := NewWithDevice(device, queue, w, h)
	if err != nil {
		cleanup()
		t.Fatalf("NewWithDevice: %v", err)
	}
	t.Cleanup(func() {
		c.Close()
		cleanup()
	})
	return c
}

func linkProgram(t *testing.T, c *Context, src gldraw.ShaderSource) gldraw.ProgramID {
	t.Helper()
	vs, err := c.CreateShader(gputypes.ShaderStageVertex)
	if err != nil {
		t.Fatalf("CreateShader(vertex): %v", err)
	}
	if ok, log := c.CompileShader(vs, src.Vertex); !ok {
		t.Fatalf("CompileShader(vertex) failed: %s", log)
	}
	fs, err := c.CreateShader(gputypes.ShaderStageFragment)
	if err != nil {
		t.Fatalf("CreateShader(fragment): %v", err)
	}
	if ok, log := c.CompileShader(fs, src.Fragment); !ok {
		t.Fatalf("CompileShader(fragment) failed: %s", log)
	}
	p, err := c.CreateProgram()
	if err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}
	if ok, log := c.LinkProgram(p, vs, fs); !ok {
		t.Fatalf("LinkProgram failed: %s", log)
	}
	c.DeleteShader(vs)
	c.DeleteShader(fs)
	return p
}

// setupTriangle links the color program and binds a vertex array with one
// full-screen triangle.
func setupTriangle(t *testing.T, c *Context) gldraw.ProgramID {
	t.Helper()
	p := linkProgram(t, c, gldraw.ColorShaders()[gldraw.WGSL])
	vao, err := c.CreateVertexArray()
	if err != nil {
		t.Fatalf("CreateVertexArray: %v", err)
	}
	c.BindVertexArray(vao)
	for name, data := range map[string][]float32{
		"position": {-1, -1, 0, 3, -1, 0, -1, 3, 0},
		"color":    {1, 0, 0, 1, 0, 0, 1, 0, 0},
	} {
		b, err := c.CreateBuffer()
		if err != nil {
			t.Fatalf("CreateBuffer: %v", err)
		}
		c.BindBuffer(b)
		c.BufferData(data, gputypes.BufferUsageVertex)
		loc := c.AttribLocation(p, name)
		c.VertexAttribPointer(loc, gputypes.VertexFormatFloat32x3)
		c.EnableVertexAttribArray(loc)
	}
	c.UseProgram(p)
	c.UniformMatrix4fv(c.UniformLocation(p, gldraw.UniformMatrix), mgl32.Ident4())
	return p
}

func TestNewWithDeviceRejects(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	tests := []struct {
		name   string
		device hal.Device
		queue  hal.Queue
		w, h   int
	}{
		{"nil device", nil, queue, 8, 8},
		{"nil queue", device, nil, 8, 8},
		{"zero width", device, queue, 0, 8},
		{"negative height", device, queue, 8, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWithDevice(tt.device, tt.queue, tt.w, tt.h)
			var cu *gldraw.ContextUnavailableError
			if !errors.As(err, &cu) {
				t.Errorf("NewWithDevice() error = %v, want ContextUnavailableError", err)
			}
		})
	}
}

func TestLocations(t *testing.T) {
	c := newTestContext(t, 8, 8)
	p := linkProgram(t, c, gldraw.TexturedShaders()[gldraw.WGSL])

	tests := []struct {
		name string
		got  int
		want int
	}{
		{"position", c.AttribLocation(p, "position"), 0},
		{"uv", c.AttribLocation(p, "uv"), 1},
		{"missing attribute", c.AttribLocation(p, "normal"), -1},
		{gldraw.UniformMatrix, c.UniformLocation(p, gldraw.UniformMatrix), 0},
		{gldraw.UniformProject, c.UniformLocation(p, gldraw.UniformProject), 2},
		{gldraw.UniformTexture, c.UniformLocation(p, gldraw.UniformTexture), 3},
		{"missing uniform", c.UniformLocation(p, "model"), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("location = %d, want %d", tt.got, tt.want)
			}
		})
	}
	if err := c.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestCompileErrorLog(t *testing.T) {
	c := newTestContext(t, 8, 8)
	s, err := c.CreateShader(gputypes.ShaderStageVertex)
	if err != nil {
		t.Fatal(err)
	}
	ok, log := c.CompileShader(s, "@vertex fn vs_main( -> {")
	if ok || log == "" {
		t.Errorf("CompileShader() = %v, %q, want false with a log", ok, log)
	}

	p, err := c.CreateProgram()
	if err != nil {
		t.Fatal(err)
	}
	if ok, log := c.LinkProgram(p, s, s); ok || !strings.Contains(log, "shader") {
		t.Errorf("LinkProgram() = %v, %q, want failure naming the shaders", ok, log)
	}
}

func TestDrawCachesPipelines(t *testing.T) {
	c := newTestContext(t, 16, 16)
	p := setupTriangle(t, c)

	c.DrawArrays(gputypes.PrimitiveTopologyTriangleList, 0, 3)
	c.DrawArrays(gputypes.PrimitiveTopologyTriangleList, 0, 3)
	if got := c.Pipelines(p); got != 1 {
		t.Errorf("Pipelines() after two draws = %d, want 1", got)
	}
	c.Enable(gldraw.DepthTest)
	c.DrawArrays(gputypes.PrimitiveTopologyTriangleList, 0, 3)
	if got := c.Pipelines(p); got != 2 {
		t.Errorf("Pipelines() with depth test = %d, want 2", got)
	}
	if err := c.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	st := c.Stats()
	if st.DrawCalls != 3 || st.Submits != 3 || st.Pipelines != 2 {
		t.Errorf("Stats() = %+v, want 3 draws, 3 submits, 2 pipelines", st)
	}

	c.DeleteProgram(p)
	if got := c.Pipelines(p); got != 0 {
		t.Errorf("Pipelines() after delete = %d, want 0", got)
	}
}

func TestDrawErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, c *Context)
		draw  func(c *Context)
		want  error
	}{
		{
			name:  "no program",
			setup: func(*testing.T, *Context) {},
			draw:  func(c *Context) { c.DrawArrays(gputypes.PrimitiveTopologyTriangleList, 0, 3) },
			want:  ErrInvalidOperation,
		},
		{
			name:  "line topology",
			setup: func(*testing.T, *Context) {},
			draw:  func(c *Context) { c.DrawArrays(gputypes.PrimitiveTopologyLineList, 0, 2) },
			want:  ErrInvalidEnum,
		},
		{
			name:  "negative count",
			setup: func(*testing.T, *Context) {},
			draw:  func(c *Context) { c.DrawArrays(gputypes.PrimitiveTopologyTriangleList, 0, -3) },
			want:  ErrInvalidValue,
		},
		{
			name:  "too few vertices",
			setup: func(t *testing.T, c *Context) { setupTriangle(t, c) },
			draw:  func(c *Context) { c.DrawArrays(gputypes.PrimitiveTopologyTriangleList, 0, 6) },
			want:  ErrInvalidOperation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestContext(t, 8, 8)
			tt.setup(t, c)
			if err := c.Err(); err != nil {
				t.Fatalf("setup Err() = %v", err)
			}
			tt.draw(c)
			if err := c.Err(); !errors.Is(err, tt.want) {
				t.Errorf("Err() = %v, want %v", err, tt.want)
			}
			if got := c.Stats().Submits; got != 0 {
				t.Errorf("Submits = %d, want 0", got)
			}
		})
	}
}

func TestUniformKindMismatch(t *testing.T) {
	c := newTestContext(t, 8, 8)
	p := linkProgram(t, c, gldraw.TexturedShaders()[gldraw.WGSL])
	c.UseProgram(p)

	c.Uniform1i(c.UniformLocation(p, gldraw.UniformMatrix), 0)
	if err := c.Err(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("Uniform1i on a matrix: Err() = %v, want ErrInvalidOperation", err)
	}
	c.UniformMatrix4fv(c.UniformLocation(p, gldraw.UniformTexture), mgl32.Ident4())
	if err := c.Err(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("UniformMatrix4fv on a sampler: Err() = %v, want ErrInvalidOperation", err)
	}
	c.UniformMatrix4fv(-1, mgl32.Ident4())
	if err := c.Err(); err != nil {
		t.Errorf("UniformMatrix4fv(-1): Err() = %v, want nil", err)
	}
}

func TestTextureMipmaps(t *testing.T) {
	c := newTestContext(t, 8, 8)
	tex, err := c.CreateTexture()
	if err != nil {
		t.Fatal(err)
	}
	c.ActiveTexture(0)
	c.BindTexture(tex)
	c.TexImage2D(image.NewRGBA(image.Rect(0, 0, 8, 4)))
	if got := c.TextureLevels(tex); got != 1 {
		t.Errorf("TextureLevels() after upload = %d, want 1", got)
	}
	c.GenerateMipmap()
	if got := c.TextureLevels(tex); got != 4 {
		t.Errorf("TextureLevels() after GenerateMipmap = %d, want 4", got)
	}
	if err := c.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}

	c.DeleteTexture(tex)
	c.GenerateMipmap()
	if err := c.Err(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("GenerateMipmap after delete: Err() = %v, want ErrInvalidOperation", err)
	}
}

func TestDrawablesOnDevice(t *testing.T) {
	c := newTestContext(t, 32, 32)
	cube, err := gldraw.Cube(gldraw.RandomFaceColors(1))
	if err != nil {
		t.Fatal(err)
	}
	red := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(red.Pix); i += 4 {
		red.Pix[i], red.Pix[i+3] = 255, 255
	}
	variants := []gldraw.Variant{
		gldraw.Triangle(),
		cube,
		gldraw.TexturedQuad(gldraw.NewTexture("red", red), 1),
	}

	var drawables []*gldraw.Drawable
	for _, v := range variants {
		d, err := gldraw.NewDrawable(c, v, gldraw.WithRotations())
		if err != nil {
			t.Fatalf("NewDrawable: %v", err)
		}
		if err := d.Initialize(); err != nil {
			t.Fatalf("Initialize: %v", err)
		}
		drawables = append(drawables, d)
	}
	c.Clear(color.RGBA{A: 255})
	for frame := range 3 {
		for _, d := range drawables {
			if err := d.Draw(frame); err != nil {
				t.Fatalf("Draw(%d): %v", frame, err)
			}
		}
	}
	if err := c.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if got := c.Stats().DrawCalls; got != 9 {
		t.Errorf("DrawCalls = %d, want 9", got)
	}
	if got := c.Stats().TextureUploads; got != 1 {
		t.Errorf("TextureUploads = %d, want 1", got)
	}

	for _, d := range drawables {
		d.Release()
	}
	if got := c.Live(); got != 0 {
		t.Errorf("Live() after release = %d, want 0", got)
	}
}

// TestUnboundSamplerDraws tests that a textured draw with no texture
// storage samples a placeholder instead of failing.
func TestUnboundSamplerDraws(t *testing.T) {
	c := newTestContext(t, 8, 8)
	p := linkProgram(t, c, gldraw.TexturedShaders()[gldraw.WGSL])
	vao, err := c.CreateVertexArray()
	if err != nil {
		t.Fatal(err)
	}
	c.BindVertexArray(vao)
	attrs := []struct {
		name   string
		data   []float32
		format gputypes.VertexFormat
	}{
		{"position", []float32{-1, -1, 0, 3, -1, 0, -1, 3, 0}, gputypes.VertexFormatFloat32x3},
		{"uv", []float32{0, 0, 2, 0, 0, 2}, gputypes.VertexFormatFloat32x2},
	}
	for _, a := range attrs {
		b, err := c.CreateBuffer()
		if err != nil {
			t.Fatal(err)
		}
		c.BindBuffer(b)
		c.BufferData(a.data, gputypes.BufferUsageVertex)
		loc := c.AttribLocation(p, a.name)
		c.VertexAttribPointer(loc, a.format)
		c.EnableVertexAttribArray(loc)
	}
	c.UseProgram(p)
	c.DrawArrays(gputypes.PrimitiveTopologyTriangleList, 0, 3)
	if err := c.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if c.incomplete == nil {
		t.Error("no placeholder texture was created")
	}
	if got := c.Stats().Submits; got != 1 {
		t.Errorf("Submits = %d, want 1", got)
	}
}

func TestReadPixels(t *testing.T) {
	c := newTestContext(t, 12, 5)
	c.Clear(color.RGBA{R: 10, G: 20, B: 30, A: 255})
	img, err := c.ReadPixels()
	if err != nil {
		t.Fatalf("ReadPixels: %v", err)
	}
	if img.Rect != image.Rect(0, 0, 12, 5) {
		t.Errorf("ReadPixels() bounds = %v, want 12x5", img.Rect)
	}
	if got := c.Stats().Submits; got != 2 {
		t.Errorf("Submits = %d, want 2", got)
	}
}

func TestCloseLosesContext(t *testing.T) {
	c := newTestContext(t, 8, 8)
	setupTriangle(t, c)
	c.Close()

	if !c.IsLost() {
		t.Error("IsLost() = false after Close")
	}
	if got := c.Live(); got != 0 {
		t.Errorf("Live() after Close = %d, want 0", got)
	}
	var cu *gldraw.ContextUnavailableError
	if _, err := c.CreateBuffer(); !errors.As(err, &cu) {
		t.Errorf("CreateBuffer after Close error = %v, want ContextUnavailableError", err)
	}
	if _, err := c.ReadPixels(); !errors.As(err, &cu) {
		t.Errorf("ReadPixels after Close error = %v, want ContextUnavailableError", err)
	}
	c.Close()
}

// fakeDevice implements gpucontext.Device for testing.
type fakeDevice struct{}

func (fakeDevice) Poll(bool) {}
func (fakeDevice) Destroy()  {}

// fakeProvider implements gpucontext.DeviceProvider and exposes HAL objects.
type fakeProvider struct {
	device hal.Device
	queue  hal.Queue
	format gputypes.TextureFormat
}

func (p *fakeProvider) Device() gpucontext.Device             { return fakeDevice{} }
func (p *fakeProvider) Queue() gpucontext.Queue               { return struct{}{} }
func (p *fakeProvider) Adapter() gpucontext.Adapter           { return struct{}{} }
func (p *fakeProvider) SurfaceFormat() gputypes.TextureFormat { return p.format }
func (p *fakeProvider) HalDevice() any                        { return p.device }
func (p *fakeProvider) HalQueue() any                         { return p.queue }

// plainProvider has no HAL accessors.
type plainProvider struct{}

func (plainProvider) Device() gpucontext.Device             { return fakeDevice{} }
func (plainProvider) Queue() gpucontext.Queue               { return struct{}{} }
func (plainProvider) Adapter() gpucontext.Adapter           { return struct{}{} }
func (plainProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatUndefined }

func TestNewFromProvider(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	tests := []struct {
		name    string
		surface gputypes.TextureFormat
		want    gputypes.TextureFormat
	}{
		{"bgra surface", gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8Unorm},
		{"rgba surface", gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8Unorm},
		{"undefined surface", gputypes.TextureFormatUndefined, gputypes.TextureFormatRGBA8Unorm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewFromProvider(&fakeProvider{device: device, queue: queue, format: tt.surface}, 8, 8)
			if err != nil {
				t.Fatalf("NewFromProvider: %v", err)
			}
			defer c.Close()
			if c.Format() != tt.want {
				t.Errorf("Format() = %v, want %v", c.Format(), tt.want)
			}
		})
	}

	var cu *gldraw.ContextUnavailableError
	if _, err := NewFromProvider(nil, 8, 8); !errors.As(err, &cu) {
		t.Errorf("NewFromProvider(nil) error = %v, want ContextUnavailableError", err)
	}
	if _, err := NewFromProvider(plainProvider{}, 8, 8); !errors.As(err, &cu) {
		t.Errorf("NewFromProvider(no HAL) error = %v, want ContextUnavailableError", err)
	}
}

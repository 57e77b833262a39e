// Command gldemo draws a scene of spinning gldraw shapes.
//
// With an OpenGL 4.1 display it opens a window; with -headless, or when no
// window can be opened, it renders a fixed number of frames offscreen and
// writes the last one to a PNG file. Offscreen rendering uses the software
// rasterizer, or a Vulkan device with -offscreen wgpu.
package main

import (
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"log/slog"
	"os"
	"runtime"

	"github.com/gogpu/gldraw"
	"github.com/gogpu/gldraw/backend"
	"github.com/gogpu/gldraw/backend/opengl"
	"github.com/gogpu/gldraw/backend/soft"
	"github.com/gogpu/gldraw/backend/wgpu"
)

//go:embed scenes/default.yaml
var defaultScene []byte

func init() {
	// GLFW and OpenGL calls must come from the main thread.
	runtime.LockOSThread()
}

func main() {
	var (
		scenePath = flag.String("scene", "", "scene YAML file (default: built-in cube, triangle and checker quad)")
		headless  = flag.Bool("headless", false, "render in software without a window")
		frames    = flag.Int("frames", 120, "frames to render headless; 0 runs the window until closed")
		output    = flag.String("output", "gldemo.png", "PNG written by headless rendering")
		width     = flag.Int("width", 0, "surface width (default from scene)")
		height    = flag.Int("height", 0, "surface height (default from scene)")
		workers   = flag.Int("workers", runtime.GOMAXPROCS(0), "software rasterizer goroutines")
		offscreen = flag.String("offscreen", backend.BackendSoft, "offscreen renderer: soft or wgpu")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		gldraw.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	scene, err := loadScene(*scenePath)
	if err != nil {
		log.Fatalf("Failed to load scene: %v", err)
	}
	if *width > 0 {
		scene.Width = *width
	}
	if *height > 0 {
		scene.Height = *height
	}
	scene.ProvideTexture(checkerTexture, gldraw.NewTexture("checker", checkerboard(64, 8)))

	if !*headless {
		err := runWindow(scene, *frames)
		var cu *gldraw.ContextUnavailableError
		if !errors.As(err, &cu) {
			if err != nil {
				log.Fatal(err)
			}
			return
		}
		log.Printf("No OpenGL window (%v), rendering headless", err)
	}
	if *frames <= 0 {
		*frames = 1
	}
	if err := runHeadless(scene, *offscreen, *frames, *workers, *output); err != nil {
		log.Fatal(err)
	}
}

// checkerTexture names the generated texture quads can use without a file.
const checkerTexture = "checker.png"

func checkerboard(size, cell int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			c := color.RGBA{R: 230, G: 230, B: 230, A: 255}
			if (x/cell+y/cell)%2 == 1 {
				c = color.RGBA{R: 200, G: 60, B: 40, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func loadScene(path string) (*gldraw.Scene, error) {
	if path == "" {
		return gldraw.ParseScene(defaultScene)
	}
	return gldraw.LoadScene(path)
}

func runWindow(scene *gldraw.Scene, frames int) error {
	ctx, err := backend.Open(backend.BackendGL, backend.Config{
		Width:  scene.Width,
		Height: scene.Height,
		Title:  "gldraw demo",
	})
	if err != nil {
		return err
	}
	win := ctx.(*opengl.Context)
	defer win.Close()
	gldraw.PropagateLogger(ctx, gldraw.Logger())

	drawables, err := buildScene(scene, ctx)
	if err != nil {
		return err
	}
	defer release(drawables)

	bg := scene.Background
	for frame := 0; !win.ShouldClose(); frame++ {
		if frames > 0 && frame >= frames {
			break
		}
		win.Clear(bg[0], bg[1], bg[2], bg[3])
		if err := drawAll(drawables, frame); err != nil {
			return err
		}
		win.Present()
	}
	return nil
}

// offscreenContext is a context that renders without a window.
type offscreenContext interface {
	gldraw.Context
	Clear(c color.RGBA)
	Close()
}

func openOffscreen(name string, width, height, workers int) (offscreenContext, func() (image.Image, error), error) {
	switch name {
	case backend.BackendSoft:
		ctx := soft.New(width, height)
		ctx.SetWorkers(workers)
		snapshot := func() (image.Image, error) {
			if err := ctx.Err(); err != nil {
				log.Printf("Software context reported: %v", err)
			}
			return ctx.Framebuffer().ToImage(), nil
		}
		return ctx, snapshot, nil
	case backend.BackendWGPU:
		ctx, err := wgpu.Open(width, height)
		if err != nil {
			return nil, nil, err
		}
		snapshot := func() (image.Image, error) {
			if err := ctx.Err(); err != nil {
				log.Printf("WebGPU context reported: %v", err)
			}
			return ctx.ReadPixels()
		}
		return ctx, snapshot, nil
	default:
		return nil, nil, fmt.Errorf("unknown offscreen renderer %q", name)
	}
}

func runHeadless(scene *gldraw.Scene, offscreen string, frames, workers int, output string) error {
	ctx, snapshot, err := openOffscreen(offscreen, scene.Width, scene.Height, workers)
	if err != nil {
		return err
	}
	defer ctx.Close()
	gldraw.PropagateLogger(ctx, gldraw.Logger())

	drawables, err := buildScene(scene, ctx)
	if err != nil {
		return err
	}
	defer release(drawables)

	// Output should not depend on decode timing.
	for _, d := range drawables {
		if tex := d.Variant().Texture; tex != nil {
			if err := tex.Wait(context.Background()); err != nil {
				log.Printf("Texture %s: %v", tex.Name(), err)
			}
		}
	}

	bg := scene.Background
	bgColor := color.RGBA{R: to8(bg[0]), G: to8(bg[1]), B: to8(bg[2]), A: to8(bg[3])}
	for frame := range frames {
		ctx.Clear(bgColor)
		if err := drawAll(drawables, frame); err != nil {
			return err
		}
	}

	img, err := snapshot()
	if err != nil {
		return err
	}
	if err := savePNG(output, img); err != nil {
		return err
	}
	log.Printf("Frame %d saved to %s (%dx%d, %s)\n", frames-1, output, scene.Width, scene.Height, offscreen)
	return nil
}

func savePNG(path string, img image.Image) error {
	file, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// buildScene keeps the drawables that initialized and fails only when
// none did.
func buildScene(scene *gldraw.Scene, ctx gldraw.Context) ([]*gldraw.Drawable, error) {
	drawables, err := scene.Build(ctx)
	// Drawables hold their own texture references from here on.
	scene.Textures().Purge()
	if err != nil {
		if len(drawables) == 0 {
			return nil, err
		}
		log.Printf("Some drawables were skipped: %v", err)
	}
	return drawables, nil
}

func drawAll(drawables []*gldraw.Drawable, frame int) error {
	for _, d := range drawables {
		if err := d.Draw(frame); err != nil {
			return err
		}
	}
	return nil
}

func release(drawables []*gldraw.Drawable) {
	for _, d := range drawables {
		d.Release()
	}
}

func to8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}

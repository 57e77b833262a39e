package gldraw_test

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gldraw"
	"github.com/gogpu/gldraw/backend/soft"
)

func TestParseSceneDefaults(t *testing.T) {
	s, err := gldraw.ParseScene([]byte("drawables:\n  - kind: Triangle\n"))
	if err != nil {
		t.Fatalf("ParseScene: %v", err)
	}
	if s.Version != 1 || s.Width != gldraw.DefaultSceneWidth || s.Height != gldraw.DefaultSceneHeight {
		t.Errorf("version=%d size=%dx%d, want defaults", s.Version, s.Width, s.Height)
	}
	if s.Background != [4]float32{0, 0, 0, 1} {
		t.Errorf("Background = %v, want opaque black", s.Background)
	}
	if s.Drawables[0].Kind != gldraw.KindTriangle {
		t.Errorf("Kind = %q, want %q", s.Drawables[0].Kind, gldraw.KindTriangle)
	}
}

func TestParseSceneInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no drawables", "width: 10\n", "no drawables"},
		{"bad version", "version: 3\ndrawables: [{kind: cube}]\n", "version 3"},
		{"unknown kind", "drawables: [{kind: sphere}]\n", `unknown kind "sphere"`},
		{"quad without texture", "drawables: [{kind: quad}]\n", "needs a texture"},
		{"colors on triangle", "drawables: [{kind: triangle, colors: [[1, 0, 0]]}]\n", "cubes only"},
		{"wrong color count", "drawables: [{kind: cube, colors: [[1, 0, 0], [0, 1, 0]]}]\n", "6 or 36 colors"},
		{"bad axis", "drawables: [{kind: cube, rotations: [{axis: w, angle: 1}]}]\n", `unknown axis "w"`},
		{"frozen with rotations", "drawables: [{kind: cube, frozen: true, rotations: [{axis: x, angle: 1}]}]\n", "frozen"},
		{"not yaml", "drawables: [", "parse scene"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gldraw.ParseScene([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ParseScene() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestSceneVariantOverrides(t *testing.T) {
	s, err := gldraw.ParseScene([]byte(`
drawables:
  - kind: cube
    seed: 11
    translate: [1, 2, 3]
    rotations:
      - {axis: Y, angle: 0.5}
`))
	if err != nil {
		t.Fatal(err)
	}
	v, opts, err := s.Variant(s.Drawables[0])
	if err != nil {
		t.Fatalf("Variant: %v", err)
	}
	want, _ := gldraw.Cube(gldraw.RandomFaceColors(11))
	if got := v.Attributes[1].Data; !equalFloats(got, want.Attributes[1].Data) {
		t.Error("seeded cube colors differ from RandomFaceColors(11)")
	}

	d, err := gldraw.NewDrawable(soft.New(0, 0), v, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := d.Draw(0); err != nil {
		t.Fatal(err)
	}
	start := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.Scale3D(0.5, 0.5, 0.5))
	if got, want := d.Transform(), start.Mul4(mgl32.HomogRotate3DY(0.5)); !got.ApproxEqualThreshold(want, 1e-6) {
		t.Errorf("Transform() = %v, want %v", got, want)
	}
}

func TestLoadSceneAndBuild(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "crate.png"),
		encodePNG(t, image.NewRGBA(image.Rect(0, 0, 4, 4))), 0o600); err != nil {
		t.Fatal(err)
	}
	scene := `
width: 32
height: 16
background: [0.2, 0.2, 0.2, 1]
drawables:
  - kind: triangle
    frozen: true
  - kind: cube
  - kind: quad
    texture: crate.png
`
	path := filepath.Join(dir, "scene.yaml")
	if err := os.WriteFile(path, []byte(scene), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := gldraw.LoadScene(path)
	if err != nil {
		t.Fatalf("LoadScene: %v", err)
	}
	if got := s.Aspect(); got != 2 {
		t.Errorf("Aspect() = %v, want 2", got)
	}

	ctx := soft.New(s.Width, s.Height)
	drawables, err := s.Build(ctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(drawables) != 3 {
		t.Fatalf("len(drawables) = %d, want 3", len(drawables))
	}
	quad := drawables[2].Variant()
	if err := waitTexture(t, quad.Texture); err != nil {
		t.Fatalf("texture: %v", err)
	}
	for _, d := range drawables {
		if err := d.Draw(0); err != nil {
			t.Errorf("Draw %s: %v", d.Variant().Name, err)
		}
		d.Release()
	}
	if n := ctx.Live(); n != 0 {
		t.Errorf("Live() = %d after release, want 0", n)
	}
}

// TestSceneBuildSkipsFailures tests that one failing entry does not stop
// the others from being built.
func TestSceneBuildSkipsFailures(t *testing.T) {
	s, err := gldraw.ParseScene([]byte("drawables: [{kind: triangle}, {kind: cube}, {kind: triangle}]\n"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := soft.New(0, 0)
	s.Drawables[1].Kind = "sphere"

	drawables, err := s.Build(ctx)
	if err == nil || !strings.Contains(err.Error(), "scene drawable 1 (sphere)") {
		t.Fatalf("Build() error = %v, want failure of entry 1", err)
	}
	if len(drawables) != 2 {
		t.Fatalf("len(drawables) = %d, want 2", len(drawables))
	}
	for _, d := range drawables {
		if d.State() != gldraw.Initialized {
			t.Errorf("State() = %v, want Initialized", d.State())
		}
		d.Release()
	}
	if n := ctx.Live(); n != 0 {
		t.Errorf("Live() = %d after release, want 0", n)
	}
}

// TestSceneBuildReleasesFailedDrawable tests that entries failing on a lost
// context leave nothing allocated.
func TestSceneBuildReleasesFailedDrawable(t *testing.T) {
	s, err := gldraw.ParseScene([]byte("drawables: [{kind: cube}]\n"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := soft.New(0, 0)
	ctx.Lose()

	drawables, err := s.Build(ctx)
	var cu *gldraw.ContextUnavailableError
	if !errors.As(err, &cu) {
		t.Errorf("Build() error = %v, want ContextUnavailableError", err)
	}
	if len(drawables) != 0 {
		t.Errorf("len(drawables) = %d, want 0", len(drawables))
	}
	if n := ctx.Live(); n != 0 {
		t.Errorf("Live() = %d, want 0", n)
	}
}

func TestSceneProvideTexture(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.yaml")
	if err := os.WriteFile(path, []byte("drawables: [{kind: quad, texture: gen.png}]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := gldraw.LoadScene(path)
	if err != nil {
		t.Fatal(err)
	}
	gen := gldraw.NewTexture("gen", image.NewRGBA(image.Rect(0, 0, 2, 2)))
	s.ProvideTexture("gen.png", gen)

	v, _, err := s.Variant(s.Drawables[0])
	if err != nil {
		t.Fatalf("Variant: %v", err)
	}
	if v.Texture != gen {
		t.Errorf("Variant().Texture = %v, want the provided texture", v.Texture.Name())
	}
}

func TestSceneRetriesFailedTexture(t *testing.T) {
	s, err := gldraw.ParseScene([]byte("drawables: [{kind: quad, texture: " +
		filepath.Join(t.TempDir(), "missing.png") + "}]\n"))
	if err != nil {
		t.Fatal(err)
	}
	first, _, err := s.Variant(s.Drawables[0])
	if err != nil {
		t.Fatalf("Variant: %v", err)
	}
	if err := waitTexture(t, first.Texture); err == nil {
		t.Fatal("Wait() = nil for a missing file")
	}

	again, _, err := s.Variant(s.Drawables[0])
	if err != nil {
		t.Fatalf("Variant: %v", err)
	}
	if again.Texture == first.Texture {
		t.Error("Variant() reused a failed texture")
	}
	if n := s.Textures().Len(); n != 1 {
		t.Errorf("Textures().Len() = %d, want 1", n)
	}
}

func equalFloats(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

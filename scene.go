package gldraw

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// Scene defaults.
const (
	DefaultSceneWidth  = 640
	DefaultSceneHeight = 480
)

// Drawable kinds accepted in scene files.
const (
	KindTriangle = "triangle"
	KindCube     = "cube"
	KindQuad     = "quad"
)

// Scene describes a set of drawables and the surface they render to.
//
//	version: 1
//	width: 800
//	height: 600
//	background: [0.1, 0.1, 0.1, 1]
//	drawables:
//	  - kind: cube
//	    seed: 7
//	  - kind: quad
//	    texture: crate.png
//	    rotations:
//	      - {axis: y, angle: 0.02}
type Scene struct {
	Version    int              `yaml:"version"`
	Width      int              `yaml:"width"`
	Height     int              `yaml:"height"`
	Background [4]float32       `yaml:"background"`
	Drawables  []DrawableConfig `yaml:"drawables"`

	// dir resolves relative texture paths.
	dir      string
	textures *TextureCache
}

// DrawableConfig is one drawable in a Scene. Unset fields keep the
// defaults of the variant named by Kind.
type DrawableConfig struct {
	Kind      string           `yaml:"kind"`
	Translate *[3]float32      `yaml:"translate,omitempty"`
	Scale     *[3]float32      `yaml:"scale,omitempty"`
	Rotations []RotationConfig `yaml:"rotations,omitempty"`
	Frozen    bool             `yaml:"frozen,omitempty"`

	// Cube only: 6 face colors or 36 vertex colors, or a seed for
	// reproducible random face colors.
	Colors [][3]float32 `yaml:"colors,omitempty"`
	Seed   *uint64      `yaml:"seed,omitempty"`

	// Quad only.
	Texture string  `yaml:"texture,omitempty"`
	Aspect  float32 `yaml:"aspect,omitempty"`
}

// RotationConfig is a per-frame rotation in a scene file.
type RotationConfig struct {
	Axis  string  `yaml:"axis"`
	Angle float32 `yaml:"angle"`
}

func (s *Scene) normalize() {
	if s.Version == 0 {
		s.Version = 1
	}
	if s.Width == 0 {
		s.Width = DefaultSceneWidth
	}
	if s.Height == 0 {
		s.Height = DefaultSceneHeight
	}
	if s.Background == ([4]float32{}) {
		s.Background = [4]float32{0, 0, 0, 1}
	}
	for i := range s.Drawables {
		s.Drawables[i].Kind = strings.ToLower(strings.TrimSpace(s.Drawables[i].Kind))
	}
}

// LoadScene reads and validates a scene file. Relative texture paths are
// resolved against the file's directory.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return nil, fmt.Errorf("gldraw: read scene: %w", err)
	}
	s, err := ParseScene(data)
	if err != nil {
		return nil, fmt.Errorf("gldraw: %s: %w", path, err)
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

// ParseScene decodes and validates a YAML scene.
func ParseScene(data []byte) (*Scene, error) {
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate reports every problem in the scene at once.
func (s *Scene) Validate() error {
	var errs []error
	if s.Version != 1 {
		errs = append(errs, fmt.Errorf("unsupported scene version %d", s.Version))
	}
	if s.Width <= 0 || s.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid size %dx%d", s.Width, s.Height))
	}
	if len(s.Drawables) == 0 {
		errs = append(errs, errors.New("scene has no drawables"))
	}
	for i, d := range s.Drawables {
		if err := d.validate(); err != nil {
			errs = append(errs, fmt.Errorf("drawables[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (d DrawableConfig) validate() error {
	var errs []error
	switch d.Kind {
	case KindTriangle, KindCube, KindQuad:
	default:
		errs = append(errs, fmt.Errorf("unknown kind %q", d.Kind))
	}
	if d.Kind != KindCube && (len(d.Colors) > 0 || d.Seed != nil) {
		errs = append(errs, errors.New("colors and seed apply to cubes only"))
	}
	if d.Kind == KindCube && len(d.Colors) != 0 && len(d.Colors) != 6 && len(d.Colors) != CubeVertices {
		errs = append(errs, fmt.Errorf("cube needs 6 or %d colors, got %d", CubeVertices, len(d.Colors)))
	}
	if d.Kind == KindQuad && d.Texture == "" {
		errs = append(errs, errors.New("quad needs a texture"))
	}
	if d.Kind != KindQuad && d.Texture != "" {
		errs = append(errs, errors.New("texture applies to quads only"))
	}
	if d.Frozen && len(d.Rotations) > 0 {
		errs = append(errs, errors.New("frozen drawable cannot have rotations"))
	}
	for i, r := range d.Rotations {
		if _, err := ParseAxis(r.Axis); err != nil {
			errs = append(errs, fmt.Errorf("rotations[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// ParseAxis parses "x", "y" or "z", in either case.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	case "z":
		return AxisZ, nil
	default:
		return 0, fmt.Errorf("unknown axis %q", s)
	}
}

// Aspect returns the surface width over height.
func (s *Scene) Aspect() float32 {
	if s.Height == 0 {
		return 1
	}
	return float32(s.Width) / float32(s.Height)
}

// Textures returns the cache quads load their textures through. Quads
// naming the same file share one Texture.
func (s *Scene) Textures() *TextureCache {
	if s.textures == nil {
		s.textures = NewTextureCache(0)
	}
	return s.textures
}

// SetTextures makes the scene load through tc, for sharing textures
// between scenes.
func (s *Scene) SetTextures(tc *TextureCache) { s.textures = tc }

// ProvideTexture makes quads naming path use tex instead of reading the
// file. Relative paths resolve like the scene's texture entries.
func (s *Scene) ProvideTexture(path string, tex *Texture) {
	s.Textures().Add(s.texturePath(path), tex)
}

func (s *Scene) texturePath(path string) string {
	if !filepath.IsAbs(path) && s.dir != "" {
		return filepath.Join(s.dir, path)
	}
	return path
}

// Variant builds the variant and drawable options for d. Textures start
// loading here.
func (s *Scene) Variant(d DrawableConfig) (Variant, []Option, error) {
	var v Variant
	switch d.Kind {
	case KindTriangle:
		v = Triangle()
	case KindCube:
		colors := make([]mgl32.Vec3, len(d.Colors))
		for i, c := range d.Colors {
			colors[i] = mgl32.Vec3(c)
		}
		switch {
		case len(colors) > 0:
		case d.Seed != nil:
			colors = RandomFaceColors(*d.Seed)
		default:
			colors = nil
		}
		var err error
		if v, err = Cube(colors); err != nil {
			return Variant{}, nil, err
		}
	case KindQuad:
		path := s.texturePath(d.Texture)
		tc := s.Textures()
		// A failed decode stays cached until a later build retries it.
		if tex, ok := tc.Lookup(path); ok && tex.State() == TextureFailed {
			tc.Forget(path)
		}
		aspect := d.Aspect
		if aspect <= 0 {
			aspect = s.Aspect()
		}
		v = TexturedQuad(tc.Load(path), aspect)
	default:
		return Variant{}, nil, fmt.Errorf("gldraw: unknown kind %q", d.Kind)
	}

	var opts []Option
	if d.Translate != nil || d.Scale != nil {
		a := v.Animator
		if d.Translate != nil {
			a.Translate = mgl32.Vec3(*d.Translate)
		}
		if d.Scale != nil {
			a.Scale = mgl32.Vec3(*d.Scale)
		}
		opts = append(opts, WithAnimator(a))
	}
	switch {
	case d.Frozen:
		opts = append(opts, WithRotations())
	case len(d.Rotations) > 0:
		rs := make([]Rotation, 0, len(d.Rotations))
		for _, r := range d.Rotations {
			axis, err := ParseAxis(r.Axis)
			if err != nil {
				return Variant{}, nil, err
			}
			rs = append(rs, Rotation{Axis: axis, Angle: r.Angle})
		}
		opts = append(opts, WithRotations(rs...))
	}
	return v, opts, nil
}

// Build creates and initializes a drawable for every entry, in order.
// A failing entry is released and skipped; the others are still built.
// The returned error joins every failure, each naming its entry, and the
// returned drawables are the ones that initialized.
func (s *Scene) Build(ctx Context, opts ...Option) ([]*Drawable, error) {
	drawables := make([]*Drawable, 0, len(s.Drawables))
	var errs []error
	for i, cfg := range s.Drawables {
		d, err := s.build(ctx, cfg, opts)
		if err != nil {
			Logger().Warn("gldraw: scene drawable skipped", "index", i, "kind", cfg.Kind, "err", err)
			errs = append(errs, fmt.Errorf("gldraw: scene drawable %d (%s): %w", i, cfg.Kind, err))
			continue
		}
		drawables = append(drawables, d)
	}
	Logger().Info("gldraw: scene built", "drawables", len(drawables), "failed", len(errs))
	return drawables, errors.Join(errs...)
}

func (s *Scene) build(ctx Context, cfg DrawableConfig, opts []Option) (*Drawable, error) {
	v, vopts, err := s.Variant(cfg)
	if err != nil {
		return nil, err
	}
	d, err := NewDrawable(ctx, v, append(append([]Option(nil), opts...), vopts...)...)
	if err != nil {
		return nil, err
	}
	if err := d.Initialize(); err != nil {
		d.Release()
		return nil, err
	}
	return d, nil
}

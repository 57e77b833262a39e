package gldraw

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"os"
	"sync/atomic"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// TextureState is the decode state of a Texture.
type TextureState int32

const (
	// TexturePending means the image is still being decoded.
	TexturePending TextureState = iota
	// TextureReady means the image decoded and can be uploaded.
	TextureReady
	// TextureFailed means decoding failed; Err returns the cause.
	TextureFailed
)

// String returns the string representation of TextureState.
func (s TextureState) String() string {
	switch s {
	case TexturePending:
		return "Pending"
	case TextureReady:
		return "Ready"
	case TextureFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Texture is an RGBA8 image that becomes available asynchronously.
//
// Decoding runs on its own goroutine and never touches a Context. Once
// Ready reports true, the owning drawable uploads the pixels (and builds
// mipmaps) on the context's goroutine during its next Draw. Until then
// sampling reads whatever the context holds for an empty texture.
type Texture struct {
	name  string
	state atomic.Int32
	done  chan struct{}

	// Written once before done is closed.
	img *image.RGBA
	err error

	// Owner goroutine only.
	ctx      Context
	id       TextureID
	refs     int
	uploaded bool
	warned   bool
}

func newTexture(name string) *Texture {
	return &Texture{name: name, done: make(chan struct{})}
}

// LoadTexture starts decoding the image file at path.
func LoadTexture(path string) *Texture {
	t := newTexture(path)
	go func() {
		f, err := os.Open(path) //nolint:gosec // path is user-provided intentionally
		if err != nil {
			t.finish(nil, err)
			return
		}
		defer func() {
			_ = f.Close()
		}()
		t.finish(decodeRGBA(f))
	}()
	return t
}

// DecodeTexture starts decoding an image from r. Any format registered
// with package image is accepted: PNG, JPEG, GIF, BMP, TIFF and WebP are
// linked in.
func DecodeTexture(name string, r io.Reader) *Texture {
	t := newTexture(name)
	go func() {
		t.finish(decodeRGBA(r))
	}()
	return t
}

// NewTexture returns a texture that is ready immediately.
func NewTexture(name string, img image.Image) *Texture {
	t := newTexture(name)
	t.finish(toRGBA(img), nil)
	return t
}

func decodeRGBA(r io.Reader) (*image.RGBA, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	return toRGBA(img), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Copy(dst, image.Point{}, img, b, xdraw.Src, nil)
	return dst
}

func (t *Texture) finish(img *image.RGBA, err error) {
	if err != nil {
		t.err = fmt.Errorf("gldraw: texture %q: %w", t.name, err)
		t.state.Store(int32(TextureFailed))
		Logger().Warn("gldraw: texture decode failed", "name", t.name, "err", err)
	} else {
		t.img = img
		t.state.Store(int32(TextureReady))
		Logger().Info("gldraw: texture ready", "name", t.name,
			"width", img.Rect.Dx(), "height", img.Rect.Dy())
	}
	close(t.done)
}

// Name returns the path or name the texture was created with.
func (t *Texture) Name() string { return t.name }

// State returns the current decode state.
func (t *Texture) State() TextureState { return TextureState(t.state.Load()) }

// Ready reports whether the image decoded successfully.
func (t *Texture) Ready() bool { return t.State() == TextureReady }

// Done returns a channel closed when decoding finishes, successfully or not.
func (t *Texture) Done() <-chan struct{} { return t.done }

// Err returns the decode error, or nil.
func (t *Texture) Err() error {
	if t.State() != TextureFailed {
		return nil
	}
	return t.err
}

// Wait blocks until decoding finishes or ctx is done.
func (t *Texture) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Image returns the decoded pixels.
func (t *Texture) Image() (*image.RGBA, error) {
	switch t.State() {
	case TextureReady:
		return t.img, nil
	case TextureFailed:
		return nil, t.err
	default:
		return nil, ErrTextureNotReady
	}
}

// Uploaded reports whether the pixels have reached the GPU.
func (t *Texture) Uploaded() bool { return t.uploaded }

// attach creates the GPU texture object on first use.
func (t *Texture) attach(ctx Context) error {
	if t.id != 0 {
		if t.ctx != ctx {
			return fmt.Errorf("gldraw: texture %q is attached to another context", t.name)
		}
		t.refs++
		return nil
	}
	id, err := ctx.CreateTexture()
	if err != nil {
		return fmt.Errorf("gldraw: create texture %q: %w", t.name, err)
	}
	t.ctx = ctx
	t.id = id
	t.refs = 1
	return nil
}

// bind makes the texture current on unit and uploads decoded pixels the
// first time they are available.
func (t *Texture) bind(unit int) {
	t.ctx.ActiveTexture(unit)
	t.ctx.BindTexture(t.id)
	if t.uploaded {
		return
	}
	switch t.State() {
	case TextureReady:
		t.ctx.TexImage2D(t.img)
		t.ctx.GenerateMipmap()
		t.uploaded = true
		Logger().Debug("gldraw: texture uploaded", "name", t.name, "id", t.id)
	case TextureFailed:
		if !t.warned {
			t.warned = true
			Logger().Warn("gldraw: drawing with failed texture", "name", t.name, "err", t.err)
		}
	}
}

// detach drops one reference and deletes the GPU object with the last one.
func (t *Texture) detach() {
	if t.id == 0 {
		return
	}
	t.refs--
	if t.refs > 0 {
		return
	}
	t.ctx.DeleteTexture(t.id)
	t.id = 0
	t.ctx = nil
	t.uploaded = false
}

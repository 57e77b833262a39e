package wgpu

import (
	"fmt"
	"image"

	"github.com/gogpu/gldraw"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	xdraw "golang.org/x/image/draw"
)

// CreateTexture implements gldraw.Context.
func (c *Context) CreateTexture() (gldraw.TextureID, error) {
	id, err := c.newID()
	if err != nil {
		return 0, err
	}
	t := gldraw.TextureID(id)
	c.textures[t] = &textureObject{}
	c.stats.Textures++
	return t, nil
}

// ActiveTexture implements gldraw.Context.
func (c *Context) ActiveTexture(unit int) {
	if unit < 0 || unit >= maxTextureUnits {
		c.fail(ErrInvalidEnum, "texture unit %d", unit)
		return
	}
	c.activeUnit = unit
}

// BindTexture implements gldraw.Context.
func (c *Context) BindTexture(t gldraw.TextureID) {
	if _, ok := c.textures[t]; !ok && t != 0 {
		c.fail(ErrInvalidValue, "bind unknown texture %d", t)
		return
	}
	c.units[c.activeUnit] = t
}

// TexImage2D implements gldraw.Context.
func (c *Context) TexImage2D(img *image.RGBA) {
	tex, ok := c.textures[c.units[c.activeUnit]]
	if !ok {
		c.fail(ErrInvalidOperation, "texture upload with no texture bound")
		return
	}
	if img == nil || img.Rect.Empty() {
		c.fail(ErrInvalidValue, "empty texture image")
		return
	}
	level := image.NewRGBA(image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy()))
	for y := range level.Rect.Dy() {
		src := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		copy(level.Pix[y*level.Stride:y*level.Stride+level.Rect.Dx()*4], img.Pix[src:src+level.Rect.Dx()*4])
	}
	if err := c.uploadLevels(tex, []*image.RGBA{level}); err != nil {
		c.fail(ErrInvalidOperation, "texture upload: %v", err)
		return
	}
	c.stats.TextureUploads++
}

// GenerateMipmap implements gldraw.Context. Levels are filtered on the
// CPU and the device texture is recreated with the full chain.
func (c *Context) GenerateMipmap() {
	tex, ok := c.textures[c.units[c.activeUnit]]
	if !ok || len(tex.levels) == 0 {
		c.fail(ErrInvalidOperation, "generate mipmap on empty texture")
		return
	}
	if err := c.uploadLevels(tex, mipChain(tex.levels[0])); err != nil {
		c.fail(ErrInvalidOperation, "generate mipmap: %v", err)
	}
}

// DeleteTexture implements gldraw.Context.
func (c *Context) DeleteTexture(t gldraw.TextureID) {
	tex, ok := c.textures[t]
	if !ok {
		return
	}
	c.destroyTexture(tex)
	delete(c.textures, t)
	for i := range c.units {
		if c.units[i] == t {
			c.units[i] = 0
		}
	}
}

// TextureLevels returns the number of mip levels stored for t.
func (c *Context) TextureLevels(t gldraw.TextureID) int {
	tex, ok := c.textures[t]
	if !ok {
		return 0
	}
	return len(tex.levels)
}

func (c *Context) destroyTexture(tex *textureObject) {
	if tex.view != nil {
		c.device.DestroyTextureView(tex.view)
		tex.view = nil
	}
	if tex.tex != nil {
		c.device.DestroyTexture(tex.tex)
		tex.tex = nil
	}
}

// uploadLevels replaces the device texture with one holding levels.
func (c *Context) uploadLevels(tex *textureObject, levels []*image.RGBA) error {
	c.destroyTexture(tex)
	base := levels[0].Rect
	w, h := uint32(base.Dx()), uint32(base.Dy()) //nolint:gosec // image sizes are positive
	count := uint32(len(levels))                 //nolint:gosec // mip chains are short
	ht, err := c.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "gldraw_texture",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: count,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create texture: %w", err)
	}
	view, err := c.device.CreateTextureView(ht, &hal.TextureViewDescriptor{
		Label:         "gldraw_texture_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: count,
	})
	if err != nil {
		c.device.DestroyTexture(ht)
		return fmt.Errorf("create texture view: %w", err)
	}
	for i, lv := range levels {
		lw, lh := uint32(lv.Rect.Dx()), uint32(lv.Rect.Dy()) //nolint:gosec // image sizes are positive
		c.queue.WriteTexture(
			&hal.ImageCopyTexture{Texture: ht, MipLevel: uint32(i)}, //nolint:gosec // mip index is small
			lv.Pix,
			&hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(lv.Stride), RowsPerImage: lh}, //nolint:gosec // stride fits
			&hal.Extent3D{Width: lw, Height: lh, DepthOrArrayLayers: 1},
		)
	}
	tex.tex, tex.view, tex.levels = ht, view, levels
	return nil
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

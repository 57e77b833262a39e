package wgpu

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

const (
	depthFormat = gputypes.TextureFormatDepth24PlusStencil8

	// copyPitchAlignment is the row alignment texture-to-buffer copies need.
	copyPitchAlignment = 256

	fenceTimeout = 5 * time.Second
)

// renderTarget is the single-sample color and depth pair every pass
// draws into.
type renderTarget struct {
	width, height uint32
	format        gputypes.TextureFormat

	colorTex  hal.Texture
	colorView hal.TextureView
	depthTex  hal.Texture
	depthView hal.TextureView
}

func newRenderTarget(device hal.Device, w, h uint32, format gputypes.TextureFormat) (*renderTarget, error) {
	rt := &renderTarget{width: w, height: h, format: format}
	size := hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}

	colorTex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "gldraw_color",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create color texture: %w", err)
	}
	rt.colorTex = colorTex

	colorView, err := device.CreateTextureView(colorTex, &hal.TextureViewDescriptor{
		Label: "gldraw_color_view",
	})
	if err != nil {
		rt.destroy(device)
		return nil, fmt.Errorf("create color view: %w", err)
	}
	rt.colorView = colorView

	depthTex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "gldraw_depth",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        depthFormat,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		rt.destroy(device)
		return nil, fmt.Errorf("create depth texture: %w", err)
	}
	rt.depthTex = depthTex

	depthView, err := device.CreateTextureView(depthTex, &hal.TextureViewDescriptor{
		Label: "gldraw_depth_view",
	})
	if err != nil {
		rt.destroy(device)
		return nil, fmt.Errorf("create depth view: %w", err)
	}
	rt.depthView = depthView
	return rt, nil
}

func (rt *renderTarget) destroy(device hal.Device) {
	if rt.depthView != nil {
		device.DestroyTextureView(rt.depthView)
		rt.depthView = nil
	}
	if rt.depthTex != nil {
		device.DestroyTexture(rt.depthTex)
		rt.depthTex = nil
	}
	if rt.colorView != nil {
		device.DestroyTextureView(rt.colorView)
		rt.colorView = nil
	}
	if rt.colorTex != nil {
		device.DestroyTexture(rt.colorTex)
		rt.colorTex = nil
	}
}

// passDescriptor loads the previous contents unless clear is set, in which
// case color is cleared to col and depth to 1.
func (rt *renderTarget) passDescriptor(label string, clear bool, col gputypes.Color) *hal.RenderPassDescriptor {
	load := gputypes.LoadOpLoad
	if clear {
		load = gputypes.LoadOpClear
	}
	return &hal.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       rt.colorView,
			LoadOp:     load,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: col,
		}},
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:              rt.depthView,
			DepthLoadOp:       load,
			DepthStoreOp:      gputypes.StoreOpStore,
			DepthClearValue:   1.0,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpDiscard,
			StencilClearValue: 0,
		},
	}
}

// clear runs an empty pass that clears both attachments.
func (rt *renderTarget) clear(device hal.Device, queue hal.Queue, col color.RGBA) error {
	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "gldraw_clear"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("gldraw_clear"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	rp := encoder.BeginRenderPass(rt.passDescriptor("gldraw_clear_pass", true, gputypes.Color{
		R: float64(col.R) / 255,
		G: float64(col.G) / 255,
		B: float64(col.B) / 255,
		A: float64(col.A) / 255,
	}))
	rp.End()
	return submit(device, queue, encoder)
}

// read copies the color target to a staging buffer and returns it as RGBA.
func (rt *renderTarget) read(device hal.Device, queue hal.Queue) (*image.RGBA, error) {
	w, h := rt.width, rt.height
	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gldraw_readback",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer device.DestroyBuffer(staging)

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "gldraw_readback"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("gldraw_readback"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	// No-op on Metal, GLES, software and noop backends.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: rt.colorTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(rt.colorTex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: rt.colorTex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: rt.colorTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})
	if err := submit(device, queue, encoder); err != nil {
		return nil, err
	}

	readback := make([]byte, stagingSize)
	if err := queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	for y := range int(h) {
		src := readback[y*int(alignedBytesPerRow) : y*int(alignedBytesPerRow)+int(bytesPerRow)]
		copy(img.Pix[y*img.Stride:], src)
	}
	if rt.format == gputypes.TextureFormatBGRA8Unorm {
		swapRedBlue(img.Pix)
	}
	return img, nil
}

// submit finishes encoder, submits it and waits for the GPU.
func submit(device hal.Device, queue hal.Queue, encoder hal.CommandEncoder) error {
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	fence, err := device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer device.DestroyFence(fence)

	if err := queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	ok, err := device.Wait(fence, 1, fenceTimeout)
	if err != nil || !ok {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", ok, err)
	}
	return nil
}

func swapRedBlue(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}

// floatBytes encodes data as little-endian float32s.
func floatBytes(data []float32) []byte {
	buf := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

package wgpu

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/gogpu/gldraw/internal/shader"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// vertexStream is one attribute fed from its own vertex buffer slot.
type vertexStream struct {
	buf    hal.Buffer
	layout gputypes.VertexBufferLayout
}

// DrawArrays implements gldraw.Context. It records and submits one render
// pass that loads the current target contents.
func (c *Context) DrawArrays(topology gputypes.PrimitiveTopology, first, count int) {
	if topology != gputypes.PrimitiveTopologyTriangleList {
		c.fail(ErrInvalidEnum, "topology %s", topology)
		return
	}
	if first < 0 || count < 0 {
		c.fail(ErrInvalidValue, "draw range %d+%d", first, count)
		return
	}
	prog := c.currentProgram()
	if prog == nil {
		c.fail(ErrInvalidOperation, "draw with no program in use")
		return
	}
	va, ok := c.arrays[c.boundArray]
	if !ok {
		c.fail(ErrInvalidOperation, "draw with no vertex array bound")
		return
	}
	streams, key, err := c.vertexStreams(prog, va, first+count)
	if err != nil {
		c.fail(ErrInvalidOperation, "%v", err)
		return
	}
	c.stats.DrawCalls++
	if count == 0 {
		return
	}

	buffers := make([]gputypes.VertexBufferLayout, len(streams))
	for i := range streams {
		buffers[i] = streams[i].layout
	}
	pl, err := c.pipeline(prog, key, buffers)
	if err != nil {
		c.fail(ErrInvalidOperation, "create pipeline: %v", err)
		return
	}
	groups, err := c.bindGroups(prog)
	defer func() {
		for _, bg := range groups {
			c.device.DestroyBindGroup(bg)
		}
	}()
	if err != nil {
		c.fail(ErrInvalidOperation, "%v", err)
		return
	}

	if err := c.encodeDraw(pl, groups, streams, first, count); err != nil {
		c.fail(ErrInvalidOperation, "draw: %v", err)
		return
	}
	c.stats.Submits++
}

// vertexStreams checks that every attribute of prog reads an enabled
// buffer holding at least n vertices.
func (c *Context) vertexStreams(prog *programObject, va *vertexArray, n int) ([]vertexStream, pipelineKey, error) {
	attrs := sortedAttributes(prog.layout)
	streams := make([]vertexStream, 0, len(attrs))
	var formats strings.Builder
	for _, io := range attrs {
		ap := va.attribs[int(io.Location)]
		if ap == nil || !ap.enabled || ap.format == gputypes.VertexFormatUndefined {
			return nil, pipelineKey{}, fmt.Errorf("attribute %q is not enabled", io.Name)
		}
		buf, ok := c.buffers[ap.buffer]
		if !ok {
			return nil, pipelineKey{}, fmt.Errorf("attribute %q reads deleted buffer %d", io.Name, ap.buffer)
		}
		comps := int(ap.format.Size() / 4)
		if n*comps > len(buf.data) {
			return nil, pipelineKey{}, fmt.Errorf("attribute %q has %d vertices, draw needs %d",
				io.Name, len(buf.data)/comps, n)
		}
		streams = append(streams, vertexStream{
			buf: buf.buf,
			layout: gputypes.VertexBufferLayout{
				ArrayStride: ap.format.Size(),
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes: []gputypes.VertexAttribute{{
					Format:         ap.format,
					Offset:         0,
					ShaderLocation: io.Location,
				}},
			},
		})
		fmt.Fprintf(&formats, "%d:%d;", io.Location, uint32(ap.format))
	}
	return streams, pipelineKey{depthTest: c.depthTest, formats: formats.String()}, nil
}

// bindGroups creates one bind group per group of prog from the current
// uniform buffers, texture units and the shared sampler. The caller
// destroys them after submission.
func (c *Context) bindGroups(prog *programObject) ([]hal.BindGroup, error) {
	entries := make([][]gputypes.BindGroupEntry, len(prog.groupLayouts))
	for _, r := range sortedResources(prog.layout) {
		loc := uniformLocation(r)
		entry := gputypes.BindGroupEntry{Binding: r.Binding}
		switch r.Kind {
		case shader.ResourceUniform:
			entry.Resource = gputypes.BufferBinding{
				Buffer: prog.uniforms[loc].NativeHandle(), Offset: 0, Size: matrixSize,
			}
		case shader.ResourceTexture:
			view, err := c.textureView(prog.units[loc])
			if err != nil {
				return nil, fmt.Errorf("sampler %q: %w", r.Name, err)
			}
			entry.Resource = gputypes.TextureViewBinding{TextureView: view.NativeHandle()}
		case shader.ResourceSampler:
			entry.Resource = gputypes.SamplerBinding{Sampler: c.sampler.NativeHandle()}
		}
		entries[r.Group] = append(entries[r.Group], entry)
	}

	groups := make([]hal.BindGroup, 0, len(entries))
	for g := range entries {
		bg, err := c.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   fmt.Sprintf("gldraw_bind_%d", g),
			Layout:  prog.groupLayouts[g],
			Entries: entries[g],
		})
		if err != nil {
			return groups, fmt.Errorf("create bind group %d: %w", g, err)
		}
		groups = append(groups, bg)
	}
	return groups, nil
}

// textureView returns the view of the texture bound on unit. Units with
// no uploaded texture sample an opaque black texel, as an incomplete GL
// texture does.
func (c *Context) textureView(unit int) (hal.TextureView, error) {
	if tex := c.textures[c.units[unit]]; tex != nil && tex.view != nil {
		return tex.view, nil
	}
	if c.incomplete == nil {
		black := image.NewRGBA(image.Rect(0, 0, 1, 1))
		black.SetRGBA(0, 0, color.RGBA{A: 255})
		c.incomplete = &textureObject{}
		if err := c.uploadLevels(c.incomplete, []*image.RGBA{black}); err != nil {
			c.incomplete = nil
			return nil, err
		}
	}
	return c.incomplete.view, nil
}

func (c *Context) encodeDraw(pl hal.RenderPipeline, groups []hal.BindGroup, streams []vertexStream, first, count int) error {
	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "gldraw_draw"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("gldraw_draw"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	rp := encoder.BeginRenderPass(c.target.passDescriptor("gldraw_draw_pass", false, gputypes.Color{}))
	rp.SetPipeline(pl)
	for i, bg := range groups {
		rp.SetBindGroup(uint32(i), bg, nil) //nolint:gosec // group count is small
	}
	for i, s := range streams {
		rp.SetVertexBuffer(uint32(i), s.buf, 0) //nolint:gosec // slot count is small
	}
	rp.Draw(uint32(count), 1, uint32(first), 0) //nolint:gosec // validated non-negative
	rp.End()
	return submit(c.device, c.queue, encoder)
}

package gldraw

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// vertexBufferUsage is the usage every geometry buffer is created with.
const vertexBufferUsage = gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst

// GeometryBuffer is one write-once vertex attribute stream on the GPU.
type GeometryBuffer struct {
	ctx        Context
	name       string
	id         BufferID
	components int
	vertices   int
}

// UploadBuffer allocates a GPU buffer and copies data into it.
//
// data must hold a whole number of vertices of components floats each,
// with components in 2..4. There is no update path: new geometry needs a
// new buffer.
func UploadBuffer(ctx Context, name string, data []float32, components int) (*GeometryBuffer, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	n, err := vertexCount(data, components)
	if err != nil {
		return nil, fmt.Errorf("gldraw: buffer %q: %w", name, err)
	}

	id, err := ctx.CreateBuffer()
	if err != nil {
		return nil, fmt.Errorf("gldraw: create buffer %q: %w", name, err)
	}
	ctx.BindBuffer(id)
	ctx.BufferData(data, vertexBufferUsage)

	Logger().Debug("gldraw: buffer uploaded",
		"name", name, "id", id, "components", components, "vertices", n)

	return &GeometryBuffer{
		ctx:        ctx,
		name:       name,
		id:         id,
		components: components,
		vertices:   n,
	}, nil
}

// Name returns the attribute name the buffer feeds.
func (b *GeometryBuffer) Name() string { return b.name }

// ID returns the GPU handle, or zero after Release.
func (b *GeometryBuffer) ID() BufferID { return b.id }

// Components returns the number of floats per vertex.
func (b *GeometryBuffer) Components() int { return b.components }

// VertexCount returns the number of vertices uploaded.
func (b *GeometryBuffer) VertexCount() int { return b.vertices }

// Len reads the stored float count back from the context.
func (b *GeometryBuffer) Len() int {
	if b.id == 0 {
		return 0
	}
	return b.ctx.BufferSize(b.id)
}

// Format returns the vertex format matching the component count.
func (b *GeometryBuffer) Format() gputypes.VertexFormat {
	return vertexFormat(b.components)
}

// Release deletes the GPU buffer. It is safe to call more than once.
func (b *GeometryBuffer) Release() {
	if b.id == 0 {
		return
	}
	b.ctx.DeleteBuffer(b.id)
	b.id = 0
}

func vertexCount(data []float32, components int) (int, error) {
	if components < 2 || components > 4 {
		return 0, fmt.Errorf("%w: %d components", ErrComponentMismatch, components)
	}
	if len(data)%components != 0 {
		return 0, fmt.Errorf("%w: %d floats is not a multiple of %d", ErrComponentMismatch, len(data), components)
	}
	return len(data) / components, nil
}

func vertexFormat(components int) gputypes.VertexFormat {
	switch components {
	case 2:
		return gputypes.VertexFormatFloat32x2
	case 3:
		return gputypes.VertexFormatFloat32x3
	case 4:
		return gputypes.VertexFormatFloat32x4
	default:
		return gputypes.VertexFormatFloat32
	}
}

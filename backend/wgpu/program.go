package wgpu

import (
	"fmt"
	"sort"

	"github.com/gogpu/gldraw"
	"github.com/gogpu/gldraw/internal/shader"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// matrixSize is the byte size of a mat4x4<f32> uniform.
const matrixSize = 64

type programObject struct {
	layout *shader.Layout
	names  map[int]string // uniform location -> name
	kinds  map[int]shader.ResourceKind
	// uniforms holds one device buffer per matrix uniform.
	uniforms map[int]hal.Buffer
	// units maps sampler locations to texture units. Unset means unit 0.
	units map[int]int

	vs, fs         hal.ShaderModule
	vsEntry        string
	fsEntry        string
	groupLayouts   []hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	pipelines      map[pipelineKey]hal.RenderPipeline
}

// pipelineKey selects a cached render pipeline. formats lists the vertex
// format of each attribute in location order.
type pipelineKey struct {
	depthTest bool
	formats   string
}

// CreateProgram implements gldraw.Context.
func (c *Context) CreateProgram() (gldraw.ProgramID, error) {
	id, err := c.newID()
	if err != nil {
		return 0, err
	}
	p := gldraw.ProgramID(id)
	c.programs[p] = &programObject{}
	c.stats.Programs++
	return p, nil
}

// LinkProgram implements gldraw.Context. It creates the shader modules,
// bind group layouts and uniform buffers of the program. Pipelines are
// created on first draw.
func (c *Context) LinkProgram(p gldraw.ProgramID, vs, fs gldraw.ShaderID) (bool, string) {
	prog, ok := c.programs[p]
	if !ok {
		c.fail(ErrInvalidValue, "link unknown program %d", p)
		return false, fmt.Sprintf("unknown program %d", p)
	}
	v, fr := c.shaders[vs], c.shaders[fs]
	if v == nil || fr == nil {
		return false, "vertex and fragment shaders must both be attached"
	}
	if v.module == nil || fr.module == nil {
		return false, "attached shader is not compiled"
	}
	layout, err := shader.Link(v.module, fr.module)
	if err != nil {
		return false, err.Error()
	}
	c.releaseProgram(prog)
	*prog = programObject{}
	if err := c.buildProgram(prog, layout, v, fr); err != nil {
		c.releaseProgram(prog)
		*prog = programObject{}
		return false, err.Error()
	}
	slogger().Debug("wgpu: program linked", "program", p,
		"attributes", len(layout.Attributes), "resources", len(layout.Resources))
	return true, ""
}

func (c *Context) buildProgram(prog *programObject, layout *shader.Layout, v, fr *shaderObject) error {
	var err error
	prog.vs, err = c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "gldraw_vertex",
		Source: hal.ShaderSource{WGSL: v.source},
	})
	if err != nil {
		return fmt.Errorf("create vertex module: %w", err)
	}
	prog.fs, err = c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "gldraw_fragment",
		Source: hal.ShaderSource{WGSL: fr.source},
	})
	if err != nil {
		return fmt.Errorf("create fragment module: %w", err)
	}
	prog.vsEntry, prog.fsEntry = v.module.EntryPoint, fr.module.EntryPoint

	prog.layout = layout
	prog.names = make(map[int]string, len(layout.Resources))
	prog.kinds = make(map[int]shader.ResourceKind, len(layout.Resources))
	prog.uniforms = make(map[int]hal.Buffer)
	prog.units = make(map[int]int)
	prog.pipelines = make(map[pipelineKey]hal.RenderPipeline)

	groups := make([][]gputypes.BindGroupLayoutEntry, 0, 1)
	for _, r := range sortedResources(layout) {
		entry := gputypes.BindGroupLayoutEntry{
			Binding:    r.Binding,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
		}
		switch r.Kind {
		case shader.ResourceUniform:
			entry.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
		case shader.ResourceTexture:
			entry.Texture = &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			}
		case shader.ResourceSampler:
			entry.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
		default:
			return fmt.Errorf("%q: %s bindings are not supported", r.Name, r.Kind)
		}
		for int(r.Group) >= len(groups) {
			groups = append(groups, nil)
		}
		groups[r.Group] = append(groups[r.Group], entry)

		loc := uniformLocation(r)
		prog.names[loc] = r.Name
		prog.kinds[loc] = r.Kind
		if r.Kind == shader.ResourceUniform {
			ub, err := c.device.CreateBuffer(&hal.BufferDescriptor{
				Label: "gldraw_uniform_" + r.Name,
				Size:  matrixSize,
				Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
			})
			if err != nil {
				return fmt.Errorf("create uniform buffer %q: %w", r.Name, err)
			}
			prog.uniforms[loc] = ub
		}
	}

	for g, entries := range groups {
		bgl, err := c.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("gldraw_group_%d", g),
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("create bind group layout %d: %w", g, err)
		}
		prog.groupLayouts = append(prog.groupLayouts, bgl)
	}
	prog.pipelineLayout, err = c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "gldraw_pipeline_layout",
		BindGroupLayouts: prog.groupLayouts,
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	return nil
}

// releaseProgram destroys the device objects of prog.
func (c *Context) releaseProgram(prog *programObject) {
	for _, pl := range prog.pipelines {
		c.device.DestroyRenderPipeline(pl)
	}
	if prog.pipelineLayout != nil {
		c.device.DestroyPipelineLayout(prog.pipelineLayout)
	}
	for _, bgl := range prog.groupLayouts {
		c.device.DestroyBindGroupLayout(bgl)
	}
	for _, ub := range prog.uniforms {
		c.device.DestroyBuffer(ub)
	}
	if prog.fs != nil {
		c.device.DestroyShaderModule(prog.fs)
	}
	if prog.vs != nil {
		c.device.DestroyShaderModule(prog.vs)
	}
}

// uniformLocation flattens a group/binding pair into one location.
func uniformLocation(r shader.Resource) int {
	return int(r.Group)*16 + int(r.Binding)
}

func sortedResources(layout *shader.Layout) []shader.Resource {
	rs := make([]shader.Resource, 0, len(layout.Resources))
	for _, r := range layout.Resources {
		rs = append(rs, r)
	}
	sort.Slice(rs, func(i, j int) bool { return uniformLocation(rs[i]) < uniformLocation(rs[j]) })
	return rs
}

func sortedAttributes(layout *shader.Layout) []shader.IO {
	ios := make([]shader.IO, 0, len(layout.Attributes))
	for _, io := range layout.Attributes {
		ios = append(ios, io)
	}
	sort.Slice(ios, func(i, j int) bool { return ios[i].Location < ios[j].Location })
	return ios
}

// UseProgram implements gldraw.Context.
func (c *Context) UseProgram(p gldraw.ProgramID) {
	if p == 0 {
		c.current = 0
		return
	}
	prog, ok := c.programs[p]
	if !ok || prog.layout == nil {
		c.fail(ErrInvalidOperation, "use unlinked program %d", p)
		return
	}
	c.current = p
}

// DeleteProgram implements gldraw.Context.
func (c *Context) DeleteProgram(p gldraw.ProgramID) {
	prog, ok := c.programs[p]
	if !ok {
		return
	}
	c.releaseProgram(prog)
	delete(c.programs, p)
	if c.current == p {
		c.current = 0
	}
}

// AttribLocation implements gldraw.Context.
func (c *Context) AttribLocation(p gldraw.ProgramID, name string) int {
	prog, ok := c.programs[p]
	if !ok || prog.layout == nil {
		c.fail(ErrInvalidOperation, "attribute lookup on unlinked program %d", p)
		return -1
	}
	io, ok := prog.layout.Attributes[name]
	if !ok {
		return -1
	}
	return int(io.Location)
}

// UniformLocation implements gldraw.Context.
func (c *Context) UniformLocation(p gldraw.ProgramID, name string) int {
	prog, ok := c.programs[p]
	if !ok || prog.layout == nil {
		c.fail(ErrInvalidOperation, "uniform lookup on unlinked program %d", p)
		return -1
	}
	r, ok := prog.layout.Resources[name]
	if !ok {
		return -1
	}
	return uniformLocation(r)
}

// Pipelines returns the number of render pipelines cached for p.
func (c *Context) Pipelines(p gldraw.ProgramID) int {
	prog, ok := c.programs[p]
	if !ok {
		return 0
	}
	return len(prog.pipelines)
}

func (c *Context) currentProgram() *programObject {
	prog, ok := c.programs[c.current]
	if !ok {
		return nil
	}
	return prog
}

// pipeline returns the cached pipeline for key, creating it from buffers.
func (c *Context) pipeline(prog *programObject, key pipelineKey, buffers []gputypes.VertexBufferLayout) (hal.RenderPipeline, error) {
	if pl, ok := prog.pipelines[key]; ok {
		return pl, nil
	}
	depthCompare := gputypes.CompareFunctionAlways
	if key.depthTest {
		depthCompare = gputypes.CompareFunctionLess
	}
	keep := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
	pl, err := c.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "gldraw_pipeline",
		Layout: prog.pipelineLayout,
		Vertex: hal.VertexState{
			Module:     prog.vs,
			EntryPoint: prog.vsEntry,
			Buffers:    buffers,
		},
		Fragment: &hal.FragmentState{
			Module:     prog.fs,
			EntryPoint: prog.fsEntry,
			Targets: []gputypes.ColorTargetState{{
				Format:    c.format,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		DepthStencil: &hal.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: key.depthTest,
			DepthCompare:      depthCompare,
			StencilFront:      keep,
			StencilBack:       keep,
			StencilReadMask:   0x00,
			StencilWriteMask:  0x00,
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}
	prog.pipelines[key] = pl
	c.stats.Pipelines++
	return pl, nil
}

// Package shader compiles WGSL stages with naga and reflects the names
// and locations a program exposes.
package shader

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// ResourceKind classifies a bound global variable.
type ResourceKind int

const (
	ResourceUniform ResourceKind = iota
	ResourceTexture
	ResourceSampler
	ResourceStorage
)

// String returns the string representation of ResourceKind.
func (k ResourceKind) String() string {
	switch k {
	case ResourceUniform:
		return "uniform"
	case ResourceTexture:
		return "texture"
	case ResourceSampler:
		return "sampler"
	case ResourceStorage:
		return "storage"
	default:
		return fmt.Sprintf("ResourceKind(%d)", int(k))
	}
}

// IO is one @location input or output of an entry point.
type IO struct {
	Name       string
	Location   uint32
	Components int
}

// Resource is one @group/@binding global variable.
type Resource struct {
	Name    string
	Group   uint32
	Binding uint32
	Kind    ResourceKind
}

// Module is a compiled and validated stage.
type Module struct {
	Stage      gputypes.ShaderStage
	EntryPoint string
	Inputs     []IO
	Outputs    []IO
	Resources  []Resource
}

// Compile parses, lowers and validates a WGSL stage and reflects the entry
// point for stage. The error text is suitable as a compiler log.
func Compile(stage gputypes.ShaderStage, source string) (*Module, error) {
	want, err := irStage(stage)
	if err != nil {
		return nil, err
	}
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, err
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, err
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, err
	}
	if len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i := range verrs {
			msgs[i] = verrs[i].Error()
		}
		return nil, errors.New(strings.Join(msgs, "\n"))
	}

	var ep *ir.EntryPoint
	for i := range module.EntryPoints {
		if module.EntryPoints[i].Stage == want {
			if ep != nil {
				return nil, fmt.Errorf("multiple %s entry points", stageName(stage))
			}
			ep = &module.EntryPoints[i]
		}
	}
	if ep == nil {
		return nil, fmt.Errorf("no %s entry point", stageName(stage))
	}

	m := &Module{Stage: stage, EntryPoint: ep.Name}
	for _, arg := range ep.Function.Arguments {
		collectIO(module, arg.Name, arg.Type, arg.Binding, &m.Inputs)
	}
	if res := ep.Function.Result; res != nil {
		collectIO(module, "", res.Type, res.Binding, &m.Outputs)
	}
	for _, gv := range module.GlobalVariables {
		if gv.Binding == nil {
			continue
		}
		m.Resources = append(m.Resources, Resource{
			Name:    gv.Name,
			Group:   gv.Binding.Group,
			Binding: gv.Binding.Binding,
			Kind:    resourceKind(module, gv),
		})
	}
	sortIO(m.Inputs)
	sortIO(m.Outputs)
	return m, nil
}

// Layout is the reflected interface of a linked program.
type Layout struct {
	// Attributes maps vertex input names to locations.
	Attributes map[string]IO
	// Resources maps uniform, texture and sampler names to bindings.
	Resources map[string]Resource
	// Varyings are the vertex outputs consumed by the fragment stage.
	Varyings []IO
}

// Link checks that every fragment input is produced by the vertex stage
// with the same component count, and that globals declared by both stages
// agree on their binding. The error text is suitable as a program log.
func Link(vs, fs *Module) (*Layout, error) {
	if vs == nil || vs.Stage != gputypes.ShaderStageVertex {
		return nil, errors.New("missing vertex stage")
	}
	if fs == nil || fs.Stage != gputypes.ShaderStageFragment {
		return nil, errors.New("missing fragment stage")
	}

	outputs := make(map[uint32]IO, len(vs.Outputs))
	for _, o := range vs.Outputs {
		outputs[o.Location] = o
	}
	var problems []string
	var varyings []IO
	for _, in := range fs.Inputs {
		out, ok := outputs[in.Location]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf(
				"fragment input %q at location %d has no matching vertex output", in.Name, in.Location))
		case out.Components != in.Components:
			problems = append(problems, fmt.Sprintf(
				"location %d: vertex output has %d components, fragment input %q has %d",
				in.Location, out.Components, in.Name, in.Components))
		default:
			varyings = append(varyings, out)
		}
	}

	resources := make(map[string]Resource)
	for _, r := range append(append([]Resource(nil), vs.Resources...), fs.Resources...) {
		prev, ok := resources[r.Name]
		if ok && (prev.Group != r.Group || prev.Binding != r.Binding) {
			problems = append(problems, fmt.Sprintf(
				"%q bound at @group(%d) @binding(%d) and @group(%d) @binding(%d)",
				r.Name, prev.Group, prev.Binding, r.Group, r.Binding))
			continue
		}
		resources[r.Name] = r
	}
	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "\n"))
	}

	attrs := make(map[string]IO, len(vs.Inputs))
	for _, in := range vs.Inputs {
		attrs[in.Name] = in
	}
	return &Layout{Attributes: attrs, Resources: resources, Varyings: varyings}, nil
}

func collectIO(module *ir.Module, name string, ty ir.TypeHandle, binding *ir.Binding, dst *[]IO) {
	if binding != nil {
		if loc, ok := (*binding).(ir.LocationBinding); ok {
			*dst = append(*dst, IO{Name: name, Location: loc.Location, Components: components(module, ty)})
		}
		return
	}
	if int(ty) >= len(module.Types) {
		return
	}
	st, ok := module.Types[ty].Inner.(ir.StructType)
	if !ok {
		return
	}
	for _, member := range st.Members {
		collectIO(module, member.Name, member.Type, member.Binding, dst)
	}
}

func components(module *ir.Module, ty ir.TypeHandle) int {
	if int(ty) >= len(module.Types) {
		return 0
	}
	switch t := module.Types[ty].Inner.(type) {
	case ir.ScalarType:
		return 1
	case ir.VectorType:
		return int(t.Size)
	default:
		return 0
	}
}

func resourceKind(module *ir.Module, gv ir.GlobalVariable) ResourceKind {
	if int(gv.Type) < len(module.Types) {
		switch module.Types[gv.Type].Inner.(type) {
		case ir.ImageType:
			return ResourceTexture
		case ir.SamplerType:
			return ResourceSampler
		}
	}
	if gv.Space == ir.SpaceStorage {
		return ResourceStorage
	}
	return ResourceUniform
}

func sortIO(ios []IO) {
	sort.Slice(ios, func(i, j int) bool { return ios[i].Location < ios[j].Location })
}

func irStage(stage gputypes.ShaderStage) (ir.ShaderStage, error) {
	switch stage {
	case gputypes.ShaderStageVertex:
		return ir.StageVertex, nil
	case gputypes.ShaderStageFragment:
		return ir.StageFragment, nil
	default:
		return 0, fmt.Errorf("unsupported shader stage %d", uint32(stage))
	}
}

func stageName(stage gputypes.ShaderStage) string {
	if stage == gputypes.ShaderStageVertex {
		return "vertex"
	}
	return "fragment"
}

package shader

import (
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
)

const colorVertex = `
@group(0) @binding(0) var<uniform> matrix: mat4x4<f32>;

struct VertexOutput {
    @builtin(position) clip: vec4<f32>,
    @location(0) color: vec3<f32>,
};

@vertex
fn vs_main(@location(0) position: vec3<f32>, @location(1) color: vec3<f32>) -> VertexOutput {
    var out: VertexOutput;
    out.clip = matrix * vec4<f32>(position, 1.0);
    out.color = color;
    return out;
}
`

const colorFragment = `
@fragment
fn fs_main(@location(0) color: vec3<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(color, 1.0);
}
`

const uvFragment = `
@fragment
fn fs_main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(uv, 0.0, 1.0);
}
`

func TestCompileReflectsVertexInputs(t *testing.T) {
	m, err := Compile(gputypes.ShaderStageVertex, colorVertex)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if m.EntryPoint != "vs_main" {
		t.Errorf("EntryPoint = %q, want vs_main", m.EntryPoint)
	}
	want := []IO{
		{Name: "position", Location: 0, Components: 3},
		{Name: "color", Location: 1, Components: 3},
	}
	if len(m.Inputs) != len(want) {
		t.Fatalf("Inputs = %+v, want %+v", m.Inputs, want)
	}
	for i := range want {
		if m.Inputs[i] != want[i] {
			t.Errorf("Inputs[%d] = %+v, want %+v", i, m.Inputs[i], want[i])
		}
	}
	if len(m.Outputs) != 1 || m.Outputs[0].Name != "color" || m.Outputs[0].Components != 3 {
		t.Errorf("Outputs = %+v, want one vec3 color at location 0", m.Outputs)
	}
	if len(m.Resources) != 1 || m.Resources[0].Name != "matrix" || m.Resources[0].Kind != ResourceUniform {
		t.Errorf("Resources = %+v, want uniform matrix", m.Resources)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		stage  gputypes.ShaderStage
		source string
	}{
		{"syntax", gputypes.ShaderStageVertex, "@vertex fn vs_main( -> {"},
		{"undefined identifier", gputypes.ShaderStageFragment,
			"@fragment fn fs_main() -> @location(0) vec4<f32> { return missing; }"},
		{"wrong stage", gputypes.ShaderStageVertex, colorFragment},
		{"compute stage", gputypes.ShaderStageCompute, colorVertex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile(tt.stage, tt.source); err == nil {
				t.Error("Compile() error = nil, want failure")
			} else if err.Error() == "" {
				t.Error("Compile() error has empty log")
			}
		})
	}
}

func TestLink(t *testing.T) {
	vs, err := Compile(gputypes.ShaderStageVertex, colorVertex)
	if err != nil {
		t.Fatalf("Compile(vertex) error = %v", err)
	}
	fs, err := Compile(gputypes.ShaderStageFragment, colorFragment)
	if err != nil {
		t.Fatalf("Compile(fragment) error = %v", err)
	}
	layout, err := Link(vs, fs)
	if err != nil {
		t.Fatalf("Link() error = %v", err)
	}
	if got := layout.Attributes["position"].Location; got != 0 {
		t.Errorf("position location = %d, want 0", got)
	}
	if got := layout.Attributes["color"].Location; got != 1 {
		t.Errorf("color location = %d, want 1", got)
	}
	if _, ok := layout.Attributes["colour"]; ok {
		t.Error("Attributes contains colour, want only exact names")
	}
	if _, ok := layout.Resources["matrix"]; !ok {
		t.Error("Resources missing matrix")
	}
	if len(layout.Varyings) != 1 {
		t.Errorf("Varyings = %+v, want 1", layout.Varyings)
	}
}

func TestLinkMismatchedVarying(t *testing.T) {
	vs, err := Compile(gputypes.ShaderStageVertex, colorVertex)
	if err != nil {
		t.Fatalf("Compile(vertex) error = %v", err)
	}
	fs, err := Compile(gputypes.ShaderStageFragment, uvFragment)
	if err != nil {
		t.Fatalf("Compile(fragment) error = %v", err)
	}
	_, err = Link(vs, fs)
	if err == nil {
		t.Fatal("Link() error = nil, want component mismatch")
	}
	if !strings.Contains(err.Error(), "components") {
		t.Errorf("Link() error = %q, want component mismatch text", err)
	}
}

func TestLinkMissingStage(t *testing.T) {
	fs, err := Compile(gputypes.ShaderStageFragment, colorFragment)
	if err != nil {
		t.Fatalf("Compile(fragment) error = %v", err)
	}
	if _, err := Link(fs, fs); err == nil {
		t.Error("Link(fragment, fragment) error = nil, want missing vertex stage")
	}
}

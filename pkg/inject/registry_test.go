package inject

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ritzau/wfc/pkg/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadRegistryTOML(t *testing.T) {
	path := writeFile(t, "txt2img.toml", `
[prompt]
type = "string"
node_type = "CLIPTextEncode"
primary_path = "inputs.text"
fallback_path = "widgets_values[0]"

[[prompt.where]]
referenced_as = "positive"

[steps]
type = "number"
node_type = "KSampler"
primary_path = "inputs.steps"

[[steps.where]]
path = "inputs.steps"
exists = true
`)

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}

	if got := reg.Names(); len(got) != 2 || got[0] != "prompt" || got[1] != "steps" {
		t.Fatalf("Names() = %v", got)
	}
	prompt := reg["prompt"]
	if prompt.Type != TypeString || prompt.NodeType != "CLIPTextEncode" || prompt.FallbackPath != "widgets_values[0]" {
		t.Errorf("prompt = %+v", prompt)
	}
	if len(prompt.Where) != 1 || prompt.Where[0].ReferencedAs != "positive" {
		t.Errorf("prompt.Where = %+v", prompt.Where)
	}
	steps := reg["steps"]
	if len(steps.Where) != 1 || steps.Where[0].Exists == nil || !*steps.Where[0].Exists {
		t.Errorf("steps.Where = %+v", steps.Where)
	}
}

func TestLoadRegistryJSON(t *testing.T) {
	path := writeFile(t, "reg.json", `{
		"seed": {"type": "number", "node_type": "KSampler", "primary_path": "inputs.seed"}
	}`)

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if reg["seed"].PrimaryPath != "inputs.seed" {
		t.Errorf("seed = %+v", reg["seed"])
	}
}

func TestLoadRegistryErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"unsupported extension", "reg.yaml", "a: b", "unsupported registry format"},
		{"missing node type", "reg.toml", "[p]\nprimary_path = \"inputs.x\"\n", "node_type is required"},
		{"bad type", "reg.toml", "[p]\ntype = \"bool\"\nnode_type = \"A\"\nprimary_path = \"inputs.x\"\n", "unknown type"},
		{"no path", "reg.toml", "[p]\nnode_type = \"A\"\n", "no path"},
		{"bad path", "reg.toml", "[p]\nnode_type = \"A\"\nprimary_path = \"inputs[x]\"\n", "parameter p"},
		{"condition without path", "reg.toml", "[p]\nnode_type = \"A\"\nprimary_path = \"inputs.x\"\n[[p.where]]\ncontains = \"x\"\n", "path is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRegistry(writeFile(t, tt.file, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadRegistry() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}

	if _, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestConditionMatches(t *testing.T) {
	yes, no := true, false
	g := model.ExecutionGraph{
		"5": {ClassType: "SaveImage", Inputs: map[string]any{
			"filename_prefix": "ComfyUI_portrait",
			"images":          model.Ref{NodeID: "8", Output: 0},
		}},
		"8": {ClassType: "VAEDecode", Inputs: map[string]any{"steps": int64(20)}},
	}

	tests := []struct {
		name string
		id   string
		cond Condition
		want bool
	}{
		{"exists", "5", Condition{Path: "inputs.images", Exists: &yes}, true},
		{"not exists", "5", Condition{Path: "inputs.mask", Exists: &no}, true},
		{"exists fails", "5", Condition{Path: "inputs.mask", Exists: &yes}, false},
		{"contains", "5", Condition{Path: "inputs.filename_prefix", Contains: "portrait"}, true},
		{"contains on non-string", "8", Condition{Path: "inputs.steps", Contains: "2"}, false},
		{"equals across number types", "8", Condition{Path: "inputs.steps", Equals: 20.0}, true},
		{"equals string", "8", Condition{Path: "class_type", Equals: "VAEDecode"}, true},
		{"equals mismatch", "8", Condition{Path: "inputs.steps", Equals: "20"}, false},
		{"referenced as", "8", Condition{ReferencedAs: "images"}, true},
		{"not referenced", "5", Condition{ReferencedAs: "images"}, false},
		{"unknown node", "9", Condition{ReferencedAs: "images"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Matches(g, tt.id); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		typ     ParamType
		in      any
		want    any
		wantErr bool
	}{
		{"int stays int", TypeNumber, 156680208700286, int64(156680208700286), false},
		{"float", TypeNumber, 7.5, 7.5, false},
		{"numeric string", TypeNumber, " 30 ", int64(30), false},
		{"float string", TypeNumber, "0.75", 0.75, false},
		{"bad string", TypeNumber, "many", nil, true},
		{"bool is not a number", TypeNumber, true, nil, true},
		{"uint", TypeNumber, uint(5), int64(5), false},
		{"uint64", TypeNumber, uint64(156680208700286), int64(156680208700286), false},
		{"uint64 overflow", TypeNumber, uint64(math.MaxUint64), nil, true},
		{"int8", TypeNumber, int8(-3), int64(-3), false},
		{"int16", TypeNumber, int16(300), int64(300), false},
		{"uint16", TypeNumber, uint16(7), int64(7), false},
		{"uint as string", TypeString, uint(12), "12", false},
		{"string", TypeString, "a fox", "a fox", false},
		{"number as string", TypeString, 42.0, "42", false},
		{"bool as string", TypeString, true, "true", false},
		{"list is not a string", TypeString, []any{"a"}, nil, true},
		{"untyped", "", []any{"a"}, []any{"a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.typ, tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Coerce() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if gotList, ok := got.([]any); ok {
				if len(gotList) != 1 || gotList[0] != "a" {
					t.Errorf("Coerce() = %v", got)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Coerce() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

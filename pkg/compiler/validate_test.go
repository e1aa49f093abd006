package compiler

import (
	"reflect"
	"strings"
	"testing"

	"github.com/ritzau/wfc/pkg/model"
)

func TestValidateMissingClassType(t *testing.T) {
	got := Validate(model.ExecutionGraph{"1": {}})

	want := ValidationResult{Valid: false, Errors: []string{"Node 1 is missing class_type property"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Validate() = %+v, want %+v", got, want)
	}
}

func TestValidateValidGraph(t *testing.T) {
	g := model.ExecutionGraph{
		"1": {ClassType: "TextEncode", Inputs: map[string]any{}},
		"2": {ClassType: "Sampler", Inputs: map[string]any{"text": model.Ref{NodeID: "1", Output: 0}}},
	}

	got := Validate(g)
	if !got.Valid || len(got.Errors) != 0 {
		t.Errorf("Expected valid graph, got %+v", got)
	}
}

func TestValidateReferences(t *testing.T) {
	tests := []struct {
		name  string
		graph model.ExecutionGraph
		want  string
	}{
		{
			name: "missing node",
			graph: model.ExecutionGraph{
				"1": {ClassType: "A", Inputs: map[string]any{"x": model.Ref{NodeID: "7", Output: 0}}},
			},
			want: `Node 1 input "x" references missing node 7`,
		},
		{
			name: "self reference",
			graph: model.ExecutionGraph{
				"1": {ClassType: "A", Inputs: map[string]any{"x": model.Ref{NodeID: "1", Output: 0}}},
			},
			want: "Node 1 references its own output",
		},
		{
			name: "self reference through two inputs",
			graph: model.ExecutionGraph{
				"1": {ClassType: "A", Inputs: map[string]any{
					"x": model.Ref{NodeID: "1", Output: 0},
					"y": model.Ref{NodeID: "1", Output: 1},
				}},
			},
			want: "Node 1 references its own output",
		},
		{
			name: "cycle",
			graph: model.ExecutionGraph{
				"1": {ClassType: "A", Inputs: map[string]any{"x": model.Ref{NodeID: "2", Output: 0}}},
				"2": {ClassType: "B", Inputs: map[string]any{"y": model.Ref{NodeID: "1", Output: 0}}},
			},
			want: "Cycle detected between nodes 1, 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.graph)
			if got.Valid {
				t.Fatal("Expected invalid graph")
			}
			if len(got.Errors) != 1 || got.Errors[0] != tt.want {
				t.Errorf("Errors = %q, want [%q]", got.Errors, tt.want)
			}
		})
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	g := model.ExecutionGraph{"1": {ClassType: "A"}}

	Validate(g)
	if g["1"].Inputs != nil {
		t.Error("Validate filled in inputs")
	}
}

func TestValidateJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
		want  []string
	}{
		{
			name:  "valid",
			input: `{"1": {"class_type": "A", "inputs": {}}, "2": {"class_type": "B", "inputs": {"a": ["1", 0]}}}`,
			valid: true,
		},
		{
			name:  "envelope",
			input: `{"prompt": {"1": {"class_type": "A", "inputs": {}}}, "client_id": "x"}`,
			valid: true,
		},
		{
			name:  "missing class type",
			input: `{"1": {}}`,
			want:  []string{"Node 1 is missing class_type property"},
		},
		{
			name:  "non-string class type",
			input: `{"1": {"class_type": 3, "inputs": {}}}`,
			want:  []string{"Node 1 is missing class_type property"},
		},
		{
			name:  "inputs not an object",
			input: `{"1": {"class_type": "A", "inputs": ["x"]}}`,
			want:  []string{"Node 1 inputs must be an object"},
		},
		{
			name:  "node not an object",
			input: `{"1": 5}`,
			want:  []string{"Node 1 is not an object"},
		},
		{
			name:  "dangling reference",
			input: `{"1": {"class_type": "A", "inputs": {"a": ["9", 0]}}}`,
			want:  []string{`Node 1 input "a" references missing node 9`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateJSON([]byte(tt.input))
			if got.Valid != tt.valid {
				t.Errorf("Valid = %v, want %v (errors %q)", got.Valid, tt.valid, got.Errors)
			}
			if tt.want != nil && !reflect.DeepEqual(got.Errors, tt.want) {
				t.Errorf("Errors = %q, want %q", got.Errors, tt.want)
			}
		})
	}
}

func TestValidateJSONNotAnObject(t *testing.T) {
	got := ValidateJSON([]byte(`[1, 2]`))
	if got.Valid || len(got.Errors) != 1 || !strings.HasPrefix(got.Errors[0], "Workflow is not a JSON object") {
		t.Errorf("ValidateJSON() = %+v", got)
	}
}

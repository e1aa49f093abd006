package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/ritzau/wfc/pkg/compiler"
	"github.com/ritzau/wfc/pkg/inject"
	"github.com/ritzau/wfc/pkg/model"
)

func init() {
	color.NoColor = true
}

func TestPrintCompileReport(t *testing.T) {
	res := &compiler.Result{
		Graph: model.ExecutionGraph{
			"1": {ClassType: "TextEncode", Inputs: map[string]any{}, Meta: map[string]any{"title": "Prompt"}},
			"2": {ClassType: "Sampler", Inputs: map[string]any{"text": model.Ref{NodeID: "1"}}},
		},
		Warnings: []model.Warning{{Kind: model.ResolutionGap, NodeID: "2", Name: "seed", Msg: "no literal widget value"}},
	}

	var buf bytes.Buffer
	PrintCompileReport(&buf, "txt2img.json", res, []string{"1", "2"})

	out := buf.String()
	for _, want := range []string{"Compiled txt2img.json", "Nodes: 2", "1. 1 TextEncode (Prompt)", "2. 2 Sampler", "1 warning(s)", `node 2 "seed"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestPrintValidation(t *testing.T) {
	var buf bytes.Buffer
	PrintValidation(&buf, "g.json", compiler.ValidationResult{Valid: true})
	if !strings.Contains(buf.String(), "valid execution graph") {
		t.Errorf("Unexpected output: %s", buf.String())
	}

	buf.Reset()
	PrintValidation(&buf, "g.json", compiler.ValidationResult{Errors: []string{"Node 1 is missing class_type property"}})
	if !strings.Contains(buf.String(), "invalid (1 error(s))") || !strings.Contains(buf.String(), "- Node 1 is missing") {
		t.Errorf("Unexpected output: %s", buf.String())
	}
}

func TestPrintInjectReport(t *testing.T) {
	var buf bytes.Buffer
	PrintInjectReport(&buf, inject.Report{
		Applied: []inject.Applied{{Name: "prompt", NodeID: "6", Path: "inputs.text"}},
	})
	out := buf.String()
	if !strings.Contains(out, "prompt → node 6 at inputs.text") || !strings.Contains(out, "No warnings") {
		t.Errorf("Unexpected output: %s", out)
	}
}

package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ritzau/wfc/pkg/cycles"
	"github.com/ritzau/wfc/pkg/graph"
	"github.com/ritzau/wfc/pkg/model"
)

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func (r *ValidationResult) add(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) finish() ValidationResult {
	r.Valid = len(r.Errors) == 0
	return *r
}

// Validate checks a complete execution graph without modifying it:
// every node needs a class type, references must point at existing nodes,
// and the references must not form a cycle.
func Validate(g model.ExecutionGraph) ValidationResult {
	res := &ValidationResult{Errors: []string{}}
	validateNodes(g, res)
	return res.finish()
}

func validateNodes(g model.ExecutionGraph, res *ValidationResult) {
	for _, id := range g.IDs() {
		node := g[id]
		if node == nil {
			res.add("Node %s is null", id)
			continue
		}
		if node.ClassType == "" {
			res.add("Node %s is missing class_type property", id)
		}

		names := make([]string, 0, len(node.Inputs))
		for name := range node.Inputs {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			ref, ok := model.AsRef(node.Inputs[name])
			if !ok {
				continue
			}
			if _, exists := g[ref.NodeID]; !exists {
				res.add("Node %s input %q references missing node %s", id, name, ref.NodeID)
			}
		}
	}

	for _, c := range cycles.FindCycles(graph.BuildRefGraph(g)) {
		if len(c.Nodes) == 1 {
			res.add("Node %s references its own output", c.Nodes[0])
			continue
		}
		res.add("Cycle detected between nodes %s", c)
	}
}

// ValidateJSON validates a raw execution graph document, including shape
// problems that cannot survive decoding into model types. A
// {"prompt": {...}} envelope is accepted.
func ValidateJSON(data []byte) ValidationResult {
	res := &ValidationResult{Errors: []string{}}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		res.add("Workflow is not a JSON object: %v", err)
		return res.finish()
	}
	if prompt, ok := raw["prompt"]; ok && isObject(prompt) {
		raw = nil
		if err := json.Unmarshal(prompt, &raw); err != nil {
			res.add("Prompt is not a JSON object: %v", err)
			return res.finish()
		}
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	model.SortIDs(ids)

	g := make(model.ExecutionGraph, len(raw))
	for _, id := range ids {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw[id], &fields); err != nil || fields == nil {
			res.add("Node %s is not an object", id)
			continue
		}

		node := &model.ExecutionNode{}
		if ct, ok := fields["class_type"]; ok {
			// a non-string class type counts as missing
			_ = json.Unmarshal(ct, &node.ClassType)
		}

		if in, ok := fields["inputs"]; ok && string(bytes.TrimSpace(in)) != "null" {
			var inputs map[string]any
			if err := json.Unmarshal(in, &inputs); err != nil {
				res.add("Node %s inputs must be an object", id)
			} else {
				for k, v := range inputs {
					if ref, ok := model.AsRef(v); ok {
						inputs[k] = ref
					}
				}
				node.Inputs = inputs
			}
		}
		g[id] = node
	}

	validateNodes(g, res)
	return res.finish()
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

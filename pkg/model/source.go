package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// SourceKind tells which shape a parsed workflow had.
type SourceKind int

const (
	SourceEditor SourceKind = iota
	SourceExecution
)

func (k SourceKind) String() string {
	switch k {
	case SourceEditor:
		return "editor"
	case SourceExecution:
		return "execution"
	}
	return "unknown"
}

// Source is a workflow whose shape has been decided at the boundary. It is
// either *EditorGraph or ExecutionGraph.
type Source interface {
	Kind() SourceKind
}

func (g *EditorGraph) Kind() SourceKind { return SourceEditor }

func (g ExecutionGraph) Kind() SourceKind { return SourceExecution }

// ParseSource decodes a workflow document and decides its shape once:
//
//   - an object with a "nodes" array is an editor graph
//   - an object with a "prompt" object is an execution graph envelope
//   - an object whose values are all objects is an execution graph
//
// Anything else is a StructuralError of kind unsupported_format.
func ParseSource(data []byte) (Source, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, &StructuralError{Kind: KindUnsupportedFormat, Msg: "unsupported format: expected a JSON object"}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("decoding workflow: %w", err)
	}

	if nodes, ok := top["nodes"]; ok {
		if !isArray(nodes) {
			return nil, &StructuralError{Kind: KindUnsupportedFormat, Msg: "unsupported format: nodes must be an array"}
		}
		var g EditorGraph
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("decoding editor graph: %w", err)
		}
		if err := checkUniqueIDs(&g); err != nil {
			return nil, err
		}
		return &g, nil
	}

	if prompt, ok := top["prompt"]; ok && isObject(prompt) {
		return parseExecution(prompt)
	}
	return parseExecution(data)
}

func parseExecution(data []byte) (ExecutionGraph, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding execution graph: %w", err)
	}

	g := make(ExecutionGraph, len(raw))
	for id, body := range raw {
		if !isObject(body) {
			return nil, &StructuralError{
				Kind:   KindUnsupportedFormat,
				NodeID: id,
				Msg:    "unsupported format: node is not an object",
			}
		}
		var n ExecutionNode
		if err := json.Unmarshal(body, &n); err != nil {
			var se *StructuralError
			if errors.As(err, &se) {
				se.NodeID = id
				return nil, se
			}
			return nil, fmt.Errorf("decoding node %s: %w", id, err)
		}
		g[id] = &n
	}
	return g, nil
}

func checkUniqueIDs(g *EditorGraph) error {
	seen := make(map[int64]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if seen[n.ID] {
			return &StructuralError{
				Kind:   KindDuplicateID,
				NodeID: fmt.Sprint(n.ID),
				Msg:    "duplicate node id",
			}
		}
		seen[n.ID] = true
	}
	return nil
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

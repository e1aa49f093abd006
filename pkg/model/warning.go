package model

import "fmt"

// WarningKind classifies a non-fatal problem.
type WarningKind string

const (
	// ResolutionGap: an input had no usable link and no literal fallback,
	// so it was left out of the compiled node.
	ResolutionGap WarningKind = "resolution_gap"
	// InjectionMiss: a named parameter matched no node, or no path
	// accepted the write.
	InjectionMiss WarningKind = "injection_miss"
)

// Warning is a non-fatal problem found while compiling or injecting. It
// never stops the graph from being produced.
type Warning struct {
	Kind   WarningKind `json:"kind"`
	NodeID string      `json:"nodeId,omitempty"`
	Name   string      `json:"name,omitempty"` // input or parameter name
	Msg    string      `json:"message"`
}

func (w Warning) String() string {
	switch {
	case w.NodeID != "" && w.Name != "":
		return fmt.Sprintf("%s: node %s %q: %s", w.Kind, w.NodeID, w.Name, w.Msg)
	case w.NodeID != "":
		return fmt.Sprintf("%s: node %s: %s", w.Kind, w.NodeID, w.Msg)
	case w.Name != "":
		return fmt.Sprintf("%s: %q: %s", w.Kind, w.Name, w.Msg)
	}
	return fmt.Sprintf("%s: %s", w.Kind, w.Msg)
}

package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ritzau/wfc/pkg/filter"
	"github.com/ritzau/wfc/pkg/logging"
	"github.com/ritzau/wfc/pkg/model"
	"github.com/ritzau/wfc/pkg/resolve"
)

// Options configures a compilation.
type Options struct {
	// UITypes are node types that only exist in the editor.
	UITypes filter.TypeSet

	// Normalizers adjust compiled nodes by class type.
	Normalizers map[string]Normalizer

	// ZeroIndexOutputs forces every resolved reference to output 0.
	ZeroIndexOutputs bool
}

// DefaultOptions returns options with the default UI types and normalizers.
func DefaultOptions() Options {
	return Options{
		UITypes:     filter.NewTypeSet(DefaultUITypes...),
		Normalizers: DefaultNormalizers(),
	}
}

// Result is a compiled graph together with the warnings collected on the
// way.
type Result struct {
	Graph    model.ExecutionGraph `json:"graph"`
	Warnings []model.Warning      `json:"warnings"`
}

// CompileSource compiles whatever shape ParseSource decided on.
func CompileSource(src model.Source, opts Options) (*Result, error) {
	switch s := src.(type) {
	case *model.EditorGraph:
		return Compile(s, opts)
	case model.ExecutionGraph:
		return Passthrough(s)
	}
	return nil, &model.StructuralError{
		Kind: model.KindUnsupportedFormat,
		Msg:  fmt.Sprintf("unsupported format: %T", src),
	}
}

// Compile converts an editor graph into an execution graph. The input graph
// is not modified.
func Compile(g *model.EditorGraph, opts Options) (*Result, error) {
	filtered := filter.FilterUIOnlyNodes(g, opts.UITypes)
	surviving := filter.SurvivingIDs(filtered)

	if removed := len(g.Nodes) - len(filtered.Nodes); removed > 0 {
		logging.Debug("filtered ui-only nodes", "removed", removed, "links", len(g.Links)-len(filtered.Links))
	}

	resolver := resolve.New(filtered.Links, surviving)
	resolver.ZeroIndexOutputs = opts.ZeroIndexOutputs

	res := &Result{
		Graph:    make(model.ExecutionGraph, len(filtered.Nodes)),
		Warnings: []model.Warning{},
	}

	for i := range filtered.Nodes {
		node := &filtered.Nodes[i]
		id := strconv.FormatInt(node.ID, 10)

		if strings.TrimSpace(node.Type) == "" {
			return nil, &model.MissingClassTypeError{NodeID: id}
		}
		if _, dup := res.Graph[id]; dup {
			return nil, &model.StructuralError{Kind: model.KindDuplicateID, NodeID: id, Msg: "duplicate node id"}
		}

		exec := model.NewExecutionNode(node.Type)
		for pos, slot := range node.Inputs {
			if slot.Name == "" {
				res.warn(id, "", fmt.Sprintf("input %d has no name", pos))
				continue
			}

			r := resolver.Slot(node, pos)
			if r.Outcome == resolve.Gap {
				res.warn(id, slot.Name, r.Reason)
				continue
			}
			exec.Inputs[slot.Name] = r.Value
		}

		if node.WidgetValues != nil {
			// Copied so that injection into the compiled graph never
			// reaches back into the editor graph.
			exec.WidgetValues = append([]any(nil), node.WidgetValues...)
		}
		if node.Title != "" {
			exec.Meta = map[string]any{"title": node.Title}
		}

		if normalize, ok := opts.Normalizers[node.Type]; ok {
			normalize(exec)
		}

		res.Graph[id] = exec
	}

	logging.Debug("compiled editor graph", "nodes", len(res.Graph), "warnings", len(res.Warnings))
	return res, nil
}

// Passthrough accepts an already execution-shaped graph. Missing inputs
// mappings are filled with empty ones in place; a node without a class
// type is a structural error.
func Passthrough(g model.ExecutionGraph) (*Result, error) {
	for _, id := range g.IDs() {
		node := g[id]
		if node == nil || strings.TrimSpace(node.ClassType) == "" {
			return nil, &model.MissingClassTypeError{NodeID: id}
		}
		if node.Inputs == nil {
			node.Inputs = make(map[string]any)
		}
	}
	return &Result{Graph: g, Warnings: []model.Warning{}}, nil
}

func (r *Result) warn(nodeID, name, msg string) {
	w := model.Warning{
		Kind:   model.ResolutionGap,
		NodeID: nodeID,
		Name:   name,
		Msg:    msg,
	}
	r.Warnings = append(r.Warnings, w)
	logging.Warn("input left unresolved", "node", nodeID, "input", name, "reason", msg)
}

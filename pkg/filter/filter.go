package filter

import (
	"github.com/ritzau/wfc/pkg/model"
)

// TypeSet is a set of node type names.
type TypeSet map[string]bool

// NewTypeSet builds a TypeSet from a list of names.
func NewTypeSet(types ...string) TypeSet {
	set := make(TypeSet, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

// Has reports whether t is in the set. A nil set contains nothing.
func (s TypeSet) Has(t string) bool {
	return s[t]
}

// Names returns the members of the set.
func (s TypeSet) Names() []string {
	names := make([]string, 0, len(s))
	for t := range s {
		names = append(names, t)
	}
	return names
}

// FilterUIOnlyNodes returns a new graph without the nodes whose type is in
// uiTypes, and without every link that touched one of them.
//
// Links through a removed node are not spliced together: a pass-through
// node such as a reroute breaks the path instead of being bridged.
func FilterUIOnlyNodes(g *model.EditorGraph, uiTypes TypeSet) *model.EditorGraph {
	out := &model.EditorGraph{
		Nodes: make([]model.EditorNode, 0, len(g.Nodes)),
		Links: make([]model.LinkRecord, 0, len(g.Links)),
		Extra: g.Extra,
	}

	surviving := make(map[int64]bool, len(g.Nodes))
	for _, node := range g.Nodes {
		if uiTypes.Has(node.Type) {
			continue
		}
		out.Nodes = append(out.Nodes, node)
		surviving[node.ID] = true
	}

	for _, link := range g.Links {
		if surviving[link.SourceNode] && surviving[link.TargetNode] {
			out.Links = append(out.Links, link)
		}
	}

	return out
}

// SurvivingIDs returns the set of node ids present in g.
func SurvivingIDs(g *model.EditorGraph) map[int64]bool {
	ids := make(map[int64]bool, len(g.Nodes))
	for _, node := range g.Nodes {
		ids[node.ID] = true
	}
	return ids
}

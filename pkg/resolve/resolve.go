package resolve

import (
	"strconv"

	"github.com/ritzau/wfc/pkg/model"
)

// Outcome tells how an input slot was resolved.
type Outcome int

const (
	// Linked means the slot resolved to a reference to a surviving node.
	Linked Outcome = iota
	// Widget means the slot fell back to the node's positional widget value.
	Widget
	// Gap means neither worked and the input is omitted.
	Gap
)

func (o Outcome) String() string {
	switch o {
	case Linked:
		return "linked"
	case Widget:
		return "widget"
	case Gap:
		return "gap"
	}
	return "unknown"
}

// Resolution is the result of resolving one input slot.
type Resolution struct {
	Value   any
	Outcome Outcome
	// Reason explains a Gap, or why a link was not used before falling
	// back to a widget value.
	Reason string
}

// Resolver resolves input slots against the links of a filtered graph.
type Resolver struct {
	links     map[int64]model.LinkRecord
	surviving map[int64]bool

	// ZeroIndexOutputs replaces every output index with 0. Some engines
	// reject non-zero slots, but this corrupts graphs whose sources have
	// more than one output, so it is opt-in.
	ZeroIndexOutputs bool
}

// New builds a Resolver. surviving holds the ids of nodes left after
// filtering.
func New(links []model.LinkRecord, surviving map[int64]bool) *Resolver {
	idx := make(map[int64]model.LinkRecord, len(links))
	for _, l := range links {
		idx[l.ID] = l
	}
	return &Resolver{
		links:     idx,
		surviving: surviving,
	}
}

// ResolveInput looks up the link feeding slot. It reports false when the
// slot is unconnected, the link is unknown, or the link's source did not
// survive filtering.
func ResolveInput(slot model.InputSlot, links []model.LinkRecord, surviving map[int64]bool, zeroIndex bool) (model.Ref, bool) {
	r := New(links, surviving)
	r.ZeroIndexOutputs = zeroIndex
	ref, _, ok := r.Link(slot)
	return ref, ok
}

// Link resolves slot through its link. On failure the returned string says
// why.
func (r *Resolver) Link(slot model.InputSlot) (model.Ref, string, bool) {
	if !slot.Connected() {
		return model.Ref{}, "unconnected", false
	}
	link, ok := r.links[*slot.Link]
	if !ok {
		return model.Ref{}, "link " + strconv.FormatInt(*slot.Link, 10) + " not found", false
	}
	if !r.surviving[link.SourceNode] {
		return model.Ref{}, "source node " + strconv.FormatInt(link.SourceNode, 10) + " was removed", false
	}

	output := link.SourceSlot
	if r.ZeroIndexOutputs {
		output = 0
	}
	return model.Ref{
		NodeID: strconv.FormatInt(link.SourceNode, 10),
		Output: output,
	}, "", true
}

// Slot resolves the input at position pos of node: first through its
// link, then from the widget value at the same position.
func (r *Resolver) Slot(node *model.EditorNode, pos int) Resolution {
	slot := node.Inputs[pos]

	ref, reason, ok := r.Link(slot)
	if ok {
		return Resolution{Value: ref, Outcome: Linked}
	}

	if v, ok := WidgetFallback(node, pos); ok {
		return Resolution{Value: v, Outcome: Widget, Reason: reason}
	}

	return Resolution{Outcome: Gap, Reason: reason + ", no literal widget value"}
}

// WidgetFallback returns the literal widget value standing in for the input
// at position pos. Object-shaped widgets are looked up by slot name.
func WidgetFallback(node *model.EditorNode, pos int) (any, bool) {
	var v any
	switch {
	case pos < len(node.WidgetValues):
		v = node.WidgetValues[pos]
	case node.WidgetMap != nil && pos < len(node.Inputs):
		var ok bool
		v, ok = node.WidgetMap[node.Inputs[pos].Name]
		if !ok {
			return nil, false
		}
	default:
		return nil, false
	}

	if !IsLiteral(v) {
		return nil, false
	}
	return v, true
}

// IsLiteral reports whether v can be used directly as an input value: it is
// set and is not itself a node reference.
func IsLiteral(v any) bool {
	return v != nil && !model.IsReference(v)
}

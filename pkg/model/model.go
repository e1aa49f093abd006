package model

import (
	"encoding/json"
	"fmt"
)

// EditorGraph is a workflow as authored in the visual editor: a list of nodes
// and a list of links between their slots.
type EditorGraph struct {
	Nodes []EditorNode   `json:"nodes"`
	Links []LinkRecord   `json:"links"`
	Extra map[string]any `json:"extra,omitempty"`
}

// EditorNode is a single node of an editor graph.
type EditorNode struct {
	ID      int64       `json:"id"`
	Type    string      `json:"type"`
	Title   string      `json:"title,omitempty"`
	Mode    int         `json:"mode,omitempty"`
	Inputs  []InputSlot `json:"inputs,omitempty"`
	Outputs []OutputDef `json:"outputs,omitempty"`

	// WidgetValues holds literal values attached positionally to the node.
	WidgetValues []any `json:"widgets_values,omitempty"`

	// WidgetMap is set instead of WidgetValues when the editor stored the
	// widgets as an object keyed by name.
	WidgetMap map[string]any `json:"-"`
}

// InputSlot is a named input of an editor node. A nil Link means the input
// is not connected.
type InputSlot struct {
	Name   string `json:"name"`
	Type   string `json:"type,omitempty"`
	Link   *int64 `json:"link"`
	Widget any    `json:"widget,omitempty"`
}

// OutputDef describes an output slot of an editor node. It is carried for
// round-tripping and is not used by compilation.
type OutputDef struct {
	Name      string  `json:"name"`
	Type      string  `json:"type,omitempty"`
	Links     []int64 `json:"links"`
	SlotIndex *int    `json:"slot_index,omitempty"`
}

// LinkRecord connects output SourceSlot of SourceNode to input TargetSlot of
// TargetNode. On the wire it is the array
// [id, source, sourceSlot, target, targetSlot, type].
type LinkRecord struct {
	ID         int64
	SourceNode int64
	SourceSlot int
	TargetNode int64
	TargetSlot int
	Type       string
}

// Connected reports whether the slot carries a link id.
func (s InputSlot) Connected() bool {
	return s.Link != nil
}

// LinkID returns the slot's link id, or -1 when unconnected.
func (s InputSlot) LinkID() int64 {
	if s.Link == nil {
		return -1
	}
	return *s.Link
}

// NewLink is a convenience for building links in code and tests.
func NewLink(id, source int64, sourceSlot int, target int64, targetSlot int) LinkRecord {
	return LinkRecord{
		ID:         id,
		SourceNode: source,
		SourceSlot: sourceSlot,
		TargetNode: target,
		TargetSlot: targetSlot,
	}
}

// LinkPtr returns a pointer to id, for building InputSlots.
func LinkPtr(id int64) *int64 {
	return &id
}

// NodeIDs returns the ids of all nodes in the graph, in node order.
func (g *EditorGraph) NodeIDs() []int64 {
	ids := make([]int64, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

// Node returns the node with the given id.
func (g *EditorGraph) Node(id int64) (*EditorNode, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

func (l LinkRecord) MarshalJSON() ([]byte, error) {
	row := []any{l.ID, l.SourceNode, l.SourceSlot, l.TargetNode, l.TargetSlot}
	if l.Type != "" {
		row = append(row, l.Type)
	}
	return json.Marshal(row)
}

// UnmarshalJSON accepts both the compact array form and the object form
// newer editors emit.
func (l *LinkRecord) UnmarshalJSON(data []byte) error {
	var row []json.RawMessage
	if err := json.Unmarshal(data, &row); err == nil {
		if len(row) < 5 {
			return fmt.Errorf("link record has %d fields, expected at least 5", len(row))
		}
		targets := []any{&l.ID, &l.SourceNode, &l.SourceSlot, &l.TargetNode, &l.TargetSlot}
		for i, t := range targets {
			if err := json.Unmarshal(row[i], t); err != nil {
				return fmt.Errorf("link record field %d: %w", i, err)
			}
		}
		if len(row) > 5 {
			// The type is informational; engines use "*" and arrays too.
			_ = json.Unmarshal(row[5], &l.Type)
		}
		return nil
	}

	var obj struct {
		ID         int64  `json:"id"`
		OriginID   int64  `json:"origin_id"`
		OriginSlot int    `json:"origin_slot"`
		TargetID   int64  `json:"target_id"`
		TargetSlot int    `json:"target_slot"`
		Type       string `json:"type"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("link record is neither an array nor an object: %w", err)
	}
	*l = LinkRecord{
		ID:         obj.ID,
		SourceNode: obj.OriginID,
		SourceSlot: obj.OriginSlot,
		TargetNode: obj.TargetID,
		TargetSlot: obj.TargetSlot,
		Type:       obj.Type,
	}
	return nil
}

// UnmarshalJSON decodes widgets_values as either a list or an object.
func (n *EditorNode) UnmarshalJSON(data []byte) error {
	type plain EditorNode
	var aux struct {
		plain
		WidgetValues json.RawMessage `json:"widgets_values"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*n = EditorNode(aux.plain)

	if len(aux.WidgetValues) == 0 || string(aux.WidgetValues) == "null" {
		return nil
	}
	switch aux.WidgetValues[0] {
	case '[':
		return json.Unmarshal(aux.WidgetValues, &n.WidgetValues)
	case '{':
		return json.Unmarshal(aux.WidgetValues, &n.WidgetMap)
	default:
		return fmt.Errorf("node %d: widgets_values must be a list or an object", n.ID)
	}
}

func (n EditorNode) MarshalJSON() ([]byte, error) {
	type plain EditorNode
	if n.WidgetMap != nil && n.WidgetValues == nil {
		return json.Marshal(struct {
			plain
			WidgetMap map[string]any `json:"widgets_values"`
		}{plain(n), n.WidgetMap})
	}
	return json.Marshal(plain(n))
}

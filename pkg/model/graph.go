package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/mitchellh/copystructure"
)

// ExecutionGraph is the flat id -> node mapping submitted to the execution
// engine. Node ids are decimal strings.
type ExecutionGraph map[string]*ExecutionNode

// ExecutionNode is a single node of an execution graph.
type ExecutionNode struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`

	// WidgetValues is copied from the editor node so normalizers and
	// parameter injection can address widgets positionally.
	WidgetValues []any `json:"widgets_values,omitempty"`

	Meta map[string]any `json:"_meta,omitempty"`
}

// Ref is a resolved reference to output Output of node NodeID. It is
// encoded as the two element array ["<id>", <output>].
type Ref struct {
	NodeID string
	Output int
}

func (r Ref) String() string {
	return fmt.Sprintf("[%q, %d]", r.NodeID, r.Output)
}

func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.NodeID, r.Output})
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ref, ok := AsRef(raw)
	if !ok {
		return fmt.Errorf("not a node reference: %s", string(data))
	}
	*r = ref
	return nil
}

// AsRef interprets v as a node reference. Besides Ref itself it accepts the
// decoded JSON form [string, number] where the number is a non-negative
// integer.
func AsRef(v any) (Ref, bool) {
	switch t := v.(type) {
	case Ref:
		return t, true
	case *Ref:
		if t == nil {
			return Ref{}, false
		}
		return *t, true
	case []any:
		if len(t) != 2 {
			return Ref{}, false
		}
		id, ok := t[0].(string)
		if !ok {
			return Ref{}, false
		}
		idx, ok := toIndex(t[1])
		if !ok {
			return Ref{}, false
		}
		return Ref{NodeID: id, Output: idx}, true
	}
	return Ref{}, false
}

// IsReference reports whether v is shaped like a node reference rather than
// a literal.
func IsReference(v any) bool {
	_, ok := AsRef(v)
	return ok
}

func toIndex(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, n >= 0
	case int64:
		return int(n), n >= 0
	case float64:
		if n < 0 || n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil && i >= 0
	}
	return 0, false
}

// NewExecutionNode returns a node with an empty inputs mapping.
func NewExecutionNode(classType string) *ExecutionNode {
	return &ExecutionNode{
		ClassType: classType,
		Inputs:    make(map[string]any),
	}
}

// Title returns _meta.title if present.
func (n *ExecutionNode) Title() string {
	if n.Meta == nil {
		return ""
	}
	s, _ := n.Meta["title"].(string)
	return s
}

// Field implements path addressing over the node. Both the wire names and
// the camel case names are accepted.
func (n *ExecutionNode) Field(name string) (any, bool) {
	if n == nil {
		return nil, false
	}
	switch name {
	case "class_type", "classType":
		return n.ClassType, true
	case "inputs":
		if n.Inputs == nil {
			return nil, false
		}
		return n.Inputs, true
	case "widgets_values", "widgetValues":
		if n.WidgetValues == nil {
			return nil, false
		}
		return n.WidgetValues, true
	case "_meta", "meta":
		if n.Meta == nil {
			return nil, false
		}
		return n.Meta, true
	}
	return nil, false
}

// SetField implements path addressing over the node. It rejects values of
// the wrong shape for the field.
func (n *ExecutionNode) SetField(name string, value any) bool {
	if n == nil {
		return false
	}
	switch name {
	case "class_type", "classType":
		s, ok := value.(string)
		if !ok {
			return false
		}
		n.ClassType = s
	case "inputs":
		m, ok := value.(map[string]any)
		if !ok {
			return false
		}
		n.Inputs = m
	case "widgets_values", "widgetValues":
		l, ok := value.([]any)
		if !ok {
			return false
		}
		n.WidgetValues = l
	case "_meta", "meta":
		m, ok := value.(map[string]any)
		if !ok {
			return false
		}
		n.Meta = m
	default:
		return false
	}
	return true
}

// UnmarshalJSON converts reference-shaped input values into Ref so the rest
// of the code never has to sniff []any.
func (n *ExecutionNode) UnmarshalJSON(data []byte) error {
	type plain ExecutionNode
	var aux struct {
		plain
		Inputs json.RawMessage `json:"inputs"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*n = ExecutionNode(aux.plain)

	if len(aux.Inputs) == 0 || string(aux.Inputs) == "null" {
		n.Inputs = nil
		return nil
	}
	var inputs map[string]any
	if err := json.Unmarshal(aux.Inputs, &inputs); err != nil {
		return &StructuralError{Kind: KindInvalidInputs, Msg: "inputs must be an object"}
	}
	for k, v := range inputs {
		if ref, ok := AsRef(v); ok {
			inputs[k] = ref
		}
	}
	n.Inputs = inputs
	return nil
}

// IDs returns the node ids in a stable order: numeric ids ascending, then
// any non-numeric ids lexicographically.
func (g ExecutionGraph) IDs() []string {
	ids := make([]string, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	SortIDs(ids)
	return ids
}

// SortIDs sorts node ids numerically where possible.
func SortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		return LessID(ids[i], ids[j])
	})
}

// LessID orders numeric ids by value and places them before non-numeric
// ids, which compare lexicographically.
func LessID(a, b string) bool {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return x < y
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}

// Clone returns a structural deep copy. Injection mutates graphs in place,
// so callers submitting the same compiled graph more than once must clone
// it before each injection.
func (g ExecutionGraph) Clone() (ExecutionGraph, error) {
	if g == nil {
		return nil, nil
	}
	c, err := copystructure.Copy(g)
	if err != nil {
		return nil, fmt.Errorf("copying execution graph: %w", err)
	}
	return c.(ExecutionGraph), nil
}

// ByClassType returns the ids of all nodes with the given class type, in
// stable order.
func (g ExecutionGraph) ByClassType(classType string) []string {
	var ids []string
	for _, id := range g.IDs() {
		if g[id] != nil && g[id].ClassType == classType {
			ids = append(ids, id)
		}
	}
	return ids
}

// Payload builds the job submission body for the execution engine. Widget
// values are dropped since the engine only reads class_type and inputs.
func (g ExecutionGraph) Payload(clientID string) map[string]any {
	prompt := make(map[string]any, len(g))
	for id, n := range g {
		if n == nil {
			continue
		}
		node := map[string]any{
			"class_type": n.ClassType,
			"inputs":     n.Inputs,
		}
		if n.Inputs == nil {
			node["inputs"] = map[string]any{}
		}
		if n.Meta != nil {
			node["_meta"] = n.Meta
		}
		prompt[id] = node
	}
	payload := map[string]any{"prompt": prompt}
	if clientID != "" {
		payload["client_id"] = clientID
	}
	return payload
}

// Field implements path addressing at graph level, so "3.inputs.seed"
// addresses input seed of node 3.
func (g ExecutionGraph) Field(id string) (any, bool) {
	n, ok := g[id]
	if !ok || n == nil {
		return nil, false
	}
	return n, true
}

// SetField replaces a whole node. Only *ExecutionNode values are accepted.
func (g ExecutionGraph) SetField(id string, value any) bool {
	n, ok := value.(*ExecutionNode)
	if !ok || n == nil || g == nil {
		return false
	}
	g[id] = n
	return true
}

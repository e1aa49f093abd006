package model

import (
	"errors"
	"fmt"
)

// ErrStructural is the sentinel for every fatal shape problem. Check with
// errors.Is.
var ErrStructural = errors.New("structural error")

// Structural error kinds.
const (
	KindMissingClassType  = "missing_class_type"
	KindInvalidInputs     = "invalid_inputs"
	KindUnsupportedFormat = "unsupported_format"
	KindDuplicateID       = "duplicate_id"
	KindCycle             = "cycle"
)

// StructuralError is a fatal problem with the shape of a graph. NodeID is
// empty when the problem is not tied to a single node.
type StructuralError struct {
	Kind   string
	NodeID string
	Msg    string
}

func (e *StructuralError) Error() string {
	if e == nil {
		return ""
	}
	if e.NodeID != "" {
		return fmt.Sprintf("%s: node %s: %s", ErrStructural.Error(), e.NodeID, e.Msg)
	}
	if e.Msg == "" {
		return ErrStructural.Error()
	}
	return fmt.Sprintf("%s: %s", ErrStructural.Error(), e.Msg)
}

func (e *StructuralError) Unwrap() error { return ErrStructural }

// MissingClassTypeError is returned when a node has no operation
// identifier.
type MissingClassTypeError struct {
	NodeID string
}

func (e *MissingClassTypeError) Error() string {
	return fmt.Sprintf("%s: Node %s is missing class_type property", ErrStructural.Error(), e.NodeID)
}

func (e *MissingClassTypeError) Unwrap() error { return ErrStructural }

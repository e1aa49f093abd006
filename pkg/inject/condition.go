package inject

import (
	"errors"
	"reflect"
	"strings"

	"github.com/ritzau/wfc/pkg/model"
	"github.com/ritzau/wfc/pkg/pathaddr"
)

// Condition narrows the nodes a parameter applies to. All fields that are
// set must hold.
type Condition struct {
	// Path is read from the node for Exists, Equals and Contains.
	Path     string `koanf:"path" json:"path,omitempty"`
	Exists   *bool  `koanf:"exists" json:"exists,omitempty"`
	Equals   any    `koanf:"equals" json:"equals,omitempty"`
	Contains string `koanf:"contains" json:"contains,omitempty"`

	// ReferencedAs holds when another node has an input with this name
	// that references the candidate node. This is how the positive and
	// negative prompt encoders of a sampler are told apart.
	ReferencedAs string `koanf:"referenced_as" json:"referenced_as,omitempty"`
}

func (c Condition) validate() error {
	usesPath := c.Exists != nil || c.Equals != nil || c.Contains != ""
	if usesPath && c.Path == "" {
		return errors.New("path is required")
	}
	if !usesPath && c.ReferencedAs == "" {
		return errors.New("empty condition")
	}
	if c.Path != "" {
		if _, err := pathaddr.Parse(c.Path); err != nil {
			return err
		}
	}
	return nil
}

// Matches reports whether node id of g satisfies the condition.
func (c Condition) Matches(g model.ExecutionGraph, id string) bool {
	node := g[id]
	if node == nil {
		return false
	}

	if c.Path != "" {
		v, ok := pathaddr.Get(node, c.Path)
		if c.Exists != nil && ok != *c.Exists {
			return false
		}
		if c.Equals != nil && (!ok || !sameValue(v, c.Equals)) {
			return false
		}
		if c.Contains != "" {
			s, isString := v.(string)
			if !ok || !isString || !strings.Contains(s, c.Contains) {
				return false
			}
		}
	}

	if c.ReferencedAs != "" && !referencedAs(g, id, c.ReferencedAs) {
		return false
	}
	return true
}

func referencedAs(g model.ExecutionGraph, id, input string) bool {
	for otherID, other := range g {
		if otherID == id || other == nil {
			continue
		}
		if ref, ok := model.AsRef(other.Inputs[input]); ok && ref.NodeID == id {
			return true
		}
	}
	return false
}

// sameValue compares decoded values, treating numbers of different Go
// types as equal when their values are.
func sameValue(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

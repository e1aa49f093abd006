package inject

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ritzau/wfc/pkg/model"
	"github.com/ritzau/wfc/pkg/pathaddr"
)

// ParamType is the value type a parameter is coerced to before it is
// written.
type ParamType string

const (
	TypeString ParamType = "string"
	TypeNumber ParamType = "number"
)

// ParameterSpec says where a named parameter lands inside the nodes of an
// execution graph.
type ParameterSpec struct {
	Type         ParamType   `koanf:"type" json:"type"`
	NodeType     string      `koanf:"node_type" json:"node_type"`
	PrimaryPath  string      `koanf:"primary_path" json:"primary_path"`
	FallbackPath string      `koanf:"fallback_path" json:"fallback_path,omitempty"`
	Where        []Condition `koanf:"where" json:"where,omitempty"`

	// Predicate is an extra match test for registries built in code. It
	// must look at node shape, never at node ids.
	Predicate func(node *model.ExecutionNode) bool `koanf:"-" json:"-"`
}

// Registry maps parameter names to their specs.
type Registry map[string]ParameterSpec

// Names returns the parameter names in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate reports the first malformed entry.
func (r Registry) Validate() error {
	for _, name := range r.Names() {
		spec := r[name]
		switch spec.Type {
		case "", TypeString, TypeNumber:
		default:
			return fmt.Errorf("parameter %s: unknown type %q", name, spec.Type)
		}
		if spec.NodeType == "" {
			return fmt.Errorf("parameter %s: node_type is required", name)
		}
		if spec.PrimaryPath == "" && spec.FallbackPath == "" {
			return fmt.Errorf("parameter %s: no path to write to", name)
		}
		for _, p := range []string{spec.PrimaryPath, spec.FallbackPath} {
			if p == "" {
				continue
			}
			if _, err := pathaddr.Parse(p); err != nil {
				return fmt.Errorf("parameter %s: %w", name, err)
			}
		}
		for i, c := range spec.Where {
			if err := c.validate(); err != nil {
				return fmt.Errorf("parameter %s: where[%d]: %w", name, i, err)
			}
		}
	}
	return nil
}

// LoadRegistry reads a registry from a TOML or JSON file, chosen by
// extension. Each top-level table is one parameter:
//
//	[prompt]
//	type = "string"
//	node_type = "CLIPTextEncode"
//	primary_path = "inputs.text"
//	fallback_path = "widgets_values[0]"
//
//	[[prompt.where]]
//	referenced_as = "positive"
func LoadRegistry(path string) (Registry, error) {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		parser = toml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported registry format: %s", path)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to load registry %s: %w", path, err)
	}

	reg := Registry{}
	if err := k.Unmarshal("", &reg); err != nil {
		return nil, fmt.Errorf("failed to decode registry %s: %w", path, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid registry %s: %w", path, err)
	}
	return reg, nil
}

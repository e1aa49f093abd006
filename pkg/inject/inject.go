package inject

import (
	"fmt"
	"sort"

	"github.com/ritzau/wfc/pkg/logging"
	"github.com/ritzau/wfc/pkg/model"
	"github.com/ritzau/wfc/pkg/pathaddr"
)

// Applied records one successful write.
type Applied struct {
	Name   string `json:"name"`
	NodeID string `json:"nodeId"`
	Path   string `json:"path"`
}

// Report describes what an injection did. Misses never abort injection;
// they are collected as warnings.
type Report struct {
	Applied  []Applied       `json:"applied"`
	Warnings []model.Warning `json:"warnings"`
}

// Touched returns the ids of nodes that received at least one value.
func (r Report) Touched() []string {
	seen := make(map[string]bool, len(r.Applied))
	var ids []string
	for _, a := range r.Applied {
		if !seen[a.NodeID] {
			seen[a.NodeID] = true
			ids = append(ids, a.NodeID)
		}
	}
	model.SortIDs(ids)
	return ids
}

// Inject writes values into the nodes of g that reg points them at.
//
// Inject mutates g in place. Callers that submit the same compiled graph
// more than once must clone it before every call, or values from one
// submission leak into the next; InjectCopy does that.
func Inject(g model.ExecutionGraph, values map[string]any, reg Registry) Report {
	report := Report{Applied: []Applied{}, Warnings: []model.Warning{}}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw := values[name]
		if raw == nil {
			continue
		}

		spec, ok := reg[name]
		if !ok {
			report.miss("", name, "no such parameter")
			continue
		}
		value, err := Coerce(spec.Type, raw)
		if err != nil {
			report.miss("", name, err.Error())
			continue
		}

		targets := Targets(g, spec)
		if len(targets) == 0 {
			report.miss("", name, fmt.Sprintf("no %s node matched", spec.NodeType))
			continue
		}

		for _, id := range targets {
			path, ok := write(g[id], spec, value)
			if !ok {
				report.miss(id, name, "neither primary nor fallback path accepted the value")
				continue
			}
			report.Applied = append(report.Applied, Applied{Name: name, NodeID: id, Path: path})
		}
	}

	logging.Debug("injected parameters", "values", len(names), "writes", len(report.Applied), "misses", len(report.Warnings))
	return report
}

// InjectCopy clones g and injects into the clone, leaving g untouched.
func InjectCopy(g model.ExecutionGraph, values map[string]any, reg Registry) (model.ExecutionGraph, Report, error) {
	clone, err := g.Clone()
	if err != nil {
		return nil, Report{}, fmt.Errorf("failed to clone graph: %w", err)
	}
	return clone, Inject(clone, values, reg), nil
}

// Targets returns the ids of the nodes spec applies to, in id order.
func Targets(g model.ExecutionGraph, spec ParameterSpec) []string {
	var ids []string
	for _, id := range g.ByClassType(spec.NodeType) {
		if matches(g, id, spec) {
			ids = append(ids, id)
		}
	}
	return ids
}

func matches(g model.ExecutionGraph, id string, spec ParameterSpec) bool {
	if spec.Predicate != nil && !spec.Predicate(g[id]) {
		return false
	}
	for _, c := range spec.Where {
		if !c.Matches(g, id) {
			return false
		}
	}
	return true
}

func write(node *model.ExecutionNode, spec ParameterSpec, value any) (string, bool) {
	for _, path := range []string{spec.PrimaryPath, spec.FallbackPath} {
		if path == "" {
			continue
		}
		if pathaddr.Set(node, path, value) {
			return path, true
		}
	}
	return "", false
}

func (r *Report) miss(nodeID, name, msg string) {
	r.Warnings = append(r.Warnings, model.Warning{
		Kind:   model.InjectionMiss,
		NodeID: nodeID,
		Name:   name,
		Msg:    msg,
	})
	logging.Warn("parameter not injected", "param", name, "node", nodeID, "reason", msg)
}

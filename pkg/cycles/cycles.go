package cycles

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph/topo"

	"github.com/ritzau/wfc/pkg/graph"
	"github.com/ritzau/wfc/pkg/model"
)

// Cycle is a set of execution nodes that reference each other in a loop.
type Cycle struct {
	Nodes []string
}

func (c Cycle) String() string {
	return strings.Join(c.Nodes, ", ")
}

// FindCycles finds all reference cycles in rg, including nodes that read
// their own outputs. Node ids inside a cycle and the cycles themselves are
// sorted.
func FindCycles(rg *graph.RefGraph) []Cycle {
	var cycles []Cycle
	for _, scc := range topo.TarjanSCC(rg.Graph()) {
		// Self references are not edges in rg, so a single node is never
		// a cycle here.
		if len(scc) < 2 {
			continue
		}
		nodes := make([]string, 0, len(scc))
		for _, n := range scc {
			if id, ok := rg.NodeID(n.ID()); ok {
				nodes = append(nodes, id)
			}
		}
		model.SortIDs(nodes)
		cycles = append(cycles, Cycle{Nodes: nodes})
	}

	for _, id := range rg.SelfReferences() {
		cycles = append(cycles, Cycle{Nodes: []string{id}})
	}

	sort.Slice(cycles, func(i, j int) bool {
		a, b := cycles[i].Nodes[0], cycles[j].Nodes[0]
		if a == b {
			return len(cycles[i].Nodes) > len(cycles[j].Nodes)
		}
		return model.LessID(a, b)
	})

	return cycles
}

package graph

import (
	"slices"

	"github.com/ritzau/wfc/pkg/model"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// RefGraph is the data-flow graph of an execution graph: an edge runs from
// a node to every node that consumes one of its outputs.
type RefGraph struct {
	graph    *simple.DirectedGraph
	ids      map[string]int64 // node id -> gonum id
	names    map[int64]string // gonum id -> node id
	selfRefs []string         // nodes that reference themselves
	nextID   int64
}

// NewRefGraph creates an empty reference graph.
func NewRefGraph() *RefGraph {
	return &RefGraph{
		graph: simple.NewDirectedGraph(),
		ids:   make(map[string]int64),
		names: make(map[int64]string),
	}
}

// AddNode adds a node to the graph.
func (rg *RefGraph) AddNode(id string) {
	if _, exists := rg.ids[id]; exists {
		return
	}

	rg.ids[id] = rg.nextID
	rg.names[rg.nextID] = id
	rg.graph.AddNode(simple.Node(rg.nextID))
	rg.nextID++
}

// AddReference records that consumer reads an output of source. gonum
// simple graphs cannot hold self edges, so those are kept aside.
func (rg *RefGraph) AddReference(source, consumer string) {
	if source == consumer {
		rg.AddNode(source)
		if !slices.Contains(rg.selfRefs, source) {
			rg.selfRefs = append(rg.selfRefs, source)
		}
		return
	}

	rg.AddNode(source)
	rg.AddNode(consumer)

	from := rg.ids[source]
	to := rg.ids[consumer]
	if !rg.graph.HasEdgeFromTo(from, to) {
		rg.graph.SetEdge(rg.graph.NewEdge(rg.graph.Node(from), rg.graph.Node(to)))
	}
}

// Graph returns the underlying directed graph
func (rg *RefGraph) Graph() *simple.DirectedGraph {
	return rg.graph
}

// NodeID maps a gonum id back to the execution node id.
func (rg *RefGraph) NodeID(id int64) (string, bool) {
	name, ok := rg.names[id]
	return name, ok
}

// SelfReferences returns nodes that read their own outputs.
func (rg *RefGraph) SelfReferences() []string {
	return rg.selfRefs
}

// Nodes returns all node ids in the graph.
func (rg *RefGraph) Nodes() []string {
	nodes := make([]string, 0, len(rg.ids))
	for id := range rg.ids {
		nodes = append(nodes, id)
	}
	model.SortIDs(nodes)
	return nodes
}

// Edges returns all references as [source, consumer] pairs.
func (rg *RefGraph) Edges() [][2]string {
	var edges [][2]string

	iter := rg.graph.Edges()
	for iter.Next() {
		edge := iter.Edge()
		edges = append(edges, [2]string{rg.names[edge.From().ID()], rg.names[edge.To().ID()]})
	}

	return edges
}

// Consumers returns the nodes reading outputs of id.
func (rg *RefGraph) Consumers(id string) []string {
	return rg.neighbours(id, rg.graph.From)
}

// Sources returns the nodes whose outputs id reads.
func (rg *RefGraph) Sources(id string) []string {
	return rg.neighbours(id, rg.graph.To)
}

func (rg *RefGraph) neighbours(id string, step func(int64) graph.Nodes) []string {
	gid, exists := rg.ids[id]
	if !exists {
		return nil
	}

	var out []string
	iter := step(gid)
	for iter.Next() {
		out = append(out, rg.names[iter.Node().ID()])
	}
	model.SortIDs(out)
	return out
}

// Order returns node ids so that every node comes after all of its
// sources. Ties are broken by id so the order is stable. It fails when the
// graph has a cycle.
func (rg *RefGraph) Order() ([]string, error) {
	sorted, err := topo.SortStabilized(rg.graph, func(nodes []graph.Node) {
		ids := make([]string, len(nodes))
		byName := make(map[string]graph.Node, len(nodes))
		for i, n := range nodes {
			ids[i] = rg.names[n.ID()]
			byName[ids[i]] = n
		}
		model.SortIDs(ids)
		for i, id := range ids {
			nodes[i] = byName[id]
		}
	})
	if err != nil {
		return nil, err
	}

	order := make([]string, 0, len(sorted))
	for _, n := range sorted {
		order = append(order, rg.names[n.ID()])
	}
	return order, nil
}

// BuildRefGraph builds the reference graph of an execution graph. References
// to nodes that do not exist are skipped; validation reports those.
func BuildRefGraph(g model.ExecutionGraph) *RefGraph {
	rg := NewRefGraph()

	for _, id := range g.IDs() {
		rg.AddNode(id)
	}

	for _, id := range g.IDs() {
		node := g[id]
		if node == nil {
			continue
		}
		for _, v := range node.Inputs {
			ref, ok := model.AsRef(v)
			if !ok {
				continue
			}
			if _, exists := g[ref.NodeID]; !exists {
				continue
			}
			rg.AddReference(ref.NodeID, id)
		}
	}

	return rg
}

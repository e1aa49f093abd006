package compiler

import (
	"github.com/ritzau/wfc/pkg/graph"
	"github.com/ritzau/wfc/pkg/model"
)

// Order returns the node ids of g so that every node follows the nodes it
// reads from. It fails with a structural error when references form a
// cycle.
func Order(g model.ExecutionGraph) ([]string, error) {
	rg := graph.BuildRefGraph(g)
	if self := rg.SelfReferences(); len(self) > 0 {
		return nil, &model.StructuralError{Kind: model.KindCycle, NodeID: self[0], Msg: "node references its own output"}
	}
	order, err := rg.Order()
	if err != nil {
		return nil, &model.StructuralError{Kind: model.KindCycle, Msg: err.Error()}
	}
	return order, nil
}

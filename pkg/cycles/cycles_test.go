package cycles

import (
	"reflect"
	"testing"

	"github.com/ritzau/wfc/pkg/graph"
)

func TestFindCycles_NoCycles(t *testing.T) {
	rg := graph.NewRefGraph()

	// A simple chain: 1 -> 2 -> 3
	rg.AddReference("1", "2")
	rg.AddReference("2", "3")

	cycles := FindCycles(rg)

	if len(cycles) != 0 {
		t.Errorf("Expected no cycles, but found %d", len(cycles))
	}
}

func TestFindCycles_SimpleCycle(t *testing.T) {
	rg := graph.NewRefGraph()

	rg.AddReference("1", "2")
	rg.AddReference("2", "1")

	cycles := FindCycles(rg)

	if len(cycles) != 1 {
		t.Fatalf("Expected 1 cycle, but found %d", len(cycles))
	}
	if !reflect.DeepEqual(cycles[0].Nodes, []string{"1", "2"}) {
		t.Errorf("Expected cycle [1 2], got %v", cycles[0].Nodes)
	}
}

func TestFindCycles_ThreeNodeCycle(t *testing.T) {
	rg := graph.NewRefGraph()

	rg.AddReference("10", "2")
	rg.AddReference("2", "3")
	rg.AddReference("3", "10")

	cycles := FindCycles(rg)

	if len(cycles) != 1 {
		t.Fatalf("Expected 1 cycle, but found %d", len(cycles))
	}
	if cycles[0].String() != "2, 3, 10" {
		t.Errorf("Expected cycle 2, 3, 10, got %s", cycles[0])
	}
}

func TestFindCycles_SelfReference(t *testing.T) {
	rg := graph.NewRefGraph()

	rg.AddReference("5", "5")
	rg.AddReference("1", "2")
	rg.AddReference("2", "1")

	cycles := FindCycles(rg)

	if len(cycles) != 2 {
		t.Fatalf("Expected 2 cycles, but found %d", len(cycles))
	}
	if cycles[1].String() != "5" {
		t.Errorf("Expected self reference on 5 last, got %v", cycles)
	}
}

package graph

import (
	"reflect"
	"testing"

	"github.com/ritzau/wfc/pkg/model"
)

func TestNewRefGraph(t *testing.T) {
	rg := NewRefGraph()
	if rg == nil {
		t.Fatal("NewRefGraph() returned nil")
	}

	if len(rg.Nodes()) != 0 {
		t.Errorf("New graph should have 0 nodes, got %d", len(rg.Nodes()))
	}
}

func TestAddReference(t *testing.T) {
	rg := NewRefGraph()

	rg.AddReference("1", "2")
	rg.AddReference("1", "2")

	edges := rg.Edges()
	if len(edges) != 1 {
		t.Fatalf("Expected 1 edge, got %d", len(edges))
	}
	if edges[0] != [2]string{"1", "2"} {
		t.Errorf("Expected edge 1->2, got %v", edges[0])
	}
	if got := rg.Consumers("1"); !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("Consumers(1) = %v", got)
	}
	if got := rg.Sources("2"); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("Sources(2) = %v", got)
	}
}

func TestSelfReferenceKeptAside(t *testing.T) {
	rg := NewRefGraph()

	rg.AddReference("4", "4")
	rg.AddReference("4", "4")

	if len(rg.Edges()) != 0 {
		t.Errorf("Self reference should not become an edge")
	}
	if got := rg.SelfReferences(); !reflect.DeepEqual(got, []string{"4"}) {
		t.Errorf("SelfReferences() = %v", got)
	}
}

func TestBuildRefGraph(t *testing.T) {
	g := model.ExecutionGraph{
		"4":  {ClassType: "CheckpointLoaderSimple", Inputs: map[string]any{"ckpt_name": "sd15.safetensors"}},
		"6":  {ClassType: "CLIPTextEncode", Inputs: map[string]any{"clip": model.Ref{NodeID: "4", Output: 1}}},
		"3":  {ClassType: "KSampler", Inputs: map[string]any{"model": model.Ref{NodeID: "4", Output: 0}, "positive": model.Ref{NodeID: "6", Output: 0}}},
		"8":  {ClassType: "VAEDecode", Inputs: map[string]any{"samples": model.Ref{NodeID: "3", Output: 0}, "vae": model.Ref{NodeID: "4", Output: 2}}},
		"9":  {ClassType: "SaveImage", Inputs: map[string]any{"images": model.Ref{NodeID: "8", Output: 0}}},
		"10": {ClassType: "Dangling", Inputs: map[string]any{"x": model.Ref{NodeID: "99", Output: 0}}},
	}

	rg := BuildRefGraph(g)

	if got := rg.Nodes(); !reflect.DeepEqual(got, []string{"3", "4", "6", "8", "9", "10"}) {
		t.Errorf("Nodes() = %v", got)
	}
	if got := rg.Consumers("4"); !reflect.DeepEqual(got, []string{"3", "6", "8"}) {
		t.Errorf("Consumers(4) = %v", got)
	}
	if len(rg.Sources("10")) != 0 {
		t.Error("Reference to a missing node should be skipped")
	}

	order, err := rg.Order()
	if err != nil {
		t.Fatalf("Order() error = %v", err)
	}
	pos := make(map[string]int)
	for i, id := range order {
		pos[id] = i
	}
	for _, e := range rg.Edges() {
		if pos[e[0]] > pos[e[1]] {
			t.Errorf("Node %s ordered after its consumer %s: %v", e[0], e[1], order)
		}
	}
}

func TestOrderFailsOnCycle(t *testing.T) {
	rg := NewRefGraph()
	rg.AddReference("1", "2")
	rg.AddReference("2", "1")

	if _, err := rg.Order(); err == nil {
		t.Error("Expected error ordering a cyclic graph")
	}
}

package resolve

import (
	"testing"

	"github.com/ritzau/wfc/pkg/model"
)

func TestResolveInput(t *testing.T) {
	links := []model.LinkRecord{
		model.NewLink(10, 1, 0, 2, 0),
		model.NewLink(11, 4, 2, 2, 1),
		model.NewLink(12, 9, 0, 2, 2),
	}
	surviving := map[int64]bool{1: true, 2: true, 4: true}

	tests := []struct {
		name      string
		slot      model.InputSlot
		zeroIndex bool
		want      model.Ref
		ok        bool
	}{
		{"linked", model.InputSlot{Name: "text", Link: model.LinkPtr(10)}, false, model.Ref{NodeID: "1", Output: 0}, true},
		{"keeps output index", model.InputSlot{Name: "vae", Link: model.LinkPtr(11)}, false, model.Ref{NodeID: "4", Output: 2}, true},
		{"zero index option", model.InputSlot{Name: "vae", Link: model.LinkPtr(11)}, true, model.Ref{NodeID: "4", Output: 0}, true},
		{"source removed", model.InputSlot{Name: "x", Link: model.LinkPtr(12)}, false, model.Ref{}, false},
		{"unknown link", model.InputSlot{Name: "x", Link: model.LinkPtr(99)}, false, model.Ref{}, false},
		{"unconnected", model.InputSlot{Name: "x"}, false, model.Ref{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveInput(tt.slot, links, surviving, tt.zeroIndex)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ResolveInput() = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSlotPositionalFallback(t *testing.T) {
	node := &model.EditorNode{
		ID:   2,
		Type: "Sampler",
		Inputs: []model.InputSlot{
			{Name: "model", Link: model.LinkPtr(10)},
			{Name: "seed"},
			{Name: "steps"},
			{Name: "cfg"},
		},
		WidgetValues: []any{"ignored", 42.0, []any{"7", 0.0}},
	}
	r := New([]model.LinkRecord{model.NewLink(10, 1, 0, 2, 0)}, map[int64]bool{1: true, 2: true})

	if res := r.Slot(node, 0); res.Outcome != Linked || res.Value != (model.Ref{NodeID: "1", Output: 0}) {
		t.Errorf("slot 0: got %+v", res)
	}

	res := r.Slot(node, 1)
	if res.Outcome != Widget || res.Value != 42.0 {
		t.Errorf("slot 1: expected widget value 42, got %+v", res)
	}

	// A reference-shaped widget value is not a literal.
	if res := r.Slot(node, 2); res.Outcome != Gap {
		t.Errorf("slot 2: expected gap, got %+v", res)
	}

	// No widget at position 3.
	if res := r.Slot(node, 3); res.Outcome != Gap || res.Reason == "" {
		t.Errorf("slot 3: expected gap with reason, got %+v", res)
	}
}

func TestSlotFallbackFollowsWidgetChanges(t *testing.T) {
	node := &model.EditorNode{
		ID:           1,
		Inputs:       []model.InputSlot{{Name: "width"}},
		WidgetValues: []any{512.0},
	}
	r := New(nil, map[int64]bool{1: true})

	if res := r.Slot(node, 0); res.Value != 512.0 {
		t.Fatalf("Expected 512, got %v", res.Value)
	}
	node.WidgetValues[0] = 768.0
	if res := r.Slot(node, 0); res.Value != 768.0 {
		t.Errorf("Expected 768 after widget change, got %v", res.Value)
	}
}

func TestSlotRemovedSourceFallsBackToWidget(t *testing.T) {
	node := &model.EditorNode{
		ID:           3,
		Inputs:       []model.InputSlot{{Name: "seed", Link: model.LinkPtr(20)}},
		WidgetValues: []any{1234.0},
	}
	// Node 8 (a primitive) was filtered out.
	r := New([]model.LinkRecord{model.NewLink(20, 8, 0, 3, 0)}, map[int64]bool{3: true})

	res := r.Slot(node, 0)
	if res.Outcome != Widget || res.Value != 1234.0 {
		t.Errorf("Expected widget fallback, got %+v", res)
	}
	if res.Reason == "" {
		t.Error("Expected reason describing the removed source")
	}
}

func TestWidgetMapFallback(t *testing.T) {
	node := &model.EditorNode{
		ID:        5,
		Inputs:    []model.InputSlot{{Name: "images", Link: model.LinkPtr(1)}, {Name: "frame_rate"}},
		WidgetMap: map[string]any{"frame_rate": 8.0},
	}

	v, ok := WidgetFallback(node, 1)
	if !ok || v != 8.0 {
		t.Errorf("WidgetFallback() = %v, %v; want 8, true", v, ok)
	}
	if _, ok := WidgetFallback(node, 0); ok {
		t.Error("Expected no fallback for images")
	}
}

func TestIsLiteral(t *testing.T) {
	if IsLiteral(nil) {
		t.Error("nil is not a literal")
	}
	if IsLiteral([]any{"1", 0.0}) {
		t.Error("reference-shaped value is not a literal")
	}
	if !IsLiteral([]any{1.0, 2.0}) {
		t.Error("numeric list is a literal")
	}
	if !IsLiteral("euler") {
		t.Error("string is a literal")
	}
}

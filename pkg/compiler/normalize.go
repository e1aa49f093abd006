package compiler

import (
	"github.com/ritzau/wfc/pkg/model"
	"github.com/ritzau/wfc/pkg/resolve"
)

// Normalizer adjusts a freshly compiled node of one class type. It runs
// after generic input resolution and may overwrite what it produced.
type Normalizer func(node *model.ExecutionNode)

// DefaultUITypes are editor node types that never reach the engine.
var DefaultUITypes = []string{"Note", "MarkdownNote", "Reroute", "PrimitiveNode"}

// DefaultNormalizers returns normalizers for the stock engine nodes. The
// widget orders follow the engine's node definitions; an empty name skips
// an editor-only widget such as control_after_generate.
func DefaultNormalizers() map[string]Normalizer {
	return map[string]Normalizer{
		"CheckpointLoaderSimple": FromWidgets("ckpt_name"),
		"VAELoader":              FromWidgets("vae_name"),
		"LoraLoader":             Chain(LinkOnly("model", "clip"), FromWidgets("lora_name", "strength_model", "strength_clip")),
		"CLIPTextEncode":         Chain(LinkOnly("clip"), FromWidgets("text")),
		"EmptyLatentImage":       FromWidgets("width", "height", "batch_size"),
		"LoadImage":              FromWidgets("image"),
		"SaveImage":              Chain(LinkOnly("images"), FromWidgets("filename_prefix")),
		"KSampler": Chain(
			LinkOnly("model", "positive", "negative", "latent_image"),
			FromWidgets("seed", "", "steps", "cfg", "sampler_name", "scheduler", "denoise"),
		),
		"KSamplerAdvanced": Chain(
			LinkOnly("model", "positive", "negative", "latent_image"),
			FromWidgets("add_noise", "noise_seed", "", "steps", "cfg", "sampler_name", "scheduler",
				"start_at_step", "end_at_step", "return_with_leftover_noise"),
		),
	}
}

// FromWidgets maps widget values to named inputs by position. Inputs that
// are wired to another node are left alone.
func FromWidgets(names ...string) Normalizer {
	return func(node *model.ExecutionNode) {
		for i, name := range names {
			if name == "" || i >= len(node.WidgetValues) {
				continue
			}
			v := node.WidgetValues[i]
			if !resolve.IsLiteral(v) {
				continue
			}
			if model.IsReference(node.Inputs[name]) {
				continue
			}
			node.Inputs[name] = v
		}
	}
}

// LinkOnly drops literal values from inputs that only make sense when
// wired, undoing bogus positional fallbacks.
func LinkOnly(names ...string) Normalizer {
	return func(node *model.ExecutionNode) {
		for _, name := range names {
			if v, ok := node.Inputs[name]; ok && !model.IsReference(v) {
				delete(node.Inputs, name)
			}
		}
	}
}

// Chain runs normalizers in order.
func Chain(normalizers ...Normalizer) Normalizer {
	return func(node *model.ExecutionNode) {
		for _, n := range normalizers {
			n(node)
		}
	}
}

// Renormalize runs the normalizers over every node of g in place. It is
// useful after widget values were edited on a compiled graph.
func Renormalize(g model.ExecutionGraph, normalizers map[string]Normalizer) {
	for _, id := range g.IDs() {
		node := g[id]
		if node == nil {
			continue
		}
		if node.Inputs == nil {
			node.Inputs = make(map[string]any)
		}
		if normalize, ok := normalizers[node.ClassType]; ok {
			normalize(node)
		}
	}
}

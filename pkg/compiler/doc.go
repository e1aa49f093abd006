// Package compiler turns editor graphs into execution graphs.
//
// Compilation runs in a fixed order:
//
//   - Filter: presentation-only nodes (notes, reroutes...) are dropped
//     together with every link touching them
//   - Resolve: each input slot becomes a reference to its source node's
//     output, or falls back to the node's widget value at the same position
//   - Normalize: per class type rules adjust inputs from widget values,
//     overriding what generic resolution produced
//
// A graph that is already execution-shaped is passed through with
// validation. Structural problems abort with an error wrapping
// model.ErrStructural; resolution gaps are returned as warnings and logged.
//
// Validate is independent of compilation and can be used as a guard right
// before a graph is submitted.
package compiler

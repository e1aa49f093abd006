// Package pathaddr reads and writes values inside nested JSON-like data
// using small path expressions such as
//
//	widgets_values[0]
//	inputs.text
//	_meta.title
//	extra.layers[2][1].name
//
// A path is a dot separated list of segments. Each segment is a name
// optionally followed by one or more bracketed non-negative indices.
//
// Containers are map[string]any, []any, and any value implementing Fielder.
// Writes happen in place: Set mutates the value it is given, creating
// missing maps and padding short lists with nil on the way down. Callers that
// need the original untouched must copy it first.
package pathaddr

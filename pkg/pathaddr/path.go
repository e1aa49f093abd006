package pathaddr

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxIndex is the largest list index a path may address. Set pads lists
// up to the index it writes, so the cap bounds that allocation.
const MaxIndex = 1 << 16

// Fielder is implemented by typed values that expose named fields to path
// addressing. SetField must reject values of the wrong shape.
type Fielder interface {
	Field(name string) (any, bool)
	SetField(name string, value any) bool
}

// Step is one hop of a parsed path: either a named field or a list index.
type Step struct {
	Key     string
	Index   int
	IsIndex bool
}

func (s Step) String() string {
	if s.IsIndex {
		return fmt.Sprintf("[%d]", s.Index)
	}
	return s.Key
}

// Path is a parsed path expression.
type Path []Step

func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		if i > 0 && !s.IsIndex {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// Parse parses a path expression. Every segment needs a name; indices must
// be non-negative decimal integers no larger than MaxIndex.
func Parse(expr string) (Path, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("empty path")
	}

	var path Path
	for _, seg := range strings.Split(expr, ".") {
		name, rest, _ := strings.Cut(seg, "[")
		if name == "" {
			return nil, fmt.Errorf("path %q: empty segment name", expr)
		}
		if strings.ContainsAny(name, "]") {
			return nil, fmt.Errorf("path %q: unexpected ']' in %q", expr, seg)
		}
		path = append(path, Step{Key: name})

		if len(seg) == len(name) {
			continue
		}
		// rest is everything after the first '[', e.g. "0][1]"
		for _, part := range strings.Split(rest, "[") {
			digits, ok := strings.CutSuffix(part, "]")
			if !ok || digits == "" {
				return nil, fmt.Errorf("path %q: malformed index in %q", expr, seg)
			}
			idx, err := strconv.Atoi(digits)
			if err != nil || idx < 0 || strings.HasPrefix(digits, "+") {
				return nil, fmt.Errorf("path %q: index %q is not a non-negative integer", expr, digits)
			}
			if idx > MaxIndex {
				return nil, fmt.Errorf("path %q: index %d exceeds the maximum of %d", expr, idx, MaxIndex)
			}
			path = append(path, Step{Index: idx, IsIndex: true})
		}
	}
	return path, nil
}

// Get returns the value at expr inside obj. It reports false when the path
// does not parse or any step along it is missing; it never panics.
func Get(obj any, expr string) (any, bool) {
	path, err := Parse(expr)
	if err != nil {
		return nil, false
	}
	return path.Get(obj)
}

// Set writes value at expr inside obj, creating intermediate maps and
// lists as needed. It reports whether the write happened. obj must be a
// map[string]any or a Fielder since the root itself cannot be replaced.
func Set(obj any, expr string, value any) bool {
	path, err := Parse(expr)
	if err != nil {
		return false
	}
	return path.Set(obj, value)
}

// Get walks the path from obj.
func (p Path) Get(obj any) (any, bool) {
	if len(p) == 0 {
		return nil, false
	}
	cur := obj
	for _, step := range p {
		next, ok := child(cur, step)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Set writes value at the end of the path.
func (p Path) Set(obj any, value any) bool {
	if len(p) == 0 || p[0].IsIndex {
		return false
	}
	switch root := obj.(type) {
	case map[string]any:
		if root == nil {
			return false
		}
	case Fielder:
		if root == nil {
			return false
		}
	default:
		return false
	}
	_, ok := setIn(obj, p, value)
	return ok
}

func child(cur any, step Step) (any, bool) {
	if step.IsIndex {
		list, ok := cur.([]any)
		if !ok || step.Index >= len(list) {
			return nil, false
		}
		return list[step.Index], true
	}
	switch c := cur.(type) {
	case map[string]any:
		v, ok := c[step.Key]
		return v, ok
	case Fielder:
		if c == nil {
			return nil, false
		}
		return c.Field(step.Key)
	}
	return nil, false
}

// setIn returns the (possibly new) container that should replace cur in its
// parent. Parents only store the result when the write below succeeded.
func setIn(cur any, p Path, value any) (any, bool) {
	if len(p) == 0 {
		return value, true
	}
	step, rest := p[0], p[1:]

	if step.IsIndex {
		if step.Index < 0 || step.Index > MaxIndex {
			return nil, false
		}
		var list []any
		switch c := cur.(type) {
		case nil:
			list = make([]any, step.Index+1)
		case []any:
			list = c
			for len(list) <= step.Index {
				list = append(list, nil)
			}
		default:
			return nil, false
		}
		next, ok := setIn(list[step.Index], rest, value)
		if !ok {
			return nil, false
		}
		list[step.Index] = next
		return list, true
	}

	switch c := cur.(type) {
	case nil:
		m := make(map[string]any)
		next, ok := setIn(nil, rest, value)
		if !ok {
			return nil, false
		}
		m[step.Key] = next
		return m, true
	case map[string]any:
		next, ok := setIn(c[step.Key], rest, value)
		if !ok {
			return nil, false
		}
		if c == nil {
			c = make(map[string]any)
		}
		c[step.Key] = next
		return c, true
	case Fielder:
		existing, _ := c.Field(step.Key)
		next, ok := setIn(existing, rest, value)
		if !ok {
			return nil, false
		}
		if !c.SetField(step.Key, next) {
			return nil, false
		}
		return c, true
	}
	return nil, false
}

package inject

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Coerce converts v to the parameter type t. Integers stay integers so
// that large seeds survive; numeric strings are accepted for numbers. An
// empty type passes v through.
func Coerce(t ParamType, v any) (any, error) {
	switch t {
	case "":
		return v, nil
	case TypeNumber:
		return toNumber(v)
	case TypeString:
		return toString(v)
	}
	return nil, fmt.Errorf("unknown parameter type %q", t)
}

func toNumber(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint:
		return fromUint(uint64(n))
	case uint64:
		return fromUint(n)
	case float32:
		return float64(n), nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("%v is not a finite number", n)
		}
		return n, nil
	case json.Number:
		return parseNumber(n.String())
	case string:
		return parseNumber(n)
	}
	return nil, fmt.Errorf("cannot use %T as a number", v)
}

func fromUint(n uint64) (any, error) {
	if n > math.MaxInt64 {
		return nil, fmt.Errorf("%d does not fit in an int64", n)
	}
	return int64(n), nil
}

func parseNumber(s string) (any, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%q is not a number", s)
	}
	return f, nil
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return fmt.Sprint(s), nil
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("cannot use %T as a string", v)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

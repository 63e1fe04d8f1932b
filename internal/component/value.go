package component

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ValueType constrains what a configuration channel accepts.
type ValueType string

// Value types.
const (
	TypeAny     ValueType = "any"
	TypeNumber  ValueType = "number"
	TypeInteger ValueType = "integer"
	TypeString  ValueType = "string"
	TypeBool    ValueType = "boolean"
)

// NormalizeValue converts a decoded scalar to its canonical form: nil,
// float64, string or bool. Numbers from JSON (json.Number), CBOR (int64,
// uint64) and YAML (int) all become float64.
func NormalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidValue, x.String())
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
	}
}

// ValuesEqual compares two normalised values.
func ValuesEqual(a, b any) bool {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		return af == bf || (math.IsNaN(af) && math.IsNaN(bf))
	}
	return a == b
}

// coerce normalises v and checks it against t.
func coerce(t ValueType, v any) (any, error) {
	n, err := NormalizeValue(v)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, nil
	}

	switch t {
	case TypeAny:
		return n, nil
	case TypeNumber:
		if _, ok := n.(float64); ok {
			return n, nil
		}
		if s, ok := n.(string); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, nil
			}
		}
	case TypeInteger:
		f, ok := n.(float64)
		if !ok {
			if s, isStr := n.(string); isStr {
				if i, err := strconv.ParseInt(s, 10, 64); err == nil {
					return float64(i), nil
				}
			}
			break
		}
		if f == math.Trunc(f) {
			return f, nil
		}
	case TypeString:
		if s, ok := n.(string); ok {
			return s, nil
		}
	case TypeBool:
		if b, ok := n.(bool); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %v is not %s", ErrInvalidValue, v, t)
}

// FormatValue renders a value the way it appears on the wire.
func FormatValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

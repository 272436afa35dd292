package params

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
)

// Params maps parameter names to values.
type Params map[string]Value

// Keys returns the parameter names in lexicographic order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether p and q have the same keys and equal values.
func (p Params) Equal(q Params) bool {
	if len(p) != len(q) {
		return false
	}
	for k, pv := range p {
		qv, ok := q[k]
		if !ok || !Equal(pv, qv) {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a copy of p with every entry of q applied on top.
func (p Params) Merge(q Params) Params {
	out := p.Clone()
	for k, v := range q {
		out[k] = v
	}
	return out
}

// FromMap converts a decoded document into Params using FromAny per key.
func FromMap(m map[string]any) Params {
	p := make(Params, len(m))
	for k, v := range m {
		p[k] = FromAny(v)
	}
	return p
}

// FromAny converts a Go value into a Value.
//
// Integers become Int, floats Float, and so on. Rectangular lists of numbers,
// nested to any depth, become IntArray when every element is an integer and
// FloatArray otherwise. Everything else, including maps and ragged or mixed
// lists, becomes Other.
func FromAny(v any) Value {
	switch val := v.(type) {
	case Value:
		return val
	case int:
		return Int(val)
	case int8:
		return Int(val)
	case int16:
		return Int(val)
	case int32:
		return Int(val)
	case int64:
		return Int(val)
	case uint8:
		return Int(val)
	case uint16:
		return Int(val)
	case uint32:
		return Int(val)
	case uint:
		if uint64(val) > math.MaxInt64 {
			return Other{V: val}
		}
		return Int(val)
	case uint64:
		if val > math.MaxInt64 {
			return Other{V: val}
		}
		return Int(val)
	case float32:
		return Float(val)
	case float64:
		return Float(val)
	case *big.Int:
		if val != nil && val.IsInt64() {
			return Int(val.Int64())
		}
		return Other{V: val}
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return Int(n)
		}
		if x, err := val.Float64(); err == nil {
			return Float(x)
		}
		return Other{V: val}
	case bool:
		return Bool(val)
	case string:
		return String(val)
	case []int64:
		return NewIntArray(append([]int64(nil), val...)...)
	case []float64:
		return NewFloatArray(append([]float64(nil), val...)...)
	case []int:
		data := make([]int64, len(val))
		for i, n := range val {
			data[i] = int64(n)
		}
		return NewIntArray(data...)
	case []any:
		if arr, ok := arrayFromList(val); ok {
			return arr
		}
		return Other{V: val}
	default:
		return Other{V: v}
	}
}

// arrayFromList flattens a rectangular list of numbers.
func arrayFromList(list []any) (Value, bool) {
	var (
		shape  []int
		ints   []int64
		floats []float64
		isInt  = true
	)

	var walk func(v any, depth int) bool
	walk = func(v any, depth int) bool {
		if sub, ok := v.([]any); ok {
			if depth == len(shape) {
				if depth > 0 && len(ints)+len(floats) > 0 {
					return false // list where a scalar was seen before
				}
				shape = append(shape, len(sub))
			} else if depth > len(shape) || shape[depth] != len(sub) {
				return false
			}
			for _, elem := range sub {
				if !walk(elem, depth+1) {
					return false
				}
			}
			return true
		}

		if depth != len(shape) {
			return false // scalar at the wrong depth
		}
		switch n := FromAny(v).(type) {
		case Int:
			ints = append(ints, int64(n))
			floats = append(floats, float64(n))
		case Float:
			isInt = false
			ints = append(ints, 0)
			floats = append(floats, float64(n))
		default:
			return false
		}
		return true
	}

	if !walk(list, 0) {
		return nil, false
	}
	if len(ints) == 0 {
		return FloatArray{Shape: shape, Data: []float64{}}, true
	}
	if isInt {
		return IntArray{Shape: shape, Data: ints}, true
	}
	return FloatArray{Shape: shape, Data: floats}, true
}

// ToAny converts a Value back into plain Go values suitable for JSON or YAML
// output. Arrays become nested lists following their shape.
func ToAny(v Value) any {
	switch val := v.(type) {
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case String:
		return string(val)
	case IntArray:
		flat := make([]any, len(val.Data))
		for i, n := range val.Data {
			flat[i] = n
		}
		return nest(val.Dims(), flat)
	case FloatArray:
		flat := make([]any, len(val.Data))
		for i, x := range val.Data {
			flat[i] = x
		}
		return nest(val.Dims(), flat)
	case Other:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}

// ToMap converts Params into a plain map via ToAny.
func ToMap(p Params) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = ToAny(v)
	}
	return out
}

func nest(shape []int, flat []any) any {
	if len(shape) <= 1 {
		return flat
	}
	n := shape[0]
	if n == 0 || len(flat) == 0 {
		return []any{}
	}
	step := len(flat) / n
	out := make([]any, n)
	for i := 0; i < n; i++ {
		out[i] = nest(shape[1:], flat[i*step:(i+1)*step])
	}
	return out
}

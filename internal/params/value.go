package params

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
)

// Kind identifies the variant of a Value.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindString
	KindArray
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindOther:
		return "other"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a sealed interface over the parameter variants.
// String returns the representation used when a value degrades to a string.
type Value interface {
	Kind() Kind
	String() string
	paramValue() // Sealed
}

// Int is an integer parameter.
type Int int64

// Float is a floating point parameter.
type Float float64

// Bool is a boolean parameter.
type Bool bool

// String is a string parameter.
type String string

// FloatArray is a fixed-shape float64 array stored in row-major order.
type FloatArray struct {
	Shape []int
	Data  []float64
}

// IntArray is a fixed-shape int64 array stored in row-major order.
type IntArray struct {
	Shape []int
	Data  []int64
}

// Other wraps a value outside the supported variants.
// It is written as String(fmt.Sprint(V)) and never reads back as Other.
type Other struct {
	V any
}

func (Int) paramValue()        {}
func (Float) paramValue()      {}
func (Bool) paramValue()       {}
func (String) paramValue()     {}
func (FloatArray) paramValue() {}
func (IntArray) paramValue()   {}
func (Other) paramValue()      {}

func (Int) Kind() Kind        { return KindInt }
func (Float) Kind() Kind      { return KindFloat }
func (Bool) Kind() Kind       { return KindBool }
func (String) Kind() Kind     { return KindString }
func (FloatArray) Kind() Kind { return KindArray }
func (IntArray) Kind() Kind   { return KindArray }
func (Other) Kind() Kind      { return KindOther }

func (v Int) String() string   { return strconv.FormatInt(int64(v), 10) }
func (v Float) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v Bool) String() string  { return strconv.FormatBool(bool(v)) }
func (v String) String() string {
	return string(v)
}
func (v Other) String() string { return fmt.Sprint(v.V) }

func (v FloatArray) String() string {
	if len(v.Dims()) > 1 {
		return fmt.Sprintf("%v%v", v.Shape, v.Data)
	}
	return fmt.Sprint(v.Data)
}

func (v IntArray) String() string {
	if len(v.Dims()) > 1 {
		return fmt.Sprintf("%v%v", v.Shape, v.Data)
	}
	return fmt.Sprint(v.Data)
}

// Dims returns the array shape, treating a nil Shape as one-dimensional.
func (v FloatArray) Dims() []int {
	if v.Shape == nil {
		return []int{len(v.Data)}
	}
	return v.Shape
}

// Dims returns the array shape, treating a nil Shape as one-dimensional.
func (v IntArray) Dims() []int {
	if v.Shape == nil {
		return []int{len(v.Data)}
	}
	return v.Shape
}

// NewFloatArray returns a one-dimensional FloatArray over data.
func NewFloatArray(data ...float64) FloatArray {
	return FloatArray{Shape: []int{len(data)}, Data: data}
}

// NewIntArray returns a one-dimensional IntArray over data.
func NewIntArray(data ...int64) IntArray {
	return IntArray{Shape: []int{len(data)}, Data: data}
}

// Equal reports whether a and b are the same variant with equal contents.
// Floats compare with ==, so NaN is never equal to itself and 0 == -0.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case FloatArray:
		bv, ok := b.(FloatArray)
		return ok && slices.Equal(av.Dims(), bv.Dims()) && slices.Equal(av.Data, bv.Data)
	case IntArray:
		bv, ok := b.(IntArray)
		return ok && slices.Equal(av.Dims(), bv.Dims()) && slices.Equal(av.Data, bv.Data)
	case Other:
		bv, ok := b.(Other)
		return ok && reflect.DeepEqual(av.V, bv.V)
	default:
		return false
	}
}

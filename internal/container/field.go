package container

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// DType names the stored type of a field.
type DType string

const (
	Int64        DType = "int64"
	Float64      DType = "float64"
	Bool         DType = "bool"
	String       DType = "string"
	Int64Array   DType = "int64[]"
	Float64Array DType = "float64[]"
	Opaque       DType = "opaque"
)

// Int64s is a shaped int64 array value for Write.
type Int64s struct {
	Shape []int
	Data  []int64
}

// Float64s is a shaped float64 array value for Write.
type Float64s struct {
	Shape []int
	Data  []float64
}

// Field is one typed value read from a group.
type Field struct {
	Name  string
	Path  string
	DType DType
	Shape []int  // nil for scalars
	Tag   string // opaque fields only
	raw   any
}

// Int returns the value of an int64 field.
func (f Field) Int() (int64, error) {
	if f.DType != Int64 {
		return 0, f.mismatch(Int64)
	}
	n, ok := f.raw.(int64)
	if !ok {
		return 0, f.corrupt("integer payload has type %T", f.raw)
	}
	return n, nil
}

// Float returns the value of a float64 field.
func (f Field) Float() (float64, error) {
	if f.DType != Float64 {
		return 0, f.mismatch(Float64)
	}
	b := f.bytes()
	if len(b) != 8 {
		return 0, f.corrupt("float payload is %d bytes", len(b))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// Bool returns the value of a bool field.
func (f Field) Bool() (bool, error) {
	if f.DType != Bool {
		return false, f.mismatch(Bool)
	}
	n, ok := f.raw.(int64)
	if !ok {
		return false, f.corrupt("bool payload has type %T", f.raw)
	}
	return n != 0, nil
}

// Text returns the value of a string field.
func (f Field) Text() (string, error) {
	if f.DType != String {
		return "", f.mismatch(String)
	}
	switch v := f.raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", f.corrupt("string payload has type %T", f.raw)
	}
}

// Ints returns the data of an int64[] field. The shape is f.Shape.
func (f Field) Ints() ([]int64, error) {
	if f.DType != Int64Array {
		return nil, f.mismatch(Int64Array)
	}
	words, err := f.words()
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(words))
	for i, w := range words {
		out[i] = int64(w)
	}
	return out, nil
}

// Floats returns the data of a float64[] field. The shape is f.Shape.
func (f Field) Floats() ([]float64, error) {
	if f.DType != Float64Array {
		return nil, f.mismatch(Float64Array)
	}
	words, err := f.words()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(words))
	for i, w := range words {
		out[i] = math.Float64frombits(w)
	}
	return out, nil
}

// Opaque returns the bytes of an opaque field.
func (f Field) Opaque() ([]byte, error) {
	if f.DType != Opaque {
		return nil, f.mismatch(Opaque)
	}
	return f.bytes(), nil
}

// Size returns the payload size in bytes.
func (f Field) Size() int {
	switch v := f.raw.(type) {
	case []byte:
		return len(v)
	case string:
		return len(v)
	case nil:
		return 0
	default:
		return 8
	}
}

// Describe renders the field's stored representation without interpreting it.
// It never fails; payloads that cannot be decoded are summarized.
func (f Field) Describe() string {
	switch f.DType {
	case Int64:
		if n, err := f.Int(); err == nil {
			return fmt.Sprintf("%d", n)
		}
	case Float64:
		if x, err := f.Float(); err == nil {
			return fmt.Sprintf("%v", x)
		}
	case Bool:
		if b, err := f.Bool(); err == nil {
			return fmt.Sprintf("%t", b)
		}
	case String:
		if s, err := f.Text(); err == nil {
			return s
		}
	case Int64Array:
		if d, err := f.Ints(); err == nil {
			return fmt.Sprintf("%v", d)
		}
	case Float64Array:
		if d, err := f.Floats(); err == nil {
			return fmt.Sprintf("%v", d)
		}
	}
	return fmt.Sprintf("<%s tag=%q shape=%v %d bytes>", f.DType, f.Tag, f.Shape, f.Size())
}

func (f Field) bytes() []byte {
	switch v := f.raw.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return nil
	}
}

func (f Field) words() ([]uint64, error) {
	b := f.bytes()
	if len(b)%8 != 0 {
		return nil, f.corrupt("array payload is %d bytes", len(b))
	}
	n := len(b) / 8
	if want, ok := ShapeSize(f.Shape); !ok || want != n {
		return nil, f.corrupt("shape %v does not match %d elements", f.Shape, n)
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
	return out, nil
}

func (f Field) mismatch(want DType) error {
	return fmt.Errorf("%s: stored %s, want %s: %w", f.Path, f.DType, want, ErrTypeMismatch)
}

func (f Field) corrupt(format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", f.Path, fmt.Sprintf(format, args...), ErrCorrupt)
}

// encoded is a value ready for insertion.
type encoded struct {
	dtype DType
	shape string
	tag   string
	value any
}

func encodeValue(v any) (encoded, error) {
	switch val := v.(type) {
	case int:
		return encoded{dtype: Int64, value: int64(val)}, nil
	case int32:
		return encoded{dtype: Int64, value: int64(val)}, nil
	case int64:
		return encoded{dtype: Int64, value: val}, nil
	case float32:
		return encodeFloat(float64(val)), nil
	case float64:
		return encodeFloat(val), nil
	case bool:
		var n int64
		if val {
			n = 1
		}
		return encoded{dtype: Bool, value: n}, nil
	case string:
		return encoded{dtype: String, value: val}, nil
	case []int64:
		return encodeInts([]int{len(val)}, val)
	case []float64:
		return encodeFloats([]int{len(val)}, val)
	case Int64s:
		return encodeInts(val.Shape, val.Data)
	case Float64s:
		return encodeFloats(val.Shape, val.Data)
	default:
		return encoded{}, fmt.Errorf("type %T: %w", v, ErrUnsupported)
	}
}

func encodeFloat(x float64) encoded {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(x))
	return encoded{dtype: Float64, value: b}
}

func encodeInts(shape []int, data []int64) (encoded, error) {
	shapeJSON, err := checkShape(shape, len(data))
	if err != nil {
		return encoded{}, err
	}
	b := make([]byte, 8*len(data))
	for i, n := range data {
		binary.LittleEndian.PutUint64(b[i*8:], uint64(n))
	}
	return encoded{dtype: Int64Array, shape: shapeJSON, value: b}, nil
}

func encodeFloats(shape []int, data []float64) (encoded, error) {
	shapeJSON, err := checkShape(shape, len(data))
	if err != nil {
		return encoded{}, err
	}
	b := make([]byte, 8*len(data))
	for i, x := range data {
		binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(x))
	}
	return encoded{dtype: Float64Array, shape: shapeJSON, value: b}, nil
}

func checkShape(shape []int, n int) (string, error) {
	size, ok := ShapeSize(shape)
	if !ok {
		return "", fmt.Errorf("invalid shape %v: %w", shape, ErrUnsupported)
	}
	if size != n {
		return "", fmt.Errorf("shape %v holds %d elements, got %d: %w", shape, size, n, ErrUnsupported)
	}
	data, err := json.Marshal(shape)
	if err != nil {
		return "", fmt.Errorf("marshal shape: %w", err)
	}
	return string(data), nil
}

// ShapeSize returns the element count of shape. A nil or empty shape, a
// negative dimension, or a product that overflows int is invalid.
func ShapeSize(shape []int) (int, bool) {
	if len(shape) == 0 {
		return 0, false
	}
	size := 1
	for _, d := range shape {
		if d < 0 {
			return 0, false
		}
		if d != 0 && size > math.MaxInt/d {
			return 0, false
		}
		size *= d
	}
	return size, true
}

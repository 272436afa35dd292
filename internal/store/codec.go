package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/container"
	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/params"
)

// errOtherValue marks a value with no native representation.
var errOtherValue = errors.New("value has no native representation")

// nativeValue maps a parameter to the value handed to container.Group.Write.
func nativeValue(v params.Value) (any, error) {
	switch val := v.(type) {
	case params.Int:
		return int64(val), nil
	case params.Float:
		return float64(val), nil
	case params.Bool:
		return bool(val), nil
	case params.String:
		return string(val), nil
	case params.IntArray:
		return container.Int64s{Shape: val.Dims(), Data: val.Data}, nil
	case params.FloatArray:
		return container.Float64s{Shape: val.Dims(), Data: val.Data}, nil
	default:
		return nil, fmt.Errorf("%s (%T): %w", v.Kind(), v, errOtherValue)
	}
}

// writeParam writes v under key. Values the container cannot store natively
// are written as their string form and reported as EncodingFallback.
// Container failures unrelated to the value's type are returned.
func writeParam(ctx context.Context, g *container.Group, key string, v params.Value, rep reporter) error {
	native, err := nativeValue(v)
	if err == nil {
		err = g.Write(ctx, key, native)
		if err == nil {
			return nil
		}
		if !errors.Is(err, container.ErrUnsupported) {
			return err
		}
	}

	rep.report(Diagnostic{
		Kind:    EncodingFallback,
		Path:    path.Join(g.Path(), key),
		Message: "parameter stored as string",
		Err:     err,
	})
	return g.Write(ctx, key, v.String())
}

// readParam decodes a field into a parameter. Fields that do not decode to a
// native variant come back as String and are reported as EncodingFallback.
func readParam(f container.Field, rep reporter) params.Value {
	var (
		v   params.Value
		err error
	)
	switch f.DType {
	case container.Int64:
		var n int64
		n, err = f.Int()
		v = params.Int(n)
	case container.Float64:
		var x float64
		x, err = f.Float()
		v = params.Float(x)
	case container.Bool:
		var b bool
		b, err = f.Bool()
		v = params.Bool(b)
	case container.String:
		var s string
		s, err = f.Text()
		v = params.String(s)
	case container.Int64Array:
		var data []int64
		data, err = f.Ints()
		v = params.IntArray{Shape: f.Shape, Data: data}
	case container.Float64Array:
		var data []float64
		data, err = f.Floats()
		v = params.FloatArray{Shape: f.Shape, Data: data}
	default:
		err = fmt.Errorf("%s: dtype %q: %w", f.Path, f.DType, container.ErrTypeMismatch)
	}
	if err == nil {
		return v
	}

	rep.report(Diagnostic{
		Kind:    EncodingFallback,
		Path:    f.Path,
		Message: "parameter read as string",
		Err:     err,
	})
	return params.String(f.Describe())
}

// writeParamGroup creates the group name under parent and writes p into it.
func writeParamGroup(ctx context.Context, parent *container.Group, name string, p params.Params, rep reporter) error {
	g, err := parent.CreateGroup(ctx, name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	for _, key := range p.Keys() {
		if err := writeParam(ctx, g, key, p[key], rep); err != nil {
			return fmt.Errorf("write param %q: %w", key, err)
		}
	}
	return nil
}

// readParamGroup decodes every child of g. Child groups have no parameter
// representation; they are kept as a placeholder string and reported.
func readParamGroup(ctx context.Context, g *container.Group, rep reporter) (params.Params, error) {
	keys, err := g.Children(ctx)
	if err != nil {
		return nil, err
	}

	p := make(params.Params, len(keys))
	for _, key := range keys {
		f, err := g.Read(ctx, key)
		if errors.Is(err, container.ErrNotField) {
			rep.report(Diagnostic{
				Kind:    EncodingFallback,
				Path:    path.Join(g.Path(), key),
				Message: "nested group read as string",
				Err:     err,
			})
			p[key] = params.String("<group>")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read param %q: %w", key, err)
		}
		p[key] = readParam(f, rep)
	}
	return p, nil
}

// roundTrip returns p as it reads back after writeParamGroup/readParamGroup,
// without touching a file. Run identity compares stored params against the
// round-tripped request so degraded values still match themselves.
func roundTrip(p params.Params) params.Params {
	out := make(params.Params, len(p))
	for k, v := range p {
		native, err := nativeValue(v)
		if err != nil || !storable(native) {
			out[k] = params.String(v.String())
			continue
		}
		switch val := v.(type) {
		case params.IntArray:
			out[k] = params.IntArray{Shape: val.Dims(), Data: val.Data}
		case params.FloatArray:
			out[k] = params.FloatArray{Shape: val.Dims(), Data: val.Data}
		default:
			out[k] = v
		}
	}
	return out
}

// storable reports whether an array value passes the container's shape check.
func storable(native any) bool {
	var shape []int
	var n int
	switch val := native.(type) {
	case container.Int64s:
		shape, n = val.Shape, len(val.Data)
	case container.Float64s:
		shape, n = val.Shape, len(val.Data)
	default:
		return true
	}
	size, ok := container.ShapeSize(shape)
	return ok && size == n
}

// validateParams rejects nil values, which have no representation at all, and
// keys the container cannot name.
func validateParams(kind string, p params.Params) error {
	for _, k := range p.Keys() {
		if k == "" || k == "." || k == ".." || strings.Contains(k, "/") {
			return fmt.Errorf("%s param key %q is not a valid name", kind, k)
		}
		if p[k] == nil {
			return fmt.Errorf("%s param %q has no value", kind, k)
		}
	}
	return nil
}

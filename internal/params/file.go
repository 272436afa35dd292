package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Format names a parameter document syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// FormatFromPath picks a Format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unknown parameter file extension %q (want .yaml, .yml, .json or .cue)", filepath.Ext(path))
	}
}

// LoadFile reads a flat parameter document from path.
func LoadFile(path string) (Params, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameter file: %w", err)
	}
	p, err := Parse(data, format, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a parameter document. The top level must be a mapping.
// filename is only used in CUE error positions and may be empty.
func Parse(data []byte, format Format, filename string) (Params, error) {
	var (
		doc map[string]any
		err error
	)
	switch format {
	case FormatYAML:
		doc, err = parseYAML(data)
	case FormatJSON:
		doc, err = parseJSON(data)
	case FormatCUE:
		doc, err = parseCUE(data, filename)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return FromMap(doc), nil
}

func parseYAML(data []byte) (map[string]any, error) {
	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return doc, nil
}

func parseJSON(data []byte) (map[string]any, error) {
	doc := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return doc, nil
}

func parseCUE(data []byte, filename string) (map[string]any, error) {
	ctx := cuecontext.New()
	var opts []cue.BuildOption
	if filename != "" {
		opts = append(opts, cue.Filename(filename))
	}
	v := ctx.CompileBytes(data, opts...)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("CUE value is not concrete: %w", err)
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating CUE fields: %w", err)
	}
	doc := map[string]any{}
	for iter.Next() {
		val, err := cueToAny(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", iter.Selector(), err)
		}
		doc[iter.Selector().Unquoted()] = val
	}
	return doc, nil
}

// cueToAny converts a concrete CUE value to plain Go values.
func cueToAny(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.IntKind:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		return v.Int(nil)
	case cue.FloatKind, cue.NumberKind:
		return v.Float64()
	case cue.BoolKind:
		return v.Bool()
	case cue.StringKind:
		return v.String()
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, err
		}
		var out []any
		for iter.Next() {
			elem, err := cueToAny(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		if out == nil {
			out = []any{}
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, err
		}
		out := map[string]any{}
		for iter.Next() {
			elem, err := cueToAny(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Selector().Unquoted()] = elem
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported CUE kind %v", v.Kind())
	}
}

// ParseAssignment parses a "key=value" flag. The value is read as a YAML
// scalar or flow sequence, so "N=4", "sigma=1e-3", "periodic=true" and
// "sites=[0, 3, 7]" produce Int, Float, Bool and IntArray values.
func ParseAssignment(s string) (string, Value, error) {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("invalid parameter %q: want key=value", s)
	}

	var decoded any
	if err := yaml.Unmarshal([]byte(raw), &decoded); err != nil {
		return "", nil, fmt.Errorf("invalid value for %q: %w", key, err)
	}
	if decoded == nil {
		// Empty value or a bare YAML null: keep the literal text.
		return key, String(raw), nil
	}
	return key, FromAny(decoded), nil
}

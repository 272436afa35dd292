package params

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Grid describes a parameter sweep: each key takes every listed value.
type Grid map[string][]Value

// LoadGrid reads a YAML sweep document.
//
// Each top-level key maps to either a list of values to sweep or a single
// value held fixed. A list that should be swept as one array value must be
// nested inside another list.
//
//	N: [4, 8, 16]
//	sigma: 0.001
//	sites: [[0, 1, 2]]
func LoadGrid(path string) (Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grid file: %w", err)
	}
	return ParseGrid(data)
}

// ParseGrid decodes a YAML sweep document. See LoadGrid.
func ParseGrid(data []byte) (Grid, error) {
	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse grid YAML: %w", err)
	}

	g := make(Grid, len(doc))
	for k, raw := range doc {
		list, ok := raw.([]any)
		if !ok {
			g[k] = []Value{FromAny(raw)}
			continue
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("grid key %q has no values", k)
		}
		values := make([]Value, len(list))
		for i, elem := range list {
			values[i] = FromAny(elem)
		}
		g[k] = values
	}
	return g, nil
}

// Size returns the number of points Expand produces.
func (g Grid) Size() int {
	if len(g) == 0 {
		return 0
	}
	n := 1
	for _, values := range g {
		n *= len(values)
	}
	return n
}

// Expand returns the cartesian product of the grid. Keys are iterated in
// lexicographic order with the last key varying fastest, so the result is
// deterministic.
func (g Grid) Expand() []Params {
	if g.Size() == 0 {
		return nil
	}

	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	points := []Params{{}}
	for _, k := range keys {
		next := make([]Params, 0, len(points)*len(g[k]))
		for _, p := range points {
			for _, v := range g[k] {
				q := p.Clone()
				q[k] = v
				next = append(next, q)
			}
		}
		points = next
	}
	return points
}

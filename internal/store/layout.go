package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/container"
)

// Group names of the fresh layout.
const (
	groupSystemParams = "system_params"
	groupRuns         = "runs"
	groupParams       = "params"
	groupInstances    = "instances"
)

// Layout describes the structure of a stored run.
type Layout string

const (
	// LayoutFresh: the run has both params and instances.
	LayoutFresh Layout = "fresh"

	// LayoutLegacy: the run lacks params or instances (or is not a group).
	LayoutLegacy Layout = "legacy"
)

// runLayout inspects a run group. missing names the absent children.
func runLayout(ctx context.Context, run *container.Group) (layout Layout, missing []string, err error) {
	for _, name := range []string{groupParams, groupInstances} {
		_, err := run.Group(ctx, name)
		if errors.Is(err, container.ErrNotExist) || errors.Is(err, container.ErrNotGroup) {
			missing = append(missing, name)
			continue
		}
		if err != nil {
			return "", nil, err
		}
	}
	if len(missing) > 0 {
		return LayoutLegacy, missing, nil
	}
	return LayoutFresh, nil, nil
}

// requireGroup opens a required child group, turning absence into a
// structural error.
func requireGroup(ctx context.Context, op string, parent *container.Group, name string) (*container.Group, error) {
	g, err := parent.Group(ctx, name)
	if errors.Is(err, container.ErrNotExist) {
		return nil, structuralError(op, parent.Path(), "missing required group %q", name)
	}
	if errors.Is(err, container.ErrNotGroup) {
		return nil, structuralError(op, parent.Path(), "%q is not a group", name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return g, nil
}

// requireFreshRun opens a run and verifies it has the fresh layout.
func requireFreshRun(ctx context.Context, op string, runs *container.Group, runID string) (*container.Group, error) {
	run, err := requireGroup(ctx, op, runs, runID)
	if err != nil {
		return nil, err
	}
	layout, missing, err := runLayout(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if layout != LayoutFresh {
		return nil, structuralError(op, run.Path(),
			"run is missing %v; legacy or incompatible layout", missing)
	}
	return run, nil
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/container"
	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/params"
)

// Resolution is the outcome of run resolution.
type Resolution struct {
	RunID string
	Reuse bool // true: append to the existing run; false: create RunID
}

// resolveRun decides which run a save targets.
//
// With an explicit id, identity matching is skipped and a collision-free name
// derived from it is created, even when an existing run has identical params.
// Otherwise runs are scanned in container order and the first one whose
// stored params equal the round-tripped request is reused. First match, not
// best match: if two requests degrade to the same string form they match each
// other.
func resolveRun(
	ctx context.Context,
	runs *container.Group,
	requested params.Params,
	explicitID string,
	rep reporter,
) (Resolution, error) {
	names, err := runs.Children(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("list runs: %w", err)
	}

	if explicitID != "" {
		return Resolution{RunID: ResolveExplicitID(names, explicitID)}, nil
	}

	want := roundTrip(requested)
	for _, name := range names {
		stored, ok, err := storedRunParams(ctx, runs, name, rep)
		if err != nil {
			return Resolution{}, err
		}
		if ok && want.Equal(stored) {
			return Resolution{RunID: name, Reuse: true}, nil
		}
	}
	return Resolution{RunID: NextAutoID(names)}, nil
}

// storedRunParams decodes the params of run name. ok is false for runs that
// have no params group, which can never match.
func storedRunParams(ctx context.Context, runs *container.Group, name string, rep reporter) (params.Params, bool, error) {
	run, err := runs.Group(ctx, name)
	if errors.Is(err, container.ErrNotGroup) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open run %q: %w", name, err)
	}

	pg, err := run.Group(ctx, groupParams)
	if errors.Is(err, container.ErrNotExist) || errors.Is(err, container.ErrNotGroup) {
		rep.logger.Debug("run has no params group, skipping for identity match", "run_id", name)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open params of run %q: %w", name, err)
	}

	p, err := readParamGroup(ctx, pg, rep)
	if err != nil {
		return nil, false, fmt.Errorf("read params of run %q: %w", name, err)
	}
	return p, true, nil
}

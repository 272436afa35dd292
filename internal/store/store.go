package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/container"
	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/params"
)

// Store saves and loads artifacts of type A in one container file.
//
// A Store holds no open handle between calls; every method runs in its own
// file session. It is safe to share between goroutines that only read. Writes
// must come from a single goroutine (see compute.Coordinator).
type Store[A any] struct {
	path   string
	logger *slog.Logger
	sink   Sink
	codec  ArtifactCodec
	now    func() time.Time
}

// Option configures a Store.
type Option func(*options)

type options struct {
	logger *slog.Logger
	sink   Sink
	codec  ArtifactCodec
	now    func() time.Time
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDiagnostics forwards every diagnostic to sink, in addition to logging it.
func WithDiagnostics(sink Sink) Option {
	return func(o *options) { o.sink = sink }
}

// WithCodec sets the artifact codec. Defaults to GobCodec.
func WithCodec(c ArtifactCodec) Option {
	return func(o *options) { o.codec = c }
}

// WithClock sets the source of instance timestamps. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New returns a Store for the container file at path. The file is not touched
// until the first operation.
func New[A any](path string, opts ...Option) *Store[A] {
	o := options{
		logger: slog.Default(),
		codec:  GobCodec{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[A]{
		path:   path,
		logger: o.logger,
		sink:   o.sink,
		codec:  o.codec,
		now:    o.now,
	}
}

// Path returns the container file path.
func (s *Store[A]) Path() string { return s.path }

// SaveOptions controls a save.
type SaveOptions struct {
	// RunID requests an explicit run id. Identity matching is skipped and the
	// run is always new; a taken name is suffixed "_1", "_2", ...
	RunID string

	// DisableParamSafety lets a save proceed when the supplied system params
	// carry keys the stored ones lack. Stored system params are never changed.
	DisableParamSafety bool
}

// SaveResult identifies the instance a save wrote.
type SaveResult struct {
	RunID      string
	InstanceID string
	Created    bool // the run was created by this save
}

// Loaded is the result of Load.
type Loaded[A any] struct {
	RunID        string
	InstanceID   string
	Artifact     A
	SystemParams params.Params
	RunParams    params.Params
	Timestamp    string // empty when the instance has none
}

// Entry is one instance returned by LoadAll.
type Entry[A any] struct {
	RunID      string
	InstanceID string
	Artifact   A
	RunParams  params.Params
	Timestamp  string // empty when the instance has none
}

// RunSummary describes a run without decoding its artifacts.
type RunSummary struct {
	RunID          string
	Layout         Layout
	Missing        []string // absent children of a legacy run
	Params         params.Params
	Fingerprint    string
	Instances      int
	LatestInstance string
}

// session is one open container file plus its logging context.
type session struct {
	file *container.File
	rep  reporter
}

// open starts a session. The caller must call close.
func (s *Store[A]) open(ctx context.Context, op string, mode container.Mode) (*session, error) {
	logger := s.logger.With("session", uuid.Must(uuid.NewV7()).String(), "op", op)
	f, err := container.Open(ctx, s.path, mode)
	if err != nil {
		return nil, err
	}
	logger.Debug("session opened", "path", s.path, "mode", mode.String())
	return &session{file: f, rep: reporter{logger: logger, sink: s.sink}}, nil
}

func (ss *session) close() {
	if err := ss.file.Close(); err != nil {
		ss.rep.logger.Error("close container", "error", err)
		return
	}
	ss.rep.logger.Debug("session closed")
}

// openRead opens the file read-only, mapping a missing file or a file that is
// not a container to a structural error.
func (s *Store[A]) openRead(ctx context.Context, op string) (*session, error) {
	ss, err := s.open(ctx, op, container.ModeRead)
	if errors.Is(err, container.ErrNotExist) {
		return nil, &Error{
			Kind:    KindStructural,
			Op:      op,
			Path:    s.path,
			Message: "store file does not exist",
			Err:     err,
		}
	}
	if errors.Is(err, container.ErrNotContainer) {
		return nil, &Error{
			Kind:    KindStructural,
			Op:      op,
			Path:    s.path,
			Message: "file is not a store",
			Err:     err,
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ss, nil
}

// Save stores artifact as a new instance.
//
// System params are written on the first save. Later saves check that every
// supplied system param key is already stored; a missing key is reported as
// ParamDrift and, unless DisableParamSafety is set, fails the save before
// anything else is written.
//
// The run is resolved by identity (see the package documentation) and the
// artifact is written to the next instance id. If the artifact cannot be
// written the instance group stays behind without an artifact.
func (s *Store[A]) Save(ctx context.Context, artifact A, sys, run params.Params, opts SaveOptions) (SaveResult, error) {
	const op = "save"

	if err := validateParams("system", sys); err != nil {
		return SaveResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := validateParams("run", run); err != nil {
		return SaveResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if opts.RunID != "" {
		if err := validRunID(opts.RunID); err != nil {
			return SaveResult{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	ss, err := s.open(ctx, op, container.ModeReadWriteCreate)
	if err != nil {
		return SaveResult{}, fmt.Errorf("%s: %w", op, err)
	}
	defer ss.close()

	root := ss.file.Root()
	if err := applySystemParams(ctx, root, sys, !opts.DisableParamSafety, ss.rep); err != nil {
		return SaveResult{}, err
	}

	runs, err := root.RequireGroup(ctx, groupRuns)
	if errors.Is(err, container.ErrNotGroup) {
		return SaveResult{}, structuralError(op, root.Path(), "%q is not a group", groupRuns)
	}
	if err != nil {
		return SaveResult{}, fmt.Errorf("%s: %w", op, err)
	}

	res, err := resolveRun(ctx, runs, run, opts.RunID, ss.rep)
	if err != nil {
		return SaveResult{}, fmt.Errorf("%s: %w", op, err)
	}

	var runGroup *container.Group
	if res.Reuse {
		runGroup, err = runs.Group(ctx, res.RunID)
		if err != nil {
			return SaveResult{}, fmt.Errorf("%s: open run %q: %w", op, res.RunID, err)
		}
	} else {
		runGroup, err = runs.CreateGroup(ctx, res.RunID)
		if err != nil {
			return SaveResult{}, fmt.Errorf("%s: create run %q: %w", op, res.RunID, err)
		}
		if err := writeParamGroup(ctx, runGroup, groupParams, run, ss.rep); err != nil {
			return SaveResult{}, fmt.Errorf("%s: run %q: %w", op, res.RunID, err)
		}
	}

	instanceID, err := writeInstance(ctx, runGroup, artifact, s.codec, s.now(), ss.rep)
	if err != nil {
		return SaveResult{}, wrapOp(op, err)
	}

	ss.rep.logger.Info("artifact saved",
		"run_id", res.RunID,
		"instance_id", instanceID,
		"created", !res.Reuse,
	)
	return SaveResult{RunID: res.RunID, InstanceID: instanceID, Created: !res.Reuse}, nil
}

// applySystemParams writes sys when the store has none, or checks it against
// the stored system params. Stored system params are never modified.
func applySystemParams(ctx context.Context, root *container.Group, sys params.Params, safety bool, rep reporter) error {
	stored, err := root.Group(ctx, groupSystemParams)
	if errors.Is(err, container.ErrNotExist) {
		if err := writeParamGroup(ctx, root, groupSystemParams, sys, rep); err != nil {
			return fmt.Errorf("save: %w", err)
		}
		rep.logger.Debug("system params written", "keys", sys.Keys())
		return nil
	}
	if errors.Is(err, container.ErrNotGroup) {
		return structuralError("save", root.Path(), "%q is not a group", groupSystemParams)
	}
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}

	have, err := stored.Children(ctx)
	if err != nil {
		return fmt.Errorf("save: list system params: %w", err)
	}

	var drift []string
	for _, key := range sys.Keys() {
		if slices.Contains(have, key) {
			continue
		}
		drift = append(drift, key)
		rep.report(Diagnostic{
			Kind:    ParamDrift,
			Path:    path.Join(stored.Path(), key),
			Message: "system param not present in stored system params",
		})
	}
	if len(drift) > 0 && safety {
		return NewParamSafetyError(stored.Path(), drift)
	}
	return nil
}

// Load returns the latest instance of a run.
//
// With an empty runID the run with the largest numeric id is chosen, or the
// lexicographically last when no id is numeric. The instance is chosen the
// same way within the run.
func (s *Store[A]) Load(ctx context.Context, runID string) (Loaded[A], error) {
	const op = "load"

	ss, err := s.openRead(ctx, op)
	if err != nil {
		return Loaded[A]{}, err
	}
	defer ss.close()

	root := ss.file.Root()
	sysGroup, err := requireGroup(ctx, op, root, groupSystemParams)
	if err != nil {
		return Loaded[A]{}, err
	}
	runs, err := requireGroup(ctx, op, root, groupRuns)
	if err != nil {
		return Loaded[A]{}, err
	}

	names, err := runs.Children(ctx)
	if err != nil {
		return Loaded[A]{}, fmt.Errorf("%s: list runs: %w", op, err)
	}
	if len(names) == 0 {
		return Loaded[A]{}, structuralError(op, runs.Path(), "store has no runs")
	}
	if runID == "" {
		runID, _ = LatestID(names)
	} else if !slices.Contains(names, runID) {
		return Loaded[A]{}, structuralError(op, runs.Path(), "run %q does not exist", runID)
	}

	run, err := requireFreshRun(ctx, op, runs, runID)
	if err != nil {
		return Loaded[A]{}, err
	}
	instances, err := requireGroup(ctx, op, run, groupInstances)
	if err != nil {
		return Loaded[A]{}, err
	}
	instanceNames, err := instances.Children(ctx)
	if err != nil {
		return Loaded[A]{}, fmt.Errorf("%s: list instances: %w", op, err)
	}
	instanceID, ok := LatestID(instanceNames)
	if !ok {
		return Loaded[A]{}, structuralError(op, instances.Path(), "run has no instances")
	}
	inst, err := requireGroup(ctx, op, instances, instanceID)
	if err != nil {
		return Loaded[A]{}, err
	}

	out := Loaded[A]{RunID: runID, InstanceID: instanceID}
	if err := readArtifact(ctx, inst, s.codec, &out.Artifact, ss.rep); err != nil {
		return Loaded[A]{}, wrapOp(op, err)
	}
	if out.SystemParams, err = readParamGroup(ctx, sysGroup, ss.rep); err != nil {
		return Loaded[A]{}, fmt.Errorf("%s: system params: %w", op, err)
	}
	runParams, err := requireGroup(ctx, op, run, groupParams)
	if err != nil {
		return Loaded[A]{}, err
	}
	if out.RunParams, err = readParamGroup(ctx, runParams, ss.rep); err != nil {
		return Loaded[A]{}, fmt.Errorf("%s: run params: %w", op, err)
	}
	if out.Timestamp, err = readTimestamp(ctx, inst, ss.rep); err != nil {
		return Loaded[A]{}, fmt.Errorf("%s: timestamp: %w", op, err)
	}

	ss.rep.logger.Debug("artifact loaded", "run_id", runID, "instance_id", instanceID)
	return out, nil
}

// LoadAll returns the system params and every instance of every fresh run.
//
// Runs are ordered by numeric id, then the non-numeric ids lexicographically;
// instances are ordered the same way within a run. Runs with a legacy layout
// are skipped and reported as SkippedRun. Any artifact that fails to decode
// aborts the whole call.
func (s *Store[A]) LoadAll(ctx context.Context) (params.Params, []Entry[A], error) {
	const op = "load-all"

	ss, err := s.openRead(ctx, op)
	if err != nil {
		return nil, nil, err
	}
	defer ss.close()

	root := ss.file.Root()
	sysGroup, err := requireGroup(ctx, op, root, groupSystemParams)
	if err != nil {
		return nil, nil, err
	}
	runs, err := requireGroup(ctx, op, root, groupRuns)
	if err != nil {
		return nil, nil, err
	}
	sys, err := readParamGroup(ctx, sysGroup, ss.rep)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: system params: %w", op, err)
	}

	names, err := runs.Children(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: list runs: %w", op, err)
	}

	entries := []Entry[A]{}
	for _, runID := range OrderIDs(names) {
		run, err := runs.Group(ctx, runID)
		if errors.Is(err, container.ErrNotGroup) {
			ss.rep.report(Diagnostic{
				Kind:    SkippedRun,
				Path:    path.Join(runs.Path(), runID),
				Message: "run is not a group",
			})
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%s: open run %q: %w", op, runID, err)
		}

		layout, missing, err := runLayout(ctx, run)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: run %q: %w", op, runID, err)
		}
		if layout != LayoutFresh {
			ss.rep.report(Diagnostic{
				Kind:    SkippedRun,
				Path:    run.Path(),
				Message: "legacy layout, missing " + strings.Join(missing, " and "),
			})
			continue
		}

		runEntries, err := s.loadRun(ctx, op, run, ss.rep)
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, runEntries...)
	}

	ss.rep.logger.Debug("artifacts loaded", "runs", len(names), "instances", len(entries))
	return sys, entries, nil
}

// loadRun reads every instance of a fresh run.
func (s *Store[A]) loadRun(ctx context.Context, op string, run *container.Group, rep reporter) ([]Entry[A], error) {
	pg, err := requireGroup(ctx, op, run, groupParams)
	if err != nil {
		return nil, err
	}
	runParams, err := readParamGroup(ctx, pg, rep)
	if err != nil {
		return nil, fmt.Errorf("%s: run %q params: %w", op, run.Name(), err)
	}
	instances, err := requireGroup(ctx, op, run, groupInstances)
	if err != nil {
		return nil, err
	}
	names, err := instances.Children(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: list instances: %w", op, err)
	}
	if len(names) == 0 {
		rep.logger.Debug("run has no instances", "run_id", run.Name())
	}

	var entries []Entry[A]
	for _, instanceID := range OrderIDs(names) {
		inst, err := requireGroup(ctx, op, instances, instanceID)
		if err != nil {
			return nil, err
		}
		e := Entry[A]{RunID: run.Name(), InstanceID: instanceID, RunParams: runParams}
		if err := readArtifact(ctx, inst, s.codec, &e.Artifact, rep); err != nil {
			return nil, wrapOp(op, err)
		}
		if e.Timestamp, err = readTimestamp(ctx, inst, rep); err != nil {
			return nil, fmt.Errorf("%s: timestamp: %w", op, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// SystemParams returns the stored system params. ok is false, with a
// MissingSystemParams diagnostic, when the file or the group does not exist.
func (s *Store[A]) SystemParams(ctx context.Context) (p params.Params, ok bool, err error) {
	const op = "sysparams"

	ss, err := s.open(ctx, op, container.ModeRead)
	if errors.Is(err, container.ErrNotExist) {
		reporter{logger: s.logger, sink: s.sink}.report(Diagnostic{
			Kind:    MissingSystemParams,
			Path:    "/" + groupSystemParams,
			Message: "store file " + s.path + " does not exist",
		})
		return nil, false, nil
	}
	if errors.Is(err, container.ErrNotContainer) {
		return nil, false, &Error{Kind: KindStructural, Op: op, Path: s.path, Message: "file is not a store", Err: err}
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	defer ss.close()

	root := ss.file.Root()
	g, err := root.Group(ctx, groupSystemParams)
	if errors.Is(err, container.ErrNotExist) {
		ss.rep.report(Diagnostic{
			Kind:    MissingSystemParams,
			Path:    path.Join(root.Path(), groupSystemParams),
			Message: "store has no system params",
		})
		return nil, false, nil
	}
	if errors.Is(err, container.ErrNotGroup) {
		return nil, false, structuralError(op, root.Path(), "%q is not a group", groupSystemParams)
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	p, err = readParamGroup(ctx, g, ss.rep)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return p, true, nil
}

// Runs lists every run in LoadAll order without decoding artifacts. Legacy
// runs are included with their missing children. A store without a runs
// group has no runs.
func (s *Store[A]) Runs(ctx context.Context) ([]RunSummary, error) {
	const op = "list"

	ss, err := s.openRead(ctx, op)
	if err != nil {
		return nil, err
	}
	defer ss.close()

	root := ss.file.Root()
	runs, err := root.Group(ctx, groupRuns)
	if errors.Is(err, container.ErrNotExist) {
		return []RunSummary{}, nil
	}
	if errors.Is(err, container.ErrNotGroup) {
		return nil, structuralError(op, root.Path(), "%q is not a group", groupRuns)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	names, err := runs.Children(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: list runs: %w", op, err)
	}

	out := make([]RunSummary, 0, len(names))
	for _, runID := range OrderIDs(names) {
		run, err := runs.Group(ctx, runID)
		if errors.Is(err, container.ErrNotGroup) {
			out = append(out, RunSummary{RunID: runID, Layout: LayoutLegacy, Missing: []string{groupParams, groupInstances}})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: open run %q: %w", op, runID, err)
		}
		summary, err := summarizeRun(ctx, run, ss.rep)
		if err != nil {
			return nil, fmt.Errorf("%s: run %q: %w", op, runID, err)
		}
		out = append(out, summary)
	}
	return out, nil
}

func summarizeRun(ctx context.Context, run *container.Group, rep reporter) (RunSummary, error) {
	layout, missing, err := runLayout(ctx, run)
	if err != nil {
		return RunSummary{}, err
	}
	summary := RunSummary{RunID: run.Name(), Layout: layout, Missing: missing}

	if !slices.Contains(missing, groupParams) {
		pg, err := run.Group(ctx, groupParams)
		if err != nil {
			return RunSummary{}, err
		}
		if summary.Params, err = readParamGroup(ctx, pg, rep); err != nil {
			return RunSummary{}, err
		}
		if summary.Fingerprint, err = params.Fingerprint(summary.Params); err != nil {
			return RunSummary{}, err
		}
	}

	if !slices.Contains(missing, groupInstances) {
		instances, err := run.Group(ctx, groupInstances)
		if err != nil {
			return RunSummary{}, err
		}
		names, err := instances.Children(ctx)
		if err != nil {
			return RunSummary{}, err
		}
		summary.Instances = len(names)
		summary.LatestInstance, _ = LatestID(names)
	}
	return summary, nil
}

// validRunID rejects names the container cannot hold.
func validRunID(id string) error {
	if id == "." || id == ".." || strings.Contains(id, "/") {
		return fmt.Errorf("invalid run id %q", id)
	}
	return nil
}

// wrapOp fills in the operation of a store error raised below the facade.
func wrapOp(op string, err error) error {
	var se *Error
	if errors.As(err, &se) && se.Op == "" {
		se.Op = op
		return se
	}
	return err
}

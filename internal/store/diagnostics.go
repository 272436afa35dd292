package store

import (
	"fmt"
	"log/slog"
	"sync"
)

// DiagnosticKind categorizes non-fatal events.
type DiagnosticKind string

const (
	// EncodingFallback: a parameter value was written or read as its string
	// form instead of its native type.
	EncodingFallback DiagnosticKind = "encoding_fallback"

	// ParamDrift: a supplied system param key is absent from the stored ones.
	ParamDrift DiagnosticKind = "param_drift"

	// SkippedRun: LoadAll skipped a run with a legacy or incomplete layout.
	SkippedRun DiagnosticKind = "skipped_run"

	// MissingSystemParams: the store has no system params yet.
	MissingSystemParams DiagnosticKind = "missing_system_params"

	// TimestampFallback: the instance timestamp could not be written or read.
	TimestampFallback DiagnosticKind = "timestamp_fallback"

	// ArtifactRawDump: raw description of an artifact that failed to decode.
	ArtifactRawDump DiagnosticKind = "artifact_raw_dump"
)

// Diagnostic is a non-fatal event raised while an operation continues.
type Diagnostic struct {
	Kind    DiagnosticKind
	Path    string
	Message string
	Err     error
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s %s: %s", d.Kind, d.Path, d.Message)
	if d.Err != nil {
		s += ": " + d.Err.Error()
	}
	return s
}

// Sink receives diagnostics. Implementations must not block.
type Sink interface {
	Report(Diagnostic)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Diagnostic)

// Report calls f(d).
func (f SinkFunc) Report(d Diagnostic) { f(d) }

// Recorder is a Sink that keeps every diagnostic it receives.
// It is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// Report records d.
func (r *Recorder) Report(d Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diags = append(r.diags, d)
}

// Diagnostics returns a copy of everything recorded so far.
func (r *Recorder) Diagnostics() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Diagnostic(nil), r.diags...)
}

// OfKind returns the recorded diagnostics of the given kind.
func (r *Recorder) OfKind(kind DiagnosticKind) []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Diagnostic
	for _, d := range r.diags {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Reset discards everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diags = nil
}

// reporter logs each diagnostic and forwards it to an optional sink.
type reporter struct {
	logger *slog.Logger
	sink   Sink
}

func (r reporter) report(d Diagnostic) {
	attrs := []any{"kind", string(d.Kind), "path", d.Path}
	if d.Err != nil {
		attrs = append(attrs, "error", d.Err)
	}
	r.logger.Warn(d.Message, attrs...)
	if r.sink != nil {
		r.sink.Report(d)
	}
}

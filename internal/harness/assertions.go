package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/params"
	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// AssertionContext carries what assertions evaluate against.
type AssertionContext struct {
	Ctx         context.Context
	Store       *store.Store[any]
	Diagnostics []store.Diagnostic
}

// EvaluateAssertions checks every assertion and returns the failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(a, actx); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluateAssertion(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertRunCount:
		runs, err := actx.Store.Runs(actx.Ctx)
		if err != nil {
			return err
		}
		if len(runs) != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d runs", a.Count),
				Actual:   fmt.Sprintf("%d runs", len(runs)),
			}
		}
		return nil

	case AssertInstanceCount:
		runs, err := actx.Store.Runs(actx.Ctx)
		if err != nil {
			return err
		}
		for _, r := range runs {
			if r.RunID != a.RunID {
				continue
			}
			if r.Instances != a.Count {
				return &AssertionError{
					Type:     a.Type,
					Expected: fmt.Sprintf("%d instances in run %s", a.Count, a.RunID),
					Actual:   fmt.Sprintf("%d instances", r.Instances),
				}
			}
			return nil
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("run %s", a.RunID),
			Actual:   "run not found",
		}

	case AssertRunOrder:
		runs, err := actx.Store.Runs(actx.Ctx)
		if err != nil {
			return err
		}
		ids := make([]string, len(runs))
		for i, r := range runs {
			ids[i] = r.RunID
		}
		if !slices.Equal(ids, a.Runs) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%v", a.Runs),
				Actual:   fmt.Sprintf("%v", ids),
			}
		}
		return nil

	case AssertDiagnosticCount:
		count := 0
		for _, d := range actx.Diagnostics {
			if string(d.Kind) == a.Kind {
				count++
			}
		}
		if count != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d %s diagnostics", a.Count, a.Kind),
				Actual:   fmt.Sprintf("%d", count),
			}
		}
		return nil

	case AssertSystemParams:
		sys, ok, err := actx.Store.SystemParams(actx.Ctx)
		if err != nil {
			return err
		}
		want := params.FromMap(a.Expect)
		if !ok || !want.Equal(sys) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%v", params.ToMap(want)),
				Actual:   fmt.Sprintf("%v (present: %t)", params.ToMap(sys), ok),
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// checkExpect compares a step's outcome with its expect clause.
func checkExpect(step Step, outcome map[string]any, err error) []string {
	exp := step.Expect
	if exp == nil {
		if err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", err)}
		}
		return nil
	}

	if exp.Error != "" {
		if err == nil {
			return []string{fmt.Sprintf("expected %s error, got success", exp.Error)}
		}
		if kind := errorKind(err); kind != exp.Error {
			return []string{fmt.Sprintf("expected %s error, got %s: %v", exp.Error, kind, err)}
		}
		return nil
	}
	if err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", err)}
	}

	var failures []string
	mismatch := func(field string, want, got any) {
		failures = append(failures, fmt.Sprintf("%s: expected %v, got %v", field, want, got))
	}
	if exp.RunID != "" && outcome["run_id"] != exp.RunID {
		mismatch("run_id", exp.RunID, outcome["run_id"])
	}
	if exp.InstanceID != "" && outcome["instance_id"] != exp.InstanceID {
		mismatch("instance_id", exp.InstanceID, outcome["instance_id"])
	}
	if exp.Created != nil && outcome["created"] != *exp.Created {
		mismatch("created", *exp.Created, outcome["created"])
	}
	if exp.Present != nil && outcome["present"] != *exp.Present {
		mismatch("present", *exp.Present, outcome["present"])
	}
	if exp.Entries != nil {
		got, _ := outcome["entries"].([]string)
		if !slices.Equal(got, exp.Entries) {
			mismatch("entries", exp.Entries, got)
		}
	}
	if exp.Artifact != nil && !sameJSON(exp.Artifact, outcome["artifact"]) {
		failures = append(failures, "artifact mismatch (-want +got):\n"+jsonDiff(exp.Artifact, outcome["artifact"]))
	}
	return failures
}

// sameJSON reports whether a and b encode to the same JSON value.
func sameJSON(a, b any) bool {
	na, errA := normalizeJSON(a)
	nb, errB := normalizeJSON(b)
	return errA == nil && errB == nil && cmp.Equal(na, nb)
}

func jsonDiff(want, got any) string {
	nw, _ := normalizeJSON(want)
	ng, _ := normalizeJSON(got)
	return cmp.Diff(nw, ng)
}

func normalizeJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(data, &out)
	return out, err
}

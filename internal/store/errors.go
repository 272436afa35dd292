package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind categorizes fatal store errors.
type ErrorKind string

const (
	// KindStructural indicates a required group or field is absent, or an
	// explicit run id does not exist.
	KindStructural ErrorKind = "STRUCTURAL"

	// KindParamSafety indicates the supplied system params carry keys the
	// stored system params do not, while param safety is enabled.
	KindParamSafety ErrorKind = "PARAM_SAFETY"

	// KindArtifactWrite indicates the artifact could not be serialized or stored.
	KindArtifactWrite ErrorKind = "ARTIFACT_WRITE"

	// KindArtifactRead indicates the stored artifact could not be read back.
	KindArtifactRead ErrorKind = "ARTIFACT_READ"
)

// Error is a fatal store error. Err holds the underlying cause, if any.
type Error struct {
	Kind    ErrorKind
	Op      string // "save", "load", "load-all", ...
	Path    string // container path involved, if any
	Message string

	// Keys lists the offending system param keys for KindParamSafety.
	Keys []string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func hasKind(err error, kind ErrorKind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// IsStructural reports whether err is a structural store error.
// Uses errors.As to handle wrapped errors.
func IsStructural(err error) bool { return hasKind(err, KindStructural) }

// IsParamSafety reports whether err is a param safety violation.
func IsParamSafety(err error) bool { return hasKind(err, KindParamSafety) }

// IsArtifactWrite reports whether err is an artifact write failure.
func IsArtifactWrite(err error) bool { return hasKind(err, KindArtifactWrite) }

// IsArtifactRead reports whether err is an artifact read failure.
func IsArtifactRead(err error) bool { return hasKind(err, KindArtifactRead) }

func structuralError(op, path, format string, args ...any) *Error {
	return &Error{
		Kind:    KindStructural,
		Op:      op,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewParamSafetyError creates an Error for system params drift.
func NewParamSafetyError(path string, keys []string) *Error {
	return &Error{
		Kind:    KindParamSafety,
		Op:      "save",
		Path:    path,
		Message: fmt.Sprintf("system params %v are not present in the stored system params; disable param safety to save anyway", keys),
		Keys:    keys,
	}
}

package pipeline

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// ErrorKind classifies pipeline failures.
type ErrorKind int

const (
	// ConfigurationError is a missing or malformed input: reference files,
	// raw reads, tools, settings.
	ConfigurationError ErrorKind = iota + 1
	// DependencyResolutionError means that an upstream task failed or that
	// an input the task needs is no longer usable.
	DependencyResolutionError
	// ExternalToolFailure means a tool exited with an error or exited
	// cleanly without producing its output.
	ExternalToolFailure
	// IOError is a failure of the pipeline's own filesystem operations.
	IOError
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case ConfigurationError:
		return "configuration error"
	case DependencyResolutionError:
		return "dependency resolution error"
	case ExternalToolFailure:
		return "external tool failure"
	case IOError:
		return "I/O error"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a failure of one task. A DependencyResolutionError wraps the
// *Error of the upstream task that caused it, so the chain of an error
// returned for a terminal task leads to the stage that actually failed.
type Error struct {
	Kind   ErrorKind
	Sample string
	// Stage is zero for errors not tied to a stage.
	Stage Kind
	Err   error
}

// Error implements error. Dependency chains are collapsed to the stage that
// failed.
func (e *Error) Error() string {
	prefix := e.Sample
	if e.Stage.Valid() {
		if prefix != "" {
			prefix += " "
		}
		prefix += e.Stage.String()
	}
	if prefix != "" {
		prefix += ": "
	}
	if root := Root(e); e.Kind == DependencyResolutionError && root != e {
		return fmt.Sprintf("%s%v: upstream %v failed: %v", prefix, e.Kind, root.Stage, root)
	}
	return fmt.Sprintf("%s%v: %v", prefix, e.Kind, e.Err)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err if it is an *Error, and zero otherwise.
func KindOf(err error) ErrorKind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return 0
}

// Root returns the innermost *Error in the chain of err, or nil if err is
// not an *Error.
func Root(err error) *Error {
	e, ok := err.(*Error)
	if !ok {
		return nil
	}
	for {
		next, ok := e.Err.(*Error)
		if !ok {
			return e
		}
		e = next
	}
}

// RootStage returns the stage at which err originated.
func RootStage(err error) (Kind, bool) {
	if e := Root(err); e != nil && e.Stage.Valid() {
		return e.Stage, true
	}
	return 0, false
}

// classify assigns a kind to a failure of library code: missing or invalid
// inputs are configuration errors, the rest I/O errors.
func classify(err error) ErrorKind {
	if errors.Is(errors.Invalid, err) || errors.Is(errors.NotExist, err) {
		return ConfigurationError
	}
	return IOError
}

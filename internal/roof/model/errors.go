package model

import (
	"errors"
	"fmt"
)

// Error kinds reported by a reconstruction. Match them with errors.Is.
var (
	// ErrInsufficientPoints means there are fewer points than required to
	// fit any plane.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrDegenerateGeometry means a zero-area or self-intersecting footprint
	// or segment input.
	ErrDegenerateGeometry = errors.New("degenerate geometry")
	// ErrNonConvergence means a detection stage exhausted its budget without
	// meeting its minimum thresholds.
	ErrNonConvergence = errors.New("non-convergence")
	// ErrArrangementInconsistency means cleanup left a subdivision that does
	// not cover the footprint.
	ErrArrangementInconsistency = errors.New("arrangement inconsistency")
	// ErrTriangulationFailure means a face boundary could not be triangulated.
	ErrTriangulationFailure = errors.New("triangulation failure")
)

// StageError ties an error kind to the pipeline stage that produced it.
type StageError struct {
	Stage string
	Kind  error
	Err   error
}

// NewStageError builds a StageError with a formatted cause.
func NewStageError(stage string, kind error, format string, args ...interface{}) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the error kind carried by err, or nil if err is not one of
// the reconstruction kinds.
func KindOf(err error) error {
	for _, k := range []error{
		ErrInsufficientPoints,
		ErrDegenerateGeometry,
		ErrNonConvergence,
		ErrArrangementInconsistency,
		ErrTriangulationFailure,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

package sim

import (
	"errors"
	"fmt"
)

// Configuration and lifecycle errors. Every failure returned by the model wraps one
// of these in a *ModelError, so callers test with errors.Is.
var (
	ErrDuplicateCompartment = errors.New("duplicate compartment")
	ErrUnknownCompartment   = errors.New("unknown compartment")
	ErrUnknownNode          = errors.New("unknown node")
	ErrUnknownEdge          = errors.New("unknown edge")
	ErrInvalidDistribution  = errors.New("invalid initial compartment distribution")
	ErrAlreadyBuilt         = errors.New("model already built")
	ErrAlreadySetUp         = errors.New("model already set up")
	ErrNotBuilt             = errors.New("model not built")
	ErrNotSetUp             = errors.New("model not set up")
	ErrRunning              = errors.New("model is already running")
)

// ModelError provides structured error information for model operations.
type ModelError struct {
	Op      string // Operation that failed (e.g., "SetCompartment", "AddCompartment")
	Subject string // What it failed on (compartment label, node, edge); may be empty
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Subject, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ModelError) Unwrap() error {
	return e.Err
}

func modelError(op string, subject any, err error) error {
	s := ""
	if subject != nil {
		s = fmt.Sprint(subject)
	}
	return &ModelError{Op: op, Subject: s, Err: err}
}

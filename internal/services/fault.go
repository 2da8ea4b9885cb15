package services

import (
	"errors"
	"fmt"
)

// FaultKind classifies collaborator failures so the pipeline can decide
// whether to degrade gracefully or surface a fixed user-facing message.
type FaultKind int

const (
	// FaultTransient covers network errors and timeouts. The pipeline
	// proceeds without the missing data.
	FaultTransient FaultKind = iota
	// FaultTerminal covers failures that will not succeed on retry.
	FaultTerminal
)

// Fault wraps a collaborator error with its kind and the operation name.
type Fault struct {
	Kind FaultKind
	Op   string
	Err  error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %v", f.Op, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// NewTransientFault wraps err as a transient fault for op.
func NewTransientFault(op string, err error) *Fault {
	return &Fault{Kind: FaultTransient, Op: op, Err: err}
}

// NewTerminalFault wraps err as a terminal fault for op.
func NewTerminalFault(op string, err error) *Fault {
	return &Fault{Kind: FaultTerminal, Op: op, Err: err}
}

// IsTransient reports whether err is (or wraps) a transient fault.
// Unclassified errors count as transient so an unknown collaborator
// failure degrades instead of aborting the batch.
func IsTransient(err error) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind == FaultTransient
	}
	return true
}

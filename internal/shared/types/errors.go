package types

import (
	"errors"
	"fmt"
)

var (
	ErrShapeMismatch      = errors.New("shape mismatch")
	ErrUnknownFilterKind  = errors.New("unknown filter kind")
	ErrUnknownDisplayKind = errors.New("unknown display kind")
	ErrUnknownSourceKind  = errors.New("unknown source kind")
	ErrNotFound           = errors.New("not found")
	ErrProcessing         = errors.New("processing error")
	ErrInvalidRange       = errors.New("invalid range")
	ErrNoData             = errors.New("no data")
	ErrUnknownCommand     = errors.New("unknown command")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// ProcessingError identifies the component that failed during a tick
type ProcessingError struct {
	Component string // "filter" or "display"
	Name      string
	Handle    string
	Err       error
}

func (e *ProcessingError) Error() string {
	if e.Handle != "" {
		return fmt.Sprintf("%s %s (%s): %v", e.Component, e.Name, e.Handle, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Component, e.Name, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrProcessing) match any ProcessingError
func (e *ProcessingError) Is(target error) bool {
	return target == ErrProcessing
}

// ShapeError reports a channel-count disagreement
func ShapeError(want, got int) error {
	return fmt.Errorf("%w: expected %d channels, got %d", ErrShapeMismatch, want, got)
}

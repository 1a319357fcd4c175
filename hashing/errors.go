package hashing

import (
	"context"
	"errors"
	"io/fs"
	"syscall"
)

var (
	// ErrPathMissing reports that the target vanished or is no longer a
	// regular file reachable through directories.
	ErrPathMissing = errors.New("path missing")

	// ErrCancelled reports a job aborted through its handle or its parent
	// context. It never counts as a failure.
	ErrCancelled = errors.New("hash job cancelled")
)

// Outcome classifies how a job ended.
type Outcome int

const (
	OutcomeHashed Outcome = iota
	OutcomeMissing
	OutcomeCancelled
	OutcomeTransient
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHashed:
		return "hashed"
	case OutcomeMissing:
		return "missing"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "transient"
	}
}

// Classify maps a job error onto an Outcome. Deadline errors from a job
// timeout are transient.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeHashed
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return OutcomeCancelled
	case errors.Is(err, ErrPathMissing), errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return OutcomeMissing
	default:
		return OutcomeTransient
	}
}

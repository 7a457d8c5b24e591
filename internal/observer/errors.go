package observer

import "errors"

// ErrNoActiveRun is returned by New when the tracking backend has no run.
var ErrNoActiveRun = &PreconditionError{Reason: "no active run: start a run before attaching the observer"}

// PreconditionError reports that the environment is not ready for an observer.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return e.Reason
}

// IsPrecondition reports whether err is or wraps a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

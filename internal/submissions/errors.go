package submissions

import "errors"

var (
	// ErrNotFound means no session exists for the given id.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidIdentity means the student id or name is missing.
	ErrInvalidIdentity = errors.New("student id and name are required")

	// ErrNoImage means the operation needs an uploaded image first.
	ErrNoImage = errors.New("no image uploaded")

	// ErrSubmitInFlight guards against double-submit while a submission
	// is running.
	ErrSubmitInFlight = errors.New("submission already in flight")

	// ErrClosed means the submission was recorded; the record is terminal
	// and only a restart produces a new one.
	ErrClosed = errors.New("submission already recorded")
)

// SubmitError wraps a collaborator failure during the two-step submission.
// Stage is "storage" or "ledger".
type SubmitError struct {
	Stage string
	Err   error
}

func (e *SubmitError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *SubmitError) Unwrap() error { return e.Err }

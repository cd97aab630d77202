package responders

import "errors"

var (
	// ErrNotFound is returned when a responder does not exist.
	ErrNotFound = errors.New("responder not found")

	// ErrAtCapacity is returned when an assignment would exceed max caseload.
	ErrAtCapacity = errors.New("responder at maximum caseload")

	// ErrNoCandidates is returned when no eligible responder exists.
	ErrNoCandidates = errors.New("no eligible responder available")
)

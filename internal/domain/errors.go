package domain

import "butterfly/internal/errors"

var (
	// ErrDenied is the benign outcome of the expansion guard: the node is
	// already expanding or already expanded.
	ErrDenied = errors.New("expansion denied")

	// ErrInvalidState is returned for operations that do not fit the
	// current graph state (second seed, stale permit).
	ErrInvalidState = errors.New("invalid graph state")

	// ErrIntegrity is returned when a commit would add a dangling link.
	// It is a programming contract violation, not a user-facing error.
	ErrIntegrity = errors.New("graph integrity violation")

	// ErrNodeNotFound is returned for ids the graph has never seen.
	ErrNodeNotFound = errors.New("node not found")
)

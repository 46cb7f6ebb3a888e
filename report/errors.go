package report

import "errors"

var (
	// ErrNotFound is returned when no report exists for the given id.
	ErrNotFound = errors.New("report: not found")

	// ErrNoText is returned when an operation needs text and the report
	// (or the submission) has none.
	ErrNoText = errors.New("report: no text available")

	// ErrConflict is returned when a concurrent update won the race for
	// the same report row.
	ErrConflict = errors.New("report: concurrent update conflict")
)

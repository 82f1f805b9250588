package timing

import "github.com/pkg/errors"

var (
	// ErrSignalUnavailable is returned when the frame signal is missing or closed.
	// It ends the current pass; retrying is up to the caller.
	ErrSignalUnavailable = errors.New("signal unavailable")

	// ErrEmptySampleSet is returned when statistics are requested for zero samples.
	ErrEmptySampleSet = errors.New("empty sample set")

	// ErrAllocation is returned when a session cannot size its scratch buffer.
	ErrAllocation = errors.New("cannot allocate sample buffer")
)

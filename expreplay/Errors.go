package expreplay

import "errors"

// ExpReplayError implements errors unique to an experience replay
// buffer.
type ExpReplayError struct {
	Op  string
	Err error
}

// Error satisifes the error interface
func (e *ExpReplayError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the cause of the error
func (e *ExpReplayError) Unwrap() error {
	return e.Err
}

var (
	errEmptyCache       = errors.New("cache empty")
	errInvalidBatchSize = errors.New("batch size must be positive")
	errShapeMismatch    = errors.New("feature dimensions do not match")
	errFrozen           = errors.New("buffer is frozen")
)

// IsEmptyBuffer returns whether or not an error reports that a
// replay buffer is empty.
func IsEmptyBuffer(err error) bool {
	return errors.Is(err, errEmptyCache)
}

// IsInvalidArgument returns whether an error reports an illegal sampling
// request, either a non-positive batch size or sampling from an empty
// buffer.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, errInvalidBatchSize) || errors.Is(err, errEmptyCache)
}

// IsShapeMismatch returns whether an error reports that two batches or
// a batch and a buffer have incompatible feature dimensions.
func IsShapeMismatch(err error) bool {
	return errors.Is(err, errShapeMismatch)
}

// IsFrozen returns whether an error reports an insertion into a frozen
// buffer.
func IsFrozen(err error) bool {
	return errors.Is(err, errFrozen)
}

package group

import "errors"

var (
	// ErrMapNotReadable is returned when the URL map file cannot be opened
	// or read.
	ErrMapNotReadable = errors.New("URL map file is not readable")

	// ErrOutputDir is returned when the output directory cannot be created.
	ErrOutputDir = errors.New("cannot create output directory")

	// ErrInvalidParents is returned for a negative parents count.
	ErrInvalidParents = errors.New("parents must not be negative")

	// ErrInvalidChunkSize is returned for a non-positive chunk size.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
)

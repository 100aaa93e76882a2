package archive

import "errors"

var (
	// ErrOutputDir is returned when the output directory cannot be created.
	ErrOutputDir = errors.New("cannot create output directory")

	// ErrNilFetcher is returned when no fetcher is supplied.
	ErrNilFetcher = errors.New("fetcher must not be nil")
)

package crawler

import "errors"

var (
	// ErrInvalidSeed is returned when the seed is not an absolute http(s) URL.
	ErrInvalidSeed = errors.New("invalid seed URL: must be an absolute http or https URL")

	// ErrInvalidBaseURL is returned by Extract when the base URL cannot be parsed.
	ErrInvalidBaseURL = errors.New("invalid base URL")

	// ErrAlreadyRunning is returned when Run is called on an Engine that is
	// still crawling.
	ErrAlreadyRunning = errors.New("crawl already running")
)

package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// They abort the run before any network activity.
var (
	// ErrNoSeed is returned when no seed URL is given.
	ErrNoSeed = errors.New("no seed specified: provide at least one URL to crawl")

	// ErrInvalidSeed is returned when a seed is not an absolute http(s) URL.
	ErrInvalidSeed = errors.New("invalid seed: must be an absolute http or https URL")

	// ErrInvalidDepth is returned when a depth limit is below 1.
	ErrInvalidDepth = errors.New("invalid depth: must be at least 1")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidMaxPages is returned when the page cap is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidParents is returned when the grouping parents count is negative.
	ErrInvalidParents = errors.New("invalid parents: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the body size limit is negative
	// or not a byte size.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be a non-negative byte size")

	// ErrEmptyOutputDir is returned when no output directory is set.
	ErrEmptyOutputDir = errors.New("output directory must not be empty")

	// ErrInvalidReportFormat is returned for an unknown --report value.
	ErrInvalidReportFormat = errors.New("invalid report format: must be table, markdown or json")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)

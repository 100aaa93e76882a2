package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed matches every error returned by Fetch.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrStatus is returned when the server answers with a non-2xx status.
	ErrStatus = errors.New("unexpected HTTP status")

	// ErrBodyTooLarge is returned when the body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrTooManyRedirects is returned when the redirect chain is too long.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrInvalidProxyAddress is returned when the proxy address is not
	// "host:port" or "socks5://host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
)

// Error describes a failed fetch.
type Error struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status, or 0 if no response was received.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes every *Error match ErrFetchFailed.
func (e *Error) Is(target error) bool {
	return target == ErrFetchFailed
}

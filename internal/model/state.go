package model

import "fmt"

// EntryState is the lifecycle state of a frontier entry.
//
//	PENDING -> FETCHING -> EXPANDED | FAILED | DEPTH_EXCEEDED
//
// DEPTH_EXCEEDED is reached straight from PENDING: the entry is never fetched.
type EntryState int

const (
	// StatePending is an entry that was discovered but not processed yet.
	StatePending EntryState = iota

	// StateFetching is an entry whose page request is in flight.
	StateFetching

	// StateExpanded is an entry that was fetched and whose links were enqueued.
	StateExpanded

	// StateFailed is an entry whose fetch failed. It is never retried.
	StateFailed

	// StateDepthExceeded is an entry found beyond its classification's ceiling.
	StateDepthExceeded
)

// String returns the state name.
func (s EntryState) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateFetching:
		return "FETCHING"
	case StateExpanded:
		return "EXPANDED"
	case StateFailed:
		return "FAILED"
	case StateDepthExceeded:
		return "DEPTH_EXCEEDED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition is possible.
func (s EntryState) Terminal() bool {
	return s == StateExpanded || s == StateFailed || s == StateDepthExceeded
}

// MarshalText implements encoding.TextMarshaler.
func (s EntryState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *EntryState) UnmarshalText(text []byte) error {
	for _, candidate := range []EntryState{StatePending, StateFetching, StateExpanded, StateFailed, StateDepthExceeded} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown entry state %q", string(text))
}

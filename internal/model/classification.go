package model

import "fmt"

// Classification tells whether a URL belongs to the seed's site.
type Classification int

const (
	// ClassInside marks a URL whose authority equals the seed's authority.
	ClassInside Classification = iota

	// ClassOutside marks every other URL.
	ClassOutside
)

// String returns the lower-case name used in logs and reports.
func (c Classification) String() string {
	switch c {
	case ClassInside:
		return "inside"
	case ClassOutside:
		return "outside"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so JSON output carries names.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Classification) UnmarshalText(text []byte) error {
	switch string(text) {
	case "inside":
		*c = ClassInside
	case "outside":
		*c = ClassOutside
	default:
		return fmt.Errorf("unknown classification %q", string(text))
	}
	return nil
}

// ClassificationResult is the Traversal Policy's answer for one URL.
type ClassificationResult struct {
	// Class is the inside/outside tag.
	Class Classification `json:"class"`

	// Ceiling is the maximum depth at which a URL of this class may still be
	// fetched and expanded.
	Ceiling int `json:"ceiling"`
}

// Allows reports whether an entry at the given depth may be fetched.
func (r ClassificationResult) Allows(depth int) bool {
	return depth <= r.Ceiling
}

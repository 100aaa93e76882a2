package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/nao1215/sitegrab/internal/model"
)

// Target is the immutable seed of a crawl.
type Target struct {
	// raw is the normalized seed URL.
	raw string

	// authority is the seed's host[:port], compared verbatim.
	authority string
}

// NewTarget normalizes a seed URL.
// Surrounding whitespace and trailing slashes are removed. The seed must be an
// absolute http or https URL with a host.
func NewTarget(seed string) (Target, error) {
	normalized := strings.TrimSpace(seed)
	for strings.HasSuffix(normalized, "/") && !strings.HasSuffix(normalized, "://") {
		normalized = strings.TrimSuffix(normalized, "/")
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}

	return Target{raw: normalized, authority: u.Host}, nil
}

// String returns the normalized seed URL.
func (t Target) String() string {
	return t.raw
}

// Authority returns the seed's host[:port].
func (t Target) Authority() string {
	return t.authority
}

// Policy classifies URLs relative to a Target.
// Classify is a pure function and is safe for concurrent use.
type Policy struct {
	target       Target
	maxDepth     int
	outsideDepth int
}

// NewPolicy creates a Policy. maxDepth is the ceiling for inside URLs and
// outsideDepth the ceiling for outside URLs; the two are independent.
func NewPolicy(target Target, maxDepth, outsideDepth int) *Policy {
	return &Policy{
		target:       target,
		maxDepth:     maxDepth,
		outsideDepth: outsideDepth,
	}
}

// Target returns the policy's seed.
func (p *Policy) Target() Target {
	return p.target
}

// Classify tags rawURL as inside or outside and returns the ceiling that
// applies. A URL that cannot be parsed is outside.
func (p *Policy) Classify(rawURL string) model.ClassificationResult {
	if p.IsInside(rawURL) {
		return model.ClassificationResult{Class: model.ClassInside, Ceiling: p.maxDepth}
	}
	return model.ClassificationResult{Class: model.ClassOutside, Ceiling: p.outsideDepth}
}

// IsInside reports whether rawURL's authority equals the seed's authority.
// The comparison is case-sensitive and does not normalize default ports.
func (p *Policy) IsInside(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Host == p.target.authority
}

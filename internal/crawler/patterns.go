package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
)

// pathFilter decides whether a URL may enter the frontier based on glob
// patterns matched against its path.
//
// Logic:
//  1. If the path matches any ignore pattern, reject it
//  2. If follow patterns are set and the path matches none, reject it
//  3. Otherwise accept it
type pathFilter struct {
	ignore []string
	follow []string
}

// allows applies the filter to u.
func (f pathFilter) allows(u *url.URL) bool {
	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range f.ignore {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(f.follow) == 0 {
		return true
	}
	for _, pattern := range f.follow {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	// "/admin/*" also covers everything below /admin.
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Patterns without a slash are tried against the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}

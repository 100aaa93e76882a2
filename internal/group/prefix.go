package group

import (
	"net/url"
	"sort"
	"strings"
)

// Group is a set of pages sharing a path prefix.
type Group struct {
	// Prefix is the shared path segments joined by "/"; empty for the root.
	Prefix string

	// Items are the pages in map order.
	Items []Mapping
}

// GroupByPrefix buckets mappings by their URL path with the last parents
// segments removed. Groups are returned sorted by prefix.
//
// With parents=1, "https://e.com/cat/a/1" and "https://e.com/cat/a/2" share
// the prefix "cat/a". A URL with no more segments than parents lands in the
// root group.
func GroupByPrefix(mappings []Mapping, parents int) ([]Group, error) {
	if parents < 0 {
		return nil, ErrInvalidParents
	}

	index := make(map[string]int)
	groups := make([]Group, 0)

	for _, m := range mappings {
		segments := pathSegments(m.URL)
		cutoff := max(0, len(segments)-parents)
		prefix := strings.Join(segments[:cutoff], "/")

		i, ok := index[prefix]
		if !ok {
			i = len(groups)
			index[prefix] = i
			groups = append(groups, Group{Prefix: prefix})
		}
		groups[i].Items = append(groups[i].Items, m)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Prefix < groups[j].Prefix
	})
	return groups, nil
}

// pathSegments splits the URL path into segments, ignoring leading and
// trailing slashes. An unparseable URL has no segments.
func pathSegments(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// OutputName returns the combined document name for a prefix.
func OutputName(prefix string) string {
	if prefix == "" {
		return "combined_root.html"
	}
	r := strings.NewReplacer("/", "_", ":", "_")
	return "combined_" + r.Replace(prefix) + ".html"
}

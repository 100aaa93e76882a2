package model

// PageOutcome records what happened to one discovered URL.
type PageOutcome struct {
	// URL is the canonical absolute URL (fragment removed).
	URL string `json:"url"`

	// Depth is the number of link hops from the seed; the seed is depth 1.
	Depth int `json:"depth"`

	// Class is the URL's classification relative to the seed.
	Class Classification `json:"class"`

	// State is the terminal state reached.
	State EntryState `json:"state"`

	// Parent is the page the URL was first discovered on. Empty for the seed.
	Parent string `json:"parent,omitempty"`

	// Links is the number of candidate links extracted when expanded.
	Links int `json:"links,omitempty"`

	// Error is the fetch failure message for StateFailed entries.
	Error string `json:"error,omitempty"`
}

// CrawlStats are the counters a crawl exposes for progress reporting.
type CrawlStats struct {
	// Discovered is the size of the visited set.
	Discovered int `json:"discovered"`

	// Fetched is the number of fetch attempts started.
	Fetched int `json:"fetched"`

	// Expanded is the number of entries that reached StateExpanded.
	Expanded int `json:"expanded"`

	// Failed is the number of entries that reached StateFailed.
	Failed int `json:"failed"`

	// DepthExceeded is the number of entries that reached StateDepthExceeded.
	DepthExceeded int `json:"depth_exceeded"`

	// Pending is the number of entries still waiting in the frontier.
	Pending int `json:"pending"`
}

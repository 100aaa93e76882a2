package model

import "time"

// GroupSummary describes one combined document written by the grouping step.
type GroupSummary struct {
	// Prefix is the shared URL path prefix; empty for the site root.
	Prefix string `json:"prefix"`

	// OutputFile is the path of the combined document.
	OutputFile string `json:"output_file"`

	// Files is the number of archived pages concatenated.
	Files int `json:"files"`

	// Missing is the number of referenced files that were not found.
	Missing int `json:"missing,omitempty"`
}

// Run is the record a pipeline accumulates while processing one seed.
//
// Steps read and extend it in order: the crawl step fills URLs and Outcomes,
// the archive step fills Archive, the group step fills Groups.
type Run struct {
	// ID is the database identifier, zero until the run is recorded.
	ID int64 `json:"id,omitempty"`

	// Seed is the normalized seed URL.
	Seed string `json:"seed"`

	// Domain is the seed's authority used for inside classification.
	Domain string `json:"domain"`

	// MaxDepth is the ceiling for inside URLs.
	MaxDepth int `json:"max_depth"`

	// OutsideDepth is the ceiling for outside URLs.
	OutsideDepth int `json:"outside_depth"`

	// StartedAt is when the first step began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the last step ended.
	FinishedAt time.Time `json:"finished_at"`

	// URLs is the visited set handed to the archive step, sorted.
	URLs []string `json:"urls"`

	// Outcomes holds one record per discovered URL.
	Outcomes []PageOutcome `json:"outcomes,omitempty"`

	// Stats are the crawl counters at completion.
	Stats CrawlStats `json:"stats"`

	// Archive is the archive step's result; nil if the step did not run.
	Archive *ArchiveResult `json:"archive,omitempty"`

	// Groups lists the combined documents written.
	Groups []GroupSummary `json:"groups,omitempty"`

	// PerformedSteps names the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps"`

	// Cancelled is true when the run was interrupted; results are partial.
	Cancelled bool `json:"cancelled"`

	// Error is the last step error, if any.
	Error error `json:"-"`

	// ErrorMessage is Error's text for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// NewRun creates an empty run for the given seed.
func NewRun(seed string) *Run {
	return &Run{
		Seed:           seed,
		StartedAt:      time.Now(),
		URLs:           make([]string, 0),
		PerformedSteps: make([]string, 0),
	}
}

// Duration returns how long the run took, or zero if it has not finished.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// CountByClass returns how many outcomes carry the given classification.
func (r *Run) CountByClass(c Classification) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Class == c {
			n++
		}
	}
	return n
}

package model

import "sort"

// ArchiveStatus tells what the archive step did with one URL.
type ArchiveStatus string

const (
	// ArchiveSaved means the page was downloaded and written.
	ArchiveSaved ArchiveStatus = "saved"

	// ArchiveExists means the target file was already present.
	ArchiveExists ArchiveStatus = "exists"

	// ArchiveSkippedImage means the URL path ends in an image extension.
	ArchiveSkippedImage ArchiveStatus = "skipped_image"

	// ArchiveSkippedScheme means the URL is not http or https.
	ArchiveSkippedScheme ArchiveStatus = "skipped_scheme"

	// ArchiveFailed means the download or the write failed.
	ArchiveFailed ArchiveStatus = "failed"
)

// ArchiveEntry is the archive step's record for one URL.
type ArchiveEntry struct {
	// URL is the archived page URL.
	URL string `json:"url"`

	// FileName is the file name inside the output directory.
	FileName string `json:"file_name,omitempty"`

	// Status is what happened to the URL.
	Status ArchiveStatus `json:"status"`

	// Title is the page <title>, when the page was saved in this run.
	Title string `json:"title,omitempty"`

	// Digest is the hex SHA3-256 of the saved body.
	Digest string `json:"digest,omitempty"`

	// Bytes is the size of the saved body.
	Bytes int `json:"bytes,omitempty"`

	// Error describes a failure.
	Error string `json:"error,omitempty"`
}

// HasFile reports whether the entry's file exists on disk after the run.
func (e ArchiveEntry) HasFile() bool {
	return e.Status == ArchiveSaved || e.Status == ArchiveExists
}

// ArchiveResult is returned by the archive step instead of global counters.
type ArchiveResult struct {
	// OutputDir is the directory the files were written to.
	OutputDir string `json:"output_dir"`

	// MapFile is the path of the URL-to-filename log.
	MapFile string `json:"map_file,omitempty"`

	// Saved counts pages written in this run.
	Saved int `json:"saved"`

	// Skipped counts URLs that were already archived or not archivable.
	Skipped int `json:"skipped"`

	// Failed counts URLs whose download or write failed.
	Failed int `json:"failed"`

	// Entries holds one record per input URL, sorted by URL.
	Entries []ArchiveEntry `json:"entries"`
}

// Add records an entry and updates the counters.
func (r *ArchiveResult) Add(e ArchiveEntry) {
	switch e.Status {
	case ArchiveSaved:
		r.Saved++
	case ArchiveFailed:
		r.Failed++
	default:
		r.Skipped++
	}
	r.Entries = append(r.Entries, e)
}

// Sort orders entries by URL so output is stable across concurrent runs.
func (r *ArchiveResult) Sort() {
	sort.Slice(r.Entries, func(i, j int) bool {
		return r.Entries[i].URL < r.Entries[j].URL
	})
}

// Mapping returns the entries that have a file on disk.
func (r *ArchiveResult) Mapping() []ArchiveEntry {
	out := make([]ArchiveEntry, 0, len(r.Entries))
	for _, e := range r.Entries {
		if e.HasFile() {
			out = append(out, e)
		}
	}
	return out
}

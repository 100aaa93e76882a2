package archive

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// unsafeChars matches every character not allowed in a file name.
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_\-.]`)

// imageExtensions are skipped by the archiver.
var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".bmp":  {},
	".svg":  {},
	".webp": {},
	".ico":  {},
	".tif":  {},
	".tiff": {},
}

// FileName returns the file name a URL is archived under.
//
// The name is the host followed by the path with every character outside
// [A-Za-z0-9_.-] replaced by "_". An empty path (or one that sanitizes to a
// single "_") becomes "index". A query string is appended after "_", and
// ".html" is added unless the name already ends with it. The same URL always
// yields the same name.
func FileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return sanitize(rawURL) + ".html"
	}

	safePath := sanitize(u.EscapedPath())
	if safePath == "" || safePath == "_" {
		safePath = "index"
	}

	name := sanitize(u.Host) + safePath
	if u.RawQuery != "" {
		name += "_" + sanitize(u.RawQuery)
	}
	if !strings.HasSuffix(name, ".html") {
		name += ".html"
	}
	return name
}

// sanitize replaces unsafe characters with "_".
func sanitize(s string) string {
	return unsafeChars.ReplaceAllString(s, "_")
}

// IsImage reports whether the URL path ends in a known image extension.
func IsImage(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := imageExtensions[strings.ToLower(path.Ext(u.Path))]
	return ok
}

// isHTTP reports whether rawURL is an absolute http or https URL.
func isHTTP(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

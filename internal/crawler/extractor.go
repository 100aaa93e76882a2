package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Extractor lists the links a page refers to through anchor elements.
//
// It uses golang.org/x/net/html rather than regular expressions because the
// tokenizer copes with the malformed markup that is common on the web.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract parses markup and returns the absolute URL of every <a href> in
// document order, resolved against base. The first <base href> element in
// the document replaces base for every anchor, wherever it appears.
//
// The result is neither deduplicated nor filtered. A reference that cannot be
// parsed is dropped silently; only an unusable base URL is an error.
func (x *Extractor) Extract(content io.Reader, base string) ([]string, error) {
	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return nil, ErrInvalidBaseURL
	}

	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	if href, ok := findBaseHref(doc); ok {
		if resolved, ok := resolveReference(baseURL, href); ok {
			if u, err := url.Parse(resolved); err == nil {
				baseURL = u
			}
		}
	}

	links := make([]string, 0)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href, ok := getAttr(n, "href"); ok {
				if resolved, ok := resolveReference(baseURL, href); ok {
					links = append(links, resolved)
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	return links, nil
}

// findBaseHref returns the href of the first <base> element that has one.
func findBaseHref(n *html.Node) (string, bool) {
	if n.Type == html.ElementNode && n.Data == "base" {
		if href, ok := getAttr(n, "href"); ok {
			return href, true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href, ok := findBaseHref(c); ok {
			return href, true
		}
	}
	return "", false
}

// resolveReference resolves href against base per RFC 3986.
// Relative, protocol-relative and fragment-only references are handled by
// url.URL.ResolveReference.
func resolveReference(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

// Package fetch performs the HTTP requests of a crawl.
//
// HTTPFetcher wraps an http.Client with a fixed per-request timeout, follows
// redirects, decodes gzip, deflate and brotli bodies, and transcodes the
// body to UTF-8 based on the Content-Type header and <meta charset>. Requests
// can be routed through a SOCKS5 proxy.
//
// Every failure (connection error, timeout, non-2xx status, unreadable body)
// is returned as a *Error that matches ErrFetchFailed with errors.Is, so
// callers can treat all of them uniformly.
package fetch

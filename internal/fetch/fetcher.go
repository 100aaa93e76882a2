package fetch

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

const (
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBodySize limits how much of a body is read.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultUserAgent identifies the crawler in server logs.
	DefaultUserAgent = "sitegrab/1.0 (+https://github.com/nao1215/sitegrab)"
)

// Response is a successfully fetched page.
type Response struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the URL after redirects.
	FinalURL string

	// StatusCode is the HTTP status.
	StatusCode int

	// ContentType is the Content-Type header.
	ContentType string

	// Header holds the response headers.
	Header http.Header

	// Body is the decoded body, transcoded to UTF-8 for text content.
	Body []byte
}

// HTTPFetcher fetches pages over HTTP(S).
type HTTPFetcher struct {
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	maxBodySize int64
	proxy       string
	headers     map[string]string
	logger      *slog.Logger
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum body size in bytes.
func WithMaxBodySize(size int64) Option {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithProxy routes requests through a SOCKS5 proxy at "host:port".
func WithProxy(address string) Option {
	return func(f *HTTPFetcher) {
		f.proxy = address
	}
}

// WithHeaders adds fixed headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(f *HTTPFetcher) {
		f.headers = headers
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// New creates an HTTPFetcher.
func New(opts ...Option) (*HTTPFetcher, error) {
	f := &HTTPFetcher{
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	client, err := newHTTPClient(f.timeout, f.proxy, f.headers)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	f.client = client

	return f, nil
}

// Timeout returns the per-request timeout.
func (f *HTTPFetcher) Timeout() time.Duration {
	return f.timeout
}

// Fetch requests rawURL and returns the page.
// Connection failures, timeouts, non-2xx statuses and oversized bodies are
// all reported as a *Error matching ErrFetchFailed.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best effort
		return nil, &Error{URL: rawURL, StatusCode: resp.StatusCode, Err: ErrStatus}
	}

	body, err := f.readBody(resp)
	if err != nil {
		return nil, &Error{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}

	contentType := resp.Header.Get("Content-Type")
	body = toUTF8(body, contentType)

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	f.logger.Debug("fetched",
		"url", rawURL,
		"final_url", finalURL,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", time.Since(start),
	)

	return &Response{
		URL:         rawURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Header:      resp.Header.Clone(),
		Body:        body,
	}, nil
}

// readBody decompresses and reads the body up to maxBodySize.
func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl, err := deflateReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("deflate decode: %w", err)
		}
		defer fl.Close()
		reader = fl
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, f.maxBodySize)
	}
	return body, nil
}

// deflateReader decodes a "deflate" body. Servers send either the zlib
// wrapped stream the encoding names or a raw DEFLATE stream, so the zlib
// header is checked first.
func deflateReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(2); err == nil && isZlibHeader(head[0], head[1]) {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

// isZlibHeader reports whether cmf and flg start a zlib stream using DEFLATE.
func isZlibHeader(cmf, flg byte) bool {
	return cmf&0x0f == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// toUTF8 transcodes text bodies to UTF-8. Binary content and bodies that
// fail to decode are returned unchanged.
func toUTF8(body []byte, contentType string) []byte {
	if contentType != "" && !strings.HasPrefix(contentType, "text/") && !strings.Contains(contentType, "html") && !strings.Contains(contentType, "xml") {
		return body
	}

	_, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" {
		return body
	}

	enc, _ := charset.Lookup(name)
	if enc == nil {
		return body
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return body
	}
	return decoded
}

package fetch

import (
	"context"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// maxRedirects bounds redirect chains so loops end.
const maxRedirects = 10

// newHTTPClient builds the client used by HTTPFetcher.
//
// Compression is negotiated by readBody rather than the transport so that
// brotli is accepted as well as gzip and deflate.
func newHTTPClient(timeout time.Duration, proxyAddress string, headers map[string]string) (*http.Client, error) {
	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   timeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableCompression:    true,
	}

	if proxyAddress != "" {
		dialer, err := newSOCKS5Dialer(proxyAddress)
		if err != nil {
			return nil, err
		}
		transport.DialContext = dialer
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	var rt http.RoundTripper = transport
	if len(headers) > 0 {
		rt = &headerInjectingTransport{base: transport, headers: headers}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}, nil
}

// newSOCKS5Dialer returns a DialContext func that routes through a SOCKS5
// proxy. The address is "host:port", optionally prefixed with "socks5://".
func newSOCKS5Dialer(address string) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	address = strings.TrimPrefix(address, "socks5://")
	if !isValidProxyAddress(address) {
		return nil, ErrInvalidProxyAddress
	}

	dialer, err := proxy.SOCKS5("tcp", address, nil, proxy.Direct)
	if err != nil {
		return nil, err
	}

	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}

	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		resultCh := make(chan dialResult, 1)
		go func() {
			conn, err := dialer.Dial(network, addr)
			resultCh <- dialResult{conn, err}
		}()
		select {
		case result := <-resultCh:
			return result.conn, result.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, nil
}

// isValidProxyAddress checks if the address is in "host:port" form with a
// port between 1 and 65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return false
	}

	portNum := 0
	for _, c := range port {
		if c < '0' || c > '9' {
			return false
		}
		portNum = portNum*10 + int(c-'0')
		if portNum > 65535 {
			return false
		}
	}
	return portNum >= 1
}

// headerInjectingTransport adds fixed headers to every request, including
// the ones issued while following redirects.
type headerInjectingTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}
	return t.base.RoundTrip(clone)
}

package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/torosent/checkfire/internal/config"
)

// maxDrainBytes bounds how much of a response body is read before the
// connection is returned to the pool.
const maxDrainBytes = 1 << 20

// AuthProvider injects credentials into HTTP requests.
type AuthProvider interface {
	InjectHeader(ctx context.Context, req *http.Request) error
}

// RequestBuilder produces the listing request every virtual user sends:
// GET {target}?page={page}&size={pageSize} with the configured headers.
type RequestBuilder struct {
	target       string
	headers      http.Header
	authProvider AuthProvider
}

// NewRequestBuilder validates headers and resolves the paginated target URL.
// provider may be nil.
func NewRequestBuilder(cfg *config.Config, provider AuthProvider) (*RequestBuilder, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	target, err := ListingURL(cfg.TargetURL, cfg.Page, cfg.PageSize)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	for key, value := range cfg.Headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		headers.Set(canonicalKey, value)
	}

	return &RequestBuilder{
		target:       target,
		headers:      headers,
		authProvider: provider,
	}, nil
}

// ListingURL merges the page and size query parameters into target. Any
// existing page or size parameter is replaced; other parameters are kept.
func ListingURL(target string, page, pageSize int) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", errors.New("target URL is required")
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse target: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("target scheme must be http or https, got %q", u.Scheme)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(pageSize))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Target returns the resolved request URL.
func (b *RequestBuilder) Target() string {
	return b.target
}

// Build returns a fresh GET request bound to ctx.
func (b *RequestBuilder) Build(ctx context.Context) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.target, nil)
	if err != nil {
		return nil, err
	}
	req.Header = b.headers.Clone()

	if b.authProvider != nil {
		if err := b.authProvider.InjectHeader(ctx, req); err != nil {
			return nil, fmt.Errorf("auth provider inject header: %w", err)
		}
	}

	return req, nil
}

// Drain discards up to 1MiB of the response body and closes it so the
// connection can be reused.
func Drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	_ = resp.Body.Close()
}

// NewClient returns a client whose transport is shared by every virtual user.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// Package portal implements the Portal port against the captive portal's
// server-rendered HTML pages.
package portal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/ericfisherdev/nauta/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Portal = (*Client)(nil)

// maxBodyBytes caps how much of any portal response is read.
const maxBodyBytes = 2 << 20

// Endpoints are the fixed URLs of the portal service.
type Endpoints struct {
	// BootstrapURL is any plain-HTTP page; the gateway intercepts it and
	// serves its login form while the host is offline.
	BootstrapURL string
	// PortalURL is the portal root page.
	PortalURL string
	// QueryURL serves balance and account queries.
	QueryURL string
	// LogoutURL is the base of the logout URL template.
	LogoutURL string
}

// Client implements the driven.Portal port. It holds no HTTP state; every
// operation creates its own session with a fresh cookie jar.
type Client struct {
	endpoints Endpoints
	// portalHost is the portal's host name without the port.
	portalHost string
	timeout    time.Duration
	transport  http.RoundTripper
	extractor  FormFieldExtractor
	sanitizer  *bluemonday.Policy
}

// NewClient creates a portal client for the given endpoints. A zero timeout
// disables the per-request timeout.
func NewClient(endpoints Endpoints, timeout time.Duration) (*Client, error) {
	return NewClientWithTransport(endpoints, timeout, http.DefaultTransport)
}

// NewClientWithTransport creates a Client that sends requests through
// transport. It is used by tests to route requests to an httptest server.
func NewClientWithTransport(endpoints Endpoints, timeout time.Duration, transport http.RoundTripper) (*Client, error) {
	portal, err := url.Parse(endpoints.PortalURL)
	if err != nil {
		return nil, fmt.Errorf("parsing portal URL: %w", err)
	}
	if portal.Host == "" {
		return nil, fmt.Errorf("portal URL %q has no host", endpoints.PortalURL)
	}

	return &Client{
		endpoints:  endpoints,
		portalHost: portal.Hostname(),
		timeout:    timeout,
		transport:  &loggingTransport{next: transport},
		extractor:  HTMLFormExtractor{},
		sanitizer:  bluemonday.StrictPolicy(),
	}, nil
}

// newSession returns an HTTP client with its own cookie jar.
func (c *Client) newSession() *http.Client {
	// cookiejar.New only fails for a non-nil Options with a broken PublicSuffixList.
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Jar:       jar,
		Timeout:   c.timeout,
		Transport: c.transport,
	}
}

// page is a fetched response body with the URL it was finally served from.
type page struct {
	url  *url.URL
	body string
}

func (p page) document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.body))
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", p.url, err)
	}
	return doc, nil
}

func (c *Client) get(ctx context.Context, session *http.Client, rawURL string) (page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return page{}, fmt.Errorf("build request %s: %w", rawURL, err)
	}
	return c.do(session, req)
}

func (c *Client) postForm(ctx context.Context, session *http.Client, rawURL string, values url.Values) (page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(values.Encode()))
	if err != nil {
		return page{}, fmt.Errorf("build request %s: %w", rawURL, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(session, req)
}

// do sends req and reads the body. Transport failures are wrapped with
// driven.ErrNetwork; HTTP status codes are not interpreted.
func (c *Client) do(session *http.Client, req *http.Request) (page, error) {
	resp, err := session.Do(req)
	if err != nil {
		return page{}, fmt.Errorf("%s %s: %w: %w", req.Method, req.URL.Redacted(), driven.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return page{}, fmt.Errorf("read %s: %w: %w", req.URL.Redacted(), driven.ErrNetwork, err)
	}

	return page{url: resp.Request.URL, body: string(body)}, nil
}

// loggingTransport logs every portal round trip at debug level.
type loggingTransport struct {
	next http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		slog.Debug("portal request failed",
			"method", req.Method,
			"url", req.URL.Redacted(),
			"duration", time.Since(start).Round(time.Millisecond),
			"error", err,
		)
		return nil, err
	}
	slog.Debug("portal request",
		"method", req.Method,
		"url", req.URL.Redacted(),
		"status", resp.StatusCode,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return resp, nil
}

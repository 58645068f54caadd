package sitecheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/otservhub/hub/internal/hostguard"
)

// Sentinel errors for the bounded fetch.
var (
	ErrTimeout     = errors.New("website took too long to respond")
	ErrUnreachable = errors.New("website could not be reached")
	ErrNotHTML     = errors.New("website did not return an HTML page")

	errBlockedAddress   = errors.New("connection to private/reserved address blocked")
	errTooManyRedirects = errors.New("too many redirects")
	errBlockedRedirect  = errors.New("redirect to non-http(s) scheme blocked")
)

// StatusError is returned when the target responds with a non-2xx status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("website returned HTTP %d", e.Code)
}

const (
	// DefaultTimeout is the wall-clock budget for one verification fetch.
	DefaultTimeout = 10 * time.Second

	maxRedirects    = 5
	maxResponseBody = 1 << 20 // 1 MiB
	userAgent       = "OtservHub-Verification-Bot/1.0"
)

// HTTPFetcher performs a single bounded GET against an already-resolved target.
// The zero value is not usable; construct with NewHTTPFetcher.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPFetcher builds a fetcher with the given wall-clock timeout (0 means
// DefaultTimeout), a transport whose dialer rejects private/reserved addresses
// after DNS resolution (so redirect hops and DNS rebinding cannot reach
// internal targets), and a redirect policy capping the chain length.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
		Control:   blockPrivateAddresses,
	}
	return &HTTPFetcher{
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:         dialer.DialContext,
				MaxConnsPerHost:     10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			CheckRedirect: redirectPolicy,
		},
	}
}

func redirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("%w: stopped after %d", errTooManyRedirects, maxRedirects)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("%w: %s", errBlockedRedirect, req.URL.Scheme)
	}
	return nil
}

// blockPrivateAddresses runs at dial time, after DNS resolution, and rejects
// any connection whose resolved address the host guard disallows.
func blockPrivateAddresses(_ string, address string, _ syscall.RawConn) error {
	addrPort, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", errBlockedAddress, address)
	}
	if !classifyDialAddr(addrPort.Addr()) {
		return fmt.Errorf("%w: %s", errBlockedAddress, addrPort.Addr())
	}
	return nil
}

func classifyDialAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	// Anything that is not globally routable unicast is rejected outright;
	// the hostguard tables then catch carrier-grade NAT and the 0/8 block.
	if !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return false
	}
	return hostguard.Classify(addr.String()).Allowed()
}

// Fetch issues one GET to target and returns the page body as a string.
//
// A deadline firing before completion cancels the in-flight request and
// yields ErrTimeout; any other transport failure yields ErrUnreachable.
// Non-2xx responses yield *StatusError; a declared content type without an
// HTML/XHTML marker yields ErrNotHTML before the body is read.
func (f *HTTPFetcher) Fetch(ctx context.Context, target *url.URL) (string, error) {
	timeout := f.timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnreachable, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("%w: %s", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Code: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml") {
		return "", fmt.Errorf("%w: got %q", ErrNotHTML, contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("%w: read body: %s", ErrUnreachable, err)
	}
	return string(body), nil
}

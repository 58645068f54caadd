package sitecheck

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/otservhub/hub/internal/hostguard"
)

// Sentinel errors for target resolution.
var (
	ErrInvalidURL     = errors.New("invalid website URL")
	ErrDisallowedHost = errors.New("website host is not allowed")
)

// schemeRe matches an explicit URL scheme prefix (RFC 3986 scheme + "://").
var schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// Resolve normalises raw user input into a scheme-restricted absolute URL.
//
// Input without an explicit scheme gets https:// prepended. Any scheme other
// than http/https fails with ErrInvalidURL; a hostname the host guard does
// not classify as public fails with ErrDisallowedHost.
//
// The guard runs on the parsed hostname, never on the raw string — bypasses
// embedded in unparsed input (userinfo tricks, mixed case, brackets) are
// normalised away by the parser before the check.
func Resolve(raw string) (*url.URL, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidURL)
	}
	// Only scheme-less input gets the default prefix. An explicit foreign
	// scheme (ftp://, file://) must survive to the allow-list check below
	// rather than become the hostname of a prepended https URL.
	if !schemeRe.MatchString(s) {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q not allowed", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}

	if c := hostguard.Classify(u.Hostname()); !c.Allowed() {
		return nil, fmt.Errorf("%w: %s (%s)", ErrDisallowedHost, u.Hostname(), c)
	}
	return u, nil
}

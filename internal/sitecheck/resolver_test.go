package sitecheck_test

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/otservhub/hub/internal/sitecheck"
)

func TestResolve_prependsScheme(t *testing.T) {
	for _, raw := range []string{"example.com", "http://example.com", "https://example.com"} {
		u, err := sitecheck.Resolve(raw)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", raw, err)
		}
		if u.Hostname() != "example.com" {
			t.Errorf("Resolve(%q).Hostname() = %q", raw, u.Hostname())
		}
	}

	u, err := sitecheck.Resolve("  example.com/path  ")
	if err != nil {
		t.Fatalf("Resolve with whitespace: %v", err)
	}
	if u.Scheme != "https" {
		t.Errorf("expected https scheme when none given, got %q", u.Scheme)
	}
}

func TestResolve_rejectsBadSchemes(t *testing.T) {
	bad := []string{
		"ftp://example.com",
		"file:///etc/passwd",
		"gopher://example.com",
		"FTP://example.com",
		"ssh+git://example.com",
	}
	for _, raw := range bad {
		u, err := sitecheck.Resolve(raw)
		if !errors.Is(err, sitecheck.ErrInvalidURL) {
			t.Errorf("Resolve(%q) = %v, %v, want ErrInvalidURL", raw, u, err)
		}
	}

	// An uppercased allowed scheme is still allowed; url.Parse lowercases it.
	u, err := sitecheck.Resolve("HTTPS://example.com")
	if err != nil {
		t.Fatalf("Resolve(HTTPS://example.com): %v", err)
	}
	if u.Scheme != "https" || u.Hostname() != "example.com" {
		t.Errorf("got scheme %q host %q", u.Scheme, u.Hostname())
	}
}

func TestResolve_rejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "   ", "http://"} {
		_, err := sitecheck.Resolve(raw)
		if !errors.Is(err, sitecheck.ErrInvalidURL) {
			t.Errorf("Resolve(%q) = %v, want ErrInvalidURL", raw, err)
		}
	}
}

func TestResolve_rejectsDisallowedHosts(t *testing.T) {
	hosts := []string{
		"127.0.0.1", "10.0.0.5", "172.16.0.1", "172.31.255.255",
		"192.168.1.1", "169.254.1.1", "0.0.0.1", "100.64.0.1",
		"100.127.255.255", "[::1]", "[fc00::1]", "[fe80::1]",
		"localhost", "foo.local", "foo.internal", "256.1.1.1",
	}
	for _, h := range hosts {
		_, err := sitecheck.Resolve("http://" + h + "/page")
		if !errors.Is(err, sitecheck.ErrDisallowedHost) {
			t.Errorf("Resolve(http://%s) = %v, want ErrDisallowedHost", h, err)
		}
	}
}

func TestResolve_allowsPublicHosts(t *testing.T) {
	for _, h := range []string{"example.com", "sub.example.org", "203.0.113.5"} {
		if _, err := sitecheck.Resolve("https://" + h); err != nil {
			t.Errorf("Resolve(https://%s): %v", h, err)
		}
	}
}

func TestNewToken_format(t *testing.T) {
	re := regexp.MustCompile(`^otservhub-verify-[a-z0-9]{8}$`)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		tok, err := sitecheck.NewToken()
		if err != nil {
			t.Fatalf("NewToken: %v", err)
		}
		if !re.MatchString(tok) {
			t.Fatalf("token %q does not match expected format", tok)
		}
		seen[tok] = true
	}
	if len(seen) < 45 {
		t.Errorf("tokens look non-random: %d unique of 50", len(seen))
	}
}

func TestMetaTag_containsTokenAndName(t *testing.T) {
	tag := sitecheck.MetaTag("otservhub-verify-ab12cd34")
	if !strings.Contains(tag, sitecheck.MetaTagName) {
		t.Errorf("meta tag %q missing tag name", tag)
	}
	if !strings.Contains(tag, "otservhub-verify-ab12cd34") {
		t.Errorf("meta tag %q missing token", tag)
	}
}

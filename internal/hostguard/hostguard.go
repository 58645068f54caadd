// Package hostguard classifies hostnames and IP literals as publicly routable
// or private/reserved. It is the SSRF gate for every outbound fetch the hub
// performs on behalf of a user: only Public targets may reach the network.
//
// Classification is a pure string function — no DNS, no I/O, never panics.
// Dial-time address checks (internal/sitecheck) complement it for hostnames
// that resolve to private addresses.
package hostguard

import (
	"net/netip"
	"strconv"
	"strings"
)

// Classification is the single category assigned to a hostname.
type Classification string

const (
	Loopback            Classification = "loopback"
	PrivateV4           Classification = "private-v4"
	PrivateV6           Classification = "private-v6"
	LinkLocal           Classification = "link-local"
	CarrierGradeNAT     Classification = "carrier-grade-nat"
	ReservedLocalSuffix Classification = "reserved-local-suffix"
	MalformedOctet      Classification = "malformed-octet"
	Public              Classification = "public"
)

// Allowed reports whether a target with this classification may be fetched.
func (c Classification) Allowed() bool {
	return c == Public
}

// blockedHostnames are exact-match loopback aliases, checked before any
// pattern matching. Bracketed IPv6 forms are covered because brackets are
// stripped during normalisation.
var blockedHostnames = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"0.0.0.0":   {},
	"::1":       {},
	"::":        {},
}

var (
	loopbackV4 = netip.MustParsePrefix("127.0.0.0/8")
	privateV4  = []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("172.16.0.0/12"),
		netip.MustParsePrefix("192.168.0.0/16"),
		netip.MustParsePrefix("0.0.0.0/8"),
	}
	linkLocalV4 = netip.MustParsePrefix("169.254.0.0/16")
	cgnatV4     = netip.MustParsePrefix("100.64.0.0/10") // RFC 6598

	uniqueLocalV6 = netip.MustParsePrefix("fc00::/7")
	linkLocalV6   = netip.MustParsePrefix("fe80::/10")
	multicastV6   = netip.MustParsePrefix("ff00::/8")
)

var reservedSuffixes = []string{".local", ".internal", ".localhost"}

// Classify assigns exactly one Classification to the given hostname.
// Input is lower-cased and trimmed; bracketed IPv6 literals have their
// brackets stripped. Malformed input classifies as disallowed, never errors.
func Classify(hostname string) Classification {
	h := normalize(hostname)

	if _, blocked := blockedHostnames[h]; blocked {
		return Loopback
	}

	if addr, err := netip.ParseAddr(h); err == nil {
		return classifyAddr(addr)
	}

	for _, suffix := range reservedSuffixes {
		if strings.HasSuffix(h, suffix) {
			return ReservedLocalSuffix
		}
	}

	// A dotted-quad-shaped string that failed to parse as an address has an
	// out-of-range octet. Fail closed rather than treating it as a domain.
	if isDottedQuadShape(h) {
		return MalformedOctet
	}

	return Public
}

func normalize(hostname string) string {
	h := strings.ToLower(strings.TrimSpace(hostname))
	if strings.HasPrefix(h, "[") && strings.HasSuffix(h, "]") {
		h = h[1 : len(h)-1]
	}
	return h
}

func classifyAddr(addr netip.Addr) Classification {
	// ::ffff:127.0.0.1 and friends must not bypass the IPv4 tables.
	if addr.Is4In6() {
		addr = addr.Unmap()
	}

	if addr.Is4() {
		switch {
		case loopbackV4.Contains(addr):
			return Loopback
		case linkLocalV4.Contains(addr):
			return LinkLocal
		case cgnatV4.Contains(addr):
			return CarrierGradeNAT
		}
		for _, p := range privateV4 {
			if p.Contains(addr) {
				return PrivateV4
			}
		}
		return Public
	}

	switch {
	case addr.IsLoopback() || addr.IsUnspecified():
		return Loopback
	case linkLocalV6.Contains(addr):
		return LinkLocal
	case uniqueLocalV6.Contains(addr) || multicastV6.Contains(addr):
		return PrivateV6
	}
	return Public
}

// isDottedQuadShape reports whether s looks like a.b.c.d with numeric parts.
func isDottedQuadShape(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if _, err := strconv.Atoi(p); err != nil {
			return false
		}
	}
	return true
}

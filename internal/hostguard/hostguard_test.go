package hostguard_test

import (
	"testing"

	"github.com/otservhub/hub/internal/hostguard"
)

func TestClassify_blockedHosts(t *testing.T) {
	cases := []struct {
		host string
		want hostguard.Classification
	}{
		{"localhost", hostguard.Loopback},
		{"LOCALHOST", hostguard.Loopback},
		{"  localhost  ", hostguard.Loopback},
		{"127.0.0.1", hostguard.Loopback},
		{"127.255.255.255", hostguard.Loopback},
		{"0.0.0.0", hostguard.Loopback},
		{"::1", hostguard.Loopback},
		{"[::1]", hostguard.Loopback},
		{"[::]", hostguard.Loopback},
		{"10.0.0.5", hostguard.PrivateV4},
		{"172.16.0.1", hostguard.PrivateV4},
		{"172.31.255.255", hostguard.PrivateV4},
		{"192.168.1.1", hostguard.PrivateV4},
		{"0.0.0.1", hostguard.PrivateV4},
		{"169.254.1.1", hostguard.LinkLocal},
		{"100.64.0.1", hostguard.CarrierGradeNAT},
		{"100.127.255.255", hostguard.CarrierGradeNAT},
		{"fc00::1", hostguard.PrivateV6},
		{"fd12:3456::1", hostguard.PrivateV6},
		{"ff02::1", hostguard.PrivateV6},
		{"fe80::1", hostguard.LinkLocal},
		{"[fe80::1]", hostguard.LinkLocal},
		{"foo.local", hostguard.ReservedLocalSuffix},
		{"foo.internal", hostguard.ReservedLocalSuffix},
		{"foo.localhost", hostguard.ReservedLocalSuffix},
		{"256.1.1.1", hostguard.MalformedOctet},
		{"1.2.3.999", hostguard.MalformedOctet},
		{"-1.2.3.4", hostguard.MalformedOctet},
	}

	for _, tc := range cases {
		got := hostguard.Classify(tc.host)
		if got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.host, got, tc.want)
		}
		if got.Allowed() {
			t.Errorf("Classify(%q) = %q must not be Allowed", tc.host, got)
		}
	}
}

func TestClassify_mappedIPv4(t *testing.T) {
	cases := []struct {
		host string
		want hostguard.Classification
	}{
		{"::ffff:127.0.0.1", hostguard.Loopback},
		{"::ffff:10.0.0.5", hostguard.PrivateV4},
		{"::ffff:172.16.0.1", hostguard.PrivateV4},
		{"::ffff:192.168.1.1", hostguard.PrivateV4},
		{"::ffff:169.254.1.1", hostguard.LinkLocal},
		{"::ffff:0.0.0.1", hostguard.PrivateV4},
		{"::ffff:203.0.113.5", hostguard.Public},
	}
	for _, tc := range cases {
		if got := hostguard.Classify(tc.host); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.host, got, tc.want)
		}
	}
}

func TestClassify_public(t *testing.T) {
	for _, host := range []string{
		"example.com",
		"sub.example.org",
		"203.0.113.5",
		"8.8.8.8",
		"2606:4700::1111",
		"my-server.net",
	} {
		got := hostguard.Classify(host)
		if got != hostguard.Public {
			t.Errorf("Classify(%q) = %q, want public", host, got)
		}
		if !got.Allowed() {
			t.Errorf("Classify(%q) should be Allowed", host)
		}
	}
}

func TestClassify_garbageNeverPanics(t *testing.T) {
	for _, host := range []string{
		"", " ", "...", "a..b", "[", "]", "[]", "1.2.3", "1.2.3.4.5",
		"http://example.com", "exa mple.com", "\x00", "∞.example.com",
	} {
		_ = hostguard.Classify(host) // must not panic
	}
}

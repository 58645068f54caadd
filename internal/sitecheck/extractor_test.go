package sitecheck_test

import (
	"testing"

	"github.com/otservhub/hub/internal/sitecheck"
)

func TestExtractMetaContent(t *testing.T) {
	var x sitecheck.TokenScanExtractor

	cases := []struct {
		name string
		html string
		want string
	}{
		{
			name: "canonical ordering",
			html: `<html><head><meta name="otservhub-verification" content="abc" /></head></html>`,
			want: "abc",
		},
		{
			name: "content before name",
			html: `<meta content="abc" name="otservhub-verification">`,
			want: "abc",
		},
		{
			name: "upper case tag and attributes",
			html: `<META NAME='OTSERVHUB-VERIFICATION' CONTENT="abc">`,
			want: "abc",
		},
		{
			name: "single quotes",
			html: `<meta name='otservhub-verification' content='otservhub-verify-x1y2z3w4'>`,
			want: "otservhub-verify-x1y2z3w4",
		},
		{
			name: "content case preserved",
			html: `<meta name="otservhub-verification" content="MiXeD-CaSe">`,
			want: "MiXeD-CaSe",
		},
		{
			name: "surrounded by other meta tags",
			html: `<meta charset="utf-8"><meta name="description" content="a game server">
			       <meta name="otservhub-verification" content="abc"><meta name="robots" content="index">`,
			want: "abc",
		},
		{
			name: "no matching tag",
			html: `<html><head><meta name="description" content="nope"></head><body>hi</body></html>`,
			want: "",
		},
		{
			name: "empty document",
			html: "",
			want: "",
		},
		{
			name: "malformed surrounding markup",
			html: `<div><p>broken<meta name="otservhub-verification" content="abc"><span>`,
			want: "abc",
		},
		{
			name: "meta without content attribute",
			html: `<meta name="otservhub-verification">`,
			want: "",
		},
		{
			name: "first match wins",
			html: `<meta name="otservhub-verification" content="first"><meta name="otservhub-verification" content="second">`,
			want: "first",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := x.ExtractMetaContent(tc.html, sitecheck.MetaTagName)
			if got != tc.want {
				t.Errorf("ExtractMetaContent = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractMetaContent_nameComparedCaseInsensitively(t *testing.T) {
	var x sitecheck.TokenScanExtractor
	html := `<meta name="OtServHub-Verification" content="abc">`
	if got := x.ExtractMetaContent(html, "otservhub-verification"); got != "abc" {
		t.Errorf("got %q, want abc", got)
	}
}

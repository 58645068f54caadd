package sitecheck

import (
	"strings"

	"golang.org/x/net/html"
)

// TokenScanExtractor locates verification meta tags with a tolerant token
// scan rather than a full DOM parse. Real-world pages are frequently
// malformed; the tokenizer keeps going where a strict parser would bail.
// Callers depend on the extractor through an interface, so a stricter
// implementation can be swapped in without touching them.
type TokenScanExtractor struct{}

// ExtractMetaContent scans src for a <meta> tag whose name attribute equals
// metaName (compared case-insensitively) and returns its content attribute
// verbatim. Attribute order, quoting style, and tag/attribute case do not
// matter. Returns "" when no matching tag exists.
//
// The content value is deliberately NOT case-normalised — the token
// comparison against it must be exact.
func (TokenScanExtractor) ExtractMetaContent(src, metaName string) string {
	z := html.NewTokenizer(strings.NewReader(src))

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// EOF or unrecoverable garbage; either way the tag was not found.
			return ""
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}

		tn, hasAttr := z.TagName()
		if string(tn) != "meta" || !hasAttr {
			continue
		}

		var name, content string
		for {
			key, val, more := z.TagAttr()
			switch string(key) {
			case "name":
				name = string(val)
			case "content":
				content = string(val)
			}
			if !more {
				break
			}
		}

		if strings.EqualFold(name, metaName) && content != "" {
			return content
		}
	}
}

// Package sitecheck implements the website ownership proof-of-control
// protocol: token generation, SSRF-safe target resolution, the bounded
// HTML fetch, and the meta-tag token scan.
package sitecheck

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// TokenPrefix is the fixed human-readable prefix of every verification token.
	TokenPrefix = "otservhub-verify-"

	// MetaTagName is the meta tag name a site owner must publish.
	MetaTagName = "otservhub-verification"

	tokenSuffixLen     = 8
	tokenSuffixCharset = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// NewToken generates a verification token: the fixed prefix plus a
// cryptographically random 8-character lowercase-alphanumeric suffix.
func NewToken() (string, error) {
	suffix := make([]byte, tokenSuffixLen)
	max := big.NewInt(int64(len(tokenSuffixCharset)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		suffix[i] = tokenSuffixCharset[n.Int64()]
	}
	return TokenPrefix + string(suffix), nil
}

// MetaTag returns the exact HTML snippet the site owner must publish for token.
func MetaTag(token string) string {
	return fmt.Sprintf(`<meta name=%q content=%q />`, MetaTagName, token)
}

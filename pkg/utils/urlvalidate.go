package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL parses rawURL and requires an http or https scheme.
func ValidateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q: only http and https are allowed", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("url has no host")
	}
	return u, nil
}

// ExtractDomain returns the lowercased hostname of rawURL, or "" if it
// doesn't parse.
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// IsSameDomain reports whether a and b share a hostname.
func IsSameDomain(a, b string) bool {
	da, db := ExtractDomain(a), ExtractDomain(b)
	return da != "" && da == db
}

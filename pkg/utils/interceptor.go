package utils

import (
	"net/url"
	"strings"
)

var defaultBlockedDomains = []string{
	"googletagmanager.com",
	"googlesyndication.com",
	"doubleclick.net",
	"googleadservices.com",
	"facebook.com",
	"twitter.com",
	"analytics.google.com",
	"google-analytics.com",
	"hotjar.com",
	"mixpanel.com",
	"segment.com",
}

var adPatterns = []string{
	"/ads/", "/ad/", "/advertisement/", "/advertising/",
	"googleads", "googlesyndication", "doubleclick", "adsystem", "adnxs",
	"amazon-adsystem",
}

var trackerPatterns = []string{
	"analytics", "tracking", "telemetry", "metrics",
	"hotjar", "mixpanel", "segment", "gtag",
	"facebook.com/tr", "twitter.com/i/adsct",
}

// RequestInterceptor decides which sub-resource requests a capture should
// refuse, based on the optimization settings it was built with.
type RequestInterceptor struct {
	blockAds      bool
	blockTrackers bool
	blockImages   bool
	blockedHosts  []string
}

// NewRequestInterceptor builds an interceptor with the default blocklist.
func NewRequestInterceptor(blockAds, blockTrackers, blockImages bool) *RequestInterceptor {
	return &RequestInterceptor{
		blockAds:      blockAds,
		blockTrackers: blockTrackers,
		blockImages:   blockImages,
		blockedHosts:  defaultBlockedDomains,
	}
}

// ShouldBlock reports whether a sub-resource request for rawURL with CDP
// resource type resourceType ("image", "stylesheet", "document", ...) should
// be refused.
func (r *RequestInterceptor) ShouldBlock(rawURL, resourceType string) bool {
	lower := strings.ToLower(rawURL)

	if parsed, err := url.Parse(rawURL); err == nil {
		host := strings.ToLower(parsed.Hostname())
		for _, blocked := range r.blockedHosts {
			if host == blocked {
				return true
			}
		}
	}

	if r.blockAds {
		for _, p := range adPatterns {
			if strings.Contains(lower, p) {
				return true
			}
		}
	}

	if r.blockTrackers {
		for _, p := range trackerPatterns {
			if strings.Contains(lower, p) {
				return true
			}
		}
	}

	if r.blockImages && strings.EqualFold(resourceType, "image") {
		return true
	}

	return false
}

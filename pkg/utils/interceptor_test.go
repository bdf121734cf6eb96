package utils

import "testing"

func TestRequestInterceptorBlocksKnownAdDomains(t *testing.T) {
	ri := NewRequestInterceptor(false, false, false)
	if !ri.ShouldBlock("https://doubleclick.net/ad.js", "script") {
		t.Error("known ad-network domain should always be blocked")
	}
}

func TestRequestInterceptorAdPatterns(t *testing.T) {
	ri := NewRequestInterceptor(true, false, false)
	if !ri.ShouldBlock("https://cdn.example.com/ads/banner.png", "image") {
		t.Error("blockAds should match /ads/ path pattern")
	}

	riOff := NewRequestInterceptor(false, false, false)
	if riOff.ShouldBlock("https://cdn.example.com/ads/banner.png", "image") {
		t.Error("with blockAds disabled, a non-denylisted ad-path host should not be blocked")
	}
}

func TestRequestInterceptorTrackerPatterns(t *testing.T) {
	ri := NewRequestInterceptor(false, true, false)
	if !ri.ShouldBlock("https://cdn.example.com/analytics/collect", "xhr") {
		t.Error("blockTrackers should match the analytics pattern")
	}

	riOff := NewRequestInterceptor(false, false, false)
	if riOff.ShouldBlock("https://cdn.example.com/analytics/collect", "xhr") {
		t.Error("with blockTrackers disabled, a non-denylisted tracker path should not be blocked")
	}
}

func TestRequestInterceptorBlockImages(t *testing.T) {
	ri := NewRequestInterceptor(false, false, true)
	if !ri.ShouldBlock("https://cdn.example.com/photo.png", "image") {
		t.Error("blockImages should block image resource type")
	}
	if ri.ShouldBlock("https://cdn.example.com/app.js", "script") {
		t.Error("blockImages should not block non-image resource types")
	}
}

func TestRequestInterceptorDoesNotSubstringMatchHost(t *testing.T) {
	ri := NewRequestInterceptor(false, false, false)
	if ri.ShouldBlock("https://notdoubleclick.net.example.com/x.js", "script") {
		t.Error("a host that merely contains a blocked domain as a substring should not be blocked")
	}
	if ri.ShouldBlock("https://ads.doubleclick.net/x.js", "script") {
		t.Error("a subdomain of a blocked domain is not an exact host match and should not be blocked")
	}
	if !ri.ShouldBlock("https://doubleclick.net/x.js", "script") {
		t.Error("an exact blocked-domain host should still be blocked")
	}
}

func TestRequestInterceptorAllowsOrdinaryRequests(t *testing.T) {
	ri := NewRequestInterceptor(true, true, true)
	if ri.ShouldBlock("https://cdn.example.com/app.js", "script") {
		t.Error("an ordinary script request should not be blocked")
	}
}

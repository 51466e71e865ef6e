package main

import (
	"net/url"
	"strings"
)

// matchCORSOrigin reports whether origin is allowed by any of patterns.
// Patterns are exact origins, "*" or wildcard subdomains like
// "https://*.example.com" (which do not match the bare domain).
func matchCORSOrigin(origin string, patterns []string) bool {
	o, err := url.Parse(origin)
	if err != nil || o.Scheme == "" || o.Host == "" {
		return false
	}
	for _, raw := range patterns {
		p := strings.TrimSpace(raw)
		switch {
		case p == "":
			continue
		case p == "*":
			return true
		case strings.EqualFold(p, origin):
			return true
		}
		scheme, host, ok := strings.Cut(p, "://")
		if !ok || !strings.HasPrefix(host, "*.") {
			continue
		}
		if _, err := url.Parse(scheme + "://" + strings.TrimPrefix(host, "*.")); err != nil {
			continue
		}
		if !strings.EqualFold(o.Scheme, scheme) {
			continue
		}
		suffix := strings.ToLower(strings.TrimPrefix(host, "*"))
		if h := strings.ToLower(o.Host); strings.HasSuffix(h, suffix) && len(h) > len(suffix) {
			return true
		}
	}
	return false
}

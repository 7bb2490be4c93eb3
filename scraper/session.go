package scraper

import (
	"net/http"
)

// browserTemplate is the header fingerprint of one desktop browser.
type browserTemplate struct {
	name    string
	headers map[string]string
}

var browserTemplates = []browserTemplate{
	{
		name: "chrome-windows",
		headers: map[string]string{
			"User-Agent":         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"sec-ch-ua":          `"Google Chrome";v="120", "Chromium";v="120", "Not=A?Brand";v="24"`,
			"sec-ch-ua-mobile":   "?0",
			"sec-ch-ua-platform": `"Windows"`,
		},
	},
	{
		name: "chrome-macos",
		headers: map[string]string{
			"User-Agent":         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"sec-ch-ua":          `"Google Chrome";v="120", "Chromium";v="120", "Not=A?Brand";v="24"`,
			"sec-ch-ua-mobile":   "?0",
			"sec-ch-ua-platform": `"macOS"`,
		},
	},
	{
		name: "firefox-windows",
		headers: map[string]string{
			"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/119.0",
		},
	},
	{
		name: "safari-macos",
		headers: map[string]string{
			"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
		},
	},
}

// Accept-Encoding is left to the transport so compressed bodies are decoded.
var staticHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Connection":                "keep-alive",
	"Cache-Control":             "max-age=0",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
	"DNT":                       "1",
}

// SessionConfig is one outbound identity: browser headers plus a proxy.
// It is a value; refreshing an identity builds a new one.
type SessionConfig struct {
	Template string
	Proxy    ProxyCredential
	headers  http.Header
}

// Headers returns a copy of the request headers.
func (s SessionConfig) Headers() http.Header {
	return s.headers.Clone()
}

// UserAgent returns the User-Agent header of the session.
func (s SessionConfig) UserAgent() string {
	return s.headers.Get("User-Agent")
}

// Equal reports whether two sessions present the same identity.
func (s SessionConfig) Equal(other SessionConfig) bool {
	return s.Template == other.Template && s.Proxy == other.Proxy
}

// SessionBuilder assembles SessionConfig values from the browser templates
// and the identity pool.
type SessionBuilder struct {
	pool    *IdentityPool
	rand    Rand
	referer string
}

// NewSessionBuilder wires a builder to pool. A nil r selects DefaultRand.
func NewSessionBuilder(pool *IdentityPool, r Rand, referer string) *SessionBuilder {
	if r == nil {
		r = DefaultRand
	}
	return &SessionBuilder{pool: pool, rand: r, referer: referer}
}

// maxRedraws bounds how often Rebuild draws before forcing a new template.
const maxRedraws = 8

// Build returns a fresh session with a random browser template and proxy.
func (b *SessionBuilder) Build() (SessionConfig, error) {
	proxy, err := b.pool.Pick()
	if err != nil {
		return SessionConfig{}, err
	}
	return b.assemble(b.rand.IntN(len(browserTemplates)), proxy), nil
}

// Rebuild returns a session that is never Equal to prev. It redraws a few
// times and then keeps the last proxy with the template after prev's.
func (b *SessionBuilder) Rebuild(prev SessionConfig) (SessionConfig, error) {
	var next SessionConfig
	for i := 0; i < maxRedraws; i++ {
		var err error
		next, err = b.Build()
		if err != nil {
			return SessionConfig{}, err
		}
		if !next.Equal(prev) {
			return next, nil
		}
	}
	idx := (templateIndex(prev.Template) + 1) % len(browserTemplates)
	return b.assemble(idx, next.Proxy), nil
}

func templateIndex(name string) int {
	for i, tmpl := range browserTemplates {
		if tmpl.name == name {
			return i
		}
	}
	return 0
}

func (b *SessionBuilder) assemble(idx int, proxy ProxyCredential) SessionConfig {
	tmpl := browserTemplates[idx]
	headers := make(http.Header, len(tmpl.headers)+len(staticHeaders)+1)
	for k, v := range tmpl.headers {
		headers.Set(k, v)
	}
	for k, v := range staticHeaders {
		headers.Set(k, v)
	}
	if b.referer != "" {
		headers.Set("Referer", b.referer)
	}

	return SessionConfig{
		Template: tmpl.name,
		Proxy:    proxy,
		headers:  headers,
	}
}

package metadata

import (
	"net/http"
	"strings"
)

// antiAutomationMarkers are substrings of interstitial pages served instead
// of real responses when the portal's bot protection triggers.
var antiAutomationMarkers = []string{
	"Just a moment",
	"challenge-platform",
}

// BlockedBody reports whether a response body is an anti-automation
// interstitial rather than real content.
func BlockedBody(body []byte) bool {
	text := string(body)
	for _, marker := range antiAutomationMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// authTransport injects the portal credentials and browser-shaped headers
// into every request.
type authTransport struct {
	base         http.RoundTripper
	bearerToken  string
	cookieHeader string
	origin       string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.bearerToken != "" {
		clone.Header.Set("Authorization", "Bearer "+t.bearerToken)
		clone.Header.Set("X-Udemy-Authorization", "Bearer "+t.bearerToken)
	}
	if t.cookieHeader != "" {
		clone.Header.Set("Cookie", t.cookieHeader)
	}
	if t.origin != "" {
		clone.Header.Set("Origin", t.origin)
		clone.Header.Set("Referer", t.origin+"/")
	}
	clone.Header.Set("Accept", "application/json, text/plain, */*")
	return t.base.RoundTrip(clone)
}

// NewHTTPClient builds an authenticated client for the portal.
func NewHTTPClient(bearerToken, cookieHeader, origin string) *http.Client {
	return &http.Client{
		Transport: &authTransport{
			base:         http.DefaultTransport,
			bearerToken:  strings.TrimSpace(bearerToken),
			cookieHeader: strings.TrimSpace(cookieHeader),
			origin:       strings.TrimRight(strings.TrimSpace(origin), "/"),
		},
	}
}

package signin

import (
	"net/http"
	"net/url"
	"strings"
)

// DefaultCallbackURL is where users land after signing in when no callbackUrl is given.
const DefaultCallbackURL = "/capture"

// CallbackParam is the query parameter that carries the post-sign-in destination.
const CallbackParam = "callbackUrl"

// CallbackURL returns the request's callbackUrl, or fallback when it is missing or
// points off-site.
func CallbackURL(r *http.Request, fallback string) string {
	return SanitizeCallback(r.URL.Query().Get(CallbackParam), r.Host, fallback)
}

// SanitizeCallback accepts relative paths and absolute http(s) URLs on host. Anything
// else, protocol-relative URLs included, yields fallback.
func SanitizeCallback(raw, host, fallback string) string {
	if fallback == "" {
		fallback = DefaultCallbackURL
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	if strings.HasPrefix(raw, "/") {
		if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, `/\`) {
			return fallback
		}
		if _, err := url.Parse(raw); err != nil {
			return fallback
		}
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fallback
	}
	if !strings.EqualFold(u.Host, host) {
		return fallback
	}
	return u.RequestURI()
}

package validation

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

// ErrInvalidHost is returned when a site or page has no usable host.
var ErrInvalidHost = errors.New("invalid host")

// NormalizeKeyword trims and lowercases a keyword so matching is case-insensitive.
func NormalizeKeyword(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}

// ParseKeywordList splits a newline-delimited keyword list into a normalized set.
// Blank lines are ignored.
func ParseKeywordList(raw string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if kw := NormalizeKeyword(line); kw != "" {
			set[kw] = struct{}{}
		}
	}
	return set
}

// ValidateURL checks if a URL is valid and uses an allowed scheme (http/https only).
func ValidateURL(urlStr string) (bool, string) {
	if urlStr == "" {
		return false, "URL is required"
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return false, "Invalid URL format"
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false, "URL must use http:// or https:// scheme"
	}

	if u.Host == "" {
		return false, "URL must have a valid host"
	}

	return true, ""
}

// NormalizeHost lowercases a host, drops any port and a leading "www.".
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}

// SiteHost extracts the normalized host from a Search Console site identifier.
// Accepts URL-prefix properties ("https://www.example.com/"), domain properties
// ("sc-domain:example.com") and bare domains ("example.com").
func SiteHost(site string) (string, error) {
	site = strings.TrimSpace(site)
	if site == "" {
		return "", ErrInvalidHost
	}

	var host string
	switch {
	case strings.Contains(site, "://"):
		u, err := url.Parse(site)
		if err != nil {
			return "", ErrInvalidHost
		}
		host = u.Host
	case isPropertyNotation(site):
		host = site[strings.Index(site, ":")+1:]
	default:
		host = site
	}

	host = strings.TrimSuffix(host, "/")
	host = NormalizeHost(host)
	if host == "" || strings.ContainsAny(host, "/ ") {
		return "", ErrInvalidHost
	}
	return host, nil
}

// PageHost extracts the normalized host from a page URL.
func PageHost(pageURL string) (string, error) {
	if valid, _ := ValidateURL(pageURL); !valid {
		return "", ErrInvalidHost
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", ErrInvalidHost
	}
	host := NormalizeHost(u.Host)
	if host == "" {
		return "", ErrInvalidHost
	}
	return host, nil
}

// isPropertyNotation reports whether site looks like "sc-domain:example.com"
// rather than "example.com:8080".
func isPropertyNotation(site string) bool {
	i := strings.Index(site, ":")
	return i > 0 && !strings.Contains(site[:i], ".")
}

package domain

import (
	"errors"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrNoActiveTab means there is no page to act on; popup operations become no-ops.
	ErrNoActiveTab = errors.New("no active tab")

	// ErrInvalidDomain means a tab URL carries no usable hostname.
	ErrInvalidDomain = errors.New("invalid domain")

	// ErrInvalidDuration means a timed start asked for a non-positive duration.
	ErrInvalidDuration = errors.New("duration must be a positive number of minutes")

	// ErrUnknownTheme means a theme name is not in the theme registry.
	ErrUnknownTheme = errors.New("unknown theme")

	// ErrHostNotRunning means no sitefocus host answered.
	ErrHostNotRunning = errors.New("sitefocus host is not running")
)

// hostProfile maps hostnames the way a browser's address bar does, but keeps
// "_" and "--" labels that real sites use outside strict DNS rules.
var hostProfile = idna.New(
	idna.MapForLookup(),
	idna.StrictDomainName(false),
	idna.CheckHyphens(false),
	idna.Transitional(false),
)

// HostnameOf extracts the site identifier from a page URL.
// Bare hosts ("example.com") are accepted as well as full URLs. Names are
// lowercased, lose a trailing dot and are converted to their ASCII (punycode)
// form, so every spelling of a site maps to one record.
func HostnameOf(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", ErrInvalidDomain
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ErrInvalidDomain
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", ErrInvalidDomain
	}
	if net.ParseIP(host) != nil {
		return host, nil
	}
	ascii, err := hostProfile.ToASCII(host)
	if err != nil || ascii == "" {
		return "", ErrInvalidDomain
	}
	return ascii, nil
}

// IsSiteHost reports whether d is a site identifier as produced by HostnameOf.
func IsSiteHost(d string) bool {
	if d == "" {
		return false
	}
	if net.ParseIP(d) != nil {
		return d == strings.ToLower(d)
	}
	normalized, err := HostnameOf(d)
	return err == nil && normalized == d
}

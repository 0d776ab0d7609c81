package scrape

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrBlockedHost is returned for URLs whose host is on the denylist.
var ErrBlockedHost = eris.New("scrape: host is blocked")

// DefaultBlockedHosts are internal and metadata endpoints that are never
// fetched.
var DefaultBlockedHosts = []string{
	"169.254.169.254",
	"127.0.0.1",
	"localhost",
	"::1",
	"0.0.0.0",
	"metadata.google.internal",
}

// Guard rejects URLs that point at internal hosts.
type Guard struct {
	hosts map[string]struct{}
}

// NewGuard builds a Guard from DefaultBlockedHosts plus any extra hosts.
func NewGuard(extra ...string) *Guard {
	g := &Guard{hosts: make(map[string]struct{}, len(DefaultBlockedHosts)+len(extra))}
	for _, h := range DefaultBlockedHosts {
		g.hosts[h] = struct{}{}
	}
	for _, h := range extra {
		if h = canonicalHost(h); h != "" {
			g.hosts[h] = struct{}{}
		}
	}
	return g
}

// NormalizeURL trims the input and prefixes https:// when it carries no
// http or https scheme. Empty input stays empty.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		raw = "https://" + raw
	}
	return raw
}

// Check normalizes raw and returns the URL to fetch, or ErrBlockedHost when
// its host is denylisted.
func (g *Guard) Check(raw string) (string, error) {
	target := NormalizeURL(raw)
	if target == "" {
		return "", eris.New("scrape: empty url")
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", eris.Wrapf(err, "scrape: parse url %q", target)
	}
	host := canonicalHost(u.Hostname())
	if host == "" {
		return "", eris.Errorf("scrape: url %q has no host", target)
	}
	if _, blocked := g.hosts[host]; blocked {
		return "", eris.Wrapf(ErrBlockedHost, "scrape: %s", host)
	}
	if strings.HasSuffix(host, ".localhost") {
		return "", eris.Wrapf(ErrBlockedHost, "scrape: %s", host)
	}
	return target, nil
}

func canonicalHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "[")
	h = strings.TrimSuffix(h, "]")
	return strings.TrimSuffix(h, ".")
}

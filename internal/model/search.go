package model

import (
	"net/url"
	"strings"
)

// Engine selects the search provider mode.
type Engine string

const (
	EngineGoogle     Engine = "google"
	EngineGoogleMaps Engine = "google_maps"
)

// Valid reports whether e is a supported engine.
func (e Engine) Valid() bool {
	return e == EngineGoogle || e == EngineGoogleMaps
}

// Intent is the rewriter's classification of a query.
type Intent string

const (
	IntentLocal Intent = "local"
	IntentTech  Intent = "tech"
)

// RewriteDecision is the query rewriter's output.
type RewriteDecision struct {
	Intent  Intent   `json:"intent"`
	Engine  Engine   `json:"engine"`
	Queries []string `json:"queries"`
}

// FallbackDecision searches google with the original query only.
func FallbackDecision(query string) RewriteDecision {
	return RewriteDecision{Engine: EngineGoogle, Queries: []string{query}}
}

// SearchResult is a normalized search provider record.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Domain  string `json:"domain"`
}

// DomainOf extracts the host from link. Parse failures and empty hosts fall
// back to the raw link.
func DomainOf(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return link
	}
	return strings.ToLower(u.Hostname())
}

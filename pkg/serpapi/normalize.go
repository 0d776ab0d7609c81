package serpapi

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/outpost/internal/model"
)

// Normalize maps a provider record onto the canonical SearchResult shape.
// Link prefers link over website; snippet prefers snippet over description.
func (r Result) Normalize() model.SearchResult {
	link := r.Link
	if link == "" {
		link = r.Website
	}
	snippet := r.Snippet
	if snippet == "" {
		snippet = r.Description
	}
	return model.SearchResult{
		Title:   r.Title,
		Link:    link,
		Snippet: snippet,
		Domain:  model.DomainOf(link),
	}
}

// Results selects the engine's result list and normalizes it. A google
// response without organic_results is an error; a maps response without
// local_results is empty.
func (r *SearchResponse) Results(engine model.Engine) ([]model.SearchResult, error) {
	var raw []Result
	switch engine {
	case model.EngineGoogleMaps:
		raw = r.LocalResults
	default:
		if !r.HasOrganic {
			msg := "missing organic_results"
			if r.Error != "" {
				msg += ": " + r.Error
			}
			return nil, eris.New("serpapi: " + msg)
		}
		raw = r.OrganicResults
	}

	out := make([]model.SearchResult, 0, len(raw))
	for _, res := range raw {
		out = append(out, res.Normalize())
	}
	return out, nil
}

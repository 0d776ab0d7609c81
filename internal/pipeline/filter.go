package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outpost/internal/completion"
	"github.com/sells-group/outpost/internal/model"
)

const filterPrompt = `
The user is looking for companies matching: %s

Below is a list of search results. Your job is to filter out the junk.
Identify which results are ACTUAL company homepages or about pages.

REJECT the following types of results:
- Blog posts, listicles (e.g. "10 Best Coffee Shops")
- News articles
- Directory listings (Yelp, TripAdvisor, LinkedIn, Crunchbase)
- Social media profiles (Facebook, Instagram, Twitter)
- Forum threads (Reddit, Quora)

Results to evaluate:
%s

Return ONLY a JSON object with a single key "valid_indices" containing an array of integers (the indices of the valid companies).
{
  "valid_indices": [0, 2, 5]
}
`

type condensedResult struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Domain  string `json:"domain"`
}

type filterResponse struct {
	ValidIndices []int `json:"valid_indices"`
}

// filter keeps the candidates the completion provider judges to be company
// homepages, in their original order. It never returns fewer than one
// candidate when given some: failures and empty selections return the input.
func (r *runner) filter(ctx context.Context, query string, candidates []model.SearchResult) ([]model.SearchResult, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	condensed := make([]condensedResult, len(candidates))
	for i, c := range candidates {
		condensed[i] = condensedResult{Index: i, Title: c.Title, Snippet: c.Snippet, Domain: c.Domain}
	}
	list, err := json.MarshalIndent(condensed, "", "  ")
	if err != nil {
		return candidates, stageErr(KindFilterCallFailed, eris.Wrap(err, "pipeline: marshal candidates"))
	}

	ctx, cancel := withTimeout(ctx, r.p.opts.FilterTimeout)
	defer cancel()

	content, err := r.llm.Complete(ctx, completion.Request{
		Model:       r.p.opts.RewriteModel,
		Prompt:      fmt.Sprintf(filterPrompt, jsonQuote(query), list),
		Temperature: 0.1,
		MaxTokens:   r.p.opts.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		return candidates, stageErr(KindFilterCallFailed, eris.Wrap(err, "pipeline: filter results"))
	}

	var resp filterResponse
	if err := completion.DecodeJSON(content, &resp); err != nil {
		return candidates, stageErr(KindFilterCallFailed, eris.Wrap(err, "pipeline: filter results"))
	}

	keep := selectIndices(candidates, resp.ValidIndices)
	if len(keep) == 0 {
		r.log.Info("pipeline: filter selected nothing, keeping all candidates", zap.Int("count", len(candidates)))
		return candidates, nil
	}
	r.log.Info("pipeline: filtered candidates", zap.Int("before", len(candidates)), zap.Int("after", len(keep)))
	return keep, nil
}

// selectIndices returns candidates whose index is in valid, in candidate
// order. Out-of-range and repeated indices are ignored.
func selectIndices(candidates []model.SearchResult, valid []int) []model.SearchResult {
	want := make(map[int]bool, len(valid))
	for _, i := range valid {
		if i >= 0 && i < len(candidates) {
			want[i] = true
		}
	}
	var out []model.SearchResult
	for i, c := range candidates {
		if want[i] {
			out = append(out, c)
		}
	}
	return out
}

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outpost/internal/completion"
	"github.com/sells-group/outpost/internal/model"
)

const maxRewriteQueries = 3

const rewritePrompt = `
The user wants to find companies matching this description: %s

Task:
1. Classify the intent: is this a local/physical business (e.g. restaurants, agencies, plumbers)
   or an online/tech company (e.g. startups, SaaS, ecommerce)?
2. Choose the search engine: Use "google_maps" for local businesses and "google" for online/tech companies. If it could be both, use "google".
3. Generate 3 Google search queries optimized to find actual company homepages.
   - For "google_maps", keep it simple (e.g., "coffee shops in San Francisco").
   - For "google", use operators like site: or negative keywords like -blog -"top 10"
   to filter out listicles (e.g., "AI healthcare startup -blog -directory").

Return JSON exactly as follows:
{
  "intent": "local" | "tech",
  "engine": "google" | "google_maps",
  "queries": ["query 1", "query 2", "query 3"]
}
`

// rewrite asks the completion provider to classify the query and produce up
// to three search queries for the chosen engine.
func (r *runner) rewrite(ctx context.Context, query string) (model.RewriteDecision, error) {
	ctx, cancel := withTimeout(ctx, r.p.opts.RewriteTimeout)
	defer cancel()

	content, err := r.llm.Complete(ctx, completion.Request{
		Model:       r.p.opts.RewriteModel,
		Prompt:      fmt.Sprintf(rewritePrompt, jsonQuote(query)),
		Temperature: 0.3,
		MaxTokens:   r.p.opts.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		return model.RewriteDecision{}, stageErr(KindRewriteFailed, eris.Wrap(err, "pipeline: rewrite query"))
	}

	var d model.RewriteDecision
	if err := completion.DecodeJSON(content, &d); err != nil {
		return model.RewriteDecision{}, stageErr(KindRewriteFailed, eris.Wrap(err, "pipeline: rewrite query"))
	}
	return validateDecision(d)
}

func validateDecision(d model.RewriteDecision) (model.RewriteDecision, error) {
	if !d.Engine.Valid() {
		return model.RewriteDecision{}, stageErr(KindRewriteFailed,
			eris.Errorf("pipeline: rewrite returned unknown engine %q", d.Engine))
	}

	queries := make([]string, 0, maxRewriteQueries)
	for _, q := range d.Queries {
		if q = strings.TrimSpace(q); q == "" {
			continue
		}
		queries = append(queries, q)
		if len(queries) == maxRewriteQueries {
			break
		}
	}
	if len(queries) == 0 {
		return model.RewriteDecision{}, stageErr(KindRewriteFailed, eris.New("pipeline: rewrite returned no queries"))
	}
	d.Queries = queries
	return d, nil
}

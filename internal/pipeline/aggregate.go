package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outpost/internal/archive"
	"github.com/sells-group/outpost/internal/model"
	"github.com/sells-group/outpost/internal/resilience"
	"github.com/sells-group/outpost/pkg/serpapi"
)

// aggregate runs every query of the decision in order and returns the
// normalized results deduplicated by domain, first seen wins. A failed
// query is logged and skipped.
func (r *runner) aggregate(ctx context.Context, d model.RewriteDecision) []model.SearchResult {
	multi := len(d.Queries) > 1
	seen := make(map[string]struct{})
	var out []model.SearchResult

	for _, q := range d.Queries {
		results, err := r.searchOne(ctx, d.Engine, q, multi)
		if err != nil {
			tolerate(r.log, err, r.keys...)
			continue
		}

		for _, res := range results {
			if res.Link == "" {
				continue
			}
			if _, dup := seen[res.Domain]; dup {
				continue
			}
			seen[res.Domain] = struct{}{}
			out = append(out, res)
		}
	}
	return out
}

func (r *runner) searchOne(ctx context.Context, engine model.Engine, q string, multi bool) ([]model.SearchResult, error) {
	resp, err := resilience.DoVal(ctx, r.p.opts.SearchRetry, func(ctx context.Context) (*serpapi.SearchResponse, error) {
		ctx, cancel := withTimeout(ctx, r.p.opts.SearchTimeout)
		defer cancel()
		return r.search.Search(ctx, serpapi.SearchRequest{
			Engine: string(engine),
			Query:  q,
			Num:    r.p.opts.SearchNum,
		})
	})
	if err != nil {
		return nil, stageErr(KindSearchCallFailed, eris.Wrapf(err, "pipeline: search %q", q))
	}

	key := archive.Key(r.req.ID, q, multi, r.p.now())
	if err := r.p.deps.Archive.Put(ctx, key, resp.Raw); err != nil {
		r.log.Warn("pipeline: archive raw response failed", zap.String("key", key),
			zap.String("error", Redact(err.Error(), r.keys...)))
	}

	results, err := resp.Results(engine)
	if err != nil {
		return nil, stageErr(KindSearchCallFailed, eris.Wrapf(err, "pipeline: search %q", q))
	}
	r.log.Debug("pipeline: search results", zap.String("query", q), zap.Int("count", len(results)))
	return results, nil
}

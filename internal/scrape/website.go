package scrape

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/outpost/internal/config"
	"github.com/sells-group/outpost/pkg/jina"
)

// WebsiteScraper turns a search result link into homepage text. It never
// fails: blocked, unreachable, or unreadable pages yield "".
type WebsiteScraper struct {
	guard   *Guard
	scraper Scraper
}

// NewWebsiteScraper guards every URL with g before handing it to s.
func NewWebsiteScraper(g *Guard, s Scraper) *WebsiteScraper {
	return &WebsiteScraper{guard: g, scraper: s}
}

// New builds the default scraper stack: local HTTP first, then Jina Reader
// when a Jina key is configured.
func New(cfg config.ScrapeConfig, jinaCfg config.JinaConfig) *WebsiteScraper {
	guard := NewGuard(cfg.BlockedHosts...)
	scrapers := []Scraper{
		NewLocalScraper(WithScrapeConfig(cfg), WithRedirectGuard(guard)),
	}
	if jinaCfg.Key != "" {
		var opts []jina.Option
		if jinaCfg.BaseURL != "" {
			opts = append(opts, jina.WithBaseURL(jinaCfg.BaseURL))
		}
		scrapers = append(scrapers, NewJinaAdapter(jina.NewClient(jinaCfg.Key, opts...)))
	}
	return NewWebsiteScraper(guard, NewChain(scrapers...))
}

// Scrape returns the visible text of the page at raw, or "" on any failure.
func (w *WebsiteScraper) Scrape(ctx context.Context, raw string) string {
	if raw == "" {
		return ""
	}

	target, err := w.guard.Check(raw)
	if err != nil {
		if errors.Is(err, ErrBlockedHost) {
			zap.L().Warn("scrape: blocked internal url", zap.String("url", raw))
		} else {
			zap.L().Warn("scrape: invalid url", zap.String("url", raw), zap.Error(err))
		}
		return ""
	}

	result, err := w.scraper.Scrape(ctx, target)
	if err != nil {
		zap.L().Warn("scrape: fetch failed", zap.String("url", target), zap.Error(err))
		return ""
	}
	return result.Text
}

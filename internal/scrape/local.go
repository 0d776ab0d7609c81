package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outpost/internal/config"
)

const (
	defaultUserAgent = "Mozilla/5.0 (compatible; OutpostBot/1.0)"
	defaultMaxBody   = 2 << 20
	defaultTimeout   = 15 * time.Second
)

// LocalScraper fetches HTML via net/http, detects blocks, and extracts the
// visible text. Free, no API calls.
type LocalScraper struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// LocalOption configures a LocalScraper.
type LocalOption func(*LocalScraper)

// WithHTTPClient overrides the http.Client.
func WithHTTPClient(hc *http.Client) LocalOption {
	return func(l *LocalScraper) {
		l.client = hc
	}
}

// WithScrapeConfig applies timeout, user agent, and body limit settings.
func WithScrapeConfig(cfg config.ScrapeConfig) LocalOption {
	return func(l *LocalScraper) {
		if cfg.TimeoutSecs > 0 {
			l.client.Timeout = time.Duration(cfg.TimeoutSecs) * time.Second
		}
		if cfg.UserAgent != "" {
			l.userAgent = cfg.UserAgent
		}
		if cfg.MaxBodyBytes > 0 {
			l.maxBody = cfg.MaxBodyBytes
		}
	}
}

// WithRedirectGuard rejects redirects whose target fails g.
func WithRedirectGuard(g *Guard) LocalOption {
	return func(l *LocalScraper) {
		l.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return eris.New("local_http: stopped after 10 redirects")
			}
			if _, err := g.Check(req.URL.String()); err != nil {
				return err
			}
			return nil
		}
	}
}

// NewLocalScraper creates a LocalScraper with sensible defaults.
func NewLocalScraper(opts ...LocalOption) *LocalScraper {
	l := &LocalScraper{
		client: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: defaultUserAgent,
		maxBody:   defaultMaxBody,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *LocalScraper) Name() string           { return "local_http" }
func (l *LocalScraper) Supports(_ string) bool { return true }

// Scrape fetches a URL, detects blocks, and extracts plaintext.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBody))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", blockType)
	}

	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}

	body, err = DecodeBody(resp.Header.Get("Content-Type"), body)
	if err != nil {
		return nil, eris.Wrap(err, "local_http")
	}

	title, text, err := ExtractText(body)
	if err != nil {
		return nil, eris.Wrap(err, "local_http")
	}
	if text == "" {
		return nil, eris.New("local_http: empty page")
	}

	return &Result{
		URL:        resp.Request.URL.String(),
		Title:      title,
		Text:       text,
		StatusCode: resp.StatusCode,
		Source:     "local_http",
	}, nil
}

package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outpost/internal/completion"
	"github.com/sells-group/outpost/internal/model"
	"github.com/sells-group/outpost/internal/resilience"
	"github.com/sells-group/outpost/internal/secrets"
	"github.com/sells-group/outpost/internal/store"
	"github.com/sells-group/outpost/pkg/serpapi"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const (
	testSearchKey     = "serp-secret-123"
	testCompletionKey = "gsk_completion_456"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

// --- Store fake ---

type memStore struct {
	mu        sync.Mutex
	runs      map[string]*model.Run
	leads     []model.Lead
	completes int
	fails     int
	failMsg   string

	completeErr error
	failErr     error
	putLeadErr  func(*model.Lead) error
}

var _ store.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{runs: make(map[string]*model.Run)}
}

func (s *memStore) CreateRun(_ context.Context, run *model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *memStore) CompleteRun(_ context.Context, id string, n int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completes++
	if s.completeErr != nil {
		return s.completeErr
	}
	r := s.run(id)
	r.Status, r.LeadsCount, r.UpdatedAt = model.RunStatusCompleted, n, at
	return nil
}

func (s *memStore) FailRun(_ context.Context, id, msg string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails++
	s.failMsg = msg
	if s.failErr != nil {
		return s.failErr
	}
	r := s.run(id)
	r.Status, r.Error, r.UpdatedAt = model.RunStatusFailed, msg, at
	return nil
}

func (s *memStore) run(id string) *model.Run {
	r, ok := s.runs[id]
	if !ok {
		r = &model.Run{ID: id}
		s.runs[id] = r
	}
	return r
}

func (s *memStore) GetRun(_ context.Context, id string) (*model.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) ListRuns(context.Context, model.RunFilter) ([]model.Run, error) {
	return nil, nil
}

func (s *memStore) PutLead(_ context.Context, l *model.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putLeadErr != nil {
		if err := s.putLeadErr(l); err != nil {
			return err
		}
	}
	s.leads = append(s.leads, *l)
	return nil
}

func (s *memStore) ListLeads(_ context.Context, runID string) ([]model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Lead
	for _, l := range s.leads {
		if l.RunID == runID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *memStore) Migrate(context.Context) error { return nil }
func (s *memStore) Close() error                  { return nil }

func (s *memStore) terminalWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completes + s.fails
}

// --- Completion fake ---

// scriptedLLM dispatches on the prompt to per-stage handlers. A nil handler
// fails the call.
type scriptedLLM struct {
	mu       sync.Mutex
	requests []completion.Request

	rewrite func(prompt string) (string, error)
	filter  func(prompt string) (string, error)
	analyze func(prompt string) (string, error)
}

func (s *scriptedLLM) Complete(_ context.Context, req completion.Request) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	var h func(string) (string, error)
	switch {
	case strings.Contains(req.Prompt, "Classify the intent"):
		h = s.rewrite
	case strings.Contains(req.Prompt, "valid_indices"):
		h = s.filter
	case strings.Contains(req.Prompt, "expert SDR"):
		h = s.analyze
	}
	if h == nil {
		return "", eris.New("unexpected completion call")
	}
	return h(req.Prompt)
}

func (s *scriptedLLM) count(marker string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if strings.Contains(r.Prompt, marker) {
			n++
		}
	}
	return n
}

func reply(content string) func(string) (string, error) {
	return func(string) (string, error) { return content, nil }
}

func fail(msg string) func(string) (string, error) {
	return func(string) (string, error) { return "", eris.New(msg) }
}

const goodAnalysis = `{"summary":"Acme fixes leaks.","email_draft":"Loved your 24/7 promise. Outpost saves research time. Worth a chat?"}`

// --- Scraper fake ---

type stubPages map[string]string

func (p stubPages) Scrape(_ context.Context, url string) string { return p[url] }

// --- Archive fake ---

type memArchive struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (a *memArchive) Put(_ context.Context, key string, _ []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	return a.err
}

// --- Processor wiring ---

type fixture struct {
	store    *memStore
	llm      *scriptedLLM
	archive  *memArchive
	provider *countingProvider
	opts     Options
	pages    stubPages
	breaker  *resilience.CircuitBreaker
}

type countingProvider struct {
	mu     sync.Mutex
	calls  int
	values secrets.StaticProvider
}

func (c *countingProvider) Get(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.values.Get(ctx, name)
}

func newFixture() *fixture {
	return &fixture{
		store:   newMemStore(),
		llm:     &scriptedLLM{},
		archive: &memArchive{},
		provider: &countingProvider{values: secrets.StaticProvider{
			"serp": testSearchKey,
			"groq": testCompletionKey,
		}},
		pages: stubPages{},
		opts: Options{
			SearchKeyName:     "serp",
			CompletionKeyName: "groq",
			RewriteEnabled:    true,
			FilterEnabled:     true,
			ScrapeEnabled:     true,
			SearchNum:         10,
			SearchRetry:       resilience.RetryConfig{MaxAttempts: 1},
			RewriteModel:      "llama-3.3-70b-versatile",
			AnalysisModel:     "llama-3.3-70b-versatile",
			MaxTokens:         500,
			MaxWebsiteChars:   10000,
		},
	}
}

func (f *fixture) processor(t *testing.T, search serpapi.Client) *Processor {
	t.Helper()
	p := New(Deps{
		Store:   f.store,
		Secrets: secrets.NewCache(f.provider),
		Search:  func(string) serpapi.Client { return search },
		Completer: func(_ context.Context, key string) (completion.Completer, error) {
			if key != testCompletionKey {
				return nil, eris.Errorf("unexpected completion key %q", key)
			}
			return f.llm, nil
		},
		Scraper: f.pages,
		Archive: f.archive,
		Breaker: f.breaker,
	}, f.opts)
	p.now = func() time.Time { return fixedNow }
	return p
}

func organic(results ...serpapi.Result) *serpapi.SearchResponse {
	return &serpapi.SearchResponse{OrganicResults: results, HasOrganic: true, Raw: []byte(`{"organic_results":[]}`)}
}

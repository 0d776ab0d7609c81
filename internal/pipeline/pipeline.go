// Package pipeline turns a run's query into persisted, enriched leads and
// commits the run's terminal status.
package pipeline

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outpost/internal/archive"
	"github.com/sells-group/outpost/internal/completion"
	"github.com/sells-group/outpost/internal/config"
	"github.com/sells-group/outpost/internal/model"
	"github.com/sells-group/outpost/internal/resilience"
	"github.com/sells-group/outpost/internal/secrets"
	"github.com/sells-group/outpost/internal/store"
	"github.com/sells-group/outpost/pkg/serpapi"
)

// SearchFactory builds a search client for a resolved API key.
type SearchFactory func(apiKey string) serpapi.Client

// PageScraper returns the visible text of a homepage, or "" when it cannot.
type PageScraper interface {
	Scrape(ctx context.Context, url string) string
}

// Options holds per-stage settings.
type Options struct {
	SearchKeyName     string
	CompletionKeyName string

	RewriteEnabled bool
	FilterEnabled  bool
	ScrapeEnabled  bool

	SearchNum     int
	SearchTimeout time.Duration
	SearchRetry   resilience.RetryConfig

	RewriteModel    string
	AnalysisModel   string
	MaxTokens       int
	RewriteTimeout  time.Duration
	FilterTimeout   time.Duration
	AnalysisTimeout time.Duration
	ScrapeTimeout   time.Duration

	RequestDelay    time.Duration
	MaxWebsiteChars int
}

// OptionsFromConfig maps application config onto pipeline options.
func OptionsFromConfig(cfg *config.Config) Options {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Search.MaxAttempts
	retry.OnRetry = resilience.RetryLogger("serpapi", "search")

	return Options{
		SearchKeyName:     cfg.Secrets.SearchKeyName,
		CompletionKeyName: cfg.Secrets.CompletionKeyName,
		RewriteEnabled:    cfg.Pipeline.RewriteEnabled,
		FilterEnabled:     cfg.Pipeline.FilterEnabled,
		ScrapeEnabled:     cfg.Pipeline.ScrapeEnabled,
		SearchNum:         cfg.Search.Num,
		SearchTimeout:     seconds(cfg.Search.TimeoutSecs),
		SearchRetry:       retry,
		RewriteModel:      cfg.Completion.RewriteModel,
		AnalysisModel:     cfg.Completion.AnalysisModel,
		MaxTokens:         cfg.Completion.MaxTokens,
		RewriteTimeout:    seconds(cfg.Completion.RewriteTimeoutSecs),
		FilterTimeout:     seconds(cfg.Completion.FilterTimeoutSecs),
		AnalysisTimeout:   seconds(cfg.Completion.AnalysisTimeoutSecs),
		ScrapeTimeout:     seconds(cfg.Scrape.TimeoutSecs),
		RequestDelay:      time.Duration(cfg.Pipeline.RequestDelayMs) * time.Millisecond,
		MaxWebsiteChars:   cfg.Pipeline.MaxWebsiteChars,
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Deps are the collaborators a Processor drives.
type Deps struct {
	Store     store.Store
	Secrets   *secrets.Cache
	Search    SearchFactory
	Completer completion.Factory
	Scraper   PageScraper
	Archive   archive.Archiver
	// Breaker, when set, is shared by every run's completion client.
	Breaker *resilience.CircuitBreaker
}

// Processor runs queries through rewrite, search, filter, scrape, and
// analysis, and commits exactly one terminal status per run.
type Processor struct {
	deps  Deps
	opts  Options
	pacer *Pacer
	now   func() time.Time
}

// New creates a Processor.
func New(deps Deps, opts Options) *Processor {
	if deps.Archive == nil {
		deps.Archive = archive.Nop{}
	}
	return &Processor{
		deps:  deps,
		opts:  opts,
		pacer: NewPacer(opts.RequestDelay),
		now:   time.Now,
	}
}

// Outcome is the terminal state a run was committed with.
type Outcome struct {
	RunID      string
	Status     model.RunStatus
	LeadsCount int
	Error      string
}

// HandleEvent processes every run inserted in a DynamoDB stream batch.
// Failures are recorded on the runs themselves, never returned.
func (p *Processor) HandleEvent(ctx context.Context, ev events.DynamoDBEvent) {
	for _, req := range RecordsFromDynamoDB(ev) {
		p.ProcessRun(ctx, req)
	}
}

// ProcessRun executes one run and writes its terminal status.
func (p *Processor) ProcessRun(ctx context.Context, req RunRequest) Outcome {
	log := zap.L().With(zap.String("run_id", req.ID))
	log.Info("pipeline: processing run", zap.String("query", req.Query), zap.String("location", req.Location))

	var searchKey, completionKey string
	count, err := p.execute(ctx, log, req, &searchKey, &completionKey)
	if err == nil {
		log.Info("pipeline: run completed", zap.Int("leads", count))
		return Outcome{RunID: req.ID, Status: model.RunStatusCompleted, LeadsCount: count}
	}

	msg := Redact(err.Error(), searchKey, completionKey)
	log.Error("pipeline: run failed", zap.String("error", msg))
	if ferr := p.deps.Store.FailRun(ctx, req.ID, msg, p.now()); ferr != nil {
		log.Error("pipeline: failed to mark run FAILED",
			zap.String("error", Redact(ferr.Error(), searchKey, completionKey)),
		)
	}
	return Outcome{RunID: req.ID, Status: model.RunStatusFailed, Error: msg}
}

// execute returns the number of persisted leads after a successful COMPLETED
// commit. Panics are converted to errors.
func (p *Processor) execute(ctx context.Context, log *zap.Logger, req RunRequest, searchKey, completionKey *string) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("pipeline: panic: %v", r)
		}
	}()

	*searchKey, err = p.deps.Secrets.Resolve(ctx, p.opts.SearchKeyName)
	if err != nil {
		return 0, stageErr(KindSecretUnavailable, eris.Wrap(err, "pipeline: resolve search key"))
	}
	*completionKey, err = p.deps.Secrets.Resolve(ctx, p.opts.CompletionKeyName)
	if err != nil {
		return 0, stageErr(KindSecretUnavailable, eris.Wrap(err, "pipeline: resolve completion key"))
	}

	llm, err := p.deps.Completer(ctx, *completionKey)
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: create completion client")
	}
	if p.deps.Breaker != nil {
		llm = completion.WithBreaker(llm, p.deps.Breaker)
	}

	r := &runner{
		p:      p,
		log:    log,
		req:    req,
		search: p.deps.Search(*searchKey),
		llm:    llm,
		clock:  &leadClock{now: p.now},
		keys:   []string{*searchKey, *completionKey},
	}

	count, err = r.run(ctx)
	if err != nil {
		return 0, err
	}

	if err := p.deps.Store.CompleteRun(ctx, req.ID, count, p.now()); err != nil {
		return 0, stageErr(KindPersistenceFailed, eris.Wrap(err, "pipeline: mark run COMPLETED"))
	}
	return count, nil
}

// runner holds the state of a single run.
type runner struct {
	p      *Processor
	log    *zap.Logger
	req    RunRequest
	search serpapi.Client
	llm    completion.Completer
	clock  *leadClock

	// keys are redacted from logged stage errors.
	keys []string
}

func (r *runner) run(ctx context.Context) (int, error) {
	query := searchText(r.req)

	decision := model.FallbackDecision(query)
	if r.p.opts.RewriteEnabled {
		d, err := r.rewrite(ctx, query)
		switch {
		case err == nil:
			decision = d
		case !tolerate(r.log, err, r.keys...):
			return 0, err
		}
	}
	r.log.Info("pipeline: search plan",
		zap.String("engine", string(decision.Engine)),
		zap.Strings("queries", decision.Queries),
	)

	candidates := r.aggregate(ctx, decision)
	r.log.Info("pipeline: unique candidates", zap.Int("count", len(candidates)))

	if r.p.opts.FilterEnabled {
		filtered, err := r.filter(ctx, query, candidates)
		if err != nil && !tolerate(r.log, err, r.keys...) {
			return 0, err
		}
		candidates = filtered
	}

	leads := r.buildLeads(ctx, candidates)
	if len(leads) == 0 {
		r.log.Info("pipeline: no leads found")
	}
	return r.analyzeAll(ctx, leads), nil
}

func searchText(req RunRequest) string {
	run := model.Run{Query: req.Query, Location: req.Location}
	return run.SearchText()
}

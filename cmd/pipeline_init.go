package main

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outpost/internal/archive"
	"github.com/sells-group/outpost/internal/awsutil"
	"github.com/sells-group/outpost/internal/completion"
	"github.com/sells-group/outpost/internal/config"
	"github.com/sells-group/outpost/internal/pipeline"
	"github.com/sells-group/outpost/internal/scrape"
	"github.com/sells-group/outpost/internal/secrets"
	"github.com/sells-group/outpost/internal/store"
	"github.com/sells-group/outpost/pkg/groq"
	"github.com/sells-group/outpost/pkg/serpapi"
)

// pipelineEnv holds the store and processor needed by the run, lambda and
// serve commands.
type pipelineEnv struct {
	Store     store.Store
	Processor *pipeline.Processor
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates config, opens and migrates the store, and wires the
// processor. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate("pipeline"); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	provider, err := initSecretProvider(ctx, cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	archiver, err := initArchiver(ctx, cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	factory, err := initCompleter(cfg.Completion)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	breaker := completion.NewCircuitBreaker(cfg.Completion.FailureThreshold, time.Minute)

	p := pipeline.New(pipeline.Deps{
		Store:     st,
		Secrets:   secrets.NewCache(provider),
		Search:    searchFactory(cfg.Search),
		Completer: factory,
		Scraper:   scrape.New(cfg.Scrape, cfg.Jina),
		Archive:   archiver,
		Breaker:   breaker,
	}, pipeline.OptionsFromConfig(cfg))

	zap.L().Info("pipeline ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("secrets", cfg.Secrets.Provider),
		zap.String("completion", cfg.Completion.Provider),
		zap.String("archive", cfg.Archive.Driver),
	)

	return &pipelineEnv{Store: st, Processor: p}, nil
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store.Driver {
	case "dynamodb":
		awsCfg, err := awsutil.LoadConfig(ctx, c.AWS)
		if err != nil {
			return nil, err
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = awsutil.BaseEndpoint(c.AWS)
		})
		return store.NewDynamo(client, store.DynamoTables{
			Runs:       c.Store.RunsTable,
			Leads:      c.Store.LeadsTable,
			RunsIndex:  c.Store.RunsIndex,
			LeadsIndex: c.Store.LeadsIndex,
		}), nil
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = "outpost.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

func initSecretProvider(ctx context.Context, c *config.Config) (secrets.Provider, error) {
	switch c.Secrets.Provider {
	case "ssm":
		awsCfg, err := awsutil.LoadConfig(ctx, c.AWS)
		if err != nil {
			return nil, err
		}
		return secrets.NewSSMProvider(ssm.NewFromConfig(awsCfg, func(o *ssm.Options) {
			o.BaseEndpoint = awsutil.BaseEndpoint(c.AWS)
		})), nil
	case "keyring":
		return secrets.NewKeyringProvider(c.Secrets.KeyringService), nil
	case "static":
		return secrets.StaticProvider(c.Secrets.Static), nil
	default:
		return nil, eris.Errorf("unsupported secrets provider: %s", c.Secrets.Provider)
	}
}

func initArchiver(ctx context.Context, c *config.Config) (archive.Archiver, error) {
	switch c.Archive.Driver {
	case "s3":
		awsCfg, err := awsutil.LoadConfig(ctx, c.AWS)
		if err != nil {
			return nil, err
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = awsutil.BaseEndpoint(c.AWS)
			o.UsePathStyle = c.AWS.Endpoint != ""
		})
		return archive.NewS3Archiver(client, c.Archive.Bucket), nil
	case "fs":
		return archive.NewFSArchiver(c.Archive.Dir), nil
	case "", "none":
		return archive.Nop{}, nil
	default:
		return nil, eris.Errorf("unsupported archive driver: %s", c.Archive.Driver)
	}
}

func initCompleter(c config.CompletionConfig) (completion.Factory, error) {
	switch c.Provider {
	case "groq":
		var opts []groq.Option
		if c.BaseURL != "" {
			opts = append(opts, groq.WithBaseURL(c.BaseURL))
		}
		return completion.GroqFactory(opts...), nil
	case "anthropic":
		var opts []option.RequestOption
		if c.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(c.BaseURL))
		}
		return completion.AnthropicFactory(opts...), nil
	case "gemini":
		return completion.GeminiFactory(c.BaseURL), nil
	default:
		return nil, eris.Errorf("unsupported completion provider: %s", c.Provider)
	}
}

func searchFactory(c config.SearchConfig) pipeline.SearchFactory {
	return func(apiKey string) serpapi.Client {
		var opts []serpapi.Option
		if c.BaseURL != "" {
			opts = append(opts, serpapi.WithBaseURL(c.BaseURL))
		}
		return serpapi.NewClient(apiKey, opts...)
	}
}

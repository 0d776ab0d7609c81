package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outpost/internal/archive"
	"github.com/sells-group/outpost/internal/config"
	"github.com/sells-group/outpost/internal/model"
	"github.com/sells-group/outpost/internal/pipeline"
	"github.com/sells-group/outpost/internal/secrets"
	"github.com/sells-group/outpost/internal/store"
)

func TestProcessInline(t *testing.T) {
	assert.True(t, processInline("auto", "sqlite"))
	assert.True(t, processInline("auto", "postgres"))
	assert.False(t, processInline("auto", "dynamodb"))
	assert.True(t, processInline("always", "dynamodb"))
	assert.False(t, processInline("never", "sqlite"))
}

func dispatchWithin(t *testing.T, dispatch func(pipeline.RunRequest), req pipeline.RunRequest) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		dispatch(req)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("dispatch of %s blocked", req.ID)
	}
}

func TestEnqueue_FullQueueDoesNotBlock(t *testing.T) {
	queue := make(chan pipeline.RunRequest, 1)
	dispatch := enqueue(context.Background(), queue)

	dispatchWithin(t, dispatch, pipeline.RunRequest{ID: "run-1"})
	dispatchWithin(t, dispatch, pipeline.RunRequest{ID: "run-2"})

	require.Len(t, queue, 1)
	assert.Equal(t, "run-1", (<-queue).ID)
}

func TestEnqueue_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	queue := make(chan pipeline.RunRequest, 1)
	dispatch := enqueue(ctx, queue)

	dispatchWithin(t, dispatch, pipeline.RunRequest{ID: "run-1"})
	assert.Equal(t, "run-1", (<-queue).ID)

	cancel()
	dispatchWithin(t, dispatch, pipeline.RunRequest{ID: "run-2"})
	assert.Empty(t, queue)
}

// newTestProcessor wires a processor whose secrets are missing, so every run
// fails fast without touching the network.
func newTestProcessor(t *testing.T) (*pipeline.Processor, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "cmd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	p := pipeline.New(pipeline.Deps{
		Store:   st,
		Secrets: secrets.NewCache(secrets.StaticProvider{}),
	}, pipeline.Options{SearchKeyName: "serp", CompletionKeyName: "groq"})
	return p, st
}

func TestRunWorker_ProcessesQueuedRuns(t *testing.T) {
	p, st := newTestProcessor(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, st.CreateRun(ctx, model.NewRun("run-1", "plumbers", "", time.Now())))

	queue := make(chan pipeline.RunRequest, 1)
	done := make(chan struct{})
	go func() {
		runWorker(ctx, p, queue)
		close(done)
	}()

	queue <- pipeline.RunRequest{ID: "run-1", Query: "plumbers"}

	require.Eventually(t, func() bool {
		run, err := st.GetRun(context.Background(), "run-1")
		return err == nil && run.Status == model.RunStatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestStreamHandler_NeverReturnsError(t *testing.T) {
	p, st := newTestProcessor(t)
	ctx := context.Background()
	require.NoError(t, st.CreateRun(ctx, model.NewRun("run-1", "plumbers", "", time.Now())))

	h := streamHandler(p)
	err := h(ctx, events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{{
		EventName: "INSERT",
		Change: events.DynamoDBStreamRecord{
			Keys:     map[string]events.DynamoDBAttributeValue{"id": events.NewStringAttribute("run-1")},
			NewImage: map[string]events.DynamoDBAttributeValue{"query": events.NewStringAttribute("plumbers")},
		},
	}}})
	require.NoError(t, err)

	run, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "secret_unavailable")
}

func TestInitStore_SQLite(t *testing.T) {
	c := &config.Config{Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "x.db")}}
	st, err := initStore(context.Background(), c)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	assert.IsType(t, &store.SQLiteStore{}, st)

	_, err = initStore(context.Background(), &config.Config{Store: config.StoreConfig{Driver: "mongo"}})
	assert.ErrorContains(t, err, "unsupported store driver: mongo")
}

func TestInitSecretProvider(t *testing.T) {
	c := &config.Config{Secrets: config.SecretsConfig{Provider: "static", Static: map[string]string{"serp": "k"}}}
	p, err := initSecretProvider(context.Background(), c)
	require.NoError(t, err)
	v, err := p.Get(context.Background(), "serp")
	require.NoError(t, err)
	assert.Equal(t, "k", v)

	c.Secrets = config.SecretsConfig{Provider: "keyring", KeyringService: "outpost-test"}
	p, err = initSecretProvider(context.Background(), c)
	require.NoError(t, err)
	assert.IsType(t, &secrets.KeyringProvider{}, p)

	c.Secrets.Provider = "vault"
	_, err = initSecretProvider(context.Background(), c)
	assert.ErrorContains(t, err, "unsupported secrets provider")
}

func TestInitArchiver(t *testing.T) {
	dir := t.TempDir()
	a, err := initArchiver(context.Background(), &config.Config{Archive: config.ArchiveConfig{Driver: "fs", Dir: dir}})
	require.NoError(t, err)
	assert.IsType(t, &archive.FSArchiver{}, a)

	a, err = initArchiver(context.Background(), &config.Config{Archive: config.ArchiveConfig{Driver: "none"}})
	require.NoError(t, err)
	assert.Equal(t, archive.Nop{}, a)

	_, err = initArchiver(context.Background(), &config.Config{Archive: config.ArchiveConfig{Driver: "gcs"}})
	assert.ErrorContains(t, err, "unsupported archive driver")
}

func TestInitCompleter(t *testing.T) {
	for _, provider := range []string{"groq", "anthropic", "gemini"} {
		f, err := initCompleter(config.CompletionConfig{Provider: provider})
		require.NoError(t, err, provider)
		assert.NotNil(t, f, provider)
	}

	_, err := initCompleter(config.CompletionConfig{Provider: "openai"})
	assert.ErrorContains(t, err, "unsupported completion provider")
}

func TestSearchFactory(t *testing.T) {
	f := searchFactory(config.SearchConfig{BaseURL: "http://127.0.0.1:1"})
	assert.NotNil(t, f("key"))
}

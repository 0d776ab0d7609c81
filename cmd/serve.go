package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outpost/internal/api"
	"github.com/sells-group/outpost/internal/pipeline"
)

var (
	servePort    int
	serveProcess string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the runs HTTP API",
	Long:  "Serves POST /runs, GET /runs, GET /runs/{id} and GET /runs/{id}/leads. With the dynamodb store, created runs are processed by the stream-triggered lambda; other stores process them in-process.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		g, gctx := errgroup.WithContext(ctx)

		opts := []api.Option{api.WithAllowedOrigin(cfg.Server.AllowedOrigin)}
		if processInline(serveProcess, cfg.Store.Driver) {
			queue := make(chan pipeline.RunRequest, 64)
			opts = append(opts, api.WithDispatch(enqueue(gctx, queue)))
			g.Go(func() error {
				runWorker(gctx, env.Processor, queue)
				return nil
			})
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.New(env.Store, opts...).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		// Graceful shutdown
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
		})

		return g.Wait()
	},
}

// processInline reports whether serve should run created runs itself.
// mode is auto, always or never; auto defers to the stream trigger when the
// store is DynamoDB.
func processInline(mode, driver string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return driver != "dynamodb"
	}
}

// enqueue never blocks the request. A run that cannot be queued stays NEW.
func enqueue(ctx context.Context, queue chan<- pipeline.RunRequest) api.DispatchFunc {
	return func(req pipeline.RunRequest) {
		if ctx.Err() != nil {
			zap.L().Warn("server stopping, run not queued", zap.String("run_id", req.ID))
			return
		}
		select {
		case queue <- req:
		default:
			zap.L().Warn("run queue full, run left in NEW", zap.String("run_id", req.ID), zap.Int("capacity", cap(queue)))
		}
	}
}

// runWorker processes queued runs one at a time until ctx is done.
func runWorker(ctx context.Context, p *pipeline.Processor, queue <-chan pipeline.RunRequest) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-queue:
			p.ProcessRun(ctx, req)
		}
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveProcess, "process", "auto", "process created runs in-process: auto, always, never")
	rootCmd.AddCommand(serveCmd)
}

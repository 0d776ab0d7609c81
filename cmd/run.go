package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outpost/internal/model"
	"github.com/sells-group/outpost/internal/pipeline"
)

var (
	runQuery    string
	runLocation string
	runOutput   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Create a run for a query and process it in-process",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		run := model.NewRun(uuid.New().String(), runQuery, runLocation, time.Now())
		if err := env.Store.CreateRun(ctx, run); err != nil {
			return eris.Wrap(err, "create run")
		}

		out := env.Processor.ProcessRun(ctx, pipeline.RunRequest{
			ID:       run.ID,
			Query:    run.Query,
			Location: run.Location,
		})
		zap.L().Info("run finished",
			zap.String("run_id", out.RunID),
			zap.String("status", string(out.Status)),
			zap.Int("leads", out.LeadsCount),
		)

		leads, err := env.Store.ListLeads(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "list leads")
		}

		if err := printOutcome(cmd.OutOrStdout(), runOutput, out, leads); err != nil {
			return err
		}
		if out.Status == model.RunStatusFailed {
			return eris.Errorf("run %s failed: %s", out.RunID, out.Error)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runQuery, "query", "", "description of the companies to find (required)")
	runCmd.Flags().StringVar(&runLocation, "location", "", "optional location appended to the query")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "table", "output format: table, json, yaml")
	_ = runCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(runCmd)
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outpost/internal/model"
	"github.com/sells-group/outpost/internal/pipeline"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect runs and their leads",
	Long:  "Commands for listing runs, viewing a run, and printing the leads it produced.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		output, _ := cmd.Flags().GetString("output")

		runs, err := st.ListRuns(ctx, model.RunFilter{
			Status: model.RunStatus(strings.ToUpper(status)),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 && output == "table" {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No runs found.")
			return nil
		}
		return render(cmd.OutOrStdout(), output, runs, func(w io.Writer) { formatRunsList(w, runs) })
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "table" {
			output = "json"
		}
		return render(cmd.OutOrStdout(), output, run, nil)
	},
}

// -- runs leads --

var runsLeadsCmd = &cobra.Command{
	Use:   "leads <run-id>",
	Short: "Print the leads a run produced",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := st.ListLeads(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs leads")
		}

		output, _ := cmd.Flags().GetString("output")
		if len(leads) == 0 && output == "table" {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No leads found.")
			return nil
		}
		return render(cmd.OutOrStdout(), output, leads, func(w io.Writer) { formatLeadsList(w, leads) })
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRuns(ctx, model.RunFilter{Limit: limit})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(cmd.OutOrStdout(), computeRunStats(runs))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (new, completed, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsStatsCmd.Flags().Int("limit", 1000, "number of most recent runs to aggregate")
	runsCmd.AddCommand(runsStatsCmd)

	for _, c := range []*cobra.Command{runsListCmd, runsShowCmd, runsLeadsCmd} {
		c.Flags().StringP("output", "o", "table", "output format: table, json, yaml")
		runsCmd.AddCommand(c)
	}
	rootCmd.AddCommand(runsCmd)
}

// render writes v in the requested format. table falls back to JSON when no
// table writer is given.
func render(out io.Writer, format string, v any, table func(io.Writer)) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	case "table":
		if table == nil {
			return render(out, "json", v, nil)
		}
		table(out)
		return nil
	default:
		return eris.Errorf("unsupported output format: %s", format)
	}
}

// printOutcome writes a finished run and its leads.
func printOutcome(out io.Writer, format string, o pipeline.Outcome, leads []model.Lead) error {
	if format != "table" {
		return render(out, format, struct {
			RunID      string          `json:"runId" yaml:"run_id"`
			Status     model.RunStatus `json:"status" yaml:"status"`
			LeadsCount int             `json:"leadsCount" yaml:"leads_count"`
			Error      string          `json:"error,omitempty" yaml:"error,omitempty"`
			Leads      []model.Lead    `json:"leads" yaml:"leads"`
		}{o.RunID, o.Status, o.LeadsCount, o.Error, leads}, nil)
	}

	_, _ = fmt.Fprintf(out, "Run %s: %s (%d leads)\n", o.RunID, o.Status, o.LeadsCount)
	if o.Error != "" {
		_, _ = fmt.Fprintf(out, "Error: %s\n", o.Error)
	}
	if len(leads) > 0 {
		_, _ = fmt.Fprintln(out)
		formatLeadsList(out, leads)
	}
	return nil
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tQUERY\tSTATUS\tLEADS\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t-----\t-------\t--------")

	for _, r := range runs {
		dur := ""
		if r.Status.Terminal() {
			dur = r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			truncateID(r.ID),
			ellipsis(r.SearchText(), 40),
			r.Status,
			r.LeadsCount,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatLeadsList writes a tabular list of leads to w.
func formatLeadsList(out io.Writer, leads []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COMPANY\tDOMAIN\tANALYZED\tSUMMARY")
	_, _ = fmt.Fprintln(w, "-------\t------\t--------\t-------")

	for _, l := range leads {
		analyzed := "no"
		if l.Analyzed() {
			analyzed = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			ellipsis(l.CompanyName, 30),
			l.Domain,
			analyzed,
			ellipsis(l.Summary, 60),
		)
	}
	_ = w.Flush()
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total      int
	Completed  int
	Failed     int
	Pending    int
	Leads      int
	AvgLeads   float64
	AvgDurSecs float64
}

// computeRunStats computes aggregate statistics from a list of runs. Lead
// and duration averages cover completed runs only.
func computeRunStats(runs []model.Run) runStats {
	var s runStats
	s.Total = len(runs)

	var totalDur time.Duration
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusCompleted:
			s.Completed++
			s.Leads += r.LeadsCount
			totalDur += r.UpdatedAt.Sub(r.CreatedAt)
		case model.RunStatusFailed:
			s.Failed++
		default:
			s.Pending++
		}
	}

	if s.Completed > 0 {
		s.AvgLeads = float64(s.Leads) / float64(s.Completed)
		s.AvgDurSecs = totalDur.Seconds() / float64(s.Completed)
	}
	return s
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Completed:\t%d\n", s.Completed)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Pending:\t%d\n", s.Pending)
	_, _ = fmt.Fprintf(w, "Leads:\t%d\n", s.Leads)
	if s.Completed > 0 {
		_, _ = fmt.Fprintf(w, "Avg leads/run:\t%.1f\n", s.AvgLeads)
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func ellipsis(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/carloslaurellineves/websearch-agent/internal/model"
	"github.com/carloslaurellineves/websearch-agent/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect verification run history",
	Long:  "Commands for listing and viewing past verification runs recorded in HISTORY_DB.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List verification runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No runs found.")
			return nil
		}

		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its verdicts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		verdicts, err := st.ListVerdicts(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		formatRun(cmd.OutOrStdout(), run, verdicts)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().Int("limit", 20, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to out.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tSTATUS\tROWS\tERRORS\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t----\t------\t-------\t--------")

	for _, r := range runs {
		source := r.Source
		if len(source) > 40 {
			source = source[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			source,
			r.Status,
			r.Stats.Processed,
			r.Stats.Errors,
			r.StartedAt.Format("2006-01-02 15:04"),
			runDuration(r),
		)
	}
	_ = w.Flush()
}

// formatRun writes a run header followed by one line per verdict.
func formatRun(out io.Writer, r *model.Run, verdicts []model.LicenseVerdict) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", r.ID)
	_, _ = fmt.Fprintf(w, "Source:\t%s\n", r.Source)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	_, _ = fmt.Fprintf(w, "Started:\t%s\n", r.StartedAt.Format("2006-01-02 15:04:05"))
	_, _ = fmt.Fprintf(w, "Duration:\t%s\n", runDuration(*r))
	if r.OutputPath != "" {
		_, _ = fmt.Fprintf(w, "Output:\t%s\n", r.OutputPath)
	}
	if r.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:\t%s\n", r.Error)
	}
	_, _ = fmt.Fprintf(w, "Rows:\t%d processed, %d sim, %d não, %d erro\n",
		r.Stats.Processed, r.Stats.Yes, r.Stats.No, r.Stats.Errors)
	_ = w.Flush()

	if len(verdicts) == 0 {
		return
	}

	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tNOME\tVERSÃO\tORIGINAL\tVERIFICADO\tCONFIANÇA")
	for i, v := range verdicts {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n",
			i+1,
			v.Record.Name,
			v.Record.Version,
			v.Record.OriginalStatus.Label(),
			v.VerifiedStatus.Label(),
			v.Confidence,
		)
	}
	_ = w.Flush()
}

func runDuration(r model.Run) string {
	if r.FinishedAt == nil {
		return "-"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

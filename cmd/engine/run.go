package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"jobpipe-engine/internal/pipeline"
)

var (
	runStagesFlag  []string
	runDryRunFlag  bool
	runLiveFlag    bool
	runRescoreFlag bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once",
	Long: `Run the pipeline once in the foreground.

Stages run in order: ingest, score, letters, apply. Without --stages the
schedule.stages list from the config is used. application.dry_run decides
whether the apply stage submits; --dry-run and --live override it.`,
	Example: `  engine run
  engine run --stages ingest,score
  engine run --stages score --rescore
  engine run --stages apply --live`,
	RunE: runOnce,
}

func init() {
	runCmd.Flags().StringSliceVar(&runStagesFlag, "stages", nil, "comma separated subset of ingest,score,letters,apply")
	runCmd.Flags().BoolVar(&runDryRunFlag, "dry-run", false, "log applications instead of submitting them")
	runCmd.Flags().BoolVar(&runLiveFlag, "live", false, "submit applications even if application.dry_run is set")
	runCmd.Flags().BoolVar(&runRescoreFlag, "rescore", false, "rescore shortlisted and pending_review jobs")
	runCmd.MarkFlagsMutuallyExclusive("dry-run", "live")
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := pipeline.RunOptions{Stages: runStagesFlag, Rescore: runRescoreFlag, Trigger: "cli"}
	switch {
	case runDryRunFlag:
		dry := true
		opts.DryRun = &dry
	case runLiveFlag:
		live := false
		opts.DryRun = &live
	}

	sum, err := a.orch.TryRun(ctx, opts)
	if sum.RunID != "" {
		printSummary(sum)
	}
	return err
}

func printSummary(sum pipeline.RunSummary) {
	pterm.DefaultSection.Printf("Run %s", sum.RunID)
	if sum.DryRun {
		pterm.Warning.Println("DRY RUN: nothing was submitted")
	}

	rows := pterm.TableData{{"Stage", "Result"}}
	for _, st := range sum.Stages {
		var res string
		switch st {
		case pipeline.StageIngest:
			res = fmt.Sprintf("%d new, %d duplicates", sum.Created, sum.Duplicates)
		case pipeline.StageScore:
			res = fmt.Sprintf("%d scored, %d shortlisted, %d rejected, %d rescored", sum.Scored, sum.Shortlisted, sum.Rejected, sum.Rescored)
		case pipeline.StageLetters:
			res = fmt.Sprintf("%d letters, %d pending review", sum.LettersGenerated, sum.PendingReview)
		case pipeline.StageApply:
			if sum.DryRun {
				res = fmt.Sprintf("%d would apply", sum.WouldApply)
			} else {
				res = fmt.Sprintf("%d applied, %d submitted, %d need review, %d failed", sum.Applied, sum.Submitted, sum.NeedsReview, sum.ApplyFailed)
			}
		}
		rows = append(rows, []string{st, res})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()

	if len(sum.Sources) > 0 {
		src := pterm.TableData{{"Source", "Fetched", "New", "Duplicates", "Took", "Error"}}
		for _, s := range sum.Sources {
			src = append(src, []string{s.Name, fmt.Sprint(s.Fetched), fmt.Sprint(s.Created), fmt.Sprint(s.Duplicates),
				s.Took.Round(time.Millisecond).String(), s.Error})
		}
		pterm.Println()
		_ = pterm.DefaultTable.WithHasHeader().WithData(src).Render()
	}

	channels := make([]string, 0, len(sum.Halted))
	for ch := range sum.Halted {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	for _, ch := range channels {
		pterm.Warning.Printf("%s halted: %s\n", ch, sum.Halted[ch])
	}
	for _, f := range sum.Failures {
		pterm.Error.Printf("%s job %d [%s]: %s\n", f.Stage, f.JobID, f.Kind, f.Error)
	}
	if sum.Error != "" {
		pterm.Error.Println(sum.Error)
		return
	}
	pterm.Success.Printf("done in %s\n", sum.FinishedAt.Sub(sum.StartedAt).Round(time.Millisecond))
}

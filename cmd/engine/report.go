package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"jobpipe-engine/internal/domain"
	"jobpipe-engine/internal/pipeline"
	"jobpipe-engine/internal/store"
)

var (
	reportTopFlag    int
	reportRecentFlag int
	reportJSONFlag   bool
	followupDays     int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the daily report",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		rep, err := a.orch.Report(cmd.Context(), reportTopFlag, reportRecentFlag)
		if err != nil {
			return err
		}
		if reportJSONFlag {
			return printJSON(rep)
		}
		printReport(rep)
		return nil
	},
}

var followupsCmd = &cobra.Command{
	Use:   "followups",
	Short: "List submitted applications still waiting for an answer",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		fus, err := a.orch.FollowUps(cmd.Context(), followupDays)
		if err != nil {
			return err
		}
		if reportJSONFlag {
			return printJSON(fus)
		}
		printFollowUps(fus)
		return nil
	},
}

func init() {
	reportCmd.Flags().IntVar(&reportTopFlag, "top", 10, "number of top opportunities")
	reportCmd.Flags().IntVar(&reportRecentFlag, "recent", 20, "number of recent transitions")
	reportCmd.Flags().BoolVar(&reportJSONFlag, "json", false, "print JSON")
	followupsCmd.Flags().IntVar(&followupDays, "days", 7, "minimum days since submission")
	followupsCmd.Flags().BoolVar(&reportJSONFlag, "json", false, "print JSON")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(rep pipeline.Report) {
	pterm.DefaultHeader.WithFullWidth().Printf("Daily report %s", rep.GeneratedAt.Local().Format("2006-01-02 15:04"))
	pterm.Println()

	pterm.DefaultSection.Println("Overview")
	apps := rep.Applications
	_ = pterm.DefaultTable.WithData(pterm.TableData{
		{"Jobs tracked", fmt.Sprint(rep.TotalJobs)},
		{"Applications", fmt.Sprintf("%d total, %d today", apps.Total, apps.Today)},
		{"Submitted", fmt.Sprint(apps.Submitted)},
		{"Responses", fmt.Sprintf("%d (%.1f%%)", apps.Responses, apps.ResponseRate)},
	}).Render()

	pterm.DefaultSection.Println("Pipeline")
	counts := pterm.TableData{{"Status", "Jobs"}}
	for _, st := range domain.AllStatuses {
		if n := rep.StatusCounts[st]; n > 0 {
			counts = append(counts, []string{string(st), fmt.Sprint(n)})
		}
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(counts).Render()

	pterm.DefaultSection.Println("Top opportunities")
	if len(rep.Top) == 0 {
		pterm.Info.Println("nothing shortlisted yet")
	} else {
		top := pterm.TableData{{"ID", "Score", "Title", "Company", "Location"}}
		for _, r := range rep.Top {
			top = append(top, []string{fmt.Sprint(r.ID), fmt.Sprintf("%.1f", r.Total()),
				r.Posting.Title, r.Posting.Company, r.Posting.Location})
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(top).Render()
	}

	pterm.DefaultSection.Println("Recent activity")
	recent := pterm.TableData{{"When", "Job", "Transition", "Reason"}}
	for _, tr := range rep.Recent {
		recent = append(recent, []string{tr.At.Local().Format("01-02 15:04"), fmt.Sprint(tr.JobID),
			string(tr.From) + " → " + string(tr.To), tr.Reason})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(recent).Render()

	pterm.DefaultSection.Println("Sources (7 days)")
	src := pterm.TableData{{"Source", "Jobs", "Shortlisted", "Applied"}}
	for _, s := range rep.Sources {
		src = append(src, []string{s.Source, fmt.Sprint(s.Jobs), fmt.Sprint(s.Shortlisted), fmt.Sprint(s.Applied)})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(src).Render()

	pterm.DefaultSection.Println("Scheduler")
	sch := pterm.TableData{{"Channel", "Today", "Window", "Session", "Next allowed"}}
	for _, c := range rep.Scheduler {
		today := fmt.Sprintf("%d", c.UsedToday)
		if c.DailyCap > 0 {
			today = fmt.Sprintf("%d/%d", c.UsedToday, c.DailyCap)
		}
		next := "now"
		if c.NextAllowedAt.After(time.Now()) {
			next = c.NextAllowedAt.Local().Format("15:04:05")
		}
		sch = append(sch, []string{c.Channel, today, fmt.Sprintf("%d left", c.WindowLeft),
			fmt.Sprintf("#%d (%d)", c.Session, c.SessionCount), next})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(sch).Render()

	if rep.LastRun != nil {
		pterm.Info.Printf("last run %s at %s\n", rep.LastRun.RunID, rep.LastRun.StartedAt.Local().Format(time.RFC3339))
	}
}

func printFollowUps(fus []store.FollowUp) {
	if len(fus) == 0 {
		pterm.Success.Println("no application is waiting for a follow-up")
		return
	}
	rows := pterm.TableData{{"App", "Job", "Company", "Title", "Waiting", "URL"}}
	for _, f := range fus {
		rows = append(rows, []string{fmt.Sprint(f.Application.ID), fmt.Sprint(f.Application.JobID),
			f.Company, f.Title, fmt.Sprintf("%dd", f.DaysWaiting), f.URL})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

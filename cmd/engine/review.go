package main

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"jobpipe-engine/internal/domain"
)

var (
	skipReasonFlag   string
	respondNotesFlag string
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Wrapf(domain.ErrInvalidInput, "invalid id %q", s)
	}
	return id, nil
}

var approveCmd = &cobra.Command{
	Use:   "approve <job-id>",
	Short: "Apply to a job waiting in pending_review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.orch.Approve(cmd.Context(), id)
		if err != nil {
			return err
		}
		if res.DryRun {
			pterm.Warning.Printf("DRY RUN: job %d would be applied to (application.dry_run is on)\n", id)
			return nil
		}
		pterm.Success.Printf("job %d: %s (outcome %s, application %d)\n", id, res.Status, res.Outcome, res.ApplicationID)
		return nil
	},
}

var skipCmd = &cobra.Command{
	Use:   "skip <job-id>",
	Short: "Decline a job waiting in pending_review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.orch.Skip(cmd.Context(), id, skipReasonFlag); err != nil {
			return err
		}
		pterm.Success.Printf("job %d skipped\n", id)
		return nil
	},
}

var confirmCmd = &cobra.Command{
	Use:   "confirm <job-id>",
	Short: "Mark an application you completed by hand as submitted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.orch.Confirm(cmd.Context(), id); err != nil {
			return err
		}
		pterm.Success.Printf("job %d submitted\n", id)
		return nil
	},
}

var respondCmd = &cobra.Command{
	Use:   "respond <application-id> <status>",
	Short: "Record an employer response (rejected, interview_scheduled, offer_received)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		st, ok := domain.ParseApplicationStatus(args[1])
		if !ok {
			return errors.Wrapf(domain.ErrInvalidInput, "unknown application status %q", args[1])
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		app, err := a.orch.RecordResponse(cmd.Context(), id, st, respondNotesFlag)
		if err != nil {
			return err
		}
		pterm.Success.Printf("application %d is now %s\n", app.ID, app.Status)
		return nil
	},
}

func init() {
	skipCmd.Flags().StringVar(&skipReasonFlag, "reason", "", "why the job was declined")
	respondCmd.Flags().StringVar(&respondNotesFlag, "notes", "", "free-form notes")
}

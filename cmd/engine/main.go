package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobpipe-engine/internal/logging"
)

var (
	dataDirFlag  string
	configFlag   string
	logLevelFlag string
	jsonLogsFlag bool

	log = zap.NewNop().Sugar()
)

var rootCmd = &cobra.Command{
	Use:   "engine",
	Short: "Job application pipeline: ingest, score, letters, apply",
	Long: `engine collects job postings from Greenhouse boards, Lever postings and
LinkedIn alert emails, scores them against your profile, writes cover
letters and submits applications under a daily limit.

Examples:
  engine serve                    # HTTP API plus the cron schedule
  engine run --stages ingest,score
  engine run --live               # submit for real (dry run is the default)
  engine report                   # daily report
  engine approve 42               # apply to a job waiting for review`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrap(err, "load .env")
		}
		l, err := logging.New(logging.Options{Level: logLevelFlag, JSON: jsonLogsFlag})
		if err != nil {
			return err
		}
		log = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "data directory (default $JOBPIPE_DATA_DIR or ./data)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file (default <data-dir>/config.yml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&jsonLogsFlag, "json-logs", false, "log JSON lines instead of console output")

	rootCmd.AddCommand(serveCmd, runCmd, reportCmd, followupsCmd,
		approveCmd, skipCmd, confirmCmd, respondCmd, secretsCmd, configCmd)
}

func main() {
	err := rootCmd.Execute()
	_ = log.Sync()
	if err != nil {
		pterm.Error.Println(err)
		if hints := errors.GetAllHints(err); len(hints) > 0 {
			pterm.Info.Println(hints[0])
		}
		os.Exit(1)
	}
}

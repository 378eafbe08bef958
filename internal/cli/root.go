package cli

import (
	"log/slog"
	"os"

	"github.com/me/shardsched/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking SHARDSCHED_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("SHARDSCHED_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the shardsched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "shardsched",
		Short: "shardsched: balance test runs across CI shards",
		Long:  "shardsched reports test run times to the scheduler and fetches the tests assigned to a shard.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "Scheduler server URL (or SHARDSCHED_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRecordCmd(),
		newScheduleCmd(),
		newTimingCmd(),
		newPlanCmd(),
	)

	return root
}

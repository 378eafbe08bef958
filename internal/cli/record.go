package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record <test_name> <seconds>",
		Short: "Report how long a test took",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("seconds must be a number: %w", err)
			}
			if err := client.Record(cmd.Context(), args[0], seconds); err != nil {
				return fmt.Errorf("record %s: %w", args[0], err)
			}
			logger.Debug("timing reported", "test", args[0], "seconds", seconds)
			return nil
		},
	}
}

package cli

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/me/shardsched/pkg/model"
	"github.com/spf13/cobra"
)

func newTimingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timing <test_name>",
		Short: "Show the learned run time of a test",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get(cmd.Context(), "/api/v1/timings/"+url.PathEscape(args[0]))
			if err != nil {
				return fmt.Errorf("get timing: %w", err)
			}

			var view model.TimingView
			if err := json.Unmarshal(resp.Data, &view); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Test:   %s\n", view.Name)
			fmt.Fprintf(out, "  EWMA:   %.2fs\n", view.EWMADuration)
			fmt.Fprintf(out, "  Runs:   %d\n", view.RunCount)
			fmt.Fprintf(out, "  Weight: %.2f\n", view.Weight)
			return nil
		},
	}
}

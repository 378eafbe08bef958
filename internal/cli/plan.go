package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/me/shardsched/pkg/model"
	"github.com/spf13/cobra"
)

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <run_id> <shard_count>",
		Short: "Show the stored shard plan of a run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			shards, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("shard_count must be an integer: %w", err)
			}

			resp, err := client.Get(cmd.Context(), fmt.Sprintf("/api/v1/plans/%s/%d", url.PathEscape(args[0]), shards))
			if err != nil {
				return fmt.Errorf("get plan: %w", err)
			}

			var plan model.ShardPlan
			if err := json.Unmarshal(resp.Data, &plan); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Plan: %s\n", plan.Key())
			fmt.Fprintf(out, "  Created: %s\n", plan.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "  Tests:   %d\n", plan.TestCount())
			for i, s := range plan.Shards {
				fmt.Fprintf(out, "  Shard %d: %s\n", i, strings.Join(s, ", "))
			}
			return nil
		},
	}
}

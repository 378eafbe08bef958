package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/me/shardsched/pkg/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// CircleCI variables used as defaults so a parallel job can call
// "shardsched schedule -f tests.yml" with no other flags.
const (
	envBuildNum  = "CIRCLE_BUILD_NUM"
	envNodeTotal = "CIRCLE_NODE_TOTAL"
	envNodeIndex = "CIRCLE_NODE_INDEX"
)

func newScheduleCmd() *cobra.Command {
	var (
		runID     string
		shards    int
		index     int
		testsFile string
	)

	cmd := &cobra.Command{
		Use:   "schedule [test_name...]",
		Short: "Print the tests assigned to this shard, one per line",
		Long: "Ask the scheduler for this shard's share of the given tests. The first request for a\n" +
			"run and shard count fixes the plan; later requests for that run get the same plan back.",
		RunE: func(cmd *cobra.Command, args []string) error {
			tests := append([]string{}, args...)
			if testsFile != "" {
				fromFile, err := readTestList(cmd.InOrStdin(), testsFile)
				if err != nil {
					return err
				}
				tests = append(tests, fromFile...)
			}
			if runID == "" {
				return fmt.Errorf("--run is required (or set %s)", envBuildNum)
			}

			assigned, err := client.Schedule(cmd.Context(), runID, shards, index, tests)
			if err != nil {
				return fmt.Errorf("schedule: %w", err)
			}
			logger.Debug("shard assigned", "run", runID, "shards", shards, "index", index, "tests", len(assigned), "of", len(tests))

			out := cmd.OutOrStdout()
			for _, t := range assigned {
				fmt.Fprintln(out, t)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", defaultRunID(), "Test run identifier (default integration-$"+envBuildNum+")")
	cmd.Flags().IntVar(&shards, "shards", envInt(envNodeTotal, 1), "Number of shards (default $"+envNodeTotal+")")
	cmd.Flags().IntVar(&index, "index", envInt(envNodeIndex, 0), "This shard's index (default $"+envNodeIndex+")")
	cmd.Flags().StringVarP(&testsFile, "file", "f", "", "YAML/JSON file with a test list or {tests: [...]}; - for stdin")

	return cmd
}

func defaultRunID() string {
	if build := os.Getenv(envBuildNum); build != "" {
		return "integration-" + build
	}
	return ""
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

// readTestList reads a bare list of names or a {tests: [...]} document.
// JSON is accepted since it is valid YAML.
func readTestList(stdin io.Reader, path string) ([]string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read tests: %w", err)
	}

	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc model.ScheduleRequest
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse tests %s: %w", path, err)
	}
	return doc.Tests, nil
}

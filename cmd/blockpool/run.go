package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/yanishalloum/memoryAllocation/internal/progress"
	"github.com/yanishalloum/memoryAllocation/internal/scenario"
)

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run scenario files against fresh pools",
		Long: `Load every YAML document from the given files as a scenario, run each one
against its own pool and report which expectations failed.

Example:
  blockpool run testdata/pool.yaml
  blockpool run --parallel 8 --json a.yaml b.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var scenarios []*scenario.Scenario
			for _, path := range args {
				loaded, err := scenario.LoadFile(path)
				if err != nil {
					return err
				}
				scenarios = append(scenarios, loaded...)
			}
			return runScenarios(cmd.Context(), cmd.OutOrStdout(), scenarios, viper.GetInt("parallel"))
		},
	}
	cmd.Flags().Int("parallel", runtime.NumCPU(), "Maximum number of scenarios run at once")
	if err := viper.BindPFlag("parallel", cmd.Flags().Lookup("parallel")); err != nil {
		panic(fmt.Sprintf("bind flag parallel: %v", err))
	}
	return cmd
}

func runScenarios(ctx context.Context, w io.Writer, scenarios []*scenario.Scenario, parallel int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log, err := newLogger()
	if err != nil {
		return err
	}

	var output io.Writer
	if !viper.GetBool("quiet") && !viper.GetBool("json") {
		output = w
	}
	tracker := progress.NewLogTracker(log)
	results, err := scenario.RunAll(ctx, scenarios, scenario.Options{
		Capacity:  viper.GetInt("capacity"),
		BlockSize: viper.GetInt("block-size"),
		Output:    output,
		Logger:    log,
		Progress:  tracker,
		Parallel:  parallel,
	})
	if err != nil {
		return err
	}

	if viper.GetBool("json") {
		if err := printJSON(w, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Err() == nil {
				printInfo(w, "PASS %s\n", r.Name)
				continue
			}
			printInfo(w, "FAIL %s\n", r.Name)
			for _, f := range r.Failures {
				printInfo(w, "    %s\n", f)
			}
		}
	}

	if err := scenario.Failed(results); err != nil {
		fmt.Fprintf(os.Stderr, "%d of %d scenarios failed\n", countFailed(results), len(results))
		return err
	}
	return nil
}

func countFailed(results []*scenario.Result) int {
	n := 0
	for _, r := range results {
		if r.Err() != nil {
			n++
		}
	}
	return n
}

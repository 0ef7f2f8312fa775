package main

import (
	"github.com/spf13/cobra"
	"github.com/yanishalloum/memoryAllocation/internal/scenario"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "demo",
		Short: "Run the built-in reference scenarios",
		Long: `Run the built-in scenarios one after another, printing the pool wherever a
scenario asks for it. They cover initialization, run lengths, first-fit
allocation, freeing and reordering on a 16-block pool.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := scenario.Reference()
			if err != nil {
				return err
			}
			return runScenarios(cmd.Context(), cmd.OutOrStdout(), scenarios, 1)
		},
	})
}

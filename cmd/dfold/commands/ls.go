package commands

import (
	"fmt"

	"datafold/pkg/exporter"
	"datafold/pkg/pipeline"
	"datafold/pkg/registry"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List raw dataset definitions in the registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if DF == nil {
			return appNotInitialized()
		}
		ctx := cmd.Context()
		names, err := pipeline.AvailableRawDatasets(ctx, DF.Env())
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No raw datasets registered. Use 'dfold add' to declare one.")
			return nil
		}

		recs := make([]registry.Record, 0, len(names))
		for _, n := range names {
			rec, err := DF.Registry.Get(ctx, n)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return exporter.PrintRawDatasets(recs, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}

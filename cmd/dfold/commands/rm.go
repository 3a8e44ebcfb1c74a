package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm [names...]",
	Short: "Remove raw dataset definitions from the registry",
	Long:  `Delete definitions from the registry. Downloaded files and processed datasets are left in place.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if DF == nil {
			return appNotInitialized()
		}
		out := cmd.OutOrStdout()
		for _, name := range args {
			if err := DF.Registry.Delete(cmd.Context(), name); err != nil {
				return fmt.Errorf("failed to remove %s: %w", name, err)
			}
			fmt.Fprintf(out, "Removed: %s\n", name)
		}
		green.Fprintf(out, "✅ Removed %d definitions.\n", len(args))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}

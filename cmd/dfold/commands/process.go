package commands

import (
	"fmt"

	"datafold/pkg/pipeline"

	"github.com/spf13/cobra"
)

var (
	processForce        bool
	processUseDocstring bool
	processCachePath    string
	processKwargs       []string
	processMeta         []string
)

var processCmd = &cobra.Command{
	Use:   "process [names...]",
	Short: "Fetch, unpack and process raw datasets (all when no name is given)",
	Long: `Run each dataset through its transform and cache the result under its
fingerprint. A second run with the same definition and arguments is served from
the cache without running the transform.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if DF == nil {
			return appNotInitialized()
		}
		kwargs, err := parseKV(processKwargs)
		if err != nil {
			return err
		}
		meta, err := parseKV(processMeta)
		if err != nil {
			return err
		}
		opts := pipeline.ProcessOptions{
			CachePath:    processCachePath,
			Force:        processForce,
			UseDocstring: processUseDocstring,
			Metadata:     meta,
			Args:         kwargs,
		}

		// 单个失败不影响其余数据集
		out := cmd.OutOrStdout()
		results, err := pipeline.ProcessRawDatasets(cmd.Context(), DF.Env(), args, pipeline.ActionProcess, opts)
		for _, res := range results {
			printResult(out, pipeline.ActionProcess, res)
		}
		if err != nil {
			return fmt.Errorf("process finished with errors: %w", err)
		}
		return nil
	},
}

func init() {
	f := processCmd.Flags()
	f.BoolVarP(&processForce, "force", "f", false, "ignore the cache and run the transform again")
	f.BoolVar(&processUseDocstring, "use-docstring", false, "describe the dataset with the transform documentation")
	f.StringVar(&processCachePath, "cache-path", "", "write to a disk cache in this directory instead of the configured store")
	f.StringArrayVar(&processKwargs, "kwarg", nil, "keyword argument passed to the transform key=value; repeatable")
	f.StringArrayVar(&processMeta, "meta", nil, "metadata entry key=value stored with the dataset; repeatable")
	rootCmd.AddCommand(processCmd)
}

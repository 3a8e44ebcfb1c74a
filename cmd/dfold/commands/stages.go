package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"datafold/pkg/exporter"
	"datafold/pkg/pipeline"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [names...]",
	Short: "Download and verify the files of raw datasets (all when no name is given)",
	RunE:  stageRunner(pipeline.ActionFetch),
}

var unpackCmd = &cobra.Command{
	Use:   "unpack [names...]",
	Short: "Fetch if needed, then unpack raw datasets into the interim directory",
	RunE:  stageRunner(pipeline.ActionUnpack),
}

// stageRunner 用批处理接口执行 fetch / unpack，单个失败不影响其余数据集
func stageRunner(action pipeline.Action) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if DF == nil {
			return appNotInitialized()
		}
		out := cmd.OutOrStdout()
		results, err := pipeline.ProcessRawDatasets(cmd.Context(), DF.Env(), args, action, pipeline.ProcessOptions{})
		for _, res := range results {
			printResult(out, action, res)
		}
		if err != nil {
			return fmt.Errorf("%s finished with errors", action)
		}
		return nil
	}
}

func printResult(w io.Writer, action pipeline.Action, res pipeline.BatchResult) {
	if res.Err != nil {
		red.Fprintf(w, "✗ %s: %v\n", res.Name, res.Err)
		return
	}
	green.Fprintf(w, "✓ %s", res.Name)
	switch action {
	case pipeline.ActionFetch:
		fmt.Fprintln(w)
		printFetched(w, res.Raw)
	case pipeline.ActionUnpack:
		fmt.Fprint(w, " -> ")
		cyan.Fprintln(w, res.Path)
	case pipeline.ActionProcess:
		fmt.Fprint(w, " -> ")
		yellow.Fprintln(w, res.Key)
	}
}

// printFetched 列出数据集的文件、大小和已校验的哈希
func printFetched(w io.Writer, raw *pipeline.RawDataset) {
	if raw == nil {
		return
	}
	for _, fd := range raw.Files() {
		size := int64(-1)
		if st, err := os.Stat(filepath.Join(raw.DatasetDir(), fd.Name())); err == nil {
			size = st.Size()
		}
		fmt.Fprintf(w, "    %-32s %10s  %s:%s\n", fd.Name(), exporter.FormatSize(size), fd.EffectiveHashType(), shortHash(fd.HashValue))
	}
}

func shortHash(h string) string {
	if h == "" {
		return "-"
	}
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(unpackCmd)
}

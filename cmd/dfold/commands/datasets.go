package commands

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"datafold/pkg/core"
	"datafold/pkg/exporter"
	"datafold/pkg/meta"
	"datafold/pkg/pipeline"

	"github.com/spf13/cobra"
)

var (
	datasetsKeysOnly bool
	datasetsName     string
	datasetsLimit    int
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List processed datasets in the cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if DF == nil {
			return appNotInitialized()
		}
		out := cmd.OutOrStdout()
		if datasetsKeysOnly {
			keys, err := DF.Cache.Available(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(out, k)
			}
			return nil
		}

		all, err := listDatasets(cmd)
		if err != nil {
			return err
		}
		if len(all) == 0 {
			if datasetsName != "" {
				fmt.Fprintf(out, "No processed datasets named %q.\n", datasetsName)
				return nil
			}
			fmt.Fprintln(out, "No processed datasets yet. Use 'dfold process'.")
			return nil
		}
		return exporter.PrintCatalog(all, out)
	},
}

// listDatasets 返回 key -> metadata
// 配置了 SQL 索引且带 --name 时直接查索引，否则扫描缓存
func listDatasets(cmd *cobra.Command) (map[string]map[string]any, error) {
	ctx := cmd.Context()
	if datasetsName != "" && DF.Repository != nil {
		models, err := DF.Repository.FindArtifactsByName(ctx, datasetsName, datasetsLimit)
		if err != nil {
			return nil, err
		}
		out := make(map[string]map[string]any, len(models))
		for _, m := range models {
			md, err := m.Metadata()
			if err != nil {
				return nil, err
			}
			out[m.Key] = md
		}
		return out, nil
	}

	all, err := pipeline.AvailableDatasets(ctx, DF.Env())
	if err != nil || datasetsName == "" {
		return all, err
	}
	maps.DeleteFunc(all, func(_ string, md map[string]any) bool {
		return md[core.MetaDatasetName] != datasetsName
	})
	return all, nil
}

var showCmd = &cobra.Command{
	Use:   "show [key]",
	Short: "Show the metadata of a processed dataset (unique key prefixes are accepted)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if DF == nil {
			return appNotInitialized()
		}
		key, err := expandKey(cmd, args[0])
		if err != nil {
			return err
		}
		md, err := DF.Cache.LoadMetadata(cmd.Context(), key)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		yellow.Fprintf(out, "dataset %s\n", key)
		if DF.Repository != nil {
			m, err := DF.Repository.GetArtifact(cmd.Context(), key)
			switch {
			case err == nil:
				fmt.Fprintf(out, "indexed %s\n", m.UpdatedAt.Format(time.DateTime))
			case errors.Is(err, meta.ErrArtifactNotFound):
				fmt.Fprintln(out, "not in the artifact index")
			default:
				return err
			}
		}
		fmt.Fprintln(out)
		return exporter.PrintMetadata(md, out)
	},
}

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export [key]",
	Short: "Export a processed dataset as JSON (stdout unless -o is given)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if DF == nil {
			return appNotInitialized()
		}
		key, err := expandKey(cmd, args[0])
		if err != nil {
			return err
		}
		exp := exporter.NewExporter(DF.Cache)
		if exportOutput == "" {
			return exp.ExportJSON(cmd.Context(), key, cmd.OutOrStdout())
		}
		if err := exp.ExportFile(cmd.Context(), key, exportOutput); err != nil {
			return err
		}
		green.Fprintf(cmd.OutOrStdout(), "✅ Exported %s to %s\n", key, exportOutput)
		return nil
	},
}

// expandKey 把唯一前缀扩展为完整的缓存键
func expandKey(cmd *cobra.Command, prefix string) (string, error) {
	keys, err := DF.Cache.Available(cmd.Context())
	if err != nil {
		return "", err
	}
	if slices.Contains(keys, prefix) {
		return prefix, nil
	}
	matches := map[string]bool{}
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			matches[k] = true
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no processed dataset matches %q", prefix)
	case 1:
		for k := range matches {
			return k, nil
		}
	}
	return "", fmt.Errorf("key prefix %q is ambiguous: %s", prefix, strings.Join(slices.Sorted(maps.Keys(matches)), ", "))
}

func init() {
	datasetsCmd.Flags().BoolVarP(&datasetsKeysOnly, "keys", "k", false, "print only the cache keys")
	datasetsCmd.Flags().StringVarP(&datasetsName, "name", "n", "", "only datasets processed from this raw dataset")
	datasetsCmd.Flags().IntVar(&datasetsLimit, "limit", 0, "maximum number of entries read from the SQL index (0 = all)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to this file")
	rootCmd.AddCommand(datasetsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(exportCmd)
}

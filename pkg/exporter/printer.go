package exporter

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"datafold/pkg/core"
	"datafold/pkg/registry"

	"github.com/dustin/go-humanize"
)

// 长文本字段单独打印在表格之后
var longFields = []string{core.MetaDescr, core.MetaLicense}

// PrintMetadata 以 KEY / VALUE 表格打印一条元数据记录
func PrintMetadata(meta map[string]any, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "KEY\tVALUE\n")
	for _, k := range slices.Sorted(maps.Keys(meta)) {
		if slices.Contains(longFields, k) {
			continue
		}
		fmt.Fprintf(tw, "%s\t%v\n", k, meta[k])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, k := range longFields {
		if v, ok := meta[k].(string); ok && v != "" {
			fmt.Fprintf(w, "\n%s:\n%s\n", strings.ToUpper(k), indent(v))
		}
	}
	return nil
}

// PrintCatalog 打印缓存中的产物列表 (key -> 元数据)
func PrintCatalog(entries map[string]map[string]any, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "KEY\tNAME\tHASH\tDATA\tTARGET\n")
	for _, key := range slices.Sorted(maps.Keys(entries)) {
		meta := entries[key]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			short(key), str(meta[core.MetaDatasetName]), str(meta[core.MetaHashType]),
			short(str(meta["data_hash"])), short(str(meta["target_hash"])))
	}
	return tw.Flush()
}

// PrintRawDatasets 打印注册表中的原始数据集定义
func PrintRawDatasets(recs []registry.Record, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "NAME\tFILES\tTRANSFORM\tDIR\n")
	for _, rec := range recs {
		fn := rec.FunctionID
		if fn == "" {
			fn = "-"
		}
		dir := rec.DatasetDir
		if dir == "" {
			dir = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", rec.Name, len(rec.URLList), fn, dir)
	}
	return tw.Flush()
}

// FormatSize 人类可读的大小
func FormatSize(s int64) string {
	if s < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(s))
}

func str(v any) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(v)
}

func short(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

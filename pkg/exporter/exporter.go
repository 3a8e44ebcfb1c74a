package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"datafold/pkg/artifact"
	"datafold/pkg/core"
)

// Exporter 把缓存中的产物导出为 JSON，供非 Go 的下游工具使用
type Exporter struct {
	cache *artifact.Store
}

func NewExporter(cache *artifact.Store) *Exporter {
	return &Exporter{cache: cache}
}

// document 是导出格式
type document struct {
	Key      string         `json:"key"`
	Metadata map[string]any `json:"metadata"`
	Data     any            `json:"data"`
	Target   any            `json:"target,omitempty"`
}

// ExportJSON 读取 key 对应的完整记录并以 JSON 写入 writer
func (e *Exporter) ExportJSON(ctx context.Context, key string, writer io.Writer) error {
	// 1. 读取并解码完整记录
	ds, err := e.cache.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load dataset %s: %w", key, err)
	}

	// 2. 导出前校验内容哈希，拒绝导出被篡改的记录
	if err := ds.VerifyHashes(); err != nil {
		return fmt.Errorf("dataset %s failed verification: %w", key, err)
	}

	// 3. 编码
	enc := json.NewEncoder(writer)
	enc.SetIndent("", "  ")
	meta, _ := core.StringKeys(ds.Metadata).(map[string]any)
	doc := document{Key: key, Metadata: meta, Data: core.StringKeys(ds.Data), Target: core.StringKeys(ds.Target)}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode dataset %s: %w", key, err)
	}
	return nil
}

// ExportFile 导出到 path，写完整后才出现在目标位置
func (e *Exporter) ExportFile(ctx context.Context, key, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := e.ExportJSON(ctx, key, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

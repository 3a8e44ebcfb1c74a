// Package artifact persists processed datasets as a pair of records:
// <key>.metadata (metadata only) and <key>.dataset (metadata + payloads).
package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"datafold/pkg/core"
	"datafold/pkg/storage"
	"datafold/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

const (
	MetadataExt = ".metadata"
	DatasetExt  = ".dataset"
)

var (
	ErrDatasetExists   = errors.New("dataset with matching metadata already exists (use force or change file base)")
	ErrMetadataChanged = errors.New("metadata record exists but metadata has changed (use force or change file base)")
)

// record 是 .dataset 文件的结构
// Metadata 直接嵌入 .metadata 文件的原始字节，两者逐字节一致
type record struct {
	Metadata cbor.RawMessage `cbor:"metadata"`
	Data     any             `cbor:"data"`
	Target   any             `cbor:"target"`
}

// storedRecord 是读取 .dataset 时的结构
// payload 分字段解码，一个字段里的非字符串 key 不影响另一个字段的 map 类型
type storedRecord struct {
	Metadata cbor.RawMessage `cbor:"metadata"`
	Data     cbor.RawMessage `cbor:"data"`
	Target   cbor.RawMessage `cbor:"target"`
}

// DumpOptions 控制 Dump 的行为
type DumpOptions struct {
	// FileBase 为空时使用数据集名称
	FileBase string
	// HashType 为空时沿用元数据中的 hash_type，再退回默认算法
	HashType types.HashType
	// Force 为 true 时覆盖已有记录
	Force bool
	// SkipMetadata 为 true 时不写独立的 .metadata 记录
	SkipMetadata bool
}

// Store 是处理后数据集的缓存
type Store struct {
	backend storage.Store
	logger  *slog.Logger
}

func NewStore(backend storage.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, logger: logger}
}

func (s *Store) Backend() storage.Store { return s.backend }

// Dump 刷新内容哈希后持久化数据集，返回实际使用的 file base
//
// 冲突策略：.metadata 已存在且未设置 Force 时失败。
// 新元数据是已有元数据的子集 -> ErrDatasetExists；否则 -> ErrMetadataChanged。
func (s *Store) Dump(ctx context.Context, ds *core.Dataset, opts DumpOptions) (string, error) {
	fileBase, _, err := s.dump(ctx, ds, opts)
	return fileBase, err
}

// DumpStored 与 Dump 相同，但返回按存储形式解码的 Dataset
// 结果与之后 Load 同一个 key 得到的值完全一致 (例如 int 解码为 uint64)
func (s *Store) DumpStored(ctx context.Context, ds *core.Dataset, opts DumpOptions) (*core.Dataset, error) {
	_, stored, err := s.dump(ctx, ds, opts)
	return stored, err
}

func (s *Store) dump(ctx context.Context, ds *core.Dataset, opts DumpOptions) (string, *core.Dataset, error) {
	if ds == nil {
		return "", nil, errors.New("dump: nil dataset")
	}
	fileBase := opts.FileBase
	if fileBase == "" {
		fileBase = ds.Name()
	}
	if fileBase == "" {
		return "", nil, core.ErrNameRequired
	}

	ht := opts.HashType
	if ht == "" {
		if v, ok := ds.Metadata[core.MetaHashType].(string); ok {
			ht = types.HashType(v)
		}
	}
	if !ht.IsValid() {
		ht = types.DefaultHashType
	}

	// 1. 持久化之前必须刷新哈希，保证不会写出过期的 content hash
	if err := ds.RefreshHashes(ht); err != nil {
		return "", nil, err
	}

	metaBytes, err := core.Marshal(ds.Metadata)
	if err != nil {
		return "", nil, fmt.Errorf("dump %s: %w", fileBase, err)
	}

	// 2. 冲突检查
	metaName := fileBase + MetadataExt
	if !opts.Force {
		exists, err := s.backend.Has(ctx, metaName)
		if err != nil {
			return "", nil, err
		}
		if exists {
			s.logger.Warn("existing metadata record found", "file_base", fileBase)
			cached, err := s.LoadMetadata(ctx, fileBase)
			if err != nil {
				return "", nil, err
			}
			if isSubset(ds.Metadata, cached) {
				return "", nil, fmt.Errorf("%w: %s", ErrDatasetExists, fileBase)
			}
			return "", nil, fmt.Errorf("%w: %s", ErrMetadataChanged, fileBase)
		}
	}

	// 3. 编码完整记录 (此时已是字节副本，不再持有调用方的 Dataset)
	full, err := core.Marshal(record{Metadata: metaBytes, Data: ds.Data, Target: ds.Target})
	if err != nil {
		return "", nil, fmt.Errorf("dump %s: %w", fileBase, err)
	}

	// 4. 写入前确认记录可以被读回，不持久化一条永远无法 Load 的记录
	stored, err := decodeRecord(full)
	if err != nil {
		return "", nil, fmt.Errorf("dump %s: record cannot be read back: %w", fileBase, err)
	}

	// 5. 先写 .dataset 再写 .metadata
	// .metadata 是可用性索引，它存在时完整记录一定已经落盘
	if err := s.backend.Put(ctx, fileBase+DatasetExt, full); err != nil {
		return "", nil, fmt.Errorf("failed to write dataset record: %w", err)
	}
	if !opts.SkipMetadata {
		if err := s.backend.Put(ctx, metaName, metaBytes); err != nil {
			return "", nil, fmt.Errorf("failed to write metadata record: %w", err)
		}
	}

	s.logger.Debug("dataset dumped", "file_base", fileBase, "hash_type", ht)
	return fileBase, stored, nil
}

// Load 读取完整记录
// 不存在时返回 storage.ErrNotFound，调用方把它当作缓存未命中
func (s *Store) Load(ctx context.Context, key string) (*core.Dataset, error) {
	data, err := storage.ReadAll(ctx, s.backend, key+DatasetExt)
	if err != nil {
		return nil, err
	}
	ds, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("corrupt dataset record %s: %w", key, err)
	}
	return ds, nil
}

func decodeRecord(data []byte) (*core.Dataset, error) {
	var rec storedRecord
	if err := core.DecodeObject(data, &rec); err != nil {
		return nil, err
	}
	meta, err := decodeMetadata(rec.Metadata)
	if err != nil {
		return nil, err
	}
	ds := &core.Dataset{Metadata: meta}
	if err := decodePayload(rec.Data, &ds.Data); err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	if err := decodePayload(rec.Target, &ds.Target); err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	return ds, nil
}

func decodePayload(raw cbor.RawMessage, v *any) error {
	if len(raw) == 0 {
		return nil
	}
	return core.DecodeObject(raw, v)
}

// LoadMetadata 只读元数据记录，不触碰可能很大的 payload
func (s *Store) LoadMetadata(ctx context.Context, key string) (map[string]any, error) {
	data, err := storage.ReadAll(ctx, s.backend, key+MetadataExt)
	if err != nil {
		return nil, err
	}
	meta, err := decodeMetadata(data)
	if err != nil {
		return nil, fmt.Errorf("corrupt metadata record %s: %w", key, err)
	}
	return meta, nil
}

// Has 判断 key 是否有可用的元数据记录
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	return s.backend.Has(ctx, key+MetadataExt)
}

// Available 列出所有带 .metadata 记录的 key
func (s *Store) Available(ctx context.Context) ([]string, error) {
	names, err := s.backend.List(ctx, MetadataExt)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(names))
	for _, n := range names {
		keys = append(keys, strings.TrimSuffix(n, MetadataExt))
	}
	return keys, nil
}

// AvailableMetadata 返回 key -> 元数据
func (s *Store) AvailableMetadata(ctx context.Context) (map[string]map[string]any, error) {
	keys, err := s.Available(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]any, len(keys))
	for _, k := range keys {
		meta, err := s.LoadMetadata(ctx, k)
		if err != nil {
			// 列表和读取之间被删除，跳过
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out[k] = meta
	}
	return out, nil
}

func decodeMetadata(data []byte) (map[string]any, error) {
	meta := map[string]any{}
	if err := core.DecodeObject(data, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// isSubset 判断 sub 的每一项是否都以相同的值出现在 super 中
// 值按规范化编码比较，避免 int/uint64 这类解码差异
func isSubset(sub, super map[string]any) bool {
	for k, v := range sub {
		other, ok := super[k]
		if !ok {
			return false
		}
		a, errA := core.Marshal(v)
		b, errB := core.Marshal(other)
		if errA != nil || errB != nil || !bytes.Equal(a, b) {
			return false
		}
	}
	return true
}

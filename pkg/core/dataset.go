package core

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"datafold/pkg/types"
)

var (
	ErrNameRequired = errors.New("dataset_name is required")
	ErrHashMismatch = errors.New("content hash mismatch")
)

// 元数据约定字段
const (
	MetaDatasetName = "dataset_name"
	MetaHashType    = "hash_type"
	MetaDescr       = "descr"
	MetaLicense     = "license"
)

// Dataset 是处理后的产物：payload + 元数据
// 数据集名称存放在 Metadata["dataset_name"]，不单独存一份，避免两处不一致
type Dataset struct {
	Data     any
	Target   any
	Metadata map[string]any
}

// payloadFields 是参与内容哈希的字段 (除 metadata 外的全部字段)
func (d *Dataset) payloadFields() map[string]any {
	return map[string]any{
		"data":   d.Data,
		"target": d.Target,
	}
}

// NewDataset 构造 Dataset
// name 为空时回退到 metadata 里的 dataset_name，两者都没有则报错
func NewDataset(name string, data, target any, metadata map[string]any, updateHashes bool) (*Dataset, error) {
	meta := maps.Clone(metadata)
	if meta == nil {
		meta = make(map[string]any)
	}
	if name == "" {
		if s, ok := meta[MetaDatasetName].(string); ok && s != "" {
			name = s
		} else {
			return nil, ErrNameRequired
		}
	}
	meta[MetaDatasetName] = name

	ds := &Dataset{Data: data, Target: target, Metadata: meta}
	if updateHashes {
		if err := ds.RefreshHashes(types.DefaultHashType); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func (d *Dataset) Name() string {
	s, _ := d.Metadata[MetaDatasetName].(string)
	return s
}

func (d *Dataset) SetName(name string) { d.SetMetadata(MetaDatasetName, name) }

func (d *Dataset) HasTarget() bool { return d.Target != nil }

// GetMetadata 显式的元数据访问器
func (d *Dataset) GetMetadata(key string) (any, bool) {
	v, ok := d.Metadata[strings.ToLower(key)]
	return v, ok
}

// SetMetadata 写入元数据。键统一为小写 (DESCR -> descr)
func (d *Dataset) SetMetadata(key string, value any) {
	if d.Metadata == nil {
		d.Metadata = make(map[string]any)
	}
	d.Metadata[strings.ToLower(key)] = value
}

// DataHashes 对每个 payload 字段计算内容哈希
// 返回 {hash_type, data_hash, target_hash}
func (d *Dataset) DataHashes(t types.HashType) (map[string]any, error) {
	if t == "" {
		t = types.DefaultHashType
	}
	out := map[string]any{MetaHashType: t.String()}
	for field, value := range d.payloadFields() {
		h, err := HashValue(value, t)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", field, err)
		}
		out[field+"_hash"] = h.String()
	}
	return out, nil
}

// RefreshHashes 用当前 payload 重新计算哈希并合并进元数据
func (d *Dataset) RefreshHashes(t types.HashType) error {
	hashes, err := d.DataHashes(t)
	if err != nil {
		return err
	}
	if d.Metadata == nil {
		d.Metadata = make(map[string]any)
	}
	maps.Copy(d.Metadata, hashes)
	return nil
}

// VerifyHashes 校验元数据中的内容哈希是否与 payload 一致 (审计用)
func (d *Dataset) VerifyHashes() error {
	htStr, _ := d.Metadata[MetaHashType].(string)
	ht, err := types.ParseHashType(htStr)
	if err != nil {
		return err
	}
	actual, err := d.DataHashes(ht)
	if err != nil {
		return err
	}
	for field := range d.payloadFields() {
		key := field + "_hash"
		if d.Metadata[key] != actual[key] {
			return fmt.Errorf("%w: %s (stored %v, actual %v)", ErrHashMismatch, key, d.Metadata[key], actual[key])
		}
	}
	return nil
}

func (d *Dataset) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<Dataset: %s", d.Name())
	if d.Data != nil {
		fmt.Fprintf(&b, ", data=%T", d.Data)
	}
	if d.Target != nil {
		fmt.Fprintf(&b, ", target=%T", d.Target)
	}
	if len(d.Metadata) > 0 {
		fmt.Fprintf(&b, ", metadata=%v", slices.Sorted(maps.Keys(d.Metadata)))
	}
	b.WriteString(">")
	return b.String()
}

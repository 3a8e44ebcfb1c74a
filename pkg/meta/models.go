package meta

import (
	"fmt"
	"time"

	"datafold/pkg/registry"

	"gorm.io/datatypes"
)

// RawDatasetModel 是 registry.Record 在关系型数据库中的存储形式
type RawDatasetModel struct {
	// Name 是主键
	Name       string `gorm:"primaryKey;type:varchar(255)"`
	DatasetDir string `gorm:"type:text"`
	FunctionID string `gorm:"index;type:varchar(255);not null"`

	// 结构化但不需要单独查询的部分，存 JSON
	URLList     datatypes.JSON
	BoundArgs   datatypes.JSON
	BoundKwargs datatypes.JSON

	// Version 每次覆盖写 +1，便于观察定义被改过几次
	Version int64 `gorm:"default:1"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RawDatasetModel) TableName() string {
	return "raw_datasets"
}

// ArtifactModel 是已缓存产物的索引 (.metadata 的投影)
// 用于按数据集名称、内容哈希查询，不存 payload
type ArtifactModel struct {
	// Key 是 Fingerprint 或显式 file base
	Key         string `gorm:"primaryKey;type:varchar(255)"`
	DatasetName string `gorm:"index;type:varchar(255)"`
	HashType    string `gorm:"type:varchar(16)"`
	DataHash    string `gorm:"index;type:varchar(64)"`
	TargetHash  string `gorm:"type:varchar(64)"`

	// Meta 存完整元数据，支持任意字段的检索
	Meta datatypes.JSON

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ArtifactModel) TableName() string {
	return "artifacts"
}

// Metadata 解码索引中保存的完整元数据
func (m ArtifactModel) Metadata() (map[string]any, error) {
	out := map[string]any{}
	if len(m.Meta) == 0 {
		return out, nil
	}
	if err := registry.DecodeJSON(m.Meta, &out); err != nil {
		return nil, fmt.Errorf("artifact %s: invalid metadata: %w", m.Key, err)
	}
	registry.NormalizeNumbers(out)
	return out, nil
}

// Models 返回需要迁移的全部模型
func Models() []any {
	return []any{&RawDatasetModel{}, &ArtifactModel{}}
}

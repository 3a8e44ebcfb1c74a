package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"datafold/pkg/core"
	"datafold/pkg/registry"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrArtifactNotFound = errors.New("artifact not found in metadata")

// Repository 封装所有对 SQL 数据库的操作
// 它同时是 registry.Registry 的 SQL 实现和产物索引
type Repository struct {
	db *DB
}

var _ registry.Registry = (*Repository)(nil)

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// -----------------------------------------------------------------------------
// 1. 原始数据集定义 (Registry)
// -----------------------------------------------------------------------------

func (r *Repository) Get(ctx context.Context, name string) (registry.Record, error) {
	var m RawDatasetModel
	err := r.db.GetConn().WithContext(ctx).
		Where("name = ?", name).
		First(&m).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return registry.Record{}, fmt.Errorf("%w: %s", registry.ErrUnknownDataset, name)
	}
	if err != nil {
		return registry.Record{}, err
	}
	return fromModel(m)
}

// Put 新增或覆盖定义，覆盖时 version + 1
func (r *Repository) Put(ctx context.Context, rec registry.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	m, err := toModel(rec)
	if err != nil {
		return err
	}

	return r.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing RawDatasetModel
		err := tx.Where("name = ?", rec.Name).First(&existing).Error

		// 场景 A: 第一次创建
		if errors.Is(err, gorm.ErrRecordNotFound) {
			m.Version = 1
			if err := tx.Create(&m).Error; err != nil {
				return fmt.Errorf("failed to create raw dataset: %w", err)
			}
			return nil
		}
		if err != nil {
			return err
		}

		// 场景 B: 覆盖
		// SQL: UPDATE raw_datasets SET ..., version = version + 1 WHERE name = ?
		return tx.Model(&RawDatasetModel{}).
			Where("name = ?", rec.Name).
			Updates(map[string]any{
				"dataset_dir":  m.DatasetDir,
				"function_id":  m.FunctionID,
				"url_list":     m.URLList,
				"bound_args":   m.BoundArgs,
				"bound_kwargs": m.BoundKwargs,
				"version":      gorm.Expr("version + 1"),
				"updated_at":   time.Now(),
			}).Error
	})
}

func (r *Repository) List(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.GetConn().WithContext(ctx).
		Model(&RawDatasetModel{}).
		Order("name").
		Pluck("name", &names).Error
	return names, err
}

func (r *Repository) Delete(ctx context.Context, name string) error {
	return r.db.GetConn().WithContext(ctx).
		Where("name = ?", name).
		Delete(&RawDatasetModel{}).Error
}

// Version 返回定义被写入的次数，不存在时为 0
func (r *Repository) Version(ctx context.Context, name string) (int64, error) {
	var m RawDatasetModel
	err := r.db.GetConn().WithContext(ctx).Select("version").Where("name = ?", name).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return m.Version, err
}

func toModel(rec registry.Record) (RawDatasetModel, error) {
	urls, err := json.Marshal(rec.URLList)
	if err != nil {
		return RawDatasetModel{}, fmt.Errorf("failed to marshal url_list: %w", err)
	}
	args, err := json.Marshal(rec.BoundArgs)
	if err != nil {
		return RawDatasetModel{}, fmt.Errorf("failed to marshal bound_args: %w", err)
	}
	kwargs, err := json.Marshal(rec.BoundKwargs)
	if err != nil {
		return RawDatasetModel{}, fmt.Errorf("failed to marshal bound_kwargs: %w", err)
	}
	return RawDatasetModel{
		Name:        rec.Name,
		DatasetDir:  rec.DatasetDir,
		FunctionID:  rec.FunctionID,
		URLList:     datatypes.JSON(urls),
		BoundArgs:   datatypes.JSON(args),
		BoundKwargs: datatypes.JSON(kwargs),
	}, nil
}

func fromModel(m RawDatasetModel) (registry.Record, error) {
	rec := registry.Record{
		Name:       m.Name,
		DatasetDir: m.DatasetDir,
		FunctionID: m.FunctionID,
	}
	if err := decodeColumn(m.URLList, &rec.URLList); err != nil {
		return rec, fmt.Errorf("corrupted url_list for %s: %w", m.Name, err)
	}
	if err := decodeColumn(m.BoundArgs, &rec.BoundArgs); err != nil {
		return rec, fmt.Errorf("corrupted bound_args for %s: %w", m.Name, err)
	}
	if err := decodeColumn(m.BoundKwargs, &rec.BoundKwargs); err != nil {
		return rec, fmt.Errorf("corrupted bound_kwargs for %s: %w", m.Name, err)
	}
	rec.Normalize()
	return rec, nil
}

func decodeColumn(data datatypes.JSON, v any) error {
	if len(data) == 0 {
		return nil
	}
	return registry.DecodeJSON(data, v)
}

// -----------------------------------------------------------------------------
// 2. 产物索引 (Artifact Indexing)
// -----------------------------------------------------------------------------

// IndexArtifact 将 .metadata 记录"投影"到 SQL 数据库中
// 同一个 key 被强制重算时覆盖旧索引
func (r *Repository) IndexArtifact(ctx context.Context, key string, metadata map[string]any) error {
	metaJSON, err := json.Marshal(core.StringKeys(metadata))
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	str := func(k string) string {
		s, _ := metadata[k].(string)
		return s
	}
	model := ArtifactModel{
		Key:         key,
		DatasetName: str(core.MetaDatasetName),
		HashType:    str(core.MetaHashType),
		DataHash:    str("data_hash"),
		TargetHash:  str("target_hash"),
		Meta:        datatypes.JSON(metaJSON),
	}

	err = r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"dataset_name", "hash_type", "data_hash", "target_hash", "meta", "updated_at"}),
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to index artifact: %w", err)
	}
	return nil
}

func (r *Repository) GetArtifact(ctx context.Context, key string) (*ArtifactModel, error) {
	var m ArtifactModel
	err := r.db.GetConn().WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: key}).
		First(&m).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindArtifactsByName 查询某个数据集的全部缓存版本，最近的在前
func (r *Repository) FindArtifactsByName(ctx context.Context, name string, limit int) ([]ArtifactModel, error) {
	var out []ArtifactModel
	q := r.db.GetConn().WithContext(ctx).
		Where("dataset_name = ?", name).
		Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

package meta

import (
	"context"
	"fmt"
	"testing"

	"datafold/pkg/core"
	"datafold/pkg/registry"
	"datafold/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestRepo 构建隔离的测试环境
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	metaDB := NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(Models()...))
	t.Cleanup(func() { metaDB.Close() })

	return NewRepository(metaDB)
}

func newTestRecord(name string) registry.Record {
	return registry.Record{
		Name:       name,
		DatasetDir: "/data/raw",
		URLList: []core.FileDescriptor{
			{URL: "s3://bucket/" + name + ".zip", HashType: types.SHA256, HashValue: "abc"},
		},
		FunctionID:  "csv",
		BoundArgs:   []any{"train.csv", 3},
		BoundKwargs: map[string]any{"target": "label", "ratio": 0.25},
	}
}

func mustPut(t *testing.T, repo *Repository, rec registry.Record, msgAndArgs ...any) {
	t.Helper()
	require.NoError(t, repo.Put(context.Background(), rec), msgAndArgs...)
}

// -----------------------------------------------------------------------------
// 测试用例
// -----------------------------------------------------------------------------

func TestRepository_RegistryLifecycle(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	// 1. 不存在
	_, err := repo.Get(ctx, "iris")
	assert.ErrorIs(t, err, registry.ErrUnknownDataset)

	v, err := repo.Version(ctx, "iris")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	// 2. 创建
	rec := newTestRecord("iris")
	mustPut(t, repo, rec)

	got, err := repo.Get(ctx, "iris")
	require.NoError(t, err)
	assert.Equal(t, rec.URLList, got.URLList)
	assert.Equal(t, []any{"train.csv", int64(3)}, got.BoundArgs, "JSON numbers are normalized")
	assert.Equal(t, 0.25, got.BoundKwargs["ratio"])

	// Fingerprint 与内存中的定义一致
	want, err := core.Fingerprint(rec, nil, core.FingerprintOptions{})
	require.NoError(t, err)
	have, err := core.Fingerprint(got, nil, core.FingerprintOptions{})
	require.NoError(t, err)
	assert.Equal(t, want, have)

	// 3. 覆盖，version 递增
	rec.FunctionID = "lines"
	mustPut(t, repo, rec)
	got, err = repo.Get(ctx, "iris")
	require.NoError(t, err)
	assert.Equal(t, "lines", got.FunctionID)

	v, err = repo.Version(ctx, "iris")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	// 4. List 排序
	mustPut(t, repo, newTestRecord("adult"))
	names, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"adult", "iris"}, names)

	// 5. Delete
	require.NoError(t, repo.Delete(ctx, "iris"))
	_, err = repo.Get(ctx, "iris")
	assert.ErrorIs(t, err, registry.ErrUnknownDataset)
}

func TestRepository_PutValidation(t *testing.T) {
	repo := setupTestRepo(t)
	err := repo.Put(context.Background(), registry.Record{FunctionID: "csv"})
	assert.ErrorIs(t, err, core.ErrNameRequired)
}

func TestRepository_ArtifactIndex(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	meta := map[string]any{
		"dataset_name": "toy",
		"hash_type":    "sha1",
		"data_hash":    "aaaa",
		"target_hash":  "bbbb",
		"descr":        "a toy dataset",
	}
	require.NoError(t, repo.IndexArtifact(ctx, "fp1", meta))

	m, err := repo.GetArtifact(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, "toy", m.DatasetName)
	assert.Equal(t, "aaaa", m.DataHash)
	assert.Contains(t, string(m.Meta), "a toy dataset")
	decoded, err := m.Metadata()
	require.NoError(t, err)
	assert.Equal(t, meta, decoded)

	// 同一个 key 重新索引 = 覆盖
	meta["data_hash"] = "cccc"
	require.NoError(t, repo.IndexArtifact(ctx, "fp1", meta))
	m, err = repo.GetArtifact(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, "cccc", m.DataHash)

	require.NoError(t, repo.IndexArtifact(ctx, "fp2", map[string]any{"dataset_name": "toy"}))
	require.NoError(t, repo.IndexArtifact(ctx, "other", map[string]any{"dataset_name": "iris"}))

	list, err := repo.FindArtifactsByName(ctx, "toy", 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = repo.GetArtifact(ctx, "missing")
	assert.ErrorIs(t, err, ErrArtifactNotFound)

	// 非字符串 key 和整数都能进入索引并读回
	require.NoError(t, repo.IndexArtifact(ctx, "fp3", map[string]any{
		"dataset_name": "codes",
		"classes":      map[any]any{uint64(1): "a"},
		"version":      uint64(3),
	}))
	m, err = repo.GetArtifact(ctx, "fp3")
	require.NoError(t, err)
	decoded, err = m.Metadata()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"1": "a"}, decoded["classes"])
	assert.Equal(t, int64(3), decoded["version"])
}

func TestConfig_Dialector(t *testing.T) {
	_, err := Config{Driver: "sqlite"}.dialector()
	assert.Error(t, err, "sqlite requires a path")

	_, err = Config{Driver: "mysql"}.dialector()
	assert.Error(t, err)

	d, err := Config{Driver: "sqlite", Path: ":memory:"}.dialector()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())
}

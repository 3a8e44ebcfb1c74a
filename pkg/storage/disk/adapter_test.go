package disk

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"datafold/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskAdapter(t *testing.T) {
	// 1. 创建临时测试目录
	tmpDir := t.TempDir()
	store, err := NewAdapter(tmpDir)
	require.NoError(t, err)

	ctx := context.Background()
	name := "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed.metadata"

	// 2. 测试 Put
	err = store.Put(ctx, name, []byte("hello world"))
	assert.NoError(t, err)

	// 验证文件是否真的存在于物理磁盘 (平铺布局)
	_, err = os.Stat(filepath.Join(tmpDir, name))
	assert.NoError(t, err, "文件应该直接存在于根目录")

	// 3. 测试 Has
	exists, err := store.Has(ctx, name)
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Has(ctx, "ffffffff.metadata") // 不存在的
	assert.NoError(t, err)
	assert.False(t, exists)

	// 4. 测试 Get
	reader, err := store.Get(ctx, name)
	require.NoError(t, err)
	content, err := io.ReadAll(reader)
	reader.Close()
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello world"), content)

	// 5. 覆盖写入
	require.NoError(t, store.Put(ctx, name, []byte("v2")))
	content, err = storage.ReadAll(ctx, store, name)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), content, "Put 应该覆盖旧对象")

	// 6. 删除 (幂等)
	require.NoError(t, store.Delete(ctx, name))
	require.NoError(t, store.Delete(ctx, name))
	_, err = store.Get(ctx, name)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDiskAdapter_List(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewAdapter(tmpDir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "b.metadata", []byte("b")))
	require.NoError(t, store.Put(ctx, "a.metadata", []byte("a")))
	require.NoError(t, store.Put(ctx, "a.dataset", []byte("A")))
	// 残留的临时文件和子目录都应该被忽略
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".tmp-123"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "sub.metadata"), 0755))

	names, err := store.List(ctx, ".metadata")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.metadata", "b.metadata"}, names)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.dataset", "a.metadata", "b.metadata"}, all)
}

func TestDiskAdapter_InvalidNames(t *testing.T) {
	store, err := NewAdapter(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	tests := []string{"", ".", "..", "../escape.metadata", `a\b`}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			err := store.Put(ctx, name, []byte("x"))
			assert.ErrorIs(t, err, storage.ErrInvalidName)
		})
	}
}

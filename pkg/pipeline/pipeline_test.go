package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"datafold/pkg/core"
	"datafold/pkg/fetch"
	"datafold/pkg/registry"
	"datafold/pkg/transforms"
	"datafold/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_Toy(t *testing.T) {
	env := setupTestEnv(t)
	env.writeRaw(t, "toy.csv", "hello world")
	ctx := context.Background()

	raw := mustRawDataset(t, env.Env, toyRecord())
	assert.Equal(t, StateInit, raw.State())

	// 1. 第一次 Process：自动 fetch + unpack，执行 transform
	ds := mustProcess(t, raw, ProcessOptions{})
	assert.True(t, raw.Fetched())
	assert.True(t, raw.Unpacked())
	assert.Equal(t, StateProcessed, raw.State())
	assert.Equal(t, int32(1), atomic.LoadInt32(env.calls))

	wantData, err := core.HashValue([]int{1, 2, 3}, types.SHA1)
	require.NoError(t, err)
	wantTarget, err := core.HashValue([]int{0, 1, 0}, types.SHA1)
	require.NoError(t, err)
	assert.Equal(t, "toy", ds.Name())
	assert.Equal(t, wantData.String(), ds.Metadata["data_hash"])
	assert.Equal(t, wantTarget.String(), ds.Metadata["target_hash"])
	assert.Equal(t, "sha1", ds.Metadata["hash_type"])

	// 2. 第二次 Process：命中缓存，不再执行 transform
	again := mustProcess(t, raw, ProcessOptions{})
	assert.Equal(t, int32(1), atomic.LoadInt32(env.calls), "cache hit must not re-run the transform")
	assert.Equal(t, ds.Metadata, again.Metadata)
	require.NoError(t, again.VerifyHashes())

	// 3. 全新的 RawDataset 也命中同一条缓存
	fresh := mustRawDataset(t, env.Env, toyRecord())
	mustProcess(t, fresh, ProcessOptions{})
	assert.Equal(t, int32(1), atomic.LoadInt32(env.calls))

	// 4. 产物写在 processed 目录下，以缓存键命名
	key, err := raw.CacheKey(ProcessOptions{})
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(env.Paths.Processed, key.String()+".metadata"))
	assert.NoError(t, err)

	ok, err := env.Cache.Has(ctx, key.String())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProcess_ForceAndArgs(t *testing.T) {
	env := setupTestEnv(t)
	env.writeRaw(t, "toy.csv", "hello world")
	raw := mustRawDataset(t, env.Env, toyRecord())

	mustProcess(t, raw, ProcessOptions{})
	mustProcess(t, raw, ProcessOptions{Force: true})
	assert.Equal(t, int32(2), atomic.LoadInt32(env.calls), "Force 应该重新执行 transform")

	// 不同参数 -> 不同缓存键
	mustProcess(t, raw, ProcessOptions{Args: map[string]any{"limit": 10}})
	assert.Equal(t, int32(3), atomic.LoadInt32(env.calls))
	mustProcess(t, raw, ProcessOptions{Args: map[string]any{"limit": 10}})
	assert.Equal(t, int32(3), atomic.LoadInt32(env.calls))

	// 调用方元数据也进入缓存键
	ds := mustProcess(t, raw, ProcessOptions{Metadata: map[string]any{"source": "unit"}})
	assert.Equal(t, int32(4), atomic.LoadInt32(env.calls))
	assert.Equal(t, "unit", ds.Metadata["source"])
}

func TestProcess_CachePath(t *testing.T) {
	env := setupTestEnv(t)
	env.writeRaw(t, "toy.csv", "hello world")
	raw := mustRawDataset(t, env.Env, toyRecord())

	cacheDir := filepath.Join(env.root, "elsewhere")
	mustProcess(t, raw, ProcessOptions{CachePath: cacheDir})

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "应该写入 .dataset 和 .metadata")

	avail, err := env.Cache.Available(context.Background())
	require.NoError(t, err)
	assert.Empty(t, avail, "默认缓存不应该被写入")
}

func TestProcess_CorruptCacheIsMiss(t *testing.T) {
	env := setupTestEnv(t)
	env.writeRaw(t, "toy.csv", "hello world")
	raw := mustRawDataset(t, env.Env, toyRecord())
	mustProcess(t, raw, ProcessOptions{})

	key, err := raw.CacheKey(ProcessOptions{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(env.Paths.Processed, key.String()+".dataset"), []byte("garbage"), 0644))

	ds := mustProcess(t, raw, ProcessOptions{})
	assert.Equal(t, int32(2), atomic.LoadInt32(env.calls))
	require.NoError(t, ds.VerifyHashes())
}

func TestProcess_IndexAndPair(t *testing.T) {
	env := setupTestEnv(t)
	env.writeRaw(t, "toy.csv", "hello world")
	idx := &recordingIndex{}
	env.Index = idx

	raw := mustRawDataset(t, env.Env, toyRecord())
	data, target, err := raw.ProcessPair(context.Background(), ProcessOptions{})
	require.NoError(t, err)
	// 返回的是存储形式 (整数解码为 uint64)
	assert.Equal(t, []any{uint64(1), uint64(2), uint64(3)}, data)
	assert.Equal(t, []any{uint64(0), uint64(1), uint64(0)}, target)
	assert.Len(t, idx.keys, 1)
}

func TestProcess_MissAndHitReturnSameValues(t *testing.T) {
	env := setupTestEnv(t)
	env.writeRaw(t, "toy.csv", "hello world")
	raw := mustRawDataset(t, env.Env, toyRecord())
	opts := ProcessOptions{Metadata: map[string]any{"version": 3, "ratio": 0.5}}

	first := mustProcess(t, raw, opts)
	second := mustProcess(t, raw, opts)
	assert.Equal(t, int32(1), atomic.LoadInt32(env.calls))

	assert.Equal(t, first.Metadata, second.Metadata)
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, first.Target, second.Target)
	assert.Equal(t, uint64(3), first.Metadata["version"])
}

func TestProcess_NonStringMapKeys(t *testing.T) {
	env := setupTestEnv(t)
	env.writeRaw(t, "toy.csv", "hello world")
	var calls int32
	require.NoError(t, env.Transforms.Register("intmap", func(ctx context.Context, call core.Call) (*core.Output, error) {
		atomic.AddInt32(&calls, 1)
		return &core.Output{
			Data:   map[int]string{1: "a", 2: "b"},
			Target: map[string]any{"labels": []string{"x"}},
		}, nil
	}, ""))
	rec := toyRecord()
	rec.FunctionID = "intmap"
	raw := mustRawDataset(t, env.Env, rec)

	first := mustProcess(t, raw, ProcessOptions{})
	second := mustProcess(t, raw, ProcessOptions{})
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "cache hit must not re-run the transform")
	assert.Equal(t, first, second)
	assert.Equal(t, map[any]any{uint64(1): "a", uint64(2): "b"}, second.Data)
	// 另一个字段不受影响，仍是 map[string]any
	assert.Equal(t, map[string]any{"labels": []any{"x"}}, second.Target)

	key, err := raw.CacheKey(ProcessOptions{})
	require.NoError(t, err)
	loaded, err := env.Cache.Load(context.Background(), key.String())
	require.NoError(t, err)
	assert.NoError(t, loaded.VerifyHashes())
}

func TestProcess_BuiltinCSV(t *testing.T) {
	env := setupTestEnv(t)
	env.writeRaw(t, "iris.csv", "a,b,label\n1,2,x\n3,4,y\n")
	rec := registry.Record{
		Name:        "iris",
		URLList:     []core.FileDescriptor{{FileName: "iris.csv"}},
		FunctionID:  transforms.CSVID,
		BoundArgs:   []any{"iris.csv"},
		BoundKwargs: map[string]any{"target": "label"},
	}
	raw := mustRawDataset(t, env.Env, rec)
	ds := mustProcess(t, raw, ProcessOptions{})

	assert.Equal(t, []any{[]any{"1", "2"}, []any{"3", "4"}}, ds.Data)
	assert.Equal(t, []any{"x", "y"}, ds.Target)
	assert.Equal(t, []any{"a", "b"}, ds.Metadata["columns"])
}

// -----------------------------------------------------------------------------
// Fetch / Unpack
// -----------------------------------------------------------------------------

func TestFetch_RecordsVerifiedHash(t *testing.T) {
	env := setupTestEnv(t)
	env.writeRaw(t, "toy.csv", "hello world")
	rec := toyRecord()
	rec.URLList[0].HashValue = ""

	raw := mustRawDataset(t, env.Env, rec)
	before, err := raw.Fingerprint(nil)
	require.NoError(t, err)

	ok, err := raw.Fetch(context.Background(), FetchOptions{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StateFetched, raw.State())
	assert.Equal(t, helloSHA1, raw.Files()[0].HashValue)
	assert.Equal(t, []string{filepath.Join(env.Paths.Raw, "toy.csv")}, raw.FetchedFiles())

	// 已校验的哈希进入定义，缓存键随之改变
	after, err := raw.Fingerprint(nil)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestFetch_RemoteFailureAborts(t *testing.T) {
	env := setupTestEnv(t)
	ff := &fakeFetcher{fail: map[string]error{"a.csv": errBoom}}
	env.Fetcher = ff

	raw := mustRawDataset(t, env.Env, registry.Record{Name: "remote"})
	require.NoError(t, raw.AddURL("https://example.com/a.csv", FileOptions{}))
	require.NoError(t, raw.AddURL("https://example.com/b.csv", FileOptions{}))

	ok, err := raw.Fetch(context.Background(), FetchOptions{})
	require.NoError(t, err, "fetch 失败不是 error")
	assert.False(t, ok)
	assert.False(t, raw.Fetched())
	assert.Equal(t, []string{"a.csv"}, ff.calls, "剩余条目不应该再尝试")

	// Unpack 需要 fetch 完成
	_, err = raw.Unpack(context.Background(), UnpackOptions{})
	assert.ErrorIs(t, err, ErrFetchFailed)

	_, err = raw.Process(context.Background(), ProcessOptions{})
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, int32(0), atomic.LoadInt32(env.calls))
}

func TestFetch_LocalFailureContinues(t *testing.T) {
	env := setupTestEnv(t)
	ff := &fakeFetcher{fail: map[string]error{"missing.csv": fetch.ErrMissingLocalFile}}
	env.Fetcher = ff

	raw := mustRawDataset(t, env.Env, registry.Record{Name: "local"})
	require.NoError(t, raw.AddFile("missing.csv", FileOptions{}))
	require.NoError(t, raw.AddFile("present.csv", FileOptions{}))

	ok, err := raw.Fetch(context.Background(), FetchOptions{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"missing.csv", "present.csv"}, ff.calls)
	assert.Equal(t, []string{filepath.Join(env.Paths.Raw, "present.csv")}, raw.FetchedFiles())
}

func TestFetch_IdempotentUnlessForced(t *testing.T) {
	env := setupTestEnv(t)
	ff := &fakeFetcher{}
	env.Fetcher = ff
	ctx := context.Background()

	raw := mustRawDataset(t, env.Env, registry.Record{Name: "idem"})
	require.NoError(t, raw.AddURL("https://example.com/a.csv", FileOptions{}))

	for range 2 {
		ok, err := raw.Fetch(ctx, FetchOptions{})
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Len(t, ff.calls, 1)

	_, err := raw.Fetch(ctx, FetchOptions{Force: true})
	require.NoError(t, err)
	assert.Len(t, ff.calls, 2)
}

func TestFetch_CancelledContext(t *testing.T) {
	env := setupTestEnv(t)
	env.Fetcher = &fakeFetcher{fail: map[string]error{"a.csv": context.Canceled}}
	raw := mustRawDataset(t, env.Env, registry.Record{Name: "cancel"})
	require.NoError(t, raw.AddURL("https://example.com/a.csv", FileOptions{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := raw.Fetch(ctx, FetchOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnpack_DefaultPath(t *testing.T) {
	env := setupTestEnv(t)
	env.writeRaw(t, "toy.csv", "hello world")
	raw := mustRawDataset(t, env.Env, toyRecord())

	dir, err := raw.Unpack(context.Background(), UnpackOptions{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.Paths.Interim, "toy"), dir)
	assert.Equal(t, dir, raw.UnpackPath())
	assert.True(t, raw.Fetched(), "unpack 之前应该自动 fetch")

	content, err := os.ReadFile(filepath.Join(dir, "toy.csv"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(content))

	custom := filepath.Join(env.root, "custom")
	dir, err = raw.Unpack(context.Background(), UnpackOptions{Path: custom, Force: true})
	require.NoError(t, err)
	assert.Equal(t, custom, dir)
}

// -----------------------------------------------------------------------------
// 构造与元数据
// -----------------------------------------------------------------------------

func TestNewRawDataset(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("name required", func(t *testing.T) {
		_, err := NewRawDataset(registry.Record{}, env.Env)
		assert.ErrorIs(t, err, core.ErrNameRequired)
	})

	t.Run("unknown transform", func(t *testing.T) {
		_, err := NewRawDataset(registry.Record{Name: "x", FunctionID: "nope"}, env.Env)
		assert.ErrorIs(t, err, core.ErrUnknownTransform)
	})

	t.Run("defaults", func(t *testing.T) {
		raw := mustRawDataset(t, env.Env, registry.Record{Name: "x"})
		assert.Equal(t, transforms.DefaultID, raw.Transform().ID())
		assert.Equal(t, env.Paths.Raw, raw.DatasetDir())
	})

	t.Run("incomplete env", func(t *testing.T) {
		_, err := NewRawDataset(registry.Record{Name: "x"}, &Env{})
		assert.Error(t, err)
	})
}

func TestBuilders_ResetFetched(t *testing.T) {
	env := setupTestEnv(t)
	env.Fetcher = &fakeFetcher{}
	ctx := context.Background()
	raw := mustRawDataset(t, env.Env, registry.Record{Name: "b"})

	fetchOK := func() {
		ok, err := raw.Fetch(ctx, FetchOptions{})
		require.NoError(t, err)
		require.True(t, ok)
	}

	fetchOK()
	require.NoError(t, raw.AddURL("https://example.com/x.zip", FileOptions{HashType: types.MD5}))
	assert.False(t, raw.Fetched())
	assert.Equal(t, types.MD5, raw.Files()[0].HashType)

	fetchOK()
	require.NoError(t, raw.AddFile("y.csv", FileOptions{}))
	assert.False(t, raw.Fetched())

	fetchOK()
	require.NoError(t, raw.AddMetadata(types.RoleDescr, "", "A toy."))
	assert.False(t, raw.Fetched())
	assert.Equal(t, "b.readme", raw.Files()[2].FileName)

	assert.Error(t, raw.AddURL("", FileOptions{}))
	assert.Error(t, raw.AddFile("", FileOptions{}))
	assert.Error(t, raw.AddURL("https://example.com/z", FileOptions{HashType: "crc32"}))
	assert.Error(t, raw.AddMetadata("README", "", "x"))
	assert.Error(t, raw.AddMetadata(types.RoleLicense, "", ""))
	assert.Len(t, raw.Files(), 3)
}

func TestBuilders_ResetUnpacked(t *testing.T) {
	env := setupTestEnv(t)
	env.writeRaw(t, "toy.csv", "hello world")
	env.writeRaw(t, "extra.csv", "more")
	raw := mustRawDataset(t, env.Env, toyRecord())
	mustProcess(t, raw, ProcessOptions{})
	before, err := raw.CacheKey(ProcessOptions{})
	require.NoError(t, err)

	// 追加文件后，下一次 Process 必须重新 fetch 和 unpack
	require.NoError(t, raw.AddFile("extra.csv", FileOptions{}))
	assert.False(t, raw.Unpacked())
	assert.Equal(t, StateInit, raw.State())

	mustProcess(t, raw, ProcessOptions{})
	assert.Equal(t, int32(2), atomic.LoadInt32(env.calls))
	assert.NotEmpty(t, raw.Files()[1].HashValue, "新文件的哈希应该已经校验")
	assert.Len(t, raw.FetchedFiles(), 2)

	after, err := raw.CacheKey(ProcessOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestDefaultMetadata_FetchPath(t *testing.T) {
	env := setupTestEnv(t)
	elsewhere := filepath.Join(env.root, "elsewhere")
	require.NoError(t, os.MkdirAll(elsewhere, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(elsewhere, "LICENSE.txt"), []byte("MIT"), 0644))

	raw := mustRawDataset(t, env.Env, registry.Record{Name: "toy", FunctionID: "toy"})
	require.NoError(t, raw.AddMetadata(types.RoleLicense, "LICENSE.txt", ""))
	ok, err := raw.Fetch(context.Background(), FetchOptions{Path: elsewhere})
	require.NoError(t, err)
	require.True(t, ok)

	// 文件不在数据集目录下，应该从实际获取到的位置读取
	assert.Equal(t, "MIT", raw.DefaultMetadata(false)["license"])
}

func TestDefaultMetadata(t *testing.T) {
	env := setupTestEnv(t)
	env.writeRaw(t, "LICENSE.txt", "MIT")
	raw := mustRawDataset(t, env.Env, registry.Record{Name: "toy", FunctionID: "toy"})
	require.NoError(t, raw.AddMetadata(types.RoleDescr, "", "A toy dataset."))
	require.NoError(t, raw.AddMetadata(types.RoleLicense, "LICENSE.txt", ""))

	meta := raw.DefaultMetadata(false)
	assert.Equal(t, map[string]any{
		"dataset_name": "toy",
		"descr":        "A toy dataset.",
		"license":      "MIT",
	}, meta)

	meta = raw.DefaultMetadata(true)
	want := "Data processed by: toy\n\n>>> toy()\n\n>>> help(toy)\n\n" + toyDoc
	assert.Equal(t, want, meta["descr"])
}

func TestProcess_MetadataFiles(t *testing.T) {
	env := setupTestEnv(t)
	env.writeRaw(t, "toy.csv", "hello world")
	raw := mustRawDataset(t, env.Env, toyRecord())
	require.NoError(t, raw.AddMetadata(types.RoleDescr, "", "A toy dataset."))

	ds := mustProcess(t, raw, ProcessOptions{})
	v, ok := ds.GetMetadata("DESCR")
	require.True(t, ok)
	assert.Equal(t, "A toy dataset.", v)

	// 内联内容在 fetch 时写到了数据集目录
	content, err := os.ReadFile(filepath.Join(env.Paths.Raw, "toy.readme"))
	require.NoError(t, err)
	assert.Equal(t, "A toy dataset.", string(content))
}

func TestFingerprint_IgnoresDatasetDir(t *testing.T) {
	env := setupTestEnv(t)
	a := toyRecord()
	b := toyRecord()
	b.DatasetDir = "/somewhere/else"

	ka, err := mustRawDataset(t, env.Env, a).Fingerprint(nil)
	require.NoError(t, err)
	kb, err := mustRawDataset(t, env.Env, b).Fingerprint(nil)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
	assert.Equal(t, int32(0), atomic.LoadInt32(env.calls), "Fingerprint 不应该执行 transform")
}

// -----------------------------------------------------------------------------
// 注册表驱动的入口
// -----------------------------------------------------------------------------

func TestFromRaw(t *testing.T) {
	env := setupTestEnv(t)
	env.writeRaw(t, "toy.csv", "hello world")
	ctx := context.Background()

	_, err := FromRaw(ctx, env.Env, "toy", FromRawOptions{})
	assert.ErrorIs(t, err, registry.ErrUnknownDataset)

	require.NoError(t, AddRawDataset(ctx, env.Env, mustRawDataset(t, env.Env, toyRecord())))

	ds, err := FromRaw(ctx, env.Env, "toy", FromRawOptions{})
	require.NoError(t, err)
	assert.Equal(t, "toy", ds.Name())

	// 注册表里的定义与内存中的定义产生同一个缓存键
	_, err = FromRaw(ctx, env.Env, "toy", FromRawOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(env.calls))

	_, err = FromRaw(ctx, env.Env, "toy", FromRawOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(env.calls))

	env.Registry = nil
	_, err = FromRaw(ctx, env.Env, "toy", FromRawOptions{})
	assert.ErrorIs(t, err, ErrNoRegistry)
}

func TestProcessRawDatasets(t *testing.T) {
	env := setupTestEnv(t)
	env.writeRaw(t, "toy.csv", "hello world")
	ctx := context.Background()

	broken := registry.Record{
		Name:       "broken",
		URLList:    []core.FileDescriptor{{FileName: "absent.csv", HashValue: helloSHA1}},
		FunctionID: transforms.CSVID,
		BoundArgs:  []any{"absent.csv"},
	}
	require.NoError(t, env.Registry.Put(ctx, toyRecord()))
	require.NoError(t, env.Registry.Put(ctx, broken))

	names, err := AvailableRawDatasets(ctx, env.Env)
	require.NoError(t, err)
	assert.Equal(t, []string{"broken", "toy"}, names)

	// 单个失败不影响其他数据集
	results, err := ProcessRawDatasets(ctx, env.Env, nil, ActionProcess, ProcessOptions{})
	require.Error(t, err)
	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	require.NoError(t, results[1].Err)
	assert.NotEmpty(t, results[1].Key)
	assert.Equal(t, "toy", results[1].Dataset.Name())

	avail, err := AvailableDatasets(ctx, env.Env)
	require.NoError(t, err)
	require.Contains(t, avail, results[1].Key)
	assert.Equal(t, "toy", avail[results[1].Key]["dataset_name"])

	results, err = ProcessRawDatasets(ctx, env.Env, []string{"toy"}, ActionUnpack, ProcessOptions{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.Paths.Interim, "toy"), results[0].Path)

	_, err = ProcessRawDatasets(ctx, env.Env, nil, "explode", ProcessOptions{})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestProcessRawDatasets_Options(t *testing.T) {
	env := setupTestEnv(t)
	env.writeRaw(t, "toy.csv", "hello world")
	ctx := context.Background()
	require.NoError(t, env.Registry.Put(ctx, toyRecord()))

	plain, err := ProcessRawDatasets(ctx, env.Env, nil, ActionProcess, ProcessOptions{})
	require.NoError(t, err)

	// 选项参与缓存键，并传递给 Process
	opts := ProcessOptions{Args: map[string]any{"limit": 10}, Metadata: map[string]any{"source": "batch"}}
	withOpts, err := ProcessRawDatasets(ctx, env.Env, nil, ActionProcess, opts)
	require.NoError(t, err)
	require.Len(t, withOpts, 1)
	assert.NotEqual(t, plain[0].Key, withOpts[0].Key)
	assert.Equal(t, "batch", withOpts[0].Dataset.Metadata["source"])

	want, err := withOpts[0].Raw.CacheKey(opts)
	require.NoError(t, err)
	assert.Equal(t, want.String(), withOpts[0].Key)

	// Force 重新执行 transform
	_, err = ProcessRawDatasets(ctx, env.Env, nil, ActionProcess, ProcessOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(env.calls))
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in      string
		want    Action
		wantErr bool
	}{
		{"", ActionProcess, false},
		{"fetch", ActionFetch, false},
		{"unpack", ActionUnpack, false},
		{"process", ActionProcess, false},
		{"build", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAction(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownAction)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

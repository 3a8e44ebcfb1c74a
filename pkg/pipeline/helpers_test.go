package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"datafold/pkg/artifact"
	"datafold/pkg/core"
	"datafold/pkg/fetch"
	"datafold/pkg/registry"
	"datafold/pkg/storage/disk"
	"datafold/pkg/transforms"
	"datafold/pkg/types"
	"datafold/pkg/unpack"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 辅助工具
// -----------------------------------------------------------------------------

// sha1("hello world")
const helloSHA1 = "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed"

const toyDoc = "Toy loader."

// testEnv 是一套基于临时目录的真实协作者
type testEnv struct {
	*Env
	root  string
	calls *int32 // toy transform 被调用的次数
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// toyTransform 总是返回 {data: [1,2,3], target: [0,1,0]}
func toyTransform(calls *int32) core.Func {
	return func(ctx context.Context, call core.Call) (*core.Output, error) {
		atomic.AddInt32(calls, 1)
		return &core.Output{Data: []int{1, 2, 3}, Target: []int{0, 1, 0}, Metadata: call.Metadata}, nil
	}
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	logger := discardLogger()

	backend, err := disk.NewAdapter(filepath.Join(root, "processed"))
	require.NoError(t, err)
	reg, err := registry.NewFileRegistry(filepath.Join(root, "raw", registry.DefaultFileName))
	require.NoError(t, err)

	var calls int32
	tr := transforms.NewRegistry()
	require.NoError(t, tr.Register("toy", toyTransform(&calls), toyDoc))

	env := &Env{
		Fetcher:    fetch.New(fetch.Options{Logger: logger}),
		Unpacker:   unpack.New(unpack.Options{Logger: logger}),
		Transforms: tr,
		Cache:      artifact.NewStore(backend, logger),
		Registry:   reg,
		Paths: Paths{
			Raw:       filepath.Join(root, "raw"),
			Interim:   filepath.Join(root, "interim"),
			Processed: filepath.Join(root, "processed"),
		},
		Logger: logger,
	}
	require.NoError(t, os.MkdirAll(env.Paths.Raw, 0755))
	return &testEnv{Env: env, root: root, calls: &calls}
}

// writeRaw 在 raw 目录下写一个文件
func (e *testEnv) writeRaw(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.Paths.Raw, name), []byte(content), 0644))
}

// toyRecord 是一条指向本地 toy.csv 的定义
func toyRecord() registry.Record {
	return registry.Record{
		Name: "toy",
		URLList: []core.FileDescriptor{
			{FileName: "toy.csv", HashType: types.SHA1, HashValue: helloSHA1},
		},
		FunctionID: "toy",
	}
}

func mustRawDataset(t *testing.T, env *Env, rec registry.Record) *RawDataset {
	t.Helper()
	raw, err := NewRawDataset(rec, env)
	require.NoError(t, err)
	return raw
}

func mustProcess(t *testing.T, raw *RawDataset, opts ProcessOptions) *core.Dataset {
	t.Helper()
	ds, err := raw.Process(context.Background(), opts)
	require.NoError(t, err)
	return ds
}

// fakeFetcher 按文件名返回预设结果，并记录调用顺序
type fakeFetcher struct {
	fail  map[string]error
	calls []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, fd core.FileDescriptor, dir string) (fetch.Result, error) {
	f.calls = append(f.calls, fd.Name())
	if err, ok := f.fail[fd.Name()]; ok {
		return fetch.Result{}, err
	}
	return fetch.Result{Path: filepath.Join(dir, fd.Name()), Hash: "feed"}, nil
}

var errBoom = errors.New("boom")

// recordingIndex 记录 IndexArtifact 调用
type recordingIndex struct {
	keys []string
}

func (r *recordingIndex) IndexArtifact(ctx context.Context, key string, metadata map[string]any) error {
	r.keys = append(r.keys, key)
	return nil
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"datafold/pkg/artifact"
	"datafold/pkg/core"
	"datafold/pkg/storage"
	"datafold/pkg/storage/disk"
	"datafold/pkg/types"
)

// FetchOptions 控制 Fetch
type FetchOptions struct {
	// Path 为空时使用数据集目录
	Path  string
	Force bool
}

// Fetch 按声明顺序获取所有文件并校验哈希
//
// 返回 false 表示 fetch 未完成：远程文件失败会立刻中止剩余条目，
// 这不是 error，原因已记录在日志中，由调用方决定是否重试。
// 本地文件失败不会中止循环。只有 ctx 被取消时返回 error。
func (r *RawDataset) Fetch(ctx context.Context, opts FetchOptions) (bool, error) {
	log := r.env.logger().With("dataset", r.name)
	if r.fetched && !opts.Force {
		log.Debug("already fetched, skipping")
		return true, nil
	}

	dir := opts.Path
	if dir == "" {
		dir = r.datasetDir
	}

	r.fetched = false
	r.fetchedFiles = nil
	for i, fd := range r.files {
		res, err := r.env.Fetcher.Fetch(ctx, fd, dir)
		if err == nil {
			// 记录实际校验过的哈希
			r.files[i].HashType = fd.EffectiveHashType()
			r.files[i].HashValue = res.Hash.String()
			r.fetchedFiles = append(r.fetchedFiles, res.Path)
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		if fd.IsRemote() {
			log.Error("fetch failed, aborting", "url", fd.URL, "error", err)
			return false, nil
		}
		log.Warn("local file unavailable", "file", fd.Name(), "error", err)
	}

	r.fetched = true
	log.Info("fetched", "files", len(r.fetchedFiles))
	return true, nil
}

// UnpackOptions 控制 Unpack
type UnpackOptions struct {
	// Path 为空时使用 <interim>/<name>
	Path  string
	Force bool
}

// Unpack 把所有已获取的文件解包到同一个目录，返回该目录
// 尚未 fetch 时先执行一次 fetch (ensure-prerequisite)；fetch 未完成返回 ErrFetchFailed
func (r *RawDataset) Unpack(ctx context.Context, opts UnpackOptions) (string, error) {
	log := r.env.logger().With("dataset", r.name)
	if err := r.ensureFetched(ctx); err != nil {
		return "", err
	}

	if r.unpacked && !opts.Force {
		log.Debug("already unpacked, skipping")
		return r.unpackPath, nil
	}

	dest := opts.Path
	if dest == "" {
		dest = filepath.Join(r.env.Paths.Interim, r.name)
	}

	r.unpacked = false
	for _, f := range r.fetchedFiles {
		if err := r.env.Unpacker.Unpack(ctx, f, dest); err != nil {
			return "", fmt.Errorf("unpack %s: %w", r.name, err)
		}
	}

	r.unpacked = true
	r.unpackPath = dest
	log.Info("unpacked", "path", dest)
	return dest, nil
}

func (r *RawDataset) ensureFetched(ctx context.Context) error {
	if r.fetched {
		return nil
	}
	r.env.logger().Debug("unpack called before fetch, fetching first", "dataset", r.name)
	ok, err := r.Fetch(ctx, FetchOptions{})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrFetchFailed, r.name)
	}
	return nil
}

func (r *RawDataset) ensureUnpacked(ctx context.Context) error {
	if r.unpacked {
		return nil
	}
	r.env.logger().Debug("process called before unpack, unpacking first", "dataset", r.name)
	_, err := r.Unpack(ctx, UnpackOptions{})
	return err
}

// ProcessOptions 控制 Process
type ProcessOptions struct {
	// CachePath 为空时使用 Env.Cache，否则在该目录下建立磁盘缓存
	CachePath string
	// Force 忽略缓存，重新执行 transform
	Force bool
	// UseDocstring 用 transform 的文档生成 descr
	UseDocstring bool
	// Metadata 覆盖在默认元数据之上
	Metadata map[string]any
	// Args 是传给 transform 的关键字参数，参与 Fingerprint
	Args map[string]any
}

// fingerprintArgs 返回参与缓存键计算的调用参数
// 调用方元数据和 UseDocstring 会改变产物的元数据，所以也要进入缓存键
func (o ProcessOptions) fingerprintArgs() map[string]any {
	args := mergeMetadata(o.Args, nil)
	if len(o.Metadata) > 0 {
		args["metadata"] = o.Metadata
	}
	if o.UseDocstring {
		args["use_docstring"] = true
	}
	return args
}

// CacheKey 返回 Process(opts) 使用的缓存键
func (r *RawDataset) CacheKey(opts ProcessOptions) (types.Hash, error) {
	return r.Fingerprint(opts.fingerprintArgs())
}

// Process 生成处理后的 Dataset
// 相同定义和参数的第二次调用直接命中缓存，不会再执行 transform
func (r *RawDataset) Process(ctx context.Context, opts ProcessOptions) (*core.Dataset, error) {
	log := r.env.logger().With("dataset", r.name)
	if err := r.ensureUnpacked(ctx); err != nil {
		return nil, err
	}

	cache, err := r.cacheFor(opts.CachePath)
	if err != nil {
		return nil, err
	}

	// 1. 计算缓存键 (不执行 transform)
	key, err := r.CacheKey(opts)
	if err != nil {
		return nil, err
	}

	// 2. 尝试命中缓存
	if !opts.Force {
		ds, err := cache.Load(ctx, key.String())
		switch {
		case err == nil:
			log.Debug("cache hit", "key", key.Short())
			r.processed = true
			return ds, nil
		case errors.Is(err, storage.ErrNotFound):
			log.Debug("cache miss", "key", key.Short())
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			// 损坏的缓存记录按未命中处理，随后会被覆盖
			log.Warn("unreadable cache entry, recomputing", "key", key.Short(), "error", err)
		}
	}

	// 3. 执行 transform
	meta := mergeMetadata(r.DefaultMetadata(opts.UseDocstring), opts.Metadata)
	out, err := r.transform.Call(ctx, core.Call{
		Kwargs:    opts.Args,
		Metadata:  meta,
		UnpackDir: r.unpackPath,
		Files:     r.FetchedFiles(),
	})
	if err != nil {
		return nil, fmt.Errorf("process %s: %w", r.name, err)
	}
	if out == nil {
		return nil, fmt.Errorf("process %s: transform %s returned no output", r.name, r.transform.ID())
	}

	dsMeta := out.Metadata
	if dsMeta == nil {
		dsMeta = meta
	}
	name := out.Name
	if name == "" {
		name = r.name
		if s, ok := dsMeta[core.MetaDatasetName].(string); ok && s != "" {
			name = s
		}
	}
	ds, err := core.NewDataset(name, out.Data, out.Target, dsMeta, false)
	if err != nil {
		return nil, err
	}

	// 4. 写入缓存 (键已被重新计算过，覆盖旧记录)
	// 返回存储形式的 Dataset，与之后命中缓存时 Load 的结果一致
	ds, err = cache.DumpStored(ctx, ds, artifact.DumpOptions{
		FileBase: key.String(),
		HashType: r.env.hashType(),
		Force:    true,
	})
	if err != nil {
		return nil, err
	}
	if r.env.Index != nil {
		if err := r.env.Index.IndexArtifact(ctx, key.String(), ds.Metadata); err != nil {
			log.Warn("artifact index update failed", "key", key.Short(), "error", err)
		}
	}

	r.processed = true
	log.Info("processed", "key", key.Short())
	return ds, nil
}

// ProcessPair 只返回 data 和 target
func (r *RawDataset) ProcessPair(ctx context.Context, opts ProcessOptions) (data, target any, err error) {
	ds, err := r.Process(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	return ds.Data, ds.Target, nil
}

func (r *RawDataset) cacheFor(path string) (*artifact.Store, error) {
	if path == "" {
		return r.env.Cache, nil
	}
	backend, err := disk.NewAdapter(path)
	if err != nil {
		return nil, err
	}
	return artifact.NewStore(backend, r.env.logger()), nil
}

package pipeline

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"datafold/pkg/core"
	"datafold/pkg/registry"
	"datafold/pkg/transforms"
	"datafold/pkg/types"
)

// State 是流水线进度
type State int

const (
	StateInit State = iota
	StateFetched
	StateUnpacked
	StateProcessed
)

func (s State) String() string {
	switch s {
	case StateFetched:
		return "FETCHED"
	case StateUnpacked:
		return "UNPACKED"
	case StateProcessed:
		return "PROCESSED"
	}
	return "INIT"
}

// RawDataset 是一个原始数据集的声明 + 流水线进度
// 非并发安全：一个实例只应在一个 goroutine 中推进
type RawDataset struct {
	env *Env

	name       string
	datasetDir string
	files      []core.FileDescriptor
	transform  *core.Bound

	fetched      bool
	fetchedFiles []string
	unpacked     bool
	unpackPath   string
	processed    bool
}

// NewRawDataset 从声明式记录构造 RawDataset
// function_id 为空时使用 "default"；无法解析的 transform 是致命错误
func NewRawDataset(rec registry.Record, env *Env) (*RawDataset, error) {
	if err := env.validate(); err != nil {
		return nil, err
	}
	if rec.Name == "" {
		return nil, core.ErrNameRequired
	}

	ref := rec.Reference()
	if ref.FunctionID == "" {
		ref.FunctionID = transforms.DefaultID
	}
	bound, err := env.Transforms.Resolve(ref)
	if err != nil {
		return nil, fmt.Errorf("raw dataset %q: %w", rec.Name, err)
	}

	dir := rec.DatasetDir
	if dir == "" {
		dir = env.Paths.Raw
	}

	files := slices.Clone(rec.URLList)
	for i := range files {
		files[i].HashType = files[i].EffectiveHashType()
	}

	return &RawDataset{
		env:        env,
		name:       rec.Name,
		datasetDir: dir,
		files:      files,
		transform:  bound,
	}, nil
}

// FromName 在注册表中查找定义并构造 RawDataset
func FromName(ctx context.Context, env *Env, name string) (*RawDataset, error) {
	if env == nil || env.Registry == nil {
		return nil, ErrNoRegistry
	}
	rec, err := env.Registry.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return NewRawDataset(rec, env)
}

func (r *RawDataset) Name() string                 { return r.name }
func (r *RawDataset) DatasetDir() string           { return r.datasetDir }
func (r *RawDataset) Files() []core.FileDescriptor { return slices.Clone(r.files) }
func (r *RawDataset) FetchedFiles() []string       { return slices.Clone(r.fetchedFiles) }
func (r *RawDataset) Fetched() bool                { return r.fetched }
func (r *RawDataset) Unpacked() bool               { return r.unpacked }
func (r *RawDataset) UnpackPath() string           { return r.unpackPath }
func (r *RawDataset) Transform() *core.Bound       { return r.transform }

func (r *RawDataset) State() State {
	switch {
	case r.processed:
		return StateProcessed
	case r.unpacked:
		return StateUnpacked
	case r.fetched:
		return StateFetched
	}
	return StateInit
}

// Record 返回可写入注册表的声明式定义
// 这也是 Fingerprint 的输入，fetch 之后包含已校验的哈希
func (r *RawDataset) Record() registry.Record {
	ref := r.transform.Reference()
	return registry.Record{
		Name:        r.name,
		DatasetDir:  r.datasetDir,
		URLList:     slices.Clone(r.files),
		FunctionID:  ref.FunctionID,
		BoundArgs:   ref.BoundArgs,
		BoundKwargs: ref.BoundKwargs,
	}
}

// Fingerprint 计算缓存键，永远不会执行 transform
func (r *RawDataset) Fingerprint(args map[string]any) (types.Hash, error) {
	return core.Fingerprint(r.Record(), args, core.FingerprintOptions{HashType: r.env.hashType()})
}

// -----------------------------------------------------------------------------
// Builders
// -----------------------------------------------------------------------------

// FileOptions 是 AddURL / AddFile 的可选字段
type FileOptions struct {
	HashType  types.HashType
	HashValue string
	FileName  string
	Role      types.Role
}

func (o FileOptions) descriptor() (core.FileDescriptor, error) {
	ht, err := types.ParseHashType(string(o.HashType))
	if err != nil {
		return core.FileDescriptor{}, err
	}
	return core.FileDescriptor{HashType: ht, HashValue: o.HashValue, FileName: o.FileName, Role: o.Role}, nil
}

// AddURL 追加一个远程文件。哈希为空时以下载结果为准
func (r *RawDataset) AddURL(url string, opts FileOptions) error {
	if url == "" {
		return fmt.Errorf("add url: empty url")
	}
	fd, err := opts.descriptor()
	if err != nil {
		return err
	}
	fd.URL = url
	r.appendFile(fd)
	return nil
}

// AddFile 追加一个需要线下准备的本地文件
func (r *RawDataset) AddFile(fileName string, opts FileOptions) error {
	if fileName == "" {
		return fmt.Errorf("add file: empty file name")
	}
	fd, err := opts.descriptor()
	if err != nil {
		return err
	}
	fd.FileName = fileName
	if _, err := os.Stat(filepath.Join(r.datasetDir, fileName)); err != nil {
		r.env.logger().Warn("file not found on disk", "dataset", r.name, "file", fileName)
	}
	r.appendFile(fd)
	return nil
}

// AddMetadata 追加 DESCR / LICENSE 条目
// 给出 fileName 时引用已有文件，否则把 contents 内联写入 <name>.readme / <name>.license
func (r *RawDataset) AddMetadata(kind types.Role, fileName, contents string) error {
	suffix, ok := kind.FileSuffix()
	if !ok {
		return fmt.Errorf("unknown metadata kind %q (want DESCR or LICENSE)", kind)
	}
	fd := core.FileDescriptor{HashType: types.DefaultHashType, Role: kind}
	switch {
	case fileName != "":
		fd.FileName = fileName
	case contents != "":
		fd.FileName = r.name + suffix
		fd.Contents = contents
	default:
		return fmt.Errorf("add metadata: one of file name or contents is required")
	}
	r.appendFile(fd)
	return nil
}

// appendFile 文件列表变化后必须重新 fetch 和 unpack
func (r *RawDataset) appendFile(fd core.FileDescriptor) {
	r.files = append(r.files, fd)
	r.fetched = false
	r.unpacked = false
	r.processed = false
}

// -----------------------------------------------------------------------------
// Metadata
// -----------------------------------------------------------------------------

// DefaultMetadata 由数据集名称和 DESCR / LICENSE 文件生成默认元数据
// useDocstring 时用 transform 的文档生成 descr
func (r *RawDataset) DefaultMetadata(useDocstring bool) map[string]any {
	meta := map[string]any{}
	for _, fd := range r.files {
		key, ok := fd.Role.MetadataKey()
		if !ok {
			continue
		}
		if fd.Contents != "" {
			meta[key] = fd.Contents
			continue
		}
		text, err := os.ReadFile(r.localPath(fd))
		if err != nil {
			r.env.logger().Warn("metadata file unreadable", "dataset", r.name, "role", fd.Role, "error", err)
			continue
		}
		meta[key] = string(text)
	}

	if useDocstring {
		id := r.transform.ID()
		meta[core.MetaDescr] = fmt.Sprintf("Data processed by: %s\n\n>>> %s\n\n>>> help(%s)\n\n%s",
			id, r.transform.Signature(), id, r.transform.Doc())
	}

	meta[core.MetaDatasetName] = r.name
	return meta
}

// localPath 返回文件的本地路径
// fetch 到其他目录时以实际获取到的路径为准，否则落在数据集目录下
func (r *RawDataset) localPath(fd core.FileDescriptor) string {
	for _, p := range r.fetchedFiles {
		if filepath.Base(p) == fd.Name() {
			return p
		}
	}
	return filepath.Join(r.datasetDir, fd.Name())
}

func mergeMetadata(base, over map[string]any) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = map[string]any{}
	}
	maps.Copy(out, over)
	return out
}

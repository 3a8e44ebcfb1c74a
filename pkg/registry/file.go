package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultFileName 是默认的注册表文件名 (位于 raw 目录下)
const DefaultFileName = "raw_datasets.json"

// Format 注册表文件的编码格式，由扩展名决定
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath 根据扩展名推断格式
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// FileRegistry 把全部定义保存在一个文件里：name -> Record
// 每次操作都重新读取文件，多个进程共享同一个注册表时不会读到过期内容
type FileRegistry struct {
	path   string
	format Format
	mu     sync.RWMutex
}

// NewFileRegistry 不会创建文件，第一次 Put 时才落盘
func NewFileRegistry(path string) (*FileRegistry, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	return &FileRegistry{path: path, format: format}, nil
}

func (f *FileRegistry) Path() string { return f.path }

func (f *FileRegistry) Get(ctx context.Context, name string) (Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := f.load()
	if err != nil {
		return Record{}, err
	}
	rec, ok := entries[name]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrUnknownDataset, name)
	}
	return rec, nil
}

func (f *FileRegistry) Put(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	// 读-改-写
	entries, err := f.load()
	if err != nil {
		return err
	}
	entries[rec.Name] = rec.Clone()
	return f.save(entries)
}

func (f *FileRegistry) List(ctx context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := f.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *FileRegistry) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := entries[name]; !ok {
		return nil
	}
	delete(entries, name)
	return f.save(entries)
}

// load 读取整个文件；文件不存在视为空注册表
func (f *FileRegistry) load() (map[string]Record, error) {
	entries := make(map[string]Record)

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return entries, nil
	}

	switch f.format {
	case FormatJSON:
		err = DecodeJSON(data, &entries)
	case FormatYAML:
		err = yaml.Unmarshal(data, &entries)
	case FormatTOML:
		err = toml.Unmarshal(data, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptedRegistry, f.path, err)
	}

	for name, rec := range entries {
		rec.Normalize()
		// 键就是名字，记录里缺省时补上
		if rec.Name == "" {
			rec.Name = name
		}
		entries[name] = rec
	}
	return entries, nil
}

// save 原子写回：临时文件 + Rename
func (f *FileRegistry) save(entries map[string]Record) error {
	var (
		data []byte
		err  error
	)
	switch f.format {
	case FormatJSON:
		// 格式化输出，便于人工编辑和 diff
		data, err = json.MarshalIndent(entries, "", "  ")
	case FormatYAML:
		data, err = yaml.Marshal(entries)
	case FormatTOML:
		data, err = toml.Marshal(entries)
	}
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".registry-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// Package registry stores the declarative raw-dataset definitions,
// one record per dataset name.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"datafold/pkg/core"
)

var (
	ErrUnknownDataset    = errors.New("unknown dataset")
	ErrUnsupportedFormat = errors.New("unsupported registry format")
	ErrCorruptedRegistry = errors.New("corrupted registry file")
)

// Record 是注册表中的一条原始数据集定义
// 字段名同时也是 Fingerprint 的键名，改名会改变所有缓存键
type Record struct {
	Name        string                `json:"name" yaml:"name" toml:"name" cbor:"name"`
	DatasetDir  string                `json:"dataset_dir,omitempty" yaml:"dataset_dir,omitempty" toml:"dataset_dir,omitempty" cbor:"dataset_dir,omitempty"`
	URLList     []core.FileDescriptor `json:"url_list" yaml:"url_list" toml:"url_list" cbor:"url_list"`
	FunctionID  string                `json:"function_id" yaml:"function_id" toml:"function_id" cbor:"function_id"`
	BoundArgs   []any                 `json:"bound_args" yaml:"bound_args" toml:"bound_args" cbor:"bound_args"`
	BoundKwargs map[string]any        `json:"bound_kwargs" yaml:"bound_kwargs" toml:"bound_kwargs" cbor:"bound_kwargs"`
}

// Reference 提取 transform 部分
func (r Record) Reference() core.Reference {
	return core.Reference{FunctionID: r.FunctionID, BoundArgs: r.BoundArgs, BoundKwargs: r.BoundKwargs}
}

// Clone 深拷贝外层容器
func (r Record) Clone() Record {
	out := r
	out.URLList = slices.Clone(r.URLList)
	out.BoundArgs = slices.Clone(r.BoundArgs)
	out.BoundKwargs = maps.Clone(r.BoundKwargs)
	return out
}

func (r Record) Validate() error {
	if r.Name == "" {
		return core.ErrNameRequired
	}
	if r.FunctionID == "" {
		return fmt.Errorf("dataset %q: function_id is required", r.Name)
	}
	return nil
}

// Normalize 把 JSON 解码出的 json.Number 还原为 int64 / float64
// 否则同一个参数 3 从 JSON 读回来会变成 float64(3)，Fingerprint 随之改变
func (r *Record) Normalize() {
	for i, v := range r.BoundArgs {
		r.BoundArgs[i] = NormalizeNumbers(v)
	}
	for k, v := range r.BoundKwargs {
		r.BoundKwargs[k] = NormalizeNumbers(v)
	}
}

// NormalizeNumbers 递归转换 json.Number
func NormalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(string(x), 64); err == nil {
			return f
		}
		return string(x)
	case []any:
		for i := range x {
			x[i] = NormalizeNumbers(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = NormalizeNumbers(x[k])
		}
		return x
	}
	return v
}

// DecodeJSON 以 UseNumber 模式解码，保留整数与浮点数的区别
func DecodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// Registry 是原始数据集定义的存储
type Registry interface {
	// Get 不存在时返回 ErrUnknownDataset
	Get(ctx context.Context, name string) (Record, error)
	// Put 新增或覆盖一条定义
	Put(ctx context.Context, rec Record) error
	// List 返回排序后的数据集名称
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
}

package core

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownTransform   = errors.New("unknown transform")
	ErrDuplicateTransform = errors.New("transform already registered")
)

// Reference 是一个可序列化的 "函数 + 预绑定参数" 描述
// 只包含 ID 和参数，永远不包含代码，因此可以写进注册表并在另一个进程里还原
type Reference struct {
	FunctionID  string         `json:"function_id" yaml:"function_id" toml:"function_id" cbor:"function_id"`
	BoundArgs   []any          `json:"bound_args" yaml:"bound_args" toml:"bound_args" cbor:"bound_args"`
	BoundKwargs map[string]any `json:"bound_kwargs" yaml:"bound_kwargs" toml:"bound_kwargs" cbor:"bound_kwargs"`
}

// Clone 复制外层容器，避免调用方修改影响已绑定的引用
func (r Reference) Clone() Reference {
	return Reference{
		FunctionID:  r.FunctionID,
		BoundArgs:   slices.Clone(r.BoundArgs),
		BoundKwargs: maps.Clone(r.BoundKwargs),
	}
}

// Call 是一次 transform 调用的输入
type Call struct {
	// Args / Kwargs 是合并后的参数：绑定参数在前，调用时参数覆盖同名绑定参数
	Args   []any
	Kwargs map[string]any

	// Metadata 是默认元数据 + 调用方元数据合并后的结果
	Metadata map[string]any

	// UnpackDir 是解包后的工作目录，Files 是 fetch 阶段落地的文件
	UnpackDir string
	Files     []string
}

// Output 是 transform 的返回值，会被包装成 Dataset
type Output struct {
	Name     string
	Data     any
	Target   any
	Metadata map[string]any
}

// Func 是注册到 Registry 的处理函数签名
type Func func(ctx context.Context, call Call) (*Output, error)

// Transform 是注册表中的一项
type Transform struct {
	ID   string
	Func Func
	// Doc 相当于函数文档，UseDocstring 时会被写进 descr
	Doc string
}

// Registry 维护 function_id -> Func 的映射
// 通常在启动时填充一次，之后只读
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Transform
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Transform)}
}

// Register 注册一个 transform，ID 冲突时报错
func (r *Registry) Register(id string, fn Func, doc string) error {
	if id == "" {
		return fmt.Errorf("transform id cannot be empty")
	}
	if fn == nil {
		return fmt.Errorf("transform %q: nil func", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.funcs[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTransform, id)
	}
	r.funcs[id] = Transform{ID: id, Func: fn, Doc: doc}
	return nil
}

// MustRegister 用于启动阶段，注册失败直接 panic
func (r *Registry) MustRegister(id string, fn Func, doc string) {
	if err := r.Register(id, fn, doc); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(id string) (Transform, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.funcs[id]
	return t, ok
}

// IDs 返回排序后的全部 function_id
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.funcs))
	for id := range r.funcs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Bind 序列化方向：把一个已注册函数和参数绑定成 Bound
func (r *Registry) Bind(id string, args []any, kwargs map[string]any) (*Bound, error) {
	return r.Resolve(Reference{FunctionID: id, BoundArgs: args, BoundKwargs: kwargs})
}

// Resolve 反序列化方向：根据 Reference 找回可调用对象
// function_id 不存在是致命的定义错误
func (r *Registry) Resolve(ref Reference) (*Bound, error) {
	t, ok := r.Lookup(ref.FunctionID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, ref.FunctionID)
	}
	return &Bound{ref: ref.Clone(), t: t}, nil
}

// Bound 是绑定了参数的 transform
type Bound struct {
	ref Reference
	t   Transform
}

func (b *Bound) ID() string  { return b.ref.FunctionID }
func (b *Bound) Doc() string { return b.t.Doc }

// Reference 返回可持久化的描述 (副本)
func (b *Bound) Reference() Reference { return b.ref.Clone() }

// Call 调用 transform
// 语义与 "偏函数" 一致：位置参数追加在绑定参数之后，关键字参数覆盖绑定值
func (b *Bound) Call(ctx context.Context, call Call) (*Output, error) {
	args := append(slices.Clone(b.ref.BoundArgs), call.Args...)
	kwargs := maps.Clone(b.ref.BoundKwargs)
	if kwargs == nil {
		kwargs = make(map[string]any, len(call.Kwargs))
	}
	maps.Copy(kwargs, call.Kwargs)

	call.Args = args
	call.Kwargs = kwargs
	return b.t.Func(ctx, call)
}

// Signature 返回可读的调用形式，例如 csv("train.csv", target="label")
func (b *Bound) Signature() string {
	parts := make([]string, 0, len(b.ref.BoundArgs)+len(b.ref.BoundKwargs))
	for _, a := range b.ref.BoundArgs {
		parts = append(parts, formatArg(a))
	}
	keys := slices.Sorted(maps.Keys(b.ref.BoundKwargs))
	for _, k := range keys {
		parts = append(parts, k+"="+formatArg(b.ref.BoundKwargs[k]))
	}
	return fmt.Sprintf("%s(%s)", b.ref.FunctionID, strings.Join(parts, ", "))
}

func formatArg(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", v)
}

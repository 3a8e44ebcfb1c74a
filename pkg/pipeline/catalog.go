package pipeline

import (
	"context"
	"errors"
	"fmt"

	"datafold/pkg/core"
)

// Action 是批处理执行的阶段
type Action string

const (
	ActionFetch   Action = "fetch"
	ActionUnpack  Action = "unpack"
	ActionProcess Action = "process"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionFetch, ActionUnpack, ActionProcess:
		return a, nil
	case "":
		return ActionProcess, nil
	}
	return "", fmt.Errorf("%w: %q (want fetch, unpack or process)", ErrUnknownAction, s)
}

// FromRawOptions 控制 FromRaw
type FromRawOptions struct {
	FetchPath  string
	UnpackPath string
	Force      bool
	Process    ProcessOptions
}

// FromRaw 按名称查找定义，依次 fetch、unpack、process
// Force 同时作用于三个阶段
func FromRaw(ctx context.Context, env *Env, name string, opts FromRawOptions) (*core.Dataset, error) {
	raw, err := FromName(ctx, env, name)
	if err != nil {
		return nil, err
	}

	ok, err := raw.Fetch(ctx, FetchOptions{Path: opts.FetchPath, Force: opts.Force})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFetchFailed, name)
	}
	if _, err := raw.Unpack(ctx, UnpackOptions{Path: opts.UnpackPath, Force: opts.Force}); err != nil {
		return nil, err
	}

	popts := opts.Process
	popts.Force = popts.Force || opts.Force
	return raw.Process(ctx, popts)
}

// BatchResult 是批处理中单个数据集的结果
type BatchResult struct {
	Name string
	// Key 仅在 process 时设置 (缓存键)
	Key string
	// Path 是 unpack 目录
	Path    string
	Dataset *core.Dataset
	// Raw 是执行该 action 的实例 (可读取已校验的哈希)，查找定义失败时为 nil
	Raw *RawDataset
	Err error
}

// ProcessRawDatasets 对注册表中的数据集批量执行 action
// names 为空时处理全部。单个数据集失败不影响其他数据集，所有错误通过 errors.Join 返回
// opts 只在 action 为 process 时使用
func ProcessRawDatasets(ctx context.Context, env *Env, names []string, action Action, opts ProcessOptions) ([]BatchResult, error) {
	if env == nil || env.Registry == nil {
		return nil, ErrNoRegistry
	}
	if _, err := ParseAction(string(action)); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		all, err := env.Registry.List(ctx)
		if err != nil {
			return nil, err
		}
		names = all
	}

	results := make([]BatchResult, 0, len(names))
	var errs []error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		env.logger().Info("running action", "action", action, "dataset", name)
		res := runAction(ctx, env, name, action, opts)
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, res.Err))
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func runAction(ctx context.Context, env *Env, name string, action Action, opts ProcessOptions) BatchResult {
	res := BatchResult{Name: name}
	raw, err := FromName(ctx, env, name)
	if err != nil {
		res.Err = err
		return res
	}
	res.Raw = raw

	switch action {
	case ActionFetch:
		ok, err := raw.Fetch(ctx, FetchOptions{})
		if err == nil && !ok {
			err = ErrFetchFailed
		}
		res.Err = err
	case ActionUnpack:
		res.Path, res.Err = raw.Unpack(ctx, UnpackOptions{})
	case ActionProcess:
		res.Dataset, res.Err = raw.Process(ctx, opts)
		if res.Err == nil {
			if key, err := raw.CacheKey(opts); err == nil {
				res.Key = key.String()
			}
		}
	}
	return res
}

// AddRawDataset 把 RawDataset 的定义写入注册表 (覆盖同名定义)
func AddRawDataset(ctx context.Context, env *Env, raw *RawDataset) error {
	if env == nil || env.Registry == nil {
		return ErrNoRegistry
	}
	return env.Registry.Put(ctx, raw.Record())
}

// AvailableRawDatasets 返回注册表中的全部名称
func AvailableRawDatasets(ctx context.Context, env *Env) ([]string, error) {
	if env == nil || env.Registry == nil {
		return nil, ErrNoRegistry
	}
	return env.Registry.List(ctx)
}

// AvailableDatasets 返回缓存中的产物 key -> 元数据
func AvailableDatasets(ctx context.Context, env *Env) (map[string]map[string]any, error) {
	if err := env.validate(); err != nil {
		return nil, err
	}
	return env.Cache.AvailableMetadata(ctx)
}

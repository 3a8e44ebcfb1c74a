package core

import (
	"fmt"
	"maps"

	"datafold/pkg/types"
)

// DefaultVolatileKeys 是不参与身份计算的字段
// 工作目录只决定文件放在哪里，不影响数据集的逻辑身份
var DefaultVolatileKeys = []string{"dataset_dir"}

// ProcessArgsKey 是调用参数在规范化 map 中的位置
// 单独嵌套一层，防止调用参数与定义字段 (name 等) 同名时互相覆盖
const ProcessArgsKey = "process_args"

// FingerprintOptions 控制 Fingerprint 的计算
type FingerprintOptions struct {
	// Ignore 为 nil 时使用 DefaultVolatileKeys
	Ignore   []string
	HashType types.HashType
}

// Fingerprint 计算缓存键
//
// definition 是数据集的声明式定义 (通常是注册表记录)，args 是 Process 的 transform 参数。
// 流程：投影为规范化 map -> 删除易变字段 -> 挂上调用参数 -> Canonical CBOR -> 摘要。
// 这里永远不会执行 transform。
func Fingerprint(definition any, args map[string]any, opts FingerprintOptions) (types.Hash, error) {
	ht := opts.HashType
	if ht == "" {
		ht = types.DefaultHashType
	}
	if !ht.IsValid() {
		return "", fmt.Errorf("fingerprint: unsupported hash type %q", ht)
	}

	canonical, err := ToMap(definition)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}

	ignore := opts.Ignore
	if ignore == nil {
		ignore = DefaultVolatileKeys
	}
	for _, key := range ignore {
		delete(canonical, key)
	}

	extra := maps.Clone(args)
	if extra == nil {
		extra = map[string]any{}
	}
	canonical[ProcessArgsKey] = extra

	return HashValue(canonical, ht)
}

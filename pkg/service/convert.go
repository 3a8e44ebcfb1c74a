package service

import (
	"encoding/json"
	"fmt"

	"datafold/pkg/core"
	"datafold/pkg/registry"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// toStruct 把任意 map 转换为 structpb.Struct
// 经过一次 JSON 编码，这样 []string、[]int、uint64 等领域类型也能被表达
func toStruct(m map[string]any) (*structpb.Struct, error) {
	if m == nil {
		m = map[string]any{}
	}
	data, err := json.Marshal(core.StringKeys(m))
	if err != nil {
		return nil, fmt.Errorf("failed to encode struct: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to encode struct: %w", err)
	}
	return out, nil
}

// fromStruct 把 structpb.Struct 解码进 v (按 json tag)
// 整数保持为 int64，保证与文件注册表读出的定义产生相同的 Fingerprint
func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return registry.DecodeJSON(data, v)
}

// processRequest 是 Process 的请求体
type processRequest struct {
	Name         string         `json:"name"`
	Force        bool           `json:"force"`
	UseDocstring bool           `json:"use_docstring"`
	Args         map[string]any `json:"args"`
	Metadata     map[string]any `json:"metadata"`
}

func (r *processRequest) normalize() {
	for k, v := range r.Args {
		r.Args[k] = registry.NormalizeNumbers(v)
	}
	for k, v := range r.Metadata {
		r.Metadata[k] = registry.NormalizeNumbers(v)
	}
}

package core

import (
	"context"
	"testing"

	"datafold/pkg/types"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 辅助工具
// -----------------------------------------------------------------------------

// testDefinition 模拟注册表记录的结构 (字段名与 registry.Record 一致)
type testDefinition struct {
	Name       string           `cbor:"name"`
	DatasetDir string           `cbor:"dataset_dir"`
	URLList    []FileDescriptor `cbor:"url_list"`
	Reference
}

func newTestDefinition() testDefinition {
	return testDefinition{
		Name:       "toy",
		DatasetDir: "/tmp/raw",
		URLList: []FileDescriptor{
			{URL: "https://example.com/toy.csv", HashType: types.SHA1, HashValue: "aa"},
			{FileName: "toy.readme", HashType: types.SHA1, Role: types.RoleDescr},
		},
		Reference: Reference{
			FunctionID:  "csv",
			BoundArgs:   []any{"toy.csv"},
			BoundKwargs: map[string]any{"target": "label"},
		},
	}
}

// mustFingerprint 计算 Fingerprint，失败直接终止测试
func mustFingerprint(t *testing.T, def any, args map[string]any, msgAndArgs ...any) types.Hash {
	t.Helper()
	h, err := Fingerprint(def, args, FingerprintOptions{})
	require.NoError(t, err, msgAndArgs...)
	return h
}

// recordingFunc 返回一个记录调用参数的 transform
func recordingFunc(calls *[]Call) Func {
	return func(ctx context.Context, call Call) (*Output, error) {
		*calls = append(*calls, call)
		return &Output{Data: call.Args, Target: call.Kwargs}, nil
	}
}

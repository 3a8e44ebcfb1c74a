package commands

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
)

// parseKV 解析 key=value 形式的参数
// value 按 YAML 标量解析：3 -> int, 0.5 -> float, true -> bool，其余为字符串
func parseKV(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid argument %q (want key=value)", p)
		}
		out[k] = parseScalar(v)
	}
	return out, nil
}

func parseScalar(v string) any {
	var out any
	if err := yaml.Unmarshal([]byte(v), &out); err != nil {
		return v
	}
	switch out.(type) {
	case int, float64, bool, string:
		return out
	}
	// null、列表、映射都按原样字符串处理
	return v
}

func parseArgs(values []string) []any {
	if len(values) == 0 {
		return nil
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = parseScalar(v)
	}
	return out
}

func appNotInitialized() error {
	return fmt.Errorf("app not initialized")
}

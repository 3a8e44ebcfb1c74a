package ignore

import (
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 是用户自定义规则文件，放在 raw 目录下
const FileName = ".dfoldignore"

// DefaultRules 解包时强制跳过的归档条目
var DefaultRules = []string{
	// --- 打包工具留下的垃圾 ---
	"__MACOSX",  // macOS Finder 压缩产生的资源分叉目录
	"._*",       // AppleDouble 文件
	".DS_Store", // macOS
	"Thumbs.db", // Windows
}

// Matcher 封装了忽略逻辑
// 它负责判断一个归档条目是否应该在解包时被跳过
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 用默认规则加上额外规则编译匹配器
func NewMatcher(extra ...string) *Matcher {
	lines := append(append([]string{}, DefaultRules...), extra...)
	return &Matcher{ignorer: gitignore.CompileIgnoreLines(lines...)}
}

// LoadMatcher 读取 dir 下的 .dfoldignore (如果有) 并与默认规则合并
func LoadMatcher(dir string) (*Matcher, error) {
	ignoreFilePath := filepath.Join(dir, FileName)

	if _, errStat := os.Stat(ignoreFilePath); errStat != nil {
		// 用户没定义规则文件，仅编译默认规则
		return NewMatcher(), nil
	}

	// 库函数 CompileIgnoreFileAndLines 会自动处理读取和解析
	ignorer, err := gitignore.CompileIgnoreFileAndLines(ignoreFilePath, DefaultRules...)
	if err != nil {
		return nil, err
	}
	return &Matcher{ignorer: ignorer}, nil
}

// Matches 检查给定的归档内相对路径是否匹配忽略规则
// 返回: true 表示应该忽略 (Skip), false 表示应该保留 (Keep)
func (m *Matcher) Matches(path string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(filepath.ToSlash(path))
}

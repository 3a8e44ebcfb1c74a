package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Defaults(t *testing.T) {
	matcher := NewMatcher()

	tests := []struct {
		path     string
		shouldIg bool
	}{
		{"__MACOSX", true},
		{"__MACOSX/data/._train.csv", true}, // 子路径也应该被忽略
		{"data/._train.csv", true},
		{".DS_Store", true},
		{"nested/Thumbs.db", true},
		{"train.csv", false}, // 普通文件不应忽略
		{"data/images/001.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.shouldIg, matcher.Matches(tt.path), "Path: %s", tt.path)
		})
	}
}

func TestMatcher_Extra(t *testing.T) {
	matcher := NewMatcher("*.txt")
	assert.True(t, matcher.Matches("notes.txt"))
	assert.True(t, matcher.Matches(".DS_Store"), "defaults still apply")
	assert.False(t, matcher.Matches("train.csv"))
}

func TestLoadMatcher_WithUserFile(t *testing.T) {
	tmpDir := t.TempDir()

	ignoreContent := `
# 这是注释
*.log
temp
!important.log
`
	err := os.WriteFile(filepath.Join(tmpDir, FileName), []byte(ignoreContent), 0644)
	require.NoError(t, err)

	matcher, err := LoadMatcher(tmpDir)
	require.NoError(t, err)

	tests := []struct {
		path     string
		shouldIg bool
	}{
		{"debug.log", true},
		{"important.log", false}, // 取反规则
		{"temp/file.txt", true},
		{"__MACOSX", true}, // 默认规则依然生效
		{"data.csv", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.shouldIg, matcher.Matches(tt.path))
		})
	}
}

func TestLoadMatcher_NoFile(t *testing.T) {
	matcher, err := LoadMatcher(t.TempDir())
	require.NoError(t, err)
	assert.True(t, matcher.Matches(".DS_Store"))
	assert.False(t, matcher.Matches("a.csv"))
}

func TestMatcher_Nil(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Matches("anything"))
}

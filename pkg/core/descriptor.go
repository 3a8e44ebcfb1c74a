package core

import (
	"net/url"
	"path"
	"strings"

	"datafold/pkg/types"
)

// FileDescriptor 描述 RawDataset 的一个源文件
// 字段名与注册表记录 (url_list 条目) 保持一致
type FileDescriptor struct {
	// URL 是远程来源 (http/https/s3)。为空表示文件已经在本地
	URL string `json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty" cbor:"url,omitempty"`

	HashType  types.HashType `json:"hash_type" yaml:"hash_type" toml:"hash_type" cbor:"hash_type"`
	HashValue string         `json:"hash_value,omitempty" yaml:"hash_value,omitempty" toml:"hash_value,omitempty" cbor:"hash_value,omitempty"`

	FileName string     `json:"file_name,omitempty" yaml:"file_name,omitempty" toml:"file_name,omitempty" cbor:"file_name,omitempty"`
	Role     types.Role `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty" cbor:"name,omitempty"`

	// Contents 内联文本，仅用于 AddMetadata 添加的 DESCR/LICENSE 条目
	Contents string `json:"contents,omitempty" yaml:"contents,omitempty" toml:"contents,omitempty" cbor:"contents,omitempty"`
}

// IsRemote 判断该文件是否需要从远程获取
func (d FileDescriptor) IsRemote() bool { return d.URL != "" }

// Name 返回本地文件名：优先使用 FileName，否则取 URL 的最后一段
func (d FileDescriptor) Name() string {
	if d.FileName != "" {
		return d.FileName
	}
	if d.URL == "" {
		return ""
	}
	if u, err := url.Parse(d.URL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	// 兜底：不可解析的 URL 直接按 '/' 切分
	parts := strings.Split(strings.TrimRight(d.URL, "/"), "/")
	return parts[len(parts)-1]
}

// EffectiveHashType 空值按默认算法处理
func (d FileDescriptor) EffectiveHashType() types.HashType {
	if d.HashType == "" {
		return types.DefaultHashType
	}
	return d.HashType
}

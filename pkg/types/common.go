// pkg/types/common.go
package types

import "fmt"

// Hash 代表一个十六进制摘要 (Fingerprint 或内容哈希)
// 这是一个“值对象”，应当是不可变的。
type Hash string

func (h Hash) String() string { return string(h) }
func (h Hash) IsZero() bool   { return h == "" }

// Short 返回前 8 位，用于日志和 CLI 展示
func (h Hash) Short() string {
	if len(h) <= 8 {
		return string(h)
	}
	return string(h[:8])
}

// HashType 选择摘要算法
type HashType string

const (
	SHA1   HashType = "sha1"
	MD5    HashType = "md5"
	SHA256 HashType = "sha256"

	DefaultHashType = SHA1
)

func (t HashType) String() string { return string(t) }

func (t HashType) IsValid() bool {
	switch t {
	case SHA1, MD5, SHA256:
		return true
	}
	return false
}

// HexLen 返回该算法输出的十六进制长度
func (t HashType) HexLen() int {
	switch t {
	case MD5:
		return 32
	case SHA1:
		return 40
	case SHA256:
		return 64
	}
	return 0
}

// ParseHashType 解析用户输入，空字符串返回默认算法
func ParseHashType(s string) (HashType, error) {
	if s == "" {
		return DefaultHashType, nil
	}
	t := HashType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unsupported hash type %q (want sha1, md5 or sha256)", s)
	}
	return t, nil
}

// Role 描述一个源文件的用途
// DESCR / LICENSE 是保留值，会被提取为 Dataset 的元数据
type Role string

const (
	RoleDescr   Role = "DESCR"
	RoleLicense Role = "LICENSE"
)

// MetadataKey 返回保留角色对应的元数据字段名，非保留角色返回 false
func (r Role) MetadataKey() (string, bool) {
	switch r {
	case RoleDescr:
		return "descr", true
	case RoleLicense:
		return "license", true
	}
	return "", false
}

// FileSuffix 返回保留角色在原始目录下的默认文件后缀
func (r Role) FileSuffix() (string, bool) {
	switch r {
	case RoleDescr:
		return ".readme", true
	case RoleLicense:
		return ".license", true
	}
	return "", false
}

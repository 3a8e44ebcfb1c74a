package core

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"reflect"

	"datafold/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

// 规范化 (Canonical) CBOR 编码选项
// Fingerprint 和内容哈希都建立在这个编码之上，所以它必须是确定性的
var encOptions = cbor.EncOptions{
	// 1. 强制 Map Key 排序 (Canonical)
	// 保证相同的对象生成唯一的 Hash，与 map 遍历顺序无关
	Sort: cbor.SortCanonical,

	// 2. 浮点数使用最短无损表示
	// float32(1.5) 和 float64(1.5) 编码结果相同，payload 经过 dump/load 往返后哈希不变
	ShortestFloat: cbor.ShortestFloat16,

	// 3. 时间格式化为 Unix 整数，禁止 Tag 0/1
	Time:    cbor.TimeUnix,
	TimeTag: cbor.EncTagNone,

	// 4. 禁止不定长编码
	IndefLength: cbor.IndefLengthForbidden,

	// 5. nil slice/map 与空容器等价
	// 否则 "未绑定参数" 和 "绑定了空参数列表" 会得到不同的 Fingerprint
	NilContainers: cbor.NilContainerAsEmpty,

	BigIntConvert: cbor.BigIntConvertShortest,
}

var em, _ = encOptions.EncMode()

var decOptions = cbor.DecOptions{
	// --- 安全性配置 ---
	// payload 可能很大，这里只限制嵌套深度，容器大小放宽到库允许的范围
	MaxArrayElements: 1 << 28,
	MaxMapPairs:      1 << 28,
	MaxNestedLevels:  256,

	IndefLength: cbor.IndefLengthForbidden,
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,
	TimeTag:     cbor.DecTagIgnored,

	// 解码到 any 时使用 map[string]any，而不是 map[any]any
	// 这样元数据可以直接被 JSON / gRPC 层消费
	DefaultMapType: reflect.TypeOf(map[string]any(nil)),
}

var dm, _ = decOptions.DecMode()

// anyKeyDM 解码到 any 时使用 map[any]any
// payload 里可能有非字符串 key 的 map (例如 map[int]string)
var anyKeyDM, _ = func() cbor.DecOptions {
	o := decOptions
	o.DefaultMapType = nil
	return o
}().DecMode()

// Marshal 以规范化形式编码任意值
func Marshal(v any) ([]byte, error) {
	data, err := em.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal object: %w", err)
	}
	return data, nil
}

// DecodeObject 通用的解码函数 (供外部使用)
// 优先把 map 解码为 map[string]any；遇到非字符串 key 时整体退回 map[any]any
func DecodeObject(data []byte, v any) error {
	err := dm.Unmarshal(data, v)
	var typeErr *cbor.UnmarshalTypeError
	if err == nil || !errors.As(err, &typeErr) {
		return err
	}
	return anyKeyDM.Unmarshal(data, v)
}

// StringKeys 把值中的 map[any]any 递归转换为 map[string]any (key 取 fmt.Sprint)
// encoding/json 不接受非字符串 key，导出和 gRPC 层在编码前调用它
func StringKeys(v any) any {
	switch x := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = StringKeys(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = StringKeys(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = StringKeys(val)
		}
		return out
	}
	return v
}

// NewHasher 返回对应算法的 hash.Hash
func NewHasher(t types.HashType) (hash.Hash, error) {
	switch t {
	case types.SHA1:
		return sha1.New(), nil
	case types.MD5:
		return md5.New(), nil
	case types.SHA256:
		return sha256.New(), nil
	}
	return nil, fmt.Errorf("unsupported hash type %q", t)
}

// HashBytes 计算原始字节的摘要
func HashBytes(data []byte, t types.HashType) (types.Hash, error) {
	h, err := NewHasher(t)
	if err != nil {
		return "", err
	}
	h.Write(data)
	return types.Hash(hex.EncodeToString(h.Sum(nil))), nil
}

// HashValue 对值的规范化编码求摘要
// 相同的值 (无论 map 插入顺序) 永远得到相同的结果
func HashValue(v any, t types.HashType) (types.Hash, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return HashBytes(data, t)
}

// HashReader 流式计算摘要，不把整个文件读进内存
func HashReader(r io.Reader, t types.HashType) (types.Hash, error) {
	h, err := NewHasher(t)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash stream: %w", err)
	}
	return types.Hash(hex.EncodeToString(h.Sum(nil))), nil
}

// HashFile 计算本地文件的摘要
func HashFile(path string, t types.HashType) (types.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return HashReader(f, t)
}

// ToMap 把一个可编码的结构体投影为规范化的 map
// 字段名取自 cbor tag，所以和落盘/注册表里的键名一致
func ToMap(v any) (map[string]any, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := DecodeObject(data, &out); err != nil {
		return nil, fmt.Errorf("failed to project %T to map: %w", v, err)
	}
	return out, nil
}

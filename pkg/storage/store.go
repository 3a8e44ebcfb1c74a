package storage

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound    = errors.New("object not found")
	ErrInvalidName = errors.New("invalid object name")
)

// Store 是产物存储后端的抽象
// 对象按名字寻址 (例如 "<fingerprint>.metadata")，实现可以是本地磁盘、S3，或者带缓存的装饰器
type Store interface {
	// Put 写入对象，已存在时覆盖
	// 实现必须保证读者要么看到旧内容，要么看到完整的新内容
	Put(ctx context.Context, name string, data []byte) error

	// Get 读取对象；不存在时返回 ErrNotFound
	// 返回 io.ReadCloser 以支持大 payload 的流式读取
	Get(ctx context.Context, name string) (io.ReadCloser, error)

	// Has 检查对象是否存在
	Has(ctx context.Context, name string) (bool, error)

	// List 返回所有以 suffix 结尾的对象名 (已排序)
	List(ctx context.Context, suffix string) ([]string, error)

	// Delete 删除对象，不存在时不报错
	Delete(ctx context.Context, name string) error
}

// ReadAll 是 Get + io.ReadAll 的便捷封装
func ReadAll(ctx context.Context, s Store, name string) ([]byte, error) {
	rc, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

package disk

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"datafold/pkg/storage"
)

// Adapter 实现了 storage.Store 接口
// 所有对象平铺在同一个目录下：<root>/<key>.metadata, <root>/<key>.dataset
type Adapter struct {
	rootPath string // 比如: data/processed
}

// NewAdapter 创建一个新的磁盘存储适配器
func NewAdapter(root string) (*Adapter, error) {
	// 确保根目录存在
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage dir: %w", err)
	}
	return &Adapter{rootPath: root}, nil
}

func (s *Adapter) Root() string { return s.rootPath }

// layout 返回对象对应的物理路径
// 名字里不允许出现路径分隔符，防止写出根目录
func (s *Adapter) layout(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", storage.ErrInvalidName, name)
	}
	return filepath.Join(s.rootPath, name), nil
}

func (s *Adapter) Put(ctx context.Context, name string, data []byte) error {
	targetPath, err := s.layout(name)
	if err != nil {
		return err
	}

	// 1. 准备目录 (根目录可能在运行期间被删除)
	if err := os.MkdirAll(s.rootPath, 0755); err != nil {
		return err
	}

	// 2. 原子写入 (Atomic Write)
	// 先写到一个临时文件，然后 Rename。
	// 这样保证要么是旧文件，要么是完整的新文件，读者不会看到写了一半的记录。
	tempFile, err := os.CreateTemp(s.rootPath, ".tmp-*")
	if err != nil {
		return err
	}
	// 如果成功 Rename 了，这个删除会失败，无害
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil { // 必须先关闭才能 Rename
		return err
	}

	// 3. 移动到最终位置 (覆盖旧对象)
	if err := os.Rename(tempFile.Name(), targetPath); err != nil {
		return err
	}
	return nil
}

func (s *Adapter) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	targetPath, err := s.layout(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(targetPath)
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Adapter) Has(ctx context.Context, name string) (bool, error) {
	targetPath, err := s.layout(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(targetPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *Adapter) List(ctx context.Context, suffix string) ([]string, error) {
	entries, err := os.ReadDir(s.rootPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.rootPath, err)
	}

	var names []string
	for _, e := range entries {
		// 跳过目录和未完成的临时文件
		if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		if strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Adapter) Delete(ctx context.Context, name string) error {
	targetPath, err := s.layout(name)
	if err != nil {
		return err
	}
	if err := os.Remove(targetPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

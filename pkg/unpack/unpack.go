// Package unpack extracts fetched source files into a working directory.
package unpack

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"datafold/pkg/ignore"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var ErrUnsafePath = errors.New("archive entry escapes destination")

// Unpacker 把一个本地文件解包到目标目录
// 损坏的归档必须返回错误，不能吞掉
type Unpacker interface {
	Unpack(ctx context.Context, file, dest string) error
}

// Kind 是按文件名识别出的格式
type Kind int

const (
	KindPlain Kind = iota
	KindZip
	KindTar
	KindTarGz
	KindTarZst
	KindTarBz2
	KindGz
	KindZst
	KindBz2
)

var kindNames = map[Kind]string{
	KindPlain: "plain", KindZip: "zip", KindTar: "tar", KindTarGz: "tar.gz",
	KindTarZst: "tar.zst", KindTarBz2: "tar.bz2", KindGz: "gz", KindZst: "zst", KindBz2: "bz2",
}

func (k Kind) String() string { return kindNames[k] }

// suffixes 按长度优先匹配，".tar.gz" 必须排在 ".gz" 前面
var suffixes = []struct {
	suffix string
	kind   Kind
}{
	{".tar.gz", KindTarGz},
	{".tar.zst", KindTarZst},
	{".tar.bz2", KindTarBz2},
	{".tgz", KindTarGz},
	{".tzst", KindTarZst},
	{".tbz2", KindTarBz2},
	{".zip", KindZip},
	{".tar", KindTar},
	{".gz", KindGz},
	{".zst", KindZst},
	{".bz2", KindBz2},
}

// Detect 根据文件名判断格式，未知扩展名按普通文件处理
func Detect(name string) (Kind, string) {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.kind, name[:len(name)-len(s.suffix)]
		}
	}
	return KindPlain, name
}

type Options struct {
	// Ignore 过滤归档条目，为 nil 时使用默认规则
	Ignore *ignore.Matcher
	Logger *slog.Logger
}

// Archive 是默认的 Unpacker
type Archive struct {
	ignore *ignore.Matcher
	logger *slog.Logger
}

var _ Unpacker = (*Archive)(nil)

func New(opts Options) *Archive {
	m := opts.Ignore
	if m == nil {
		m = ignore.NewMatcher()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{ignore: m, logger: logger}
}

func (a *Archive) Unpack(ctx context.Context, file, dest string) error {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}
	kind, stem := Detect(filepath.Base(file))
	a.logger.Debug("unpacking", "file", file, "kind", kind, "dest", dest)

	switch kind {
	case KindZip:
		return a.unzip(ctx, file, dest)
	case KindPlain:
		return copyFile(file, filepath.Join(dest, filepath.Base(file)))
	}

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	switch kind {
	case KindTarGz, KindGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("unpack %s: %w", file, err)
		}
		defer gz.Close()
		r = gz
	case KindTarZst, KindZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("unpack %s: %w", file, err)
		}
		defer zr.Close()
		r = zr
	case KindTarBz2, KindBz2:
		r = bzip2.NewReader(f)
	}

	switch kind {
	case KindTar, KindTarGz, KindTarZst, KindTarBz2:
		if err := a.untar(ctx, r, dest); err != nil {
			return fmt.Errorf("unpack %s: %w", file, err)
		}
		return nil
	}

	// 单文件压缩：输出名去掉压缩后缀
	if err := writeFile(filepath.Join(dest, filepath.Base(stem)), r, 0644); err != nil {
		return fmt.Errorf("unpack %s: %w", file, err)
	}
	return nil
}

func (a *Archive) untar(ctx context.Context, r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		// 每个条目之间检查取消
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("next tar entry: %w", err)
		}

		target, skip, err := a.resolve(dest, hdr.Name)
		if err != nil {
			return err
		}
		if skip {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()|0200); err != nil {
				return err
			}
		default:
			// 链接和设备文件不落地
			a.logger.Debug("skipping non-regular tar entry", "name", hdr.Name, "type", string(hdr.Typeflag))
		}
	}
}

func (a *Archive) unzip(ctx context.Context, file, dest string) error {
	zr, err := zip.OpenReader(file)
	if err != nil {
		return fmt.Errorf("unpack %s: %w", file, err)
	}
	defer zr.Close()

	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, skip, err := a.resolve(dest, zf.Name)
		if err != nil {
			return err
		}
		if skip {
			continue
		}

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if !zf.Mode().IsRegular() {
			continue
		}

		rc, err := zf.Open()
		if err != nil {
			return fmt.Errorf("unpack %s: %s: %w", file, zf.Name, err)
		}
		err = writeFile(target, rc, zf.Mode().Perm()|0200)
		rc.Close()
		if err != nil {
			return fmt.Errorf("unpack %s: %s: %w", file, zf.Name, err)
		}
	}
	return nil
}

// resolve 把归档内路径转换为 dest 下的路径
// 绝对路径会被当作相对路径处理，".." 逃逸直接报错 (zip-slip)
func (a *Archive) resolve(dest, name string) (string, bool, error) {
	p := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return "", true, nil
	}
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", false, fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	if a.ignore.Matches(p) {
		a.logger.Debug("ignoring archive entry", "name", name)
		return "", true, nil
	}
	return filepath.Join(dest, filepath.FromSlash(p)), false, nil
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func copyFile(src, dst string) error {
	// 源和目标相同 (raw 目录即解包目录) 时无需复制
	if absSrc, err := filepath.Abs(src); err == nil {
		if absDst, err := filepath.Abs(dst); err == nil && absSrc == absDst {
			return nil
		}
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return writeFile(dst, in, 0644)
}

// Package fetch materializes FileDescriptors into a local directory and
// verifies their content hashes.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"datafold/pkg/core"
	"datafold/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	ErrNoFileName        = errors.New("cannot determine file name")
	ErrMissingLocalFile  = errors.New("local file not found")
)

// Result 是一次 fetch 的结果
type Result struct {
	Path string
	// Hash 是落地文件实际计算出的摘要
	Hash types.Hash
	// Downloaded 为 false 表示本地已有匹配的文件，跳过了下载
	Downloaded bool
}

// Fetcher 把一个 FileDescriptor 变成 dir 下一个经过校验的本地文件
type Fetcher interface {
	Fetch(ctx context.Context, fd core.FileDescriptor, dir string) (Result, error)
}

// S3Getter 是 fetch 需要的 S3 能力子集，*s3.Client 满足该接口
type S3Getter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Options struct {
	// Timeout 是单个 HTTP 请求的超时，0 表示不限
	Timeout    time.Duration
	HTTPClient *http.Client
	// S3 为 nil 时 s3:// 源不可用
	S3     S3Getter
	Logger *slog.Logger
}

// Client 是默认的 Fetcher 实现：http(s)、s3、file 以及内联内容
type Client struct {
	http   *http.Client
	s3     S3Getter
	logger *slog.Logger
}

var _ Fetcher = (*Client)(nil)

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{http: hc, s3: opts.S3, logger: logger}
}

func (c *Client) Fetch(ctx context.Context, fd core.FileDescriptor, dir string) (Result, error) {
	name := fd.Name()
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return Result{}, fmt.Errorf("%w: %+v", ErrNoFileName, fd)
	}
	target := filepath.Join(dir, name)
	ht := fd.EffectiveHashType()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return Result{}, err
	}

	switch {
	// 1. 内联内容 (DESCR / LICENSE)
	case fd.Contents != "":
		return c.materialize(target, fd, ht, func(w io.Writer) error {
			_, err := io.WriteString(w, fd.Contents)
			return err
		})

	// 2. 纯本地文件：只校验，不复制
	case !fd.IsRemote():
		h, err := core.HashFile(target, ht)
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("%w: %s", ErrMissingLocalFile, target)
		}
		if err != nil {
			return Result{}, err
		}
		if err := verify(fd, h); err != nil {
			return Result{}, err
		}
		return Result{Path: target, Hash: h}, nil
	}

	// 3. 远程文件：本地已有且哈希匹配时跳过下载
	if fd.HashValue != "" {
		if h, err := core.HashFile(target, ht); err == nil && string(h) == fd.HashValue {
			c.logger.Debug("file already present, skipping download", "file", name, "hash", h.Short())
			return Result{Path: target, Hash: h}, nil
		}
	}

	u, err := url.Parse(fd.URL)
	if err != nil {
		return Result{}, fmt.Errorf("invalid url %q: %w", fd.URL, err)
	}

	c.logger.Info("downloading", "url", fd.URL, "file", name)
	res, err := c.materialize(target, fd, ht, func(w io.Writer) error {
		return c.download(ctx, u, w)
	})
	if err != nil {
		return Result{}, err
	}
	res.Downloaded = true
	return res, nil
}

// materialize 把 write 产生的字节写入临时文件并边写边哈希
// 校验通过后才 Rename 到目标位置，失败时不会留下半个文件
func (c *Client) materialize(target string, fd core.FileDescriptor, ht types.HashType, write func(io.Writer) error) (Result, error) {
	hasher, err := core.NewHasher(ht)
	if err != nil {
		return Result{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".fetch-*")
	if err != nil {
		return Result{}, err
	}
	defer os.Remove(tmp.Name())

	if err := write(io.MultiWriter(tmp, hasher)); err != nil {
		tmp.Close()
		return Result{}, err
	}
	if err := tmp.Close(); err != nil {
		return Result{}, err
	}

	h := types.Hash(fmt.Sprintf("%x", hasher.Sum(nil)))
	if err := verify(fd, h); err != nil {
		return Result{}, err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return Result{}, err
	}
	return Result{Path: target, Hash: h}, nil
}

func (c *Client) download(ctx context.Context, u *url.URL, w io.Writer) error {
	switch u.Scheme {
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("download %s: %w", u, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("download %s: unexpected status %s", u, resp.Status)
		}
		_, err = io.Copy(w, resp.Body)
		return err

	case "s3":
		if c.s3 == nil {
			return fmt.Errorf("%w: s3 (no s3 client configured)", ErrUnsupportedScheme)
		}
		out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(u.Host),
			Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
		})
		if err != nil {
			return fmt.Errorf("download %s: %w", u, err)
		}
		defer out.Body.Close()
		_, err = io.Copy(w, out.Body)
		return err

	case "file":
		f, err := os.Open(u.Path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
}

// verify 没有声明期望哈希时只记录实际值
func verify(fd core.FileDescriptor, actual types.Hash) error {
	if fd.HashValue == "" || strings.EqualFold(fd.HashValue, string(actual)) {
		return nil
	}
	return fmt.Errorf("%w: %s (expected %s, got %s)", core.ErrHashMismatch, fd.Name(), fd.HashValue, actual)
}

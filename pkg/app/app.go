// pkg/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"datafold/pkg/artifact"
	"datafold/pkg/core"
	"datafold/pkg/fetch"
	"datafold/pkg/ignore"
	"datafold/pkg/meta"
	"datafold/pkg/pipeline"
	"datafold/pkg/registry"
	"datafold/pkg/storage"
	"datafold/pkg/storage/cache"
	"datafold/pkg/storage/disk"
	s3store "datafold/pkg/storage/s3"
	"datafold/pkg/transforms"
	"datafold/pkg/types"
	"datafold/pkg/unpack"

	"github.com/spf13/viper"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有“单例”服务，CLI 和 gRPC 服务端共用
type App struct {
	Logger *slog.Logger
	Paths  pipeline.Paths

	Store      storage.Store   // 产物后端 (disk / s3，可选 redis 装饰)
	Cache      *artifact.Store // 产物缓存
	Registry   registry.Registry
	Repository *meta.Repository // 仅 registry.type=sql 时非空

	Fetcher    *fetch.Client
	Unpacker   *unpack.Archive
	Transforms *core.Registry
	HashType   types.HashType

	closers []io.Closer
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	logger, err := NewLogger(viper.GetString("log.level"), viper.GetString("log.format"), os.Stderr)
	if err != nil {
		return nil, err
	}

	// 1. 目录 (Single Source of Truth)
	paths := pipeline.Paths{
		Raw:       viper.GetString("paths.raw"),
		Interim:   viper.GetString("paths.interim"),
		Processed: viper.GetString("paths.processed"),
	}
	if paths.Raw == "" || paths.Interim == "" || paths.Processed == "" {
		return nil, fmt.Errorf("paths.raw, paths.interim and paths.processed must be set")
	}

	hashType, err := types.ParseHashType(viper.GetString("hash.type"))
	if err != nil {
		return nil, fmt.Errorf("invalid hash.type: %w", err)
	}

	a := &App{Logger: logger, Paths: paths, HashType: hashType}

	// 2. 初始化存储层 (Dependency Injection)
	store, err := initStore(ctx, paths.Processed)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	a.Store = store
	a.Cache = artifact.NewStore(store, logger)

	// 3. 初始化注册表
	reg, db, err := initRegistry(ctx, paths.Raw)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to init registry: %w", err)
	}
	a.Registry = reg
	if db != nil {
		a.closers = append(a.closers, db)
		a.Repository = meta.NewRepository(db)
		a.Registry = a.Repository
	}

	// 4. 流水线协作者
	fetchOpts := fetch.Options{Timeout: viper.GetDuration("fetch.timeout"), Logger: logger}
	if client, err := s3store.NewClient(ctx, s3Config()); err == nil {
		fetchOpts.S3 = client
	} else {
		logger.Warn("s3 client unavailable, s3:// sources disabled", "error", err)
	}
	a.Fetcher = fetch.New(fetchOpts)

	matcher, err := ignore.LoadMatcher(paths.Raw)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load %s: %w", ignore.FileName, err)
	}
	a.Unpacker = unpack.New(unpack.Options{Ignore: matcher, Logger: logger})
	a.Transforms = transforms.NewRegistry()

	return a, nil
}

// Env 返回流水线使用的协作者集合
func (a *App) Env() *pipeline.Env {
	env := &pipeline.Env{
		Fetcher:    a.Fetcher,
		Unpacker:   a.Unpacker,
		Transforms: a.Transforms,
		Cache:      a.Cache,
		Registry:   a.Registry,
		Paths:      a.Paths,
		HashType:   a.HashType,
		Logger:     a.Logger,
	}
	if a.Repository != nil {
		env.Index = a.Repository
	}
	return env
}

// Close 释放数据库连接和 Redis 客户端
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func s3Config() s3store.Config {
	return s3store.Config{
		Endpoint:        viper.GetString("s3.endpoint"),
		Region:          viper.GetString("s3.region"),
		Bucket:          viper.GetString("s3.bucket"),
		Prefix:          viper.GetString("s3.prefix"),
		AccessKeyID:     viper.GetString("s3.access_key"),
		SecretAccessKey: viper.GetString("s3.secret_key"),
	}
}

// initStore 按 storage.type 选择产物后端，配置了 redis.url 时加一层缓存
func initStore(ctx context.Context, processed string) (storage.Store, error) {
	var backend storage.Store
	switch typ := viper.GetString("storage.type"); typ {
	case "", "disk":
		path := viper.GetString("storage.path")
		if path == "" {
			path = processed
		}
		store, err := disk.NewAdapter(path)
		if err != nil {
			return nil, err
		}
		backend = store
	case "s3":
		store, err := s3store.NewAdapter(ctx, s3Config())
		if err != nil {
			return nil, err
		}
		backend = store
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", typ)
	}

	redisURL := viper.GetString("redis.url")
	if redisURL == "" {
		return backend, nil
	}
	return cache.NewCachedStore(backend, cache.Config{
		RedisURL:  redisURL,
		TTL:       viper.GetDuration("redis.ttl"),
		KeyPrefix: viper.GetString("redis.prefix"),
	})
}

// initRegistry 按 registry.type 选择注册表后端
// sql 后端返回的 *meta.DB 由调用方负责关闭
func initRegistry(ctx context.Context, raw string) (registry.Registry, *meta.DB, error) {
	switch typ := viper.GetString("registry.type"); typ {
	case "", "file":
		path := viper.GetString("registry.path")
		if path == "" {
			path = filepath.Join(raw, registry.DefaultFileName)
		}
		reg, err := registry.NewFileRegistry(path)
		if err != nil {
			return nil, nil, err
		}
		return reg, nil, nil
	case "sql":
		db, err := meta.NewDB(ctx, meta.Config{
			Driver:   viper.GetString("database.driver"),
			Host:     viper.GetString("database.host"),
			Port:     viper.GetInt("database.port"),
			User:     viper.GetString("database.user"),
			Password: viper.GetString("database.password"),
			DBName:   viper.GetString("database.dbname"),
			SSLMode:  viper.GetString("database.sslmode"),
			Path:     viper.GetString("database.path"),
			Debug:    viper.GetBool("database.debug"),
		})
		if err != nil {
			return nil, nil, err
		}
		return nil, db, nil
	default:
		return nil, nil, fmt.Errorf("unsupported registry type: %s", typ)
	}
}

// Package pipeline drives a raw dataset through fetch, unpack and process,
// caching the processed artifact under its fingerprint.
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"datafold/pkg/artifact"
	"datafold/pkg/core"
	"datafold/pkg/fetch"
	"datafold/pkg/registry"
	"datafold/pkg/types"
	"datafold/pkg/unpack"
)

var (
	ErrFetchFailed   = errors.New("fetch did not complete")
	ErrNoRegistry    = errors.New("no raw dataset registry configured")
	ErrUnknownAction = errors.New("unknown action")
)

// Paths 是流水线使用的目录，全部来自配置
type Paths struct {
	Raw       string // 原始文件 (fetch 目标)
	Interim   string // 解包目录的父目录
	Processed string // 产物缓存
}

// ArtifactIndexer 在产物写入缓存后接收它的元数据 (可选)
type ArtifactIndexer interface {
	IndexArtifact(ctx context.Context, key string, metadata map[string]any) error
}

// Env 汇集 RawDataset 依赖的协作者
type Env struct {
	Fetcher    fetch.Fetcher
	Unpacker   unpack.Unpacker
	Transforms *core.Registry
	Cache      *artifact.Store
	Registry   registry.Registry // FromRaw / 批处理需要
	Index      ArtifactIndexer   // 可选
	Paths      Paths
	HashType   types.HashType
	Logger     *slog.Logger
}

func (e *Env) validate() error {
	switch {
	case e == nil:
		return errors.New("pipeline: nil env")
	case e.Fetcher == nil:
		return errors.New("pipeline: env has no fetcher")
	case e.Unpacker == nil:
		return errors.New("pipeline: env has no unpacker")
	case e.Transforms == nil:
		return errors.New("pipeline: env has no transform registry")
	case e.Cache == nil:
		return errors.New("pipeline: env has no artifact cache")
	}
	return nil
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Env) hashType() types.HashType {
	if e.HashType == "" {
		return types.DefaultHashType
	}
	return e.HashType
}

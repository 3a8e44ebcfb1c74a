package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"

	dfoldrpc "datafold/pkg/api/dfoldrpc/v1"
	"datafold/pkg/app"
	"datafold/pkg/artifact"
	"datafold/pkg/client"
	"datafold/pkg/fetch"
	"datafold/pkg/meta"
	"datafold/pkg/pipeline"
	"datafold/pkg/server"
	"datafold/pkg/storage/disk"
	"datafold/pkg/transforms"
	"datafold/pkg/types"
	"datafold/pkg/unpack"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const irisCSV = "a,b,label\n1,2,x\n3,4,y\n"

// setupTestApp 是所有 Service 测试共享的基础设施初始化逻辑
// 注册表使用内存 sqlite，同时充当产物索引
func setupTestApp(t *testing.T) *app.App {
	t.Helper()
	tmpDir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	paths := pipeline.Paths{
		Raw:       filepath.Join(tmpDir, "raw"),
		Interim:   filepath.Join(tmpDir, "interim"),
		Processed: filepath.Join(tmpDir, "processed"),
	}
	require.NoError(t, os.MkdirAll(paths.Raw, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(paths.Raw, "iris.csv"), []byte(irisCSV), 0644))

	// 1. Store
	store, err := disk.NewAdapter(paths.Processed)
	require.NoError(t, err)

	// 2. DB & Meta
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	metaDB := meta.NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(meta.Models()...))
	repo := meta.NewRepository(metaDB)

	return &app.App{
		Logger:     log,
		Paths:      paths,
		Store:      store,
		Cache:      artifact.NewStore(store, log),
		Registry:   repo,
		Repository: repo,
		Fetcher:    fetch.New(fetch.Options{Logger: log}),
		Unpacker:   unpack.New(unpack.Options{Logger: log}),
		Transforms: transforms.NewRegistry(),
		HashType:   types.SHA1,
	}
}

// irisRecord 是 AddRawDataset 的请求体
func irisRecord(t *testing.T) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(map[string]any{
		"name":         "iris",
		"url_list":     []any{map[string]any{"file_name": "iris.csv"}},
		"function_id":  "csv",
		"bound_args":   []any{"iris.csv"},
		"bound_kwargs": map[string]any{"target": "label"},
	})
	require.NoError(t, err)
	return s
}

// setupTestClient 启动一个基于 bufconn 的完整服务端，返回连接好的客户端
func setupTestClient(t *testing.T) (*client.DFClient, *app.App) {
	t.Helper()
	application := setupTestApp(t)

	lis := bufconn.Listen(1 << 20)
	srv := server.New(application.Logger)
	dfoldrpc.RegisterDatasetServiceServer(srv, NewDatasetService(application))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := client.NewDFClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, application
}

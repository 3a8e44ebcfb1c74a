package service

import (
	"context"
	"errors"
	"log/slog"

	dfoldrpc "datafold/pkg/api/dfoldrpc/v1"
	"datafold/pkg/app"
	"datafold/pkg/core"
	"datafold/pkg/exporter"
	"datafold/pkg/pipeline"
	"datafold/pkg/registry"
	"datafold/pkg/storage"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// DatasetService 把流水线和产物缓存暴露为 gRPC 服务
type DatasetService struct {
	dfoldrpc.UnimplementedDatasetServiceServer
	app *app.App
	env *pipeline.Env
}

func NewDatasetService(application *app.App) *DatasetService {
	return &DatasetService{
		app: application,
		env: application.Env(),
	}
}

func (s *DatasetService) ListRawDatasets(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	names, err := pipeline.AvailableRawDatasets(ctx, s.env)
	if err != nil {
		return nil, toStatus(err)
	}
	list := make([]any, len(names))
	for i, n := range names {
		list[i] = n
	}
	return toStruct(map[string]any{dfoldrpc.FieldNames: list})
}

// AddRawDataset 校验定义 (包括 transform 能否解析) 后写入注册表
func (s *DatasetService) AddRawDataset(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	// 1. DTO -> Record
	var rec registry.Record
	if err := fromStruct(req, &rec); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "malformed record: %v", err)
	}
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	// 2. 构造一次 RawDataset，提前暴露无法解析的 transform
	raw, err := pipeline.NewRawDataset(rec, s.env)
	if err != nil {
		return nil, toStatus(err)
	}

	// 3. 持久化
	if err := pipeline.AddRawDataset(ctx, s.env, raw); err != nil {
		return nil, toStatus(err)
	}
	s.app.Logger.Info("raw dataset added", "dataset", rec.Name)
	return &emptypb.Empty{}, nil
}

func (s *DatasetService) Process(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var pr processRequest
	if err := fromStruct(req, &pr); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	if pr.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	pr.normalize()

	raw, err := pipeline.FromName(ctx, s.env, pr.Name)
	if err != nil {
		return nil, toStatus(err)
	}
	opts := pipeline.ProcessOptions{
		Force:        pr.Force,
		UseDocstring: pr.UseDocstring,
		Args:         pr.Args,
		Metadata:     pr.Metadata,
	}
	ds, err := raw.Process(ctx, opts)
	if err != nil {
		return nil, toStatus(err)
	}
	key, err := raw.CacheKey(opts)
	if err != nil {
		return nil, toStatus(err)
	}

	return toStruct(map[string]any{
		dfoldrpc.FieldKey:      key.String(),
		dfoldrpc.FieldMetadata: ds.Metadata,
	})
}

func (s *DatasetService) GetMetadata(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "key is required")
	}
	meta, err := s.app.Cache.LoadMetadata(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(meta)
}

func (s *DatasetService) ListDatasets(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	all, err := pipeline.AvailableDatasets(ctx, s.env)
	if err != nil {
		return nil, toStatus(err)
	}
	datasets := make(map[string]any, len(all))
	for k, v := range all {
		datasets[k] = v
	}
	return toStruct(map[string]any{dfoldrpc.FieldDatasets: datasets})
}

// Export 把 JSON 导出直接写进响应流
func (s *DatasetService) Export(req *wrapperspb.StringValue, stream grpc.ServerStreamingServer[wrapperspb.BytesValue]) error {
	if req.GetValue() == "" {
		return status.Error(codes.InvalidArgument, "key is required")
	}
	exp := exporter.NewExporter(s.app.Cache)
	if err := exp.ExportJSON(stream.Context(), req.GetValue(), NewGrpcStreamWriter(stream)); err != nil {
		return toStatus(err)
	}
	return nil
}

// toStatus 把领域错误映射为 gRPC 状态码
func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, registry.ErrUnknownDataset), errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, core.ErrNameRequired), errors.Is(err, core.ErrUnknownTransform),
		errors.Is(err, storage.ErrInvalidName):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, pipeline.ErrFetchFailed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, core.ErrHashMismatch):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, pipeline.ErrNoRegistry):
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	slog.Error("internal error", "error", err)
	return status.Error(codes.Internal, err.Error())
}

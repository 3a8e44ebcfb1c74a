// Package dfoldrpc defines the DatasetService wire contract.
//
// Messages are protobuf well-known types: requests and responses that carry
// structured fields use google.protobuf.Struct, keys travel as StringValue and
// exported payloads stream as BytesValue chunks.
package dfoldrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const DatasetService_ServiceName = "datafold.v1.DatasetService"

const (
	DatasetService_ListRawDatasets_FullMethodName = "/datafold.v1.DatasetService/ListRawDatasets"
	DatasetService_AddRawDataset_FullMethodName   = "/datafold.v1.DatasetService/AddRawDataset"
	DatasetService_Process_FullMethodName         = "/datafold.v1.DatasetService/Process"
	DatasetService_GetMetadata_FullMethodName     = "/datafold.v1.DatasetService/GetMetadata"
	DatasetService_ListDatasets_FullMethodName    = "/datafold.v1.DatasetService/ListDatasets"
	DatasetService_Export_FullMethodName          = "/datafold.v1.DatasetService/Export"
)

// Request / response field names
const (
	FieldName         = "name"
	FieldNames        = "names"
	FieldForce        = "force"
	FieldUseDocstring = "use_docstring"
	FieldArgs         = "args"
	FieldMetadata     = "metadata"
	FieldKey          = "key"
	FieldDatasets     = "datasets"
)

// DatasetServiceClient is the client API for DatasetService.
type DatasetServiceClient interface {
	// ListRawDatasets returns {names: [...]}.
	ListRawDatasets(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	// AddRawDataset stores a raw dataset definition (registry record layout).
	AddRawDataset(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	// Process takes {name, force, use_docstring, args, metadata} and returns {key, metadata}.
	Process(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetMetadata(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	// ListDatasets returns {datasets: {key: metadata}}.
	ListDatasets(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	// Export streams the JSON export of a processed dataset.
	Export(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (grpc.ServerStreamingClient[wrapperspb.BytesValue], error)
}

type datasetServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewDatasetServiceClient(cc grpc.ClientConnInterface) DatasetServiceClient {
	return &datasetServiceClient{cc}
}

func (c *datasetServiceClient) ListRawDatasets(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DatasetService_ListRawDatasets_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *datasetServiceClient) AddRawDataset(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, DatasetService_AddRawDataset_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *datasetServiceClient) Process(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DatasetService_Process_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *datasetServiceClient) GetMetadata(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DatasetService_GetMetadata_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *datasetServiceClient) ListDatasets(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DatasetService_ListDatasets_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *datasetServiceClient) Export(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (grpc.ServerStreamingClient[wrapperspb.BytesValue], error) {
	stream, err := c.cc.NewStream(ctx, &DatasetService_ServiceDesc.Streams[0], DatasetService_Export_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[wrapperspb.StringValue, wrapperspb.BytesValue]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// DatasetServiceServer is the server API for DatasetService.
type DatasetServiceServer interface {
	ListRawDatasets(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	AddRawDataset(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Process(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMetadata(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListDatasets(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Export(*wrapperspb.StringValue, grpc.ServerStreamingServer[wrapperspb.BytesValue]) error
	mustEmbedUnimplementedDatasetServiceServer()
}

// UnimplementedDatasetServiceServer must be embedded by implementations.
type UnimplementedDatasetServiceServer struct{}

func (UnimplementedDatasetServiceServer) ListRawDatasets(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListRawDatasets not implemented")
}
func (UnimplementedDatasetServiceServer) AddRawDataset(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method AddRawDataset not implemented")
}
func (UnimplementedDatasetServiceServer) Process(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Process not implemented")
}
func (UnimplementedDatasetServiceServer) GetMetadata(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetMetadata not implemented")
}
func (UnimplementedDatasetServiceServer) ListDatasets(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListDatasets not implemented")
}
func (UnimplementedDatasetServiceServer) Export(*wrapperspb.StringValue, grpc.ServerStreamingServer[wrapperspb.BytesValue]) error {
	return status.Error(codes.Unimplemented, "method Export not implemented")
}
func (UnimplementedDatasetServiceServer) mustEmbedUnimplementedDatasetServiceServer() {}

func RegisterDatasetServiceServer(s grpc.ServiceRegistrar, srv DatasetServiceServer) {
	s.RegisterService(&DatasetService_ServiceDesc, srv)
}

func _DatasetService_ListRawDatasets_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DatasetServiceServer).ListRawDatasets(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DatasetService_ListRawDatasets_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DatasetServiceServer).ListRawDatasets(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _DatasetService_AddRawDataset_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DatasetServiceServer).AddRawDataset(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DatasetService_AddRawDataset_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DatasetServiceServer).AddRawDataset(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _DatasetService_Process_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DatasetServiceServer).Process(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DatasetService_Process_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DatasetServiceServer).Process(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _DatasetService_GetMetadata_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DatasetServiceServer).GetMetadata(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DatasetService_GetMetadata_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DatasetServiceServer).GetMetadata(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _DatasetService_ListDatasets_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DatasetServiceServer).ListDatasets(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DatasetService_ListDatasets_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DatasetServiceServer).ListDatasets(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _DatasetService_Export_Handler(srv any, stream grpc.ServerStream) error {
	m := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(DatasetServiceServer).Export(m, &grpc.GenericServerStream[wrapperspb.StringValue, wrapperspb.BytesValue]{ServerStream: stream})
}

// DatasetService_ServiceDesc is the grpc.ServiceDesc for DatasetService.
var DatasetService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: DatasetService_ServiceName,
	HandlerType: (*DatasetServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListRawDatasets", Handler: _DatasetService_ListRawDatasets_Handler},
		{MethodName: "AddRawDataset", Handler: _DatasetService_AddRawDataset_Handler},
		{MethodName: "Process", Handler: _DatasetService_Process_Handler},
		{MethodName: "GetMetadata", Handler: _DatasetService_GetMetadata_Handler},
		{MethodName: "ListDatasets", Handler: _DatasetService_ListDatasets_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Export", Handler: _DatasetService_Export_Handler, ServerStreams: true},
	},
	Metadata: "datafold/v1/dataset.proto",
}

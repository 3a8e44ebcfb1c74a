package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	dfoldrpc "datafold/pkg/api/dfoldrpc/v1"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// DFClient 封装了与 datafold 服务端的连接
type DFClient struct {
	conn *grpc.ClientConn

	// 公开具体的 Service Client
	Dataset dfoldrpc.DatasetServiceClient
}

// NewDFClient 创建并初始化客户端
// 它只负责创建对象，不等待连接就绪
func NewDFClient(addr string, extra ...grpc.DialOption) (*DFClient, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(64*1024*1024),
			grpc.MaxCallSendMsgSize(64*1024*1024),
		),
		// 保持连接活跃
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	// NewClient 会立即返回，连接在后台进行
	conn, err := grpc.NewClient(addr, append(opts, extra...)...)
	if err != nil {
		// 这里的 err 通常只是配置错误（如地址格式不对）
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", addr, err)
	}

	return &DFClient{
		conn:    conn,
		Dataset: dfoldrpc.NewDatasetServiceClient(conn),
	}, nil
}

// Close 关闭底层连接
func (c *DFClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ListRawDatasets 返回服务端注册表中的名称
func (c *DFClient) ListRawDatasets(ctx context.Context) ([]string, error) {
	resp, err := c.Dataset.ListRawDatasets(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, err
	}
	var names []string
	for _, v := range resp.GetFields()[dfoldrpc.FieldNames].GetListValue().GetValues() {
		names = append(names, v.GetStringValue())
	}
	return names, nil
}

// ProcessRequest 是远程 Process 的参数
type ProcessRequest struct {
	Name         string
	Force        bool
	UseDocstring bool
	Args         map[string]any
	Metadata     map[string]any
}

// Process 在服务端处理数据集，返回缓存键和元数据
func (c *DFClient) Process(ctx context.Context, req ProcessRequest) (string, map[string]any, error) {
	fields := map[string]any{
		dfoldrpc.FieldName:         req.Name,
		dfoldrpc.FieldForce:        req.Force,
		dfoldrpc.FieldUseDocstring: req.UseDocstring,
	}
	if req.Args != nil {
		fields[dfoldrpc.FieldArgs] = req.Args
	}
	if req.Metadata != nil {
		fields[dfoldrpc.FieldMetadata] = req.Metadata
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return "", nil, fmt.Errorf("invalid process request: %w", err)
	}

	resp, err := c.Dataset.Process(ctx, in)
	if err != nil {
		return "", nil, err
	}
	m := resp.AsMap()
	key, _ := m[dfoldrpc.FieldKey].(string)
	meta, _ := m[dfoldrpc.FieldMetadata].(map[string]any)
	return key, meta, nil
}

// GetMetadata 读取一条产物的元数据
func (c *DFClient) GetMetadata(ctx context.Context, key string) (map[string]any, error) {
	resp, err := c.Dataset.GetMetadata(ctx, wrapperspb.String(key))
	if err != nil {
		return nil, err
	}
	return resp.AsMap(), nil
}

// ListDatasets 返回服务端缓存中的产物 key -> 元数据
func (c *DFClient) ListDatasets(ctx context.Context) (map[string]map[string]any, error) {
	resp, err := c.Dataset.ListDatasets(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]any)
	raw, _ := resp.AsMap()[dfoldrpc.FieldDatasets].(map[string]any)
	for k, v := range raw {
		if m, ok := v.(map[string]any); ok {
			out[k] = m
		}
	}
	return out, nil
}

// Export 把服务端的 JSON 导出写入 w
func (c *DFClient) Export(ctx context.Context, key string, w io.Writer) (int64, error) {
	stream, err := c.Dataset.Export(ctx, wrapperspb.String(key))
	if err != nil {
		return 0, err
	}
	return io.Copy(w, NewStreamReader(stream))
}

// ExportStream 定义了 Export 接口所需的最小集合，方便测试 Mock
type ExportStream interface {
	Recv() (*wrapperspb.BytesValue, error)
}

// StreamReader 将 gRPC Export 流包装为 io.Reader
type StreamReader struct {
	stream      ExportStream
	internalBuf []byte // 从 Recv 拿到的、还没被 Read 读走的数据
	err         error  // 流的状态错误 (如 EOF)
}

func NewStreamReader(stream ExportStream) *StreamReader {
	return &StreamReader{stream: stream}
}

// Read 实现了 io.Reader 接口
// 这是一个典型的“缓冲-消费”状态机
func (r *StreamReader) Read(p []byte) (int, error) {
	for len(r.internalBuf) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		msg, err := r.stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				err = fmt.Errorf("export stream: %w", err)
			}
			r.err = err
			continue
		}
		// 空包直接跳过，继续读下一帧
		r.internalBuf = msg.GetValue()
	}

	copied := copy(p, r.internalBuf)
	r.internalBuf = r.internalBuf[copied:]
	return copied, nil
}

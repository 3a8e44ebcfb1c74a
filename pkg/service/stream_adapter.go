package service

import (
	"fmt"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ExportChunkSize 是单个 gRPC 消息携带的最大字节数
const ExportChunkSize = 64 * 1024

// ExportStream 定义了 Export 接口所需的最小集合，方便测试 Mock
type ExportStream interface {
	Send(*wrapperspb.BytesValue) error
}

// GrpcStreamWriter 将 gRPC Export 流包装为 io.Writer
// 供 pkg/exporter 使用
type GrpcStreamWriter struct {
	stream ExportStream
}

func NewGrpcStreamWriter(stream ExportStream) *GrpcStreamWriter {
	return &GrpcStreamWriter{stream: stream}
}

// Write 实现了 io.Writer 接口
// Exporter 每写一块数据，这里按 ExportChunkSize 切分后发送
func (w *GrpcStreamWriter) Write(p []byte) (n int, err error) {
	for len(p) > 0 {
		size := min(len(p), ExportChunkSize)
		// Send 返回前会完成序列化，p 可以被调用方复用
		if err := w.stream.Send(wrapperspb.Bytes(p[:size])); err != nil {
			return n, fmt.Errorf("grpc send failed: %w", err)
		}
		n += size
		p = p[size:]
	}
	return n, nil
}

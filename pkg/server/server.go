package server

import (
	"log/slog"

	"google.golang.org/grpc"
)

// MaxMessageSize 与客户端保持一致
const MaxMessageSize = 64 * 1024 * 1024

// New 创建带有 request id、日志和 panic 恢复拦截器的 gRPC Server
// 顺序：request id 最外层，这样日志和恢复都能拿到 ID
func New(logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = slog.Default()
	}
	base := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(MaxMessageSize),
		grpc.MaxSendMsgSize(MaxMessageSize),
		grpc.ChainUnaryInterceptor(
			UnaryRequestIDInterceptor,
			UnaryLoggingInterceptor(logger),
			UnaryRecoveryInterceptor(logger),
		),
		grpc.ChainStreamInterceptor(
			StreamRequestIDInterceptor,
			StreamLoggingInterceptor(logger),
			StreamRecoveryInterceptor(logger),
		),
	}
	return grpc.NewServer(append(base, opts...)...)
}

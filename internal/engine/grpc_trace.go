package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryTraceInterceptor: gRPC-аналог TracingMiddleware: trace-id из метаданных
// (в gRPC заголовки в нижнем регистре) и лог вызова.
func UnaryTraceInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		traceID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get("x-trace-id"); len(ids) > 0 {
				traceID = ids[0]
			}
		}
		if traceID == "" {
			traceID = uuid.New().String()
		}

		start := time.Now()
		resp, err := handler(WithTraceID(ctx, traceID), req)

		logger.Debug("grpc call",
			zap.String("method", info.FullMethod),
			zap.String("trace_id", traceID),
			zap.String("code", status.Code(err).String()),
			zap.Duration("took", time.Since(start)))
		return resp, err
	}
}

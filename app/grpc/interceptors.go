package grpc

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-grading/app/factory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const requestIDHeader = "x-request-id"

var logger = factory.NewModuleLogger("grpc")

func RecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				loggerWithContext(ctx).WithFields(logrus.Fields{
					"method": info.FullMethod,
					"panic":  r,
					"stack":  string(debug.Stack()),
				}).Error("grpc handler panicked")
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// RequestIDInterceptor carries the caller's x-request-id into the context,
// or generates one, and echoes it back in the response header.
func RequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		requestID := requestIDFromMetadata(ctx)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, requestID))
		return handler(factory.ContextWithRequestID(ctx, requestID), req)
	}
}

func LoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		entry := loggerWithContext(ctx).WithFields(logrus.Fields{
			"method":  info.FullMethod,
			"code":    status.Code(err).String(),
			"latency": time.Since(start).String(),
		})
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Info("grpc_request")
		return resp, err
	}
}

func RequestIDFromContext(ctx context.Context) string {
	return factory.RequestIDFromContext(ctx)
}

func requestIDFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, value := range md.Get(requestIDHeader) {
		if v := strings.TrimSpace(value); v != "" {
			return v
		}
	}
	return ""
}

func loggerWithContext(ctx context.Context) logrus.FieldLogger {
	return factory.LoggerFromContext(ctx, logger)
}

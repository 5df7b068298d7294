package factory

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type requestIDKey struct{}

func NewModuleLogger(module string) logrus.FieldLogger {
	return logrus.WithField("module", module)
}

// LoggerWithContext attaches the request id of an HTTP request.
func LoggerWithContext(logger logrus.FieldLogger, ctx echo.Context) logrus.FieldLogger {
	requestID := strings.TrimSpace(ctx.Response().Header().Get(echo.HeaderXRequestID))
	if requestID == "" {
		requestID = strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
	}
	if requestID == "" {
		return logger
	}
	return logger.WithField("request_id", requestID)
}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// LoggerFromContext attaches the request id carried by a plain context.
func LoggerFromContext(ctx context.Context, logger logrus.FieldLogger) logrus.FieldLogger {
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		return logger.WithField("request_id", requestID)
	}
	return logger
}

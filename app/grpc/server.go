package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewServer builds the gRPC server with the standard interceptor chain and
// registers the health service. Both the overall and the named service start
// as NOT_SERVING until a readiness check passes.
func NewServer(serviceName string) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(),
			RequestIDInterceptor(),
			LoggingInterceptor(),
		),
	)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthSrv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, healthSrv)

	return srv, healthSrv
}

const defaultReadinessTimeout = 5 * time.Second

type ReadinessCheck func(ctx context.Context) error

// WatchReadiness runs check once immediately and then on every tick,
// flipping the health status accordingly, until ctx is done.
func WatchReadiness(ctx context.Context, healthSrv *health.Server, serviceName string, interval time.Duration, check ReadinessCheck) {
	timeout := interval
	if timeout <= 0 {
		timeout = defaultReadinessTimeout
	}

	apply := func() {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		servingStatus := healthpb.HealthCheckResponse_SERVING
		if err := check(checkCtx); err != nil {
			loggerWithContext(ctx).WithError(err).Warn("readiness check failed")
			servingStatus = healthpb.HealthCheckResponse_NOT_SERVING
		}
		healthSrv.SetServingStatus("", servingStatus)
		healthSrv.SetServingStatus(serviceName, servingStatus)
	}

	apply()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			apply()
		}
	}
}

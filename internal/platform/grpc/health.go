package grpc

import (
	"context"
	"errors"
	"time"

	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	healthProbeTimeout = time.Second
	healthPollInitial  = 100 * time.Millisecond
	healthPollMax      = time.Second
)

// WaitForHealth polls the health service until it reports SERVING or the
// context ends. An empty service name probes the server-wide status.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return errors.New("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client := grpc_health_v1.NewHealthClient(conn)
	delay := healthPollInitial
	for {
		probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
		resp, err := client.Check(probeCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		switch {
		case err == nil && resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING:
			if logf != nil {
				logf("gRPC health check is SERVING")
			}
			return nil
		case err != nil:
			if logf != nil {
				logf("waiting for gRPC health: %v", err)
			}
		default:
			if logf != nil {
				logf("waiting for gRPC health: status %s", resp.GetStatus())
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > healthPollMax {
			delay = healthPollMax
		}
	}
}

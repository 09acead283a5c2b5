// Package grpc provides client-side dial helpers that gate on the standard
// gRPC health protocol.
package grpc

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DialStage identifies which phase of DialWithHealth failed.
type DialStage string

const (
	// DialStageConnect marks a transport-level dial failure.
	DialStageConnect DialStage = "connect"
	// DialStageHealth marks a health-probe failure on an open connection.
	DialStageHealth DialStage = "health"
)

// DialError carries the failed stage alongside the cause.
type DialError struct {
	Stage DialStage
	Err   error
}

func (e *DialError) Error() string {
	if e == nil {
		return "gRPC dial error"
	}
	return fmt.Sprintf("gRPC %s error: %v", e.Stage, e.Err)
}

func (e *DialError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func failDial(stage DialStage, err error) error {
	return &DialError{Stage: stage, Err: err}
}

// Dialer abstracts the gRPC dial call so tests can substitute failures.
type Dialer interface {
	DialContext(ctx context.Context, addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error)

// DialContext implements Dialer.
func (fn DialerFunc) DialContext(ctx context.Context, addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
	return fn(ctx, addr, opts...)
}

// DefaultClientDialOptions returns the dial options used for in-cluster
// clients: plaintext transport plus OTel stats handlers so outbound calls
// propagate trace context when a TracerProvider is registered.
func DefaultClientDialOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithBlock(),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// DialWithHealth dials addr and blocks until the server-wide health check
// reports SERVING. The timeout bounds both the dial and the health wait; on
// a health failure the connection is closed before returning.
func DialWithHealth(ctx context.Context, dialer Dialer, addr string, timeout time.Duration, logf func(string, ...any), opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if dialer == nil {
		dialer = DialerFunc(gogrpc.DialContext)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := dialer.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, failDial(DialStageConnect, err)
	}
	if err := WaitForHealth(ctx, conn, "", logf); err != nil {
		_ = conn.Close()
		return nil, failDial(DialStageHealth, err)
	}
	return conn, nil
}

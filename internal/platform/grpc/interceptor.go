package grpc

import (
	"context"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	apperrors "github.com/mdproctor/casemgmt/internal/platform/errors"
)

// localeMetadataKey is the incoming metadata key clients use to request a
// response locale for error messages.
const localeMetadataKey = "accept-language"

// LocaleFromContext returns the locale requested through incoming gRPC
// metadata, or empty when none was sent.
func LocaleFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(localeMetadataKey)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// DomainErrorUnaryInterceptor translates domain errors returned by handlers
// into gRPC statuses with localized user messages.
func DomainErrorUnaryInterceptor() gogrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			return resp, apperrors.HandleError(err, LocaleFromContext(ctx))
		}
		return resp, nil
	}
}

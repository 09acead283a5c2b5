package grpc

import (
	"context"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	apperrors "github.com/mdproctor/casemgmt/internal/platform/errors"
)

func TestLocaleFromContext(t *testing.T) {
	if got := LocaleFromContext(context.Background()); got != "" {
		t.Fatalf("locale without metadata = %q, want empty", got)
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("accept-language", "pt-BR"))
	if got := LocaleFromContext(ctx); got != "pt-BR" {
		t.Fatalf("locale = %q, want pt-BR", got)
	}
}

func TestDomainErrorUnaryInterceptorTranslates(t *testing.T) {
	interceptor := DomainErrorUnaryInterceptor()
	handler := func(context.Context, any) (any, error) {
		return nil, apperrors.WithMetadata(apperrors.CodeCaseNotFound, "case missing", map[string]string{"case_id": "HR-0000000001"})
	}

	_, err := interceptor(context.Background(), nil, nil, handler)
	st, ok := status.FromError(err)
	if !ok {
		t.Fatal("expected a gRPC status")
	}
	if st.Code() != codes.NotFound {
		t.Fatalf("code = %s, want NotFound", st.Code())
	}
}

func TestDomainErrorUnaryInterceptorPassesSuccessThrough(t *testing.T) {
	interceptor := DomainErrorUnaryInterceptor()
	handler := func(context.Context, any) (any, error) {
		return "payload", nil
	}

	resp, err := interceptor(context.Background(), nil, nil, handler)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if resp != "payload" {
		t.Fatalf("resp = %v, want payload", resp)
	}
}

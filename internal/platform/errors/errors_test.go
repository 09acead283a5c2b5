package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	base := New(CodeCaseNotFound, "case HR-0000000001 was not found")
	wrapped := fmt.Errorf("lookup case: %w", WithMetadata(CodeCaseNotFound, "case missing", map[string]string{"case_id": "HR-0000000001"}))

	if !errors.Is(wrapped, base) {
		t.Fatal("expected errors.Is match by code")
	}
	if errors.Is(wrapped, New(CodeCommentNotFound, "comment missing")) {
		t.Fatal("expected mismatch for a different code")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk failure")
	err := Wrap(CodeNotFound, "load record", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected unwrap to reach the cause")
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeCaseNotFound, codes.NotFound},
		{CodeCaseDefinitionNotFound, codes.NotFound},
		{CodeProcessInstanceNotFound, codes.NotFound},
		{CodeStageNotFound, codes.NotFound},
		{CodeCommentNotFound, codes.NotFound},
		{CodeInvalidRole, codes.InvalidArgument},
		{CodeCaseFileSchemaViolation, codes.InvalidArgument},
		{CodeRoleCardinalityExceeded, codes.FailedPrecondition},
		{CodeCaseInvalidTransition, codes.FailedPrecondition},
		{CodeUnknown, codes.Internal},
	}
	for _, tc := range tests {
		if got := tc.code.GRPCCode(); got != tc.want {
			t.Fatalf("code %s: expected %v, got %v", tc.code, tc.want, got)
		}
	}
}

func TestToGRPCStatusAttachesDetails(t *testing.T) {
	err := WithMetadata(CodeInvalidRole, "role owner is not declared", map[string]string{"role": "owner"})

	st, ok := status.FromError(err.ToGRPCStatus("en-US", "Role owner is not declared by the case definition."))
	if !ok {
		t.Fatal("expected a gRPC status error")
	}
	if st.Code() != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", st.Code())
	}

	var info *errdetails.ErrorInfo
	var localized *errdetails.LocalizedMessage
	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			info = d
		case *errdetails.LocalizedMessage:
			localized = d
		}
	}
	if info == nil {
		t.Fatal("expected ErrorInfo detail")
	}
	if info.Reason != string(CodeInvalidRole) {
		t.Fatalf("expected reason %s, got %s", CodeInvalidRole, info.Reason)
	}
	if info.Domain != Domain {
		t.Fatalf("expected domain %s, got %s", Domain, info.Domain)
	}
	if info.Metadata["role"] != "owner" {
		t.Fatalf("expected role metadata, got %v", info.Metadata)
	}
	if localized == nil {
		t.Fatal("expected LocalizedMessage detail")
	}
	if localized.Locale != "en-US" {
		t.Fatalf("expected locale en-US, got %s", localized.Locale)
	}
}

func TestHandleErrorLocalizesDomainErrors(t *testing.T) {
	err := WithMetadata(CodeCaseNotFound, "case missing", map[string]string{"case_id": "HR-0000000007"})

	st, ok := status.FromError(HandleError(err, "pt-BR"))
	if !ok {
		t.Fatal("expected a gRPC status")
	}
	if st.Code() != codes.NotFound {
		t.Fatalf("code = %s, want NotFound", st.Code())
	}
	var localized *errdetails.LocalizedMessage
	for _, detail := range st.Details() {
		if msg, isLocalized := detail.(*errdetails.LocalizedMessage); isLocalized {
			localized = msg
		}
	}
	if localized == nil {
		t.Fatal("expected a localized message detail")
	}
	if localized.Locale != "pt-BR" {
		t.Fatalf("locale = %s, want pt-BR", localized.Locale)
	}
	if !strings.Contains(localized.Message, "HR-0000000007") {
		t.Fatalf("message %q should carry the case id", localized.Message)
	}
}

func TestHandleErrorHidesNonDomainErrors(t *testing.T) {
	if HandleError(nil, "") != nil {
		t.Fatal("nil error should stay nil")
	}

	st, ok := status.FromError(HandleError(errors.New("disk on fire"), ""))
	if !ok {
		t.Fatal("expected a gRPC status")
	}
	if st.Code() != codes.Internal {
		t.Fatalf("code = %s, want Internal", st.Code())
	}
	if strings.Contains(st.Message(), "disk") {
		t.Fatalf("message %q leaks the internal error", st.Message())
	}
}

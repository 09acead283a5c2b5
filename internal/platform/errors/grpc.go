package errors

import (
	"errors"

	"github.com/mdproctor/casemgmt/internal/platform/errors/i18n"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultLocale is the locale used when a caller supplies none.
const DefaultLocale = "en-US"

// HandleError converts a domain error into a gRPC status carrying a
// localized user message from the catalog for the given locale. Non-domain
// errors become an opaque Internal status so internals never leak to
// clients.
func HandleError(err error, locale string) error {
	if err == nil {
		return nil
	}
	if locale == "" {
		locale = DefaultLocale
	}

	var domainErr *Error
	if errors.As(err, &domainErr) {
		catalog := i18n.GetCatalog(locale)
		userMessage := catalog.Format(string(domainErr.Code), domainErr.Metadata)
		return domainErr.ToGRPCStatus(catalog.Locale(), userMessage)
	}
	return status.Error(codes.Internal, "an unexpected error occurred")
}

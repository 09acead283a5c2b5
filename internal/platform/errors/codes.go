package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Case lifecycle errors
	CodeCaseNotFound           Code = "CASE_NOT_FOUND"
	CodeCaseDefinitionNotFound Code = "CASE_DEFINITION_NOT_FOUND"
	CodeCaseIDEmpty            Code = "CASE_ID_EMPTY"
	CodeCaseInvalidTransition  Code = "CASE_INVALID_STATE_TRANSITION"

	// Dynamic fragment errors
	CodeProcessInstanceNotFound Code = "PROCESS_INSTANCE_NOT_FOUND"
	CodeStageNotFound           Code = "STAGE_NOT_FOUND"
	CodeFragmentNameEmpty       Code = "FRAGMENT_NAME_EMPTY"
	CodeTaskSpecInvalid         Code = "TASK_SPEC_INVALID"

	// Case file errors
	CodeCaseFileNameEmpty       Code = "CASE_FILE_NAME_EMPTY"
	CodeCaseFileSchemaViolation Code = "CASE_FILE_SCHEMA_VIOLATION"
	CodeCaseFileValueInvalid    Code = "CASE_FILE_VALUE_INVALID"

	// Role errors
	CodeInvalidRole             Code = "INVALID_ROLE"
	CodeRoleCardinalityExceeded Code = "ROLE_CARDINALITY_EXCEEDED"
	CodeEntityInvalid           Code = "ENTITY_INVALID"

	// Comment errors
	CodeCommentNotFound  Code = "COMMENT_NOT_FOUND"
	CodeCommentTextEmpty Code = "COMMENT_TEXT_EMPTY"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeCaseIDEmpty,
		CodeFragmentNameEmpty,
		CodeTaskSpecInvalid,
		CodeCaseFileNameEmpty,
		CodeCaseFileSchemaViolation,
		CodeCaseFileValueInvalid,
		CodeInvalidRole,
		CodeEntityInvalid,
		CodeCommentTextEmpty:
		return codes.InvalidArgument

	// NotFound - missing entities
	case CodeCaseNotFound,
		CodeCaseDefinitionNotFound,
		CodeProcessInstanceNotFound,
		CodeStageNotFound,
		CodeCommentNotFound,
		CodeNotFound:
		return codes.NotFound

	// FailedPrecondition - valid request, wrong state
	case CodeCaseInvalidTransition,
		CodeRoleCardinalityExceeded:
		return codes.FailedPrecondition

	default:
		return codes.Internal
	}
}

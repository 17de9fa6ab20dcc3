package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	ErrCodeValidation = "ERR_VALIDATION"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is returned for writes against a closed audit
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeEmptyContext is returned when an audit context holds no assets
	ErrCodeEmptyContext = "ERR_EMPTY_CONTEXT"
	// ErrCodePersistenceWrite is returned when scans are not saved yet
	ErrCodePersistenceWrite = "ERR_PERSISTENCE_WRITE_FAILED"
)

// Input error codes
const (
	ErrCodeBadRequest         = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput       = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON        = "ERR_INVALID_JSON"
	ErrCodeInvalidContext     = "ERR_INVALID_CONTEXT"
	ErrCodeInvalidCode        = "ERR_INVALID_CODE"
	ErrCodeDecode             = "ERR_DECODE"
	ErrCodeInvalidAttachment  = "ERR_INVALID_ATTACHMENT"
	ErrCodeTooManyAttachments = "ERR_TOO_MANY_ATTACHMENTS"
	ErrCodeRequestTooLarge    = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:     http.StatusUnprocessableEntity,
	ErrCodeEmptyContext:     http.StatusUnprocessableEntity,
	ErrCodePersistenceWrite: http.StatusServiceUnavailable,

	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeInvalidInput:       http.StatusBadRequest,
	ErrCodeInvalidJSON:        http.StatusBadRequest,
	ErrCodeInvalidContext:     http.StatusBadRequest,
	ErrCodeInvalidCode:        http.StatusBadRequest,
	ErrCodeDecode:             http.StatusBadRequest,
	ErrCodeInvalidAttachment:  http.StatusBadRequest,
	ErrCodeTooManyAttachments: http.StatusBadRequest,
	ErrCodeRequestTooLarge:    http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                ErrCodeNotFound,
	"ALREADY_EXISTS":           ErrCodeAlreadyExists,
	"INVALID_INPUT":            ErrCodeInvalidInput,
	"INVALID_STATE":            ErrCodeInvalidState,
	"UNAUTHORIZED":             ErrCodeUnauthorized,
	"FORBIDDEN":                ErrCodeForbidden,
	"CONCURRENCY_CONFLICT":     ErrCodeConcurrencyConflict,
	"EMPTY_CONTEXT":            ErrCodeEmptyContext,
	"INVALID_CONTEXT_TYPE":     ErrCodeInvalidContext,
	"INVALID_CONTEXT_ID":       ErrCodeInvalidContext,
	"INVALID_CODE":             ErrCodeInvalidCode,
	"DECODE_ERROR":             ErrCodeDecode,
	"INVALID_ATTACHMENT":       ErrCodeInvalidAttachment,
	"TOO_MANY_ATTACHMENTS":     ErrCodeTooManyAttachments,
	"PERSISTENCE_WRITE_FAILED": ErrCodePersistenceWrite,
	"INVALID_AUDIT":            ErrCodeInvalidInput,
	"INVALID_ASSET":            ErrCodeInvalidInput,
	"INVALID_NAME":             ErrCodeInvalidInput,
	"INVALID_TITLE":            ErrCodeInvalidInput,
	"INVALID_COUNTS":           ErrCodeInvalidInput,
	"INTERNAL_ERROR":           ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}

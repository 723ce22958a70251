package dto

import (
	"net/http"

	"github.com/rentledger/backend/internal/domain/shared"
)

// Transport-level error codes (domain errors carry their own codes)
const (
	ErrCodeInternal     = "ERR_INTERNAL"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeNotFound     = "ERR_NOT_FOUND"
	ErrCodeValidation   = "ERR_VALIDATION"
)

// kindHTTPStatus maps a domain error kind to an HTTP status.
// VALIDATION is caller-correctable input, INVALID_STATE is a legal
// request against an entity that cannot accept it, CONSISTENCY is an
// internal invariant failure and is never the caller's fault.
var kindHTTPStatus = map[shared.ErrorKind]int{
	shared.KindValidation:   http.StatusBadRequest,
	shared.KindInvalidState: http.StatusUnprocessableEntity,
	shared.KindNotFound:     http.StatusNotFound,
	shared.KindConflict:     http.StatusConflict,
	shared.KindConsistency:  http.StatusInternalServerError,
}

// HTTPStatusForKind returns the HTTP status for a domain error kind
func HTTPStatusForKind(kind shared.ErrorKind) int {
	if status, ok := kindHTTPStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

package shared

// ErrorKind classifies domain errors by how the caller should react.
type ErrorKind string

const (
	// KindValidation marks bad input rejected before any state change.
	// The caller may retry with corrected input.
	KindValidation ErrorKind = "VALIDATION"
	// KindInvalidState marks an operation that is not legal for the
	// entity's current status. Not retried automatically.
	KindInvalidState ErrorKind = "INVALID_STATE"
	// KindNotFound marks a missing resource.
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindConflict marks duplicate or concurrently-modified resources.
	KindConflict ErrorKind = "CONFLICT"
	// KindConsistency marks a broken internal invariant (over-allocation,
	// tally mismatch). These must never happen; when detected the whole
	// operation aborts and the error is reported, never silently repaired.
	KindConsistency ErrorKind = "CONSISTENCY"
)

// DomainError represents a domain-level error with a stable code
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *DomainError {
	return &DomainError{Kind: KindValidation, Code: code, Message: message}
}

// NewInvalidStateError creates an invalid-state error
func NewInvalidStateError(code, message string) *DomainError {
	return &DomainError{Kind: KindInvalidState, Code: code, Message: message}
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(code, message string) *DomainError {
	return &DomainError{Kind: KindNotFound, Code: code, Message: message}
}

// NewConsistencyViolation creates a consistency-violation error
func NewConsistencyViolation(code, message string) *DomainError {
	return &DomainError{Kind: KindConsistency, Code: code, Message: message}
}

// NewConflictError creates a conflict error
func NewConflictError(code, message string) *DomainError {
	return &DomainError{Kind: KindConflict, Code: code, Message: message}
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	return kindOf(err) == KindValidation
}

// IsInvalidState reports whether err is an invalid-state error
func IsInvalidState(err error) bool {
	return kindOf(err) == KindInvalidState
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool {
	return kindOf(err) == KindNotFound
}

// IsConflict reports whether err is a conflict error
func IsConflict(err error) bool {
	return kindOf(err) == KindConflict
}

// IsConsistencyViolation reports whether err is a broken-invariant error
func IsConsistencyViolation(err error) bool {
	return kindOf(err) == KindConsistency
}

func kindOf(err error) ErrorKind {
	if de, ok := err.(*DomainError); ok {
		return de.Kind
	}
	return ""
}

// Common domain errors
var (
	ErrNotFound            = &DomainError{Kind: KindNotFound, Code: "NOT_FOUND", Message: "Resource not found"}
	ErrAlreadyExists       = &DomainError{Kind: KindConflict, Code: "ALREADY_EXISTS", Message: "Resource already exists"}
	ErrConcurrencyConflict = &DomainError{Kind: KindConflict, Code: "CONCURRENCY_CONFLICT", Message: "Resource was modified by another process"}
	ErrStayArchived        = &DomainError{Kind: KindInvalidState, Code: "STAY_ARCHIVED", Message: "Stay is archived and no longer accepts financial operations"}
)

package intake

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypePrecondition ErrorType = "precondition"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeCollaborator ErrorType = "collaborator"
	ErrorTypeIntegrity    ErrorType = "integrity"
	ErrorTypeInternal     ErrorType = "internal"
)

// Error codes.
const (
	// Schema errors
	ErrCodeSchemaInvalid       = "SCHEMA_INVALID"
	ErrCodeSchemaNotFound      = "SCHEMA_NOT_FOUND"
	ErrCodeDuplicateSchemaName = "DUPLICATE_SCHEMA_NAME"
	ErrCodeDuplicateFieldID    = "DUPLICATE_FIELD_ID"
	ErrCodeUnknownFieldType    = "UNKNOWN_FIELD_TYPE"

	// Submission errors
	ErrCodeSubmissionInvalid  = "SUBMISSION_INVALID"
	ErrCodeSubmissionNotFound = "SUBMISSION_NOT_FOUND"
	ErrCodeNoActiveSchema     = "NO_ACTIVE_SCHEMA"
	ErrCodeUnknownField       = "UNKNOWN_FIELD"
	ErrCodeInvalidStatus      = "INVALID_STATUS"

	// Collaborator errors
	ErrCodeStorageFailure = "STORAGE_FAILURE"
	ErrCodeUploadFailed   = "UPLOAD_FAILED"
	ErrCodePersistFailed  = "PERSIST_FAILED"

	// Internal errors
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// IntakeError is the unified error type for the form-schema core. Every
// failure path surfaces one of these; nothing is swallowed or collapsed into
// an opaque string.
type IntakeError struct {
	Type        ErrorType         `json:"type"`
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Field       string            `json:"field,omitempty"`
	Phase       string            `json:"phase,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
	Details     map[string]any    `json:"details,omitempty"`
	Cause       error             `json:"-"`
}

func (e *IntakeError) Error() string {
	switch {
	case e.Field != "" && e.Phase != "":
		return fmt.Sprintf("[%s:%s] phase %s, field '%s': %s", e.Type, e.Code, e.Phase, e.Field, e.Message)
	case e.Field != "":
		return fmt.Sprintf("[%s:%s] field '%s': %s", e.Type, e.Code, e.Field, e.Message)
	case e.Phase != "":
		return fmt.Sprintf("[%s:%s] phase %s: %s", e.Type, e.Code, e.Phase, e.Message)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *IntakeError) Unwrap() error {
	return e.Cause
}

// WithCause attaches the underlying error.
func (e *IntakeError) WithCause(cause error) *IntakeError {
	e.Cause = cause
	return e
}

// WithField attaches field context.
func (e *IntakeError) WithField(field string) *IntakeError {
	e.Field = field
	return e
}

// WithPhase attaches pipeline-phase context.
func (e *IntakeError) WithPhase(phase string) *IntakeError {
	e.Phase = phase
	return e
}

// WithDetail adds a single detail entry.
func (e *IntakeError) WithDetail(key string, value any) *IntakeError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// ============================================================================
// Constructors
// ============================================================================

// NewIntakeError creates a new IntakeError.
func NewIntakeError(errorType ErrorType, code, message string) *IntakeError {
	return &IntakeError{
		Type:    errorType,
		Code:    code,
		Message: message,
	}
}

// NewSchemaNotFoundError signals that a department has no configured form.
// This is an expected outcome, distinct from a storage failure: callers
// branch to "create a form" rather than a fatal error.
func NewSchemaNotFoundError(departmentID string) *IntakeError {
	return &IntakeError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeSchemaNotFound,
		Message: fmt.Sprintf("no form schema configured for department '%s'", departmentID),
		Details: map[string]any{"departmentId": departmentID},
	}
}

// NewSubmissionNotFoundError signals an unknown submission id.
func NewSubmissionNotFoundError(id string) *IntakeError {
	return &IntakeError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeSubmissionNotFound,
		Message: fmt.Sprintf("submission '%s' not found", id),
	}
}

// NewNoActiveSchemaError is the pipeline's precondition failure: the
// department has no active schema, so a submission attempt never starts.
func NewNoActiveSchemaError(departmentID string) *IntakeError {
	return &IntakeError{
		Type:    ErrorTypePrecondition,
		Code:    ErrCodeNoActiveSchema,
		Message: fmt.Sprintf("department '%s' has no active form to submit against", departmentID),
		Details: map[string]any{"departmentId": departmentID},
	}
}

// NewValidationError creates a single-field validation error.
func NewValidationError(field, message string) *IntakeError {
	return &IntakeError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeSubmissionInvalid,
		Message: message,
		Field:   field,
	}
}

// NewSubmissionValidationError wraps the full per-field error map produced by
// submission-level validation. Every invalid field is enumerated so the
// caller can highlight them all at once.
func NewSubmissionValidationError(fieldErrors FieldErrors) *IntakeError {
	return &IntakeError{
		Type:        ErrorTypeValidation,
		Code:        ErrCodeSubmissionInvalid,
		Message:     fmt.Sprintf("submission failed validation on %d field(s)", len(fieldErrors)),
		FieldErrors: fieldErrors,
	}
}

// NewUploadFailedError reports the first file field whose upload failed.
// The attempt is retryable by re-submission; the pipeline does not retry.
func NewUploadFailedError(fieldID string, cause error) *IntakeError {
	return &IntakeError{
		Type:    ErrorTypeCollaborator,
		Code:    ErrCodeUploadFailed,
		Message: "file upload failed",
		Field:   fieldID,
		Phase:   "uploading",
		Cause:   cause,
	}
}

// NewPersistFailedError reports a failed submission write. Files already
// uploaded in this attempt are orphaned and logged for reconciliation.
func NewPersistFailedError(cause error) *IntakeError {
	return &IntakeError{
		Type:    ErrorTypeCollaborator,
		Code:    ErrCodePersistFailed,
		Message: "failed to persist submission",
		Phase:   "persisting",
		Cause:   cause,
	}
}

// NewStorageError wraps an unexpected collaborator failure (connectivity,
// query error). Never conflated with NotFound.
func NewStorageError(message string, cause error) *IntakeError {
	return &IntakeError{
		Type:    ErrorTypeCollaborator,
		Code:    ErrCodeStorageFailure,
		Message: message,
		Cause:   cause,
	}
}

// NewIntegrityError marks a data-corruption class failure. Should never be
// user-reachable; observing one indicates a bug.
func NewIntegrityError(message string) *IntakeError {
	return &IntakeError{
		Type:    ErrorTypeIntegrity,
		Code:    ErrCodeDuplicateSchemaName,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(message string, cause error) *IntakeError {
	return &IntakeError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
	}
}

// ============================================================================
// SchemaViolations
// ============================================================================

// SchemaViolations accumulates schema-level validation failures so a form
// author sees the complete list in one pass instead of fixing one error per
// attempt.
type SchemaViolations struct {
	Violations []*IntakeError `json:"violations"`
}

// NewSchemaViolations creates an empty violation collection.
func NewSchemaViolations() *SchemaViolations {
	return &SchemaViolations{Violations: make([]*IntakeError, 0)}
}

// Error implements the error interface.
func (v *SchemaViolations) Error() string {
	switch len(v.Violations) {
	case 0:
		return "no schema violations"
	case 1:
		return v.Violations[0].Error()
	}
	return fmt.Sprintf("schema has %d violations", len(v.Violations))
}

// Add records a violation.
func (v *SchemaViolations) Add(code, field, message string) {
	v.Violations = append(v.Violations, &IntakeError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Field:   field,
	})
}

// HasErrors returns true if any violation was recorded.
func (v *SchemaViolations) HasErrors() bool {
	return len(v.Violations) > 0
}

// ToError returns the collection as an error, or nil when empty.
func (v *SchemaViolations) ToError() error {
	if v.HasErrors() {
		return v
	}
	return nil
}

// Messages returns the violation messages in recorded order.
func (v *SchemaViolations) Messages() []string {
	out := make([]string, len(v.Violations))
	for i, violation := range v.Violations {
		out[i] = violation.Message
	}
	return out
}

// ============================================================================
// Error checking utilities
// ============================================================================

func errorOfType(err error, t ErrorType) bool {
	var ie *IntakeError
	if errors.As(err, &ie) {
		return ie.Type == t
	}
	return false
}

// IsNotFoundError checks whether err is an expected absence, as opposed to a
// collaborator failure.
func IsNotFoundError(err error) bool {
	return errorOfType(err, ErrorTypeNotFound)
}

// IsValidationError checks whether err is user-correctable validation
// feedback. Schema-violation collections count as validation errors too.
func IsValidationError(err error) bool {
	var sv *SchemaViolations
	if errors.As(err, &sv) {
		return true
	}
	return errorOfType(err, ErrorTypeValidation)
}

// IsPreconditionError checks for the no-active-schema class of failure.
func IsPreconditionError(err error) bool {
	return errorOfType(err, ErrorTypePrecondition)
}

// IsCollaboratorError checks for storage/network failures that are not
// user-correctable.
func IsCollaboratorError(err error) bool {
	return errorOfType(err, ErrorTypeCollaborator)
}

// IsIntegrityError checks for the programming/data-corruption class.
func IsIntegrityError(err error) bool {
	return errorOfType(err, ErrorTypeIntegrity)
}

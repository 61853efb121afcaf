package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest    = "BAD_REQUEST"
	ErrUnauthorized  = "UNAUTHORIZED"
	ErrNotFound      = "NOT_FOUND"
	ErrConflict      = "CONFLICT"
	ErrInternalError = "INTERNAL_ERROR"
)

// Progress-tracking error codes.
const (
	ErrAlreadyInitialized = "ALREADY_INITIALIZED"
	ErrTemplateNotFound   = "TEMPLATE_NOT_FOUND"
	ErrStageIncomplete    = "STAGE_INCOMPLETE"
	ErrAlreadyFinal       = "ALREADY_FINAL"
	ErrInvalidStatus      = "INVALID_STATUS"
	ErrBlockerNotFound    = "BLOCKER_NOT_FOUND"
)

// ErrorEnvelope is the standard error response envelope returned by the
// service. It implements the error interface.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a field-level requirement error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED error.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnauthorized, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewConflictError returns a CONFLICT error.
func NewConflictError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConflict, Message: msg}
}

// NewAlreadyInitializedError returns an ALREADY_INITIALIZED error.
func NewAlreadyInitializedError(applicationID string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrAlreadyInitialized,
		Message: fmt.Sprintf("progress for application %q is already initialized", applicationID),
	}
}

// NewTemplateNotFoundError returns a TEMPLATE_NOT_FOUND error.
func NewTemplateNotFoundError(templateID string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrTemplateNotFound,
		Message: fmt.Sprintf("workflow template %q not found", templateID),
	}
}

// NewStageIncompleteError returns a STAGE_INCOMPLETE error carrying the
// missing required field names as field-level details.
func NewStageIncompleteError(stageKey string, missing []string) *ErrorEnvelope {
	details := make([]FieldError, 0, len(missing))
	for _, f := range missing {
		details = append(details, FieldError{
			Field:   f,
			Code:    "required",
			Message: fmt.Sprintf("field %q must be completed", f),
		})
	}
	return &ErrorEnvelope{
		Code:    ErrStageIncomplete,
		Message: fmt.Sprintf("stage %q is not complete", stageKey),
		Details: details,
	}
}

// NewAlreadyFinalError returns an ALREADY_FINAL error.
func NewAlreadyFinalError(applicationID string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrAlreadyFinal,
		Message: fmt.Sprintf("application %q is already at its final stage", applicationID),
	}
}

// NewInvalidStatusError returns an INVALID_STATUS error.
func NewInvalidStatusError(status string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInvalidStatus,
		Message: fmt.Sprintf("invalid application status: %q", status),
	}
}

// NewBlockerNotFoundError returns a BLOCKER_NOT_FOUND error.
func NewBlockerNotFoundError(blockerID string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrBlockerNotFound,
		Message: fmt.Sprintf("blocker %q not found", blockerID),
	}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

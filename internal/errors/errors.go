package errors

import (
	"fmt"
	"net/http"
)

// Code identifies the machine-readable failure category reported to callers.
type Code string

const (
	CodePoorQuality       Code = "POOR_QUALITY"
	CodeTemplateNotFound  Code = "TEMPLATE_NOT_FOUND"
	CodeBubbleDetection   Code = "BUBBLE_DETECTION_ERROR"
	CodeProcessingTimeout Code = "PROCESSING_TIMEOUT"
	CodeInvalidAnswerKey  Code = "INVALID_ANSWER_KEY"
	CodeInvalidFormat     Code = "INVALID_FORMAT"
	CodeValidationFailed  Code = "VALIDATION_FAILED"
	CodeNetwork           Code = "NETWORK_ERROR"
	CodeInternal          Code = "INTERNAL_ERROR"
)

// AppError is a structured application error carrying an OMR error code,
// an HTTP status for the transport boundary and remediation text for the
// operator.
type AppError struct {
	Code             Code     `json:"code"`
	Message          string   `json:"message"`
	SuggestedActions []string `json:"suggested_actions,omitempty"`
	StatusCode       int      `json:"status_code"`
	Cause            error    `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewImageQualityError reports an input unusable even after enhancement.
func NewImageQualityError(message string, cause error) *AppError {
	return &AppError{
		Code:       CodePoorQuality,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
		SuggestedActions: []string{
			"ensure proper lighting when photographing the sheet",
			"avoid shadows and glare across the answer area",
			"retake the photo at a higher resolution",
		},
	}
}

// NewTemplateNotFoundError reports that fewer than three of the four
// reference corners could be located.
func NewTemplateNotFoundError(message string, cause error) *AppError {
	return &AppError{
		Code:       CodeTemplateNotFound,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
		SuggestedActions: []string{
			"verify sheet alignment and that all four corner markers are visible",
			"place the sheet on a contrasting background",
		},
	}
}

// NewBubbleDetectionError reports an unresolvable question/option grid.
func NewBubbleDetectionError(message string, cause error) *AppError {
	return &AppError{
		Code:       CodeBubbleDetection,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
		SuggestedActions: []string{
			"check that the photograph covers the entire answer grid",
			"use a supported OMR sheet layout",
		},
	}
}

// NewTimeoutError reports an exceeded processing budget.
func NewTimeoutError(message string, cause error) *AppError {
	return &AppError{
		Code:       CodeProcessingTimeout,
		Message:    message,
		StatusCode: http.StatusGatewayTimeout,
		Cause:      cause,
		SuggestedActions: []string{
			"retry with a smaller image",
			"increase the configured processing timeout",
		},
	}
}

// NewInvalidAnswerKeyError reports a malformed answer key. Surfaced at the
// grading boundary only, never from the detection core.
func NewInvalidAnswerKeyError(message string, cause error) *AppError {
	return &AppError{
		Code:       CodeInvalidAnswerKey,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
		SuggestedActions: []string{
			"use numeric question keys and options A-E",
		},
	}
}

// NewValidationError reports malformed request input.
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Code:       CodeInvalidFormat,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewNetworkError reports an image fetch failure.
func NewNetworkError(message string, cause error) *AppError {
	return &AppError{
		Code:       CodeNetwork,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
		SuggestedActions: []string{
			"verify the image URL is reachable from the service",
		},
	}
}

// NewInternalError reports an unexpected failure.
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// IsCode checks whether err is an AppError with the given code.
func IsCode(err error, code Code) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// GetStatusCode extracts the HTTP status from an error, defaulting to 500.
func GetStatusCode(err error) int {
	if appErr, ok := err.(*AppError); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// AsAppError returns err as *AppError, wrapping unknown errors as internal.
func AsAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return NewInternalError("unexpected processing failure", err)
}

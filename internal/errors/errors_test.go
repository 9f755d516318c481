package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestConstructorsCarryCodesAndStatuses(t *testing.T) {
	cases := []struct {
		err    *AppError
		code   Code
		status int
	}{
		{NewImageQualityError("too dark", nil), CodePoorQuality, http.StatusUnprocessableEntity},
		{NewTemplateNotFoundError("no markers", nil), CodeTemplateNotFound, http.StatusUnprocessableEntity},
		{NewBubbleDetectionError("no grid", nil), CodeBubbleDetection, http.StatusUnprocessableEntity},
		{NewTimeoutError("too slow", nil), CodeProcessingTimeout, http.StatusGatewayTimeout},
		{NewInvalidAnswerKeyError("bad key", nil), CodeInvalidAnswerKey, http.StatusBadRequest},
		{NewValidationError("bad payload", nil), CodeInvalidFormat, http.StatusBadRequest},
		{NewNetworkError("fetch failed", nil), CodeNetwork, http.StatusBadGateway},
		{NewInternalError("boom", nil), CodeInternal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if c.err.Code != c.code {
			t.Errorf("code = %q, want %q", c.err.Code, c.code)
		}
		if c.err.StatusCode != c.status {
			t.Errorf("%s: status = %d, want %d", c.code, c.err.StatusCode, c.status)
		}
	}
}

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewNetworkError("fetch failed", cause)
	if got := err.Error(); got != "NETWORK_ERROR: fetch failed (caused by: connection refused)" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should expose the cause")
	}

	bare := NewInternalError("boom", nil)
	if got := bare.Error(); got != "INTERNAL_ERROR: boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIsCode(t *testing.T) {
	err := NewTimeoutError("too slow", nil)
	if !IsCode(err, CodeProcessingTimeout) {
		t.Error("IsCode should match the timeout code")
	}
	if IsCode(err, CodeNetwork) {
		t.Error("IsCode should not match a different code")
	}
	if IsCode(errors.New("plain"), CodeInternal) {
		t.Error("plain errors carry no code")
	}
}

func TestGetStatusCode(t *testing.T) {
	if got := GetStatusCode(NewValidationError("bad", nil)); got != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", got)
	}
	if got := GetStatusCode(errors.New("plain")); got != http.StatusInternalServerError {
		t.Errorf("plain error status = %d, want 500", got)
	}
}

func TestAsAppErrorWrapsUnknown(t *testing.T) {
	plain := errors.New("plain failure")
	appErr := AsAppError(plain)
	if appErr.Code != CodeInternal {
		t.Errorf("code = %q, want internal", appErr.Code)
	}
	if !errors.Is(appErr, plain) {
		t.Error("wrapped error should keep the cause")
	}

	orig := NewNetworkError("fetch failed", nil)
	if AsAppError(orig) != orig {
		t.Error("existing AppError should pass through unchanged")
	}
}

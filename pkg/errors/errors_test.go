package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructorsMapToHTTPStatus(t *testing.T) {
	cases := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"not found", NotFound("Spot"), CodeNotFound, http.StatusNotFound},
		{"not found with id", NotFoundWithID("Spot", "abc"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("bad input", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("bad id"), CodeInvalidInput, http.StatusBadRequest},
		{"unauthorized", Unauthorized("no token"), CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", Forbidden("not yours"), CodeForbidden, http.StatusForbidden},
		{"conflict", Conflict("taken"), CodeConflict, http.StatusConflict},
		{"state", State("wrong lifecycle"), CodeState, http.StatusConflict},
		{"internal", Internal("boom", nil), CodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code != tc.wantCode {
				t.Errorf("expected code %s, got %s", tc.wantCode, tc.err.Code)
			}
			if tc.err.StatusCode() != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, tc.err.StatusCode())
			}
		})
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Internal("Failed to reach database", cause)

	if got := err.Error(); got != "INTERNAL_ERROR: Failed to reach database (caused by: connection refused)" {
		t.Errorf("unexpected error string: %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("expected the cause to be reachable through Unwrap")
	}

	bare := Conflict("taken")
	if got := bare.Error(); got != "CONFLICT: taken" {
		t.Errorf("unexpected error string: %q", got)
	}
}

func TestNotFoundWithIDCarriesDetails(t *testing.T) {
	err := NotFoundWithID("Reservation", "507f1f77bcf86cd799439031")

	if err.Details["resource"] != "Reservation" {
		t.Errorf("expected resource detail, got %v", err.Details["resource"])
	}
	if err.Details["id"] != "507f1f77bcf86cd799439031" {
		t.Errorf("expected id detail, got %v", err.Details["id"])
	}
}

func TestAsAppError(t *testing.T) {
	original := Conflict("taken")
	if got := AsAppError(original); got != original {
		t.Error("an AppError must pass through unchanged")
	}

	plain := fmt.Errorf("raw driver error")
	wrapped := AsAppError(plain)
	if wrapped.Code != CodeInternal {
		t.Errorf("unknown errors must collapse to internal, got %s", wrapped.Code)
	}
	if !errors.Is(wrapped, plain) {
		t.Error("the original error must stay reachable for logging")
	}
}

func TestIsAppError(t *testing.T) {
	if !IsAppError(Forbidden("nope")) {
		t.Error("expected AppError to be recognized")
	}
	if IsAppError(fmt.Errorf("plain")) {
		t.Error("plain errors must not be recognized")
	}
}

func TestWithDetails(t *testing.T) {
	err := Conflict("taken").WithDetails(map[string]any{"spot_number": "A-101"})
	if err.Details["spot_number"] != "A-101" {
		t.Errorf("expected details attached, got %v", err.Details)
	}
}

package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{BadRequest("bad"), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{RateLimit("slow down"), http.StatusTooManyRequests},
		{ServiceUnavailable("loading"), http.StatusServiceUnavailable},
		{Internal("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			if tt.err.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", tt.err.StatusCode, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := InternalWrap(cause, "load failed")

	if err.Unwrap() != cause {
		t.Error("Unwrap() should return the cause")
	}
	if got := err.Error(); got != "INTERNAL_ERROR: load failed (caused by: disk on fire)" {
		t.Errorf("Error() = %q", got)
	}
}

func TestWriteError_AppError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/summary", nil)

	WriteError(w, r, testLogger(), Validation("end must not be before start"), "req-1")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp struct {
		Success bool `json:"success"`
		Error   struct {
			Code      string `json:"code"`
			Message   string `json:"message"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success {
		t.Error("success should be false")
	}
	if resp.Error.Code != string(CodeValidation) {
		t.Errorf("code = %q", resp.Error.Code)
	}
	if resp.Error.RequestID != "req-1" {
		t.Errorf("request_id = %q", resp.Error.RequestID)
	}
}

func TestWriteError_WrappedAppError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	err := fmt.Errorf("handler: %w", NotFound("unknown chart"))
	WriteError(w, r, testLogger(), err, "")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestWriteError_PlainError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(w, r, testLogger(), fmt.Errorf("unexpected"), "")

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestWriteSuccessWithHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteSuccessWithHeaders(w, r, map[string]int{"orders": 3}, map[string]string{"Cache-Control": "no-store"})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content-type = %q", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("cache-control = %q", cc)
	}
}

func TestWriteError_DoesNotMutateSharedError(t *testing.T) {
	shared := NotFound("unknown chart")

	WriteError(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), testLogger(), shared, "req-9")

	if shared.RequestID != "" {
		t.Errorf("shared error should keep an empty request id, got %q", shared.RequestID)
	}
}

func TestWriteError_ServiceUnavailableRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, httptest.NewRequest(http.MethodGet, "/", nil), testLogger(), ServiceUnavailable("loading"), "")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if ra := w.Header().Get("Retry-After"); ra != "5" {
		t.Errorf("Retry-After = %q, want 5", ra)
	}
}

func TestAppError_IsMatchesCode(t *testing.T) {
	err := fmt.Errorf("view: %w", ValidationWrap(fmt.Errorf("bad date"), "invalid range"))

	if !stderrors.Is(err, Validation("")) {
		t.Error("errors.Is should match on the error code")
	}
	if stderrors.Is(err, NotFound("")) {
		t.Error("errors.Is should not match a different code")
	}
}

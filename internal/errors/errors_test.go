package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{Schema(stderrors.New("unresolved columns: quantity"), nil), http.StatusBadRequest},
		{Parse(stderrors.New("bad csv")), http.StatusBadRequest},
		{PayloadTooLarge(1024), http.StatusRequestEntityTooLarge},
		{NotFound("missing"), http.StatusNotFound},
		{Internal("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			if tt.err.StatusCode != tt.want {
				t.Errorf("StatusCode = %d, want %d", tt.err.StatusCode, tt.want)
			}
		})
	}
}

func TestWriteError_WrappedAppError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appErr := Schema(stderrors.New("unresolved columns: quantity"), map[string]any{"missing": []string{"quantity"}})
	wrapped := fmt.Errorf("analyze upload: %w", appErr)

	rec := httptest.NewRecorder()
	WriteError(rec, logger, wrapped, "req-1")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code      string         `json:"code"`
			Details   string         `json:"details"`
			Fields    map[string]any `json:"fields"`
			RequestID string         `json:"request_id"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success {
		t.Error("success should be false")
	}
	if body.Error.Code != string(CodeSchema) {
		t.Errorf("code = %q", body.Error.Code)
	}
	if body.Error.Details != "unresolved columns: quantity" {
		t.Errorf("details = %q", body.Error.Details)
	}
	if body.Error.RequestID != "req-1" {
		t.Errorf("request_id = %q", body.Error.RequestID)
	}
	if _, ok := body.Error.Fields["missing"]; !ok {
		t.Error("fields.missing should be present")
	}
}

func TestWriteError_PlainError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()

	WriteError(rec, logger, stderrors.New("disk on fire"), "")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestCancelled(t *testing.T) {
	err := Cancelled(context.Canceled)

	if err.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", err.StatusCode)
	}
	if !stderrors.Is(err, context.Canceled) {
		t.Error("Cancelled should unwrap to context.Canceled")
	}
}

func TestWriteSuccessWithHeaders(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteSuccessWithHeaders(rec, map[string]int{"rows": 10}, map[string]string{"Cache-Control": "no-store"})

	if rec.Code != http.StatusOK || rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("status = %d, headers = %v", rec.Code, rec.Header())
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}

	var body struct {
		Data    map[string]int `json:"data"`
		Success bool           `json:"success"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Success || body.Data["rows"] != 10 {
		t.Errorf("body = %+v", body)
	}
}

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"tempo/internal/core"
)

func TestJSONResponseBuilder(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/categories/c1").
		JSON(idJSON{ID: "c1"}).
		Write(rec)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json; charset=utf-8" {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("Location") != "/api/categories/c1" {
		t.Errorf("location = %q", rec.Header().Get("Location"))
	}
	if rec.Body.String() != "{\"id\":\"c1\"}\n" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestJSONResponseBuilderBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().Bytes("image/png", []byte{1, 2, 3}).Write(rec)
	if rec.Header().Get("Content-Type") != "image/png" || rec.Body.Len() != 3 {
		t.Errorf("unexpected response: %v %v", rec.Header(), rec.Body.Bytes())
	}
}

func TestDomainErrorMapping(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{fmt.Errorf("create category: %w", core.ErrDuplicateName), http.StatusConflict, "duplicate_name"},
		{core.ErrNotFound, http.StatusNotFound, "not_found"},
		{errAbsent, http.StatusNotFound, "not_found"},
		{core.ErrInvalidInterval, http.StatusUnprocessableEntity, "invalid_interval"},
		{core.ErrInvalidCategory, http.StatusUnprocessableEntity, "invalid_category"},
		{core.ErrEmptyName, http.StatusUnprocessableEntity, "empty_name"},
		{core.NewStorageError("query", errors.New("disk I/O error")), http.StatusServiceUnavailable, "storage_unavailable"},
		{errors.New("surprise"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			rec := httptest.NewRecorder()
			DomainError(httptest.NewRequest(http.MethodGet, "/", nil), "test", tt.err).Write(rec)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.wantCode)
			}
			if tt.wantStatus >= 500 && body.Error.Message == tt.err.Error() && tt.wantCode == "internal" {
				t.Errorf("internal error details leaked: %q", body.Error.Message)
			}
		})
	}
}

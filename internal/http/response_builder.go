// Package http exposes the time-section operations as a JSON API.
//
// This file implements a small builder for JSON responses and the mapping
// from domain errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tempo/internal/core"
	tlog "tempo/internal/log"
)

// JSONResponseBuilder provides a fluent API for building responses.
type JSONResponseBuilder struct {
	statusCode  int
	headers     map[string]string
	payload     any
	body        []byte
	contentType string
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *JSONResponseBuilder) JSON(v any) *JSONResponseBuilder {
	b.payload = v
	b.body = nil
	return b
}

// Bytes sets a raw body with its content type.
func (b *JSONResponseBuilder) Bytes(contentType string, body []byte) *JSONResponseBuilder {
	b.payload = nil
	b.body = body
	b.contentType = contentType
	return b
}

func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	body := b.body
	contentType := b.contentType
	if b.payload != nil {
		encoded, err := json.Marshal(b.payload)
		if err != nil {
			slog.Error("Failed to encode response", "error", err)
			http.Error(w, `{"error":{"code":"internal","message":"encoding failed"}}`, http.StatusInternalServerError)
			return
		}
		body = append(encoded, '\n')
		contentType = "application/json; charset=utf-8"
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(b.statusCode)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse builds {"error":{"code":...,"message":...}}.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		JSON(errorBody{Error: errorDetail{Code: code, Message: message}})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "bad_request", message)
}

func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, "unauthorized", message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, "not_found", message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal", message)
}

var domainErrors = []struct {
	err    error
	status int
	code   string
}{
	{core.ErrDuplicateName, http.StatusConflict, "duplicate_name"},
	{core.ErrNotFound, http.StatusNotFound, "not_found"},
	{core.ErrInvalidInterval, http.StatusUnprocessableEntity, "invalid_interval"},
	{core.ErrInvalidCategory, http.StatusUnprocessableEntity, "invalid_category"},
	{core.ErrEmptyName, http.StatusUnprocessableEntity, "empty_name"},
	{core.ErrEmptyOwner, http.StatusUnprocessableEntity, "empty_owner"},
	{core.ErrStorageUnavailable, http.StatusServiceUnavailable, "storage_unavailable"},
}

// DomainError maps a service error to its response. Storage and unknown
// failures are logged and their details withheld from the client.
func DomainError(r *http.Request, op string, err error) *JSONResponseBuilder {
	for _, de := range domainErrors {
		if !errors.Is(err, de.err) {
			continue
		}
		message := de.err.Error()
		if de.status >= 500 {
			tlog.LogError(r.Context(), "Request failed", err, tlog.ComponentHTTP, op, nil)
		}
		return ErrorResponse(de.status, de.code, message)
	}
	tlog.LogError(r.Context(), "Request failed", err, tlog.ComponentHTTP, op, nil)
	return InternalServerError("internal error")
}

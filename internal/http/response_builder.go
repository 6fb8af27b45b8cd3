// Package http serves the category and expense forms over HTTP.
//
// This file implements a builder for JSON responses. Successful writes also
// carry an HX-Trigger header naming the list that changed, so an HTMX page
// can re-fetch it.

package http

import (
	"encoding/json"
	"net/http"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	triggers   map[string]interface{}
	statusCode int
	body       []byte
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		triggers:   make(map[string]interface{}),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named trigger with optional data to the HX-Trigger header.
func (b *ResponseBuilder) Trigger(name string, data interface{}) *ResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerCategoriesChanged tells the page the category list was reloaded.
func (b *ResponseBuilder) TriggerCategoriesChanged() *ResponseBuilder {
	return b.Trigger("categories:changed", struct{}{})
}

// TriggerExpensesChanged tells the page the expense list was reloaded.
func (b *ResponseBuilder) TriggerExpensesChanged() *ResponseBuilder {
	return b.Trigger("expenses:changed", struct{}{})
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets v as the JSON response body.
func (b *ResponseBuilder) JSON(v interface{}) *ResponseBuilder {
	body, err := json.Marshal(v)
	if err != nil {
		b.statusCode = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response"}`)
	}
	b.headers["Content-Type"] = "application/json; charset=utf-8"
	b.body = body
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		triggerJSON, err := json.Marshal(b.triggers)
		if err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		JSON(errorBody{Error: message})
}

// FieldError creates a 422 response naming the offending field.
func FieldError(field, message string) *ResponseBuilder {
	return NewResponse().
		Status(http.StatusUnprocessableEntity).
		JSON(errorBody{Error: message, Field: field})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ConflictError creates a 409 Conflict error response.
func ConflictError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusConflict, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// ServiceUnavailableError creates a 503 Service Unavailable error response.
func ServiceUnavailableError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}

// TooManyRequestsError creates a 429 response with a retry hint.
func TooManyRequestsError(retryAfter string) *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").
		Header("Retry-After", retryAfter)
}

package model

import (
	"errors"
	"fmt"
)

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrUpstream   ErrorCode = "UPSTREAM_ERROR"
	ErrParse      ErrorCode = "PARSE_ERROR"
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the console API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NetworkError means a request never completed (DNS, connection refused, timeout).
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: request to %s failed: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RequestError is a non-2xx response from a remote service.
type RequestError struct {
	Op         string
	URL        string
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: HTTP %d from %s: %s", e.Op, e.StatusCode, e.URL, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d from %s", e.Op, e.StatusCode, e.URL)
}

// ParseError means a response body or descriptor could not be decoded.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError rejects malformed user input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IntegrityError reports an operation on an id that is not in the relevant store.
type IntegrityError struct {
	Entity string
	ID     string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Entity, e.ID)
}

// SubmissionError is returned when a run submission is rejected or cannot be
// sent. RunID is set when the service accepted the run but it could not be
// tracked.
type SubmissionError struct {
	Endpoint string
	RunID    string
	Err      error
}

func (e *SubmissionError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("submit run to %s: remote run %s is not tracked: %v", e.Endpoint, e.RunID, e.Err)
	}
	return fmt.Sprintf("submit run to %s: %v", e.Endpoint, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// NewIntegrityError creates an IntegrityError for an entity id.
func NewIntegrityError(entity, id string) *IntegrityError {
	return &IntegrityError{Entity: entity, ID: id}
}

// IsNotFound returns true if err is (or wraps) an IntegrityError.
func IsNotFound(err error) bool {
	var e *IntegrityError
	return errors.As(err, &e)
}

// IsValidation returns true if err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// StatusCode extracts the HTTP status of a wrapped RequestError, or 0.
func StatusCode(err error) int {
	var e *RequestError
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// ToAPIError converts any error produced by the console into an APIError.
func ToAPIError(err error) *APIError {
	var (
		apiErr *APIError
		valErr *ValidationError
		intErr *IntegrityError
		subErr *SubmissionError
		reqErr *RequestError
		netErr *NetworkError
		prsErr *ParseError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &valErr):
		return &APIError{Code: ErrValidation, Message: err.Error(), Details: []FieldError{{Field: valErr.Field, Message: valErr.Message}}}
	case errors.As(err, &intErr):
		return &APIError{Code: ErrNotFound, Message: err.Error()}
	case errors.As(err, &subErr), errors.As(err, &reqErr), errors.As(err, &netErr):
		return &APIError{Code: ErrUpstream, Message: err.Error()}
	case errors.As(err, &prsErr):
		return &APIError{Code: ErrParse, Message: err.Error()}
	}
	return &APIError{Code: ErrInternal, Message: err.Error()}
}

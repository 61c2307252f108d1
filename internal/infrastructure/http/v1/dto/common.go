// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"supplyledger/internal/core/apperror"
	"supplyledger/internal/core/id"
)

// SuccessResponse wraps every successful result.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool           `json:"success"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// parseID parses a required identifier field.
func parseID(field, value string) (id.ID, error) {
	if value == "" {
		return id.ID{}, apperror.NewValidation(field + " is required").WithDetail("field", field)
	}
	parsed, err := id.Parse(value)
	if err != nil || id.IsNil(parsed) {
		return id.ID{}, apperror.NewValidation("invalid "+field+" format").WithDetail("field", field)
	}
	return parsed, nil
}

// parseOptionalID parses an identifier that may be omitted.
func parseOptionalID(field string, value *string) (*id.ID, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	parsed, err := parseID(field, *value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseDate parses an optional YYYY-MM-DD date.
func parseDate(field string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, *value)
	if err != nil {
		return nil, apperror.NewValidation("invalid "+field+" format, expected YYYY-MM-DD").WithDetail("field", field)
	}
	return &t, nil
}

// Package errors defines the structured error taxonomy for the service.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeValidation represents malformed or incomplete client input
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeUpstream represents a generic non-success from the catalog
	ErrTypeUpstream ErrorType = "upstream"
	// ErrTypeRateLimit represents an upstream throttling signal
	ErrTypeRateLimit ErrorType = "rate_limit"
	// ErrTypeCache represents an unavailable or failing cache store
	ErrTypeCache ErrorType = "cache"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeInternal represents unexpected internal faults
	ErrTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}
	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ValidationError creates a new client input error
func ValidationError(msg string) *AppError {
	return &AppError{Type: ErrTypeValidation, Message: msg}
}

// UpstreamError creates a new upstream failure error
func UpstreamError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeUpstream, Message: msg, Cause: cause}
}

// RateLimitError creates a new throttling error
func RateLimitError(msg string) *AppError {
	return &AppError{Type: ErrTypeRateLimit, Message: msg}
}

// CacheError creates a new cache availability error
func CacheError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeCache, Message: msg, Cause: cause}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{Type: ErrTypeConfig, Message: msg}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeInternal, Message: msg, Cause: cause}
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

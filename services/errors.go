package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeEmbedding     ErrorType = "upstream_embedding"
	ErrorTypeGeneration    ErrorType = "upstream_generation"
	ErrorTypePartialIngest ErrorType = "partial_ingest"
	ErrorTypeParse         ErrorType = "parse"
	ErrorTypeInternal      ErrorType = "internal"
)

// DomainError represents a structured error with a category the transport
// layer maps onto HTTP status codes.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

var (
	ErrDocumentNotFound = NewDomainError(ErrorTypeNotFound, "document not found", nil)
	ErrEmptyDocument    = NewDomainError(ErrorTypeValidation, "document contains no extractable text", nil)
	ErrEmptyQuery       = NewDomainError(ErrorTypeValidation, "query cannot be empty", nil)
)

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsParseError checks if an error is a model output parse error
func IsParseError(err error) bool {
	return GetErrorType(err) == ErrorTypeParse
}

// IsPartialIngestError checks if an error reports chunks stored with missing embeddings
func IsPartialIngestError(err error) bool {
	return GetErrorType(err) == ErrorTypePartialIngest
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// WrapGeneration wraps an error as a generation provider error
func WrapGeneration(message string, err error) error {
	return NewDomainError(ErrorTypeGeneration, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

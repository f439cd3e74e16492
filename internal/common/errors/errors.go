// Package errors provides standardized error handling for the reconciliation engine.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Client input errors, recovered locally with an empty result.
	ErrCodeEmptyQuery    ErrorCode = "EMPTY_QUERY"
	ErrCodeUnknownEntity ErrorCode = "UNKNOWN_ENTITY"

	// Transient data-access errors; the failing sub-query yields an empty
	// result and the batch continues.
	ErrCodeRetrievalFailed  ErrorCode = "RETRIEVAL_FAILED"
	ErrCodeRetrievalTimeout ErrorCode = "RETRIEVAL_TIMEOUT"

	// Structural request error; fails the whole batch.
	ErrCodeBatchMalformed ErrorCode = "BATCH_MALFORMED"

	// Startup/configuration errors.
	ErrCodeDuplicateStrategy ErrorCode = "DUPLICATE_STRATEGY"
	ErrCodeInvalidStrategy   ErrorCode = "INVALID_STRATEGY"

	// Collaborator errors; both degrade gracefully.
	ErrCodeEmbeddingFailed ErrorCode = "EMBEDDING_FAILED"
	ErrCodeSummaryFailed   ErrorCode = "SUMMARY_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
)

// ReconError represents a structured application error.
type ReconError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
	cause     error
}

func (e *ReconError) Error() string {
	return fmt.Sprintf("ReconError[%s]: %s", e.Code, e.Message)
}

func (e *ReconError) Unwrap() error {
	return e.cause
}

// HasCode reports whether err is a ReconError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	var re *ReconError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewEmptyQueryError creates a non-retryable empty-query error.
func NewEmptyQueryError(raw string) *ReconError {
	return &ReconError{
		Code:      ErrCodeEmptyQuery,
		Message:   "Query text is empty after normalization",
		Details:   fmt.Sprintf("raw: %q", raw),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownEntityError creates a non-retryable unknown-entity error.
func NewUnknownEntityError(entityType string) *ReconError {
	return &ReconError{
		Code:      ErrCodeUnknownEntity,
		Message:   "No strategy registered for entity type",
		Details:   fmt.Sprintf("entityType: %s", entityType),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRetrievalFailedError creates a retryable data-access error.
func NewRetrievalFailedError(channel, entityType string, err error) *ReconError {
	return &ReconError{
		Code:      ErrCodeRetrievalFailed,
		Message:   "Retrieval statement failed",
		Details:   fmt.Sprintf("channel: %s, entityType: %s, error: %v", channel, entityType, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewRetrievalTimeoutError creates a retryable retrieval timeout error.
func NewRetrievalTimeoutError(channel, entityType string) *ReconError {
	return &ReconError{
		Code:      ErrCodeRetrievalTimeout,
		Message:   "Retrieval exceeded its deadline",
		Details:   fmt.Sprintf("channel: %s, entityType: %s", channel, entityType),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBatchMalformedError creates a non-retryable structural request error.
func NewBatchMalformedError(details string) *ReconError {
	return &ReconError{
		Code:      ErrCodeBatchMalformed,
		Message:   "Batch request is structurally malformed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateStrategyError creates a non-retryable registration error.
func NewDuplicateStrategyError(key string) *ReconError {
	return &ReconError{
		Code:      ErrCodeDuplicateStrategy,
		Message:   "Strategy key already registered",
		Details:   fmt.Sprintf("key: %s", key),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStrategyError creates a non-retryable strategy validation error.
func NewInvalidStrategyError(key, details string) *ReconError {
	return &ReconError{
		Code:      ErrCodeInvalidStrategy,
		Message:   "Strategy configuration is invalid",
		Details:   fmt.Sprintf("key: %s, %s", key, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmbeddingFailedError creates a retryable embedding provider error.
// Callers degrade to lexical-only retrieval instead of failing the sub-query.
func NewEmbeddingFailedError(err error) *ReconError {
	return &ReconError{
		Code:      ErrCodeEmbeddingFailed,
		Message:   "Embedding provider call failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSummaryFailedError creates a retryable disambiguation summary error.
// Summary failures never affect the returned candidate list.
func NewSummaryFailedError(err error) *ReconError {
	return &ReconError{
		Code:      ErrCodeSummaryFailed,
		Message:   "Generative disambiguation call failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDatabaseConnectionFailedError creates a retryable connection error.
func NewDatabaseConnectionFailedError(err error) *ReconError {
	return &ReconError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// IsSubQueryLocal reports whether the error is recovered at sub-query
// granularity (empty result, batch continues) rather than failing the request.
func IsSubQueryLocal(err error) bool {
	var re *ReconError
	if !errors.As(err, &re) {
		return true
	}
	return re.Code != ErrCodeBatchMalformed
}

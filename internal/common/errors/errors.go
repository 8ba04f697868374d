// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"matching-workers/internal/matching"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeQueryProfileNotFound  ErrorCode = "QUERY_PROFILE_NOT_FOUND"
	ErrCodeInvalidQueryProfile   ErrorCode = "INVALID_QUERY_PROFILE"
	ErrCodeInvalidJobInput       ErrorCode = "INVALID_JOB_INPUT"
	ErrCodeCandidateNotFound     ErrorCode = "CANDIDATE_NOT_FOUND"
	ErrCodeDataAccessFailed      ErrorCode = "DATA_ACCESS_FAILED"
	ErrCodeDataAccessTimeout     ErrorCode = "DATA_ACCESS_TIMEOUT"
	ErrCodeMatchPersistFailed    ErrorCode = "MATCH_PERSIST_FAILED"
	ErrCodeMatchingRunInProgress ErrorCode = "MATCHING_RUN_IN_PROGRESS"
	ErrCodeRunLockFailed         ErrorCode = "RUN_LOCK_FAILED"
	ErrCodeSearchIndexFailed     ErrorCode = "SEARCH_INDEX_FAILED"
	ErrCodeBatchDispatchFailed   ErrorCode = "BATCH_DISPATCH_FAILED"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
)

var knownCodes = map[ErrorCode]struct{}{
	ErrCodeQueryProfileNotFound:  {},
	ErrCodeInvalidQueryProfile:   {},
	ErrCodeInvalidJobInput:       {},
	ErrCodeCandidateNotFound:     {},
	ErrCodeDataAccessFailed:      {},
	ErrCodeDataAccessTimeout:     {},
	ErrCodeMatchPersistFailed:    {},
	ErrCodeMatchingRunInProgress: {},
	ErrCodeRunLockFailed:         {},
	ErrCodeSearchIndexFailed:     {},
	ErrCodeBatchDispatchFailed:   {},
	ErrCodeInternal:              {},
}

// IsKnownCode reports whether code is one of the codes declared above.
func IsKnownCode(code string) bool {
	_, ok := knownCodes[ErrorCode(code)]
	return ok
}

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns e.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewQueryProfileNotFoundError(queryProfileID int64) *StandardError {
	return newError(ErrCodeQueryProfileNotFound, "Query profile not found",
		fmt.Sprintf("queryProfileId: %d", queryProfileID), false, matching.ErrQueryProfileNotFound).
		WithMetadata("queryProfileId", queryProfileID)
}

func NewInvalidQueryProfileError(queryProfileID int64) *StandardError {
	return newError(ErrCodeInvalidQueryProfile, "Query profile is missing first or last name",
		fmt.Sprintf("queryProfileId: %d", queryProfileID), false, matching.ErrInvalidQueryProfile)
}

func NewInvalidJobInputError(details string) *StandardError {
	return newError(ErrCodeInvalidJobInput, "Job variables failed validation", details, false, nil)
}

func NewCandidateNotFoundError(accountID int64) *StandardError {
	return newError(ErrCodeCandidateNotFound, "Candidate record not found",
		fmt.Sprintf("accountId: %d", accountID), false, nil)
}

func NewDataAccessFailedError(err error) *StandardError {
	return newError(ErrCodeDataAccessFailed, "Data access operation failed", err.Error(), true, err)
}

func NewDataAccessTimeoutError(err error) *StandardError {
	return newError(ErrCodeDataAccessTimeout, "Data access operation timed out", err.Error(), true, err)
}

func NewMatchPersistFailedError(err error) *StandardError {
	return newError(ErrCodeMatchPersistFailed, "Writing match results failed", err.Error(), true, err)
}

func NewMatchingRunInProgressError(queryProfileID int64) *StandardError {
	return newError(ErrCodeMatchingRunInProgress, "Another matching run holds this query profile",
		fmt.Sprintf("queryProfileId: %d", queryProfileID), true, nil)
}

func NewRunLockFailedError(err error) *StandardError {
	return newError(ErrCodeRunLockFailed, "Run lock store unavailable", err.Error(), true, err)
}

func NewSearchIndexFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeSearchIndexFailed, "Search index operation failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true, err)
}

func NewBatchDispatchFailedError(details string, err error) *StandardError {
	msg := details
	if err != nil {
		msg = fmt.Sprintf("%s: %s", details, err.Error())
	}
	return newError(ErrCodeBatchDispatchFailed, "Starting matching runs failed", msg, true, err)
}

// FromMatchingError classifies errors returned by the matching core and its
// data-access layer into StandardErrors.
func FromMatchingError(err error) *StandardError {
	if err == nil {
		return nil
	}

	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}

	switch {
	case stderrors.Is(err, matching.ErrQueryProfileNotFound):
		return newError(ErrCodeQueryProfileNotFound, "Query profile not found", err.Error(), false, err)
	case stderrors.Is(err, matching.ErrInvalidQueryProfile):
		return newError(ErrCodeInvalidQueryProfile, "Query profile is missing first or last name", err.Error(), false, err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return NewDataAccessTimeoutError(err)
	case stderrors.Is(err, matching.ErrPersistFailed):
		return NewMatchPersistFailedError(err)
	default:
		return NewDataAccessFailedError(err)
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes. They are
// identical except where a catch event groups several internal codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeQueryProfileNotFound:  "QUERY_PROFILE_NOT_FOUND",
	ErrCodeInvalidQueryProfile:   "INVALID_QUERY_PROFILE",
	ErrCodeInvalidJobInput:       "INVALID_JOB_INPUT",
	ErrCodeCandidateNotFound:     "CANDIDATE_NOT_FOUND",
	ErrCodeDataAccessFailed:      "DATA_ACCESS_FAILED",
	ErrCodeDataAccessTimeout:     "DATA_ACCESS_FAILED",
	ErrCodeMatchPersistFailed:    "MATCH_PERSIST_FAILED",
	ErrCodeMatchingRunInProgress: "MATCHING_RUN_IN_PROGRESS",
	ErrCodeRunLockFailed:         "MATCHING_RUN_IN_PROGRESS",
	ErrCodeSearchIndexFailed:     "SEARCH_INDEX_FAILED",
	ErrCodeBatchDispatchFailed:   "BATCH_DISPATCH_FAILED",
}

// GetRetryCount returns how many attempts the job runner should make.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDataAccessFailed,
		ErrCodeMatchPersistFailed,
		ErrCodeSearchIndexFailed,
		ErrCodeBatchDispatchFailed,
		ErrCodeRunLockFailed:
		return 3

	case ErrCodeDataAccessTimeout,
		ErrCodeMatchingRunInProgress:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "NOT_FOUND"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "DATA_ACCESS") || strings.Contains(codeStr, "PERSIST"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "RUN_"):
		return "CONCURRENCY"
	case strings.Contains(codeStr, "BATCH"):
		return "WORKFLOW"
	default:
		return "OTHER"
	}
}

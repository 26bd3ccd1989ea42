// Package errors provides structured error handling for clinrag.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Knowledge store errors
//   - 3XX: LLM service errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStore indicates knowledge store errors.
	CategoryStore Category = "STORE"
	// CategoryLLM indicates external LLM service errors.
	CategoryLLM Category = "LLM"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Store errors (200-299)
	ErrCodeStoreUnavailable = "ERR_201_STORE_UNAVAILABLE"
	ErrCodeStoreQuery       = "ERR_202_STORE_QUERY"
	ErrCodeEmbeddingFailed  = "ERR_203_EMBEDDING_FAILED"

	// LLM errors (300-399)
	ErrCodeLLMTimeout     = "ERR_301_LLM_TIMEOUT"
	ErrCodeLLMUnavailable = "ERR_302_LLM_UNAVAILABLE"
	ErrCodeLLMBadResponse = "ERR_303_LLM_BAD_RESPONSE"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeUnknownTemplate   = "ERR_402_UNKNOWN_TEMPLATE"
	ErrCodeInvalidParams     = "ERR_403_INVALID_PARAMS"
	ErrCodeQueryEmpty        = "ERR_404_QUERY_EMPTY"
	ErrCodeQueryTooLong      = "ERR_405_QUERY_TOO_LONG"
	ErrCodeUnknownEntityType = "ERR_406_UNKNOWN_ENTITY_TYPE"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '3':
		return CategoryLLM
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreUnavailable:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// The pipeline itself never retries; callers may.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeLLMTimeout, ErrCodeLLMUnavailable:
		return true
	default:
		return false
	}
}

// Package errors provides structured error handling for grantlens.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Corpus and file errors
//   - 3XX: Collaborator errors (language model, embedder, network)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryData indicates corpus, label table and file errors.
	CategoryData Category = "DATA"
	// CategoryCollaborator indicates failures of external services.
	CategoryCollaborator Category = "COLLABORATOR"
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

	// Corpus and file errors (200-299)
	ErrCodeCorpusNotFound = "ERR_201_CORPUS_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeCorpusCorrupt  = "ERR_206_CORPUS_CORRUPT"
	ErrCodeCorpusSchema   = "ERR_207_CORPUS_SCHEMA"
	ErrCodeLabelTable     = "ERR_208_LABEL_TABLE_INVALID"
	ErrCodeHistoryStore   = "ERR_209_HISTORY_STORE"

	// Collaborator errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeRateLimited        = "ERR_303_RATE_LIMITED"
	ErrCodeLLMFailed          = "ERR_304_LLM_FAILED"
	ErrCodeCircuitOpen        = "ERR_305_CIRCUIT_OPEN"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeQueryEmpty        = "ERR_404_QUERY_EMPTY"
	ErrCodeInvalidAlpha      = "ERR_407_INVALID_ALPHA"
	ErrCodeInvalidTopK       = "ERR_408_INVALID_TOP_K"
	ErrCodeUnknownEvalQuery  = "ERR_409_UNKNOWN_EVAL_QUERY"
	ErrCodeLabelLength       = "ERR_410_LABEL_LENGTH"

	// Internal errors (500-599)
	ErrCodeInternal         = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed  = "ERR_502_EMBEDDING_FAILED"
	ErrCodeSearchFailed     = "ERR_503_SEARCH_FAILED"
	ErrCodeIndexFailed      = "ERR_505_INDEX_FAILED"
	ErrCodeEvaluationFailed = "ERR_506_EVALUATION_FAILED"
	ErrCodeStaleLabels      = "ERR_507_STALE_LABELS"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryData
	case '3':
		return CategoryCollaborator
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorpusNotFound, ErrCodeCorpusSchema, ErrCodeCorpusCorrupt,
		ErrCodeLabelTable, ErrCodeConfigInvalid:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable, ErrCodeRateLimited:
		return true
	default:
		return false
	}
}

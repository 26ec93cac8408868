package tts

import (
	"errors"
	"fmt"
)

// Common conversion errors
var (
	// ErrInvalidRate indicates the rate multiplier is outside (0, 4]
	ErrInvalidRate = errors.New("rate must be greater than 0 and at most 4")

	// ErrInputNotFound indicates the input document does not exist
	ErrInputNotFound = errors.New("input file not found")

	// ErrEmptyText indicates the document has no speakable text
	ErrEmptyText = errors.New("extracted text is empty")

	// ErrToolchainMissing indicates ffmpeg or ffprobe is not available
	ErrToolchainMissing = errors.New("audio toolchain (ffmpeg/ffprobe) not available")

	// ErrSynthesisFailed indicates a synthesis operation failed
	ErrSynthesisFailed = errors.New("text synthesis failed")

	// ErrAllSentencesFailed indicates no sentence could be synthesized
	ErrAllSentencesFailed = errors.New("every sentence failed to synthesize")

	// ErrConcatFailed indicates the clips could not be merged
	ErrConcatFailed = errors.New("audio concatenation failed")

	// ErrStretchFailed indicates the tempo change failed
	ErrStretchFailed = errors.New("audio time-stretch failed")

	// ErrConversionInProgress indicates another process holds the output lock
	ErrConversionInProgress = errors.New("another conversion is writing this output")
)

// TTSError represents a conversion error with additional context
type TTSError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *TTSError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *TTSError) Unwrap() error {
	return e.Cause
}

// ErrorCode identifies specific error types
type ErrorCode string

const (
	// ErrorCodeInput covers missing files, empty text and bad arguments.
	ErrorCodeInput ErrorCode = "INPUT"

	// ErrorCodeCapabilityMissing means a required external tool is absent.
	ErrorCodeCapabilityMissing ErrorCode = "CAPABILITY_MISSING"

	ErrorCodeSynthesis ErrorCode = "SYNTHESIS"
	ErrorCodeConcat    ErrorCode = "CONCAT"
	ErrorCodeStretch   ErrorCode = "STRETCH"

	// ErrorCodeLocked means the output is being written by another run.
	ErrorCodeLocked ErrorCode = "LOCKED"

	ErrorCodeCanceled ErrorCode = "CANCELED"

	// ErrorCodeInternal wraps unanticipated failures, including panics.
	ErrorCodeInternal ErrorCode = "INTERNAL"
)

// NewTTSError creates a new TTS error with context
func NewTTSError(code ErrorCode, message string, cause error) *TTSError {
	return &TTSError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context to the error
func (e *TTSError) WithContext(key string, value interface{}) *TTSError {
	e.Context[key] = value
	return e
}

// IsFatal returns true if the error ends the conversion. Capability and
// stretch errors have fallbacks and are reported as warnings instead.
func (e *TTSError) IsFatal() bool {
	switch e.Code {
	case ErrorCodeCapabilityMissing, ErrorCodeStretch:
		return false
	default:
		return true
	}
}

// IsRetryable returns true if running the same conversion again may succeed
func (e *TTSError) IsRetryable() bool {
	switch e.Code {
	case ErrorCodeSynthesis, ErrorCodeLocked:
		return true
	default:
		return false
	}
}

// CodeOf returns the code of the first TTSError in err's chain, or an empty
// code when there is none.
func CodeOf(err error) ErrorCode {
	var te *TTSError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

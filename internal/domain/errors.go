package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeFormatDetection = "FORMAT_DETECTION_ERROR"
	ErrCodeInputSize       = "INPUT_SIZE_ERROR"
	ErrCodeMalformedInput  = "MALFORMED_INPUT_ERROR"
	ErrCodeDateParse       = "DATE_PARSE_ERROR"
	ErrCodeMissingFilter   = "MISSING_REQUIRED_FILTER"
	ErrCodeExternalService = "EXTERNAL_SERVICE_ERROR"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// Normalization errors
var (
	ErrNoSuitableFormat = NewDomainError(ErrCodeFormatDetection, "no registered format matches the input")
	ErrInputTooLarge    = NewDomainError(ErrCodeInputSize, "export exceeds the maximum accepted size")
	ErrMalformedInput   = NewDomainError(ErrCodeMalformedInput, "export is not valid JSON")
)

// Search request errors
var (
	ErrInvalidSearchMode      = NewDomainError(ErrCodeValidation, "invalid search mode")
	ErrInvalidOrderDirection  = NewDomainError(ErrCodeValidation, "invalid order direction")
	ErrInvalidLimit           = NewDomainError(ErrCodeValidation, "limit must be between 1 and 100")
	ErrInvalidGroupSize       = NewDomainError(ErrCodeValidation, "group size must be between 1 and 10")
	ErrInvalidDiversity       = NewDomainError(ErrCodeValidation, "diversity must be between 0 and 1")
	ErrMissingQuery           = NewDomainError(ErrCodeValidation, "query must not be empty")
	ErrMissingPositiveExample = NewDomainError(ErrCodeMissingFilter, "recommend mode requires at least one positive example id")
	ErrMissingGroupBy         = NewDomainError(ErrCodeMissingFilter, "grouped mode requires a group_by field")
)

// NewDateParseError reports a filter date value that is neither epoch
// seconds nor ISO-8601.
func NewDateParseError(value string) *DomainError {
	return NewDomainError(ErrCodeDateParse, fmt.Sprintf("unrecognized date value: %q", value))
}

// NewExternalServiceError wraps a failure from the index or embedding service.
func NewExternalServiceError(service string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeExternalService, fmt.Sprintf("%s request failed", service), err)
}

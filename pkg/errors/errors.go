package errors

import (
	"fmt"
	"time"
)

// ErrorType classifies a pipeline error by the stage it occurred in.
type ErrorType string

const (
	// ErrorTypeFetch represents page fetch errors (timeout, navigation)
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeExtract represents HTML extraction errors
	ErrorTypeExtract ErrorType = "extract"
	// ErrorTypeNormalize represents record validation errors
	ErrorTypeNormalize ErrorType = "normalize"
	// ErrorTypeReconcile represents catalog merge errors
	ErrorTypeReconcile ErrorType = "reconcile"
	// ErrorTypeStore represents persistence errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeRateLimit represents rate limiting by the target site
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypePublisher represents event publishing errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeRun represents run-level failures (browser launch, panics)
	ErrorTypeRun ErrorType = "run"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// PipelineError represents a stage-scoped scraping pipeline error.
type PipelineError struct {
	Type     ErrorType
	Category string
	Message  string
	Err      error
	Time     time.Time
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Category, e.Message)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable. Only fetch-class
// failures are worth retrying: missing selectors and invalid records do
// not fix themselves on a second attempt.
func (e *PipelineError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeFetch:
		return true
	case ErrorTypeRateLimit:
		return false
	default:
		return false
	}
}

// New creates a new PipelineError
func New(errType ErrorType, category, message string, err error) *PipelineError {
	return &PipelineError{
		Type:     errType,
		Category: category,
		Message:  message,
		Err:      err,
		Time:     time.Now(),
	}
}

// NewFetch creates a new fetch error
func NewFetch(category, message string, err error) *PipelineError {
	return New(ErrorTypeFetch, category, message, err)
}

// NewExtract creates a new extraction error
func NewExtract(category, message string, err error) *PipelineError {
	return New(ErrorTypeExtract, category, message, err)
}

// NewNormalize creates a new normalization error
func NewNormalize(category, message string) *PipelineError {
	return New(ErrorTypeNormalize, category, message, nil)
}

// NewReconcile creates a new reconciliation error
func NewReconcile(category, message string, err error) *PipelineError {
	return New(ErrorTypeReconcile, category, message, err)
}

// NewStore creates a new store error
func NewStore(message string, err error) *PipelineError {
	return New(ErrorTypeStore, "", message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(category string, duration time.Duration) *PipelineError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, category, message, nil)
}

// NewPublisher creates a new publisher error
func NewPublisher(message string, err error) *PipelineError {
	return New(ErrorTypePublisher, "", message, err)
}

// NewRun creates a new run-level error
func NewRun(message string, err error) *PipelineError {
	return New(ErrorTypeRun, "", message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *PipelineError {
	return New(ErrorTypeConfiguration, "", message, err)
}

package errors

import (
	"context"
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryInput       Category = "input"
	CategoryNotFound    Category = "not_found"
	CategoryDecode      Category = "decode"
	CategoryEncode      Category = "encode"
	CategoryUnsupported Category = "unsupported"
	CategoryProvider    Category = "provider"
	CategoryStorage     Category = "storage"
	CategoryPipeline    Category = "pipeline"
	CategoryConfig      Category = "config"
	CategoryTransient   Category = "transient"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Category  Category
	Op        string // operation name
	Err       error
	Retryable bool
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a non-retryable ProcessingError.
func New(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err}
}

// Transient creates a retryable ProcessingError.
func Transient(op string, err error) *ProcessingError {
	return &ProcessingError{Category: CategoryTransient, Op: op, Err: err, Retryable: true}
}

// Wrap wraps an existing error with context.  An error that already carries
// a category keeps it, so the innermost classification wins.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return err
	}
	return New(category, op, err)
}

// InvalidInput reports a bad media type, malformed config or out-of-domain value.
func InvalidInput(op string, err error) *ProcessingError { return New(CategoryInput, op, err) }

// NotFound reports an unknown preset, filter or media id.
func NotFound(op string, err error) *ProcessingError { return New(CategoryNotFound, op, err) }

// Unsupported reports a provider/kind combination that is not wired.
func Unsupported(op string, err error) *ProcessingError {
	return New(CategoryUnsupported, op, err)
}

// Storage reports a usage-store failure.
func Storage(op string, err error) *ProcessingError { return New(CategoryStorage, op, err) }

// ── Provider failures ─────────────────────────────────────────────────────────

// ProviderError carries the failing vendor and the underlying cause.
type ProviderError struct {
	Provider string
	Timeout  bool
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("provider %s: timed out: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Provider wraps err as a ProviderFailure.  Deadline errors are flagged as
// timeouts so callers can tell them apart from vendor-side failures.
func Provider(op, provider string, err error) *ProcessingError {
	pe := &ProviderError{
		Provider: provider,
		Timeout:  errors.Is(err, context.DeadlineExceeded),
		Err:      err,
	}
	return &ProcessingError{Category: CategoryProvider, Op: op, Err: pe, Retryable: pe.Timeout}
}

// IsRetryable reports whether err represents a transient failure.
func IsRetryable(err error) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// IsTimeout reports whether err is a provider call that hit its deadline.
func IsTimeout(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Timeout
	}
	return false
}

// Sentinel errors for common failure modes.
var (
	ErrUnsupportedFormat    = errors.New("unsupported image format")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrUnknownPreset        = errors.New("unknown preset")
	ErrNotFound             = errors.New("not found")
	ErrEmptyInput           = errors.New("empty input")
	ErrInputTooLarge        = errors.New("input exceeds size limit")
	ErrOutOfDomain          = errors.New("value out of domain")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrMalformedResponse    = errors.New("malformed provider response")
)

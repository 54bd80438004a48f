// Package errors provides a structured error type (BuildError) for
// category-based classification of build failures in reports and the CLI.
package errors

import (
	"errors"
	"fmt"
)

// Category classifies a build error for reporting and exit-status decisions.
type Category string

const (
	// CategorySetup covers unrecoverable environment problems: unreadable
	// content root, unwritable output directory. The only fatal category.
	CategorySetup Category = "setup"

	// CategoryParse covers malformed frontmatter or an unusable document.
	CategoryParse Category = "parse"

	// CategoryRender covers markdown rendering and link resolution failures.
	CategoryRender Category = "render"

	// CategoryImageDecode covers a source image that could not be decoded.
	CategoryImageDecode Category = "image_decode"

	// CategoryImageVariant covers a single variant encode failure.
	CategoryImageVariant Category = "image_variant"

	// CategoryCache covers unreadable or corrupt cache state. Never fatal:
	// affected keys degrade to cache misses.
	CategoryCache Category = "cache"

	// CategoryInternal is the fallback for unclassified errors.
	CategoryInternal Category = "internal"
)

// Severity indicates how an error affects the run.
type Severity string

const (
	SeverityFatal   Severity = "fatal"   // aborts the run
	SeverityError   Severity = "error"   // fails one item, run continues
	SeverityWarning Severity = "warning" // degraded output, run continues
)

// BuildError is a structured error with category, severity, and context.
type BuildError struct {
	Category Category      `json:"category"`
	Severity Severity      `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"-"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context (paths, keys) for reproducibility.
type ContextFields map[string]any

func (e *BuildError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

func (e *BuildError) Unwrap() error {
	return e.Cause
}

// WithContext adds a context field to the error and returns it for chaining.
func (e *BuildError) WithContext(key string, value any) *BuildError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// Path returns the "path" context field when present, for report grouping.
func (e *BuildError) Path() string {
	if e.Context == nil {
		return ""
	}
	p, _ := e.Context["path"].(string)
	return p
}

// New creates a new BuildError.
func New(category Category, severity Severity, message string) *BuildError {
	return &BuildError{Category: category, Severity: severity, Message: message}
}

// Wrap creates a BuildError that wraps an existing error.
func Wrap(err error, category Category, severity Severity, message string) *BuildError {
	return &BuildError{Category: category, Severity: severity, Message: message, Cause: err}
}

// Setup creates a fatal setup error.
func Setup(message string, cause error) *BuildError {
	return &BuildError{Category: CategorySetup, Severity: SeverityFatal, Message: message, Cause: cause}
}

// IsCategory reports whether err (or anything it wraps) has the given category.
func IsCategory(err error, category Category) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Category == category
	}
	return false
}

// IsFatal reports whether err carries fatal severity.
func IsFatal(err error) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Severity == SeverityFatal
	}
	return false
}

// GetCategory extracts the category from an error, or CategoryInternal when
// the error is not a BuildError.
func GetCategory(err error) Category {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Category
	}
	return CategoryInternal
}

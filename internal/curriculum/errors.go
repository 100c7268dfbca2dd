package curriculum

import (
	"errors"
	"fmt"
)

// Category names a class of failure in the boundary shape {error, message}.
type Category string

const (
	CategoryConfigurationMissing Category = "ConfigurationMissing"
	CategoryConfigurationInvalid Category = "ConfigurationInvalid"
	CategoryInternal             Category = "Internal"

	// The categories below never reach the boundary as failures. Empty
	// discovery is a valid report; execution problems are folded into the
	// execution outcome. They are named so diagnostics and logs agree.
	CategoryDiscoveryEmpty         Category = "DiscoveryEmpty"
	CategoryExecutionLaunchFailure Category = "ExecutionLaunchFailure"
	CategoryExecutionNonZeroExit   Category = "ExecutionNonZeroExit"
	CategoryExecutionTimedOut      Category = "ExecutionTimedOut"
)

// Sentinels for errors.Is.
var (
	ErrConfigurationMissing = errors.New("progress pointer not found")
	ErrConfigurationInvalid = errors.New("progress pointer is invalid")
)

// Error is a categorized failure carrying a human-readable message.
type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the category sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfigurationMissing:
		return e.Category == CategoryConfigurationMissing
	case ErrConfigurationInvalid:
		return e.Category == CategoryConfigurationInvalid
	}
	return false
}

func missingf(err error, format string, args ...interface{}) *Error {
	return &Error{Category: CategoryConfigurationMissing, Message: fmt.Sprintf(format, args...), Err: err}
}

func invalidf(err error, format string, args ...interface{}) *Error {
	return &Error{Category: CategoryConfigurationInvalid, Message: fmt.Sprintf(format, args...), Err: err}
}

// CategoryOf maps any error to its boundary category.
func CategoryOf(err error) Category {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Category
	}
	switch {
	case errors.Is(err, ErrConfigurationMissing):
		return CategoryConfigurationMissing
	case errors.Is(err, ErrConfigurationInvalid):
		return CategoryConfigurationInvalid
	}
	return CategoryInternal
}

// MessageOf returns the detail message for the boundary shape.
func MessageOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		if ce.Err != nil {
			return fmt.Sprintf("%s: %v", ce.Message, ce.Err)
		}
		return ce.Message
	}
	return err.Error()
}

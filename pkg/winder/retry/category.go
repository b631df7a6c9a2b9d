// Package retry provides local recovery helpers for subscriber handlers.
//
// The engine itself never retries: a failed envelope is reported to the error
// policy once and is gone. Handlers that talk to flaky dependencies wrap the
// call in Do instead:
//
//	engine.Subscribe("Order::Placed", func(ctx context.Context, id string) error {
//	    res := retry.Do(ctx, retry.Default, func(ctx context.Context) error {
//	        return billing.Charge(ctx, id)
//	    })
//	    return res.Err
//	})
//
// Only errors categorized as transient are retried. Mark them with Transient,
// or supply Config.Retryable.
package retry

import (
	"context"
	"errors"
	"fmt"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryPermanent indicates retry won't help.
	CategoryPermanent Category = iota

	// CategoryTransient indicates retry will likely help.
	// Examples: timeouts, temporary network issues, busy downstreams.
	CategoryTransient
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Attempts is the number of attempts that have been made.
	Attempts int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Attempts)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Attempts)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Transient marks err as worth retrying.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &CategorizedError{Err: err, Category: CategoryTransient}
}

// Permanent marks err as not worth retrying, overriding any inner category.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &CategorizedError{Err: err, Category: CategoryPermanent}
}

type timeout interface {
	Timeout() bool
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	// outermost categorization wins
	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	if errors.Is(err, context.Canceled) {
		return CategoryPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}

	var t timeout
	if errors.As(err, &t) && t.Timeout() {
		return CategoryTransient
	}

	// Unknown errors are permanent (fail safe)
	return CategoryPermanent
}

// IsTransient reports whether the error should be retried.
func IsTransient(err error) bool {
	return Categorize(err) == CategoryTransient
}

package reasoning

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is returned when the provider cannot be reached or fails server-side
	ErrUnavailable = errors.New("reasoning backend unavailable")
	// ErrRateLimited is returned when the provider rejects the call for quota reasons
	ErrRateLimited = errors.New("reasoning backend rate limited")
	// ErrEmptyResponse is returned when the provider answers with no content
	ErrEmptyResponse = errors.New("reasoning backend returned no content")
)

// GenerationFailure reports a failed or timed out generation together with the
// prompt that was attempted.
type GenerationFailure struct {
	Caller string // who asked, e.g. "judge Judge Hale" or "outcome prediction"
	Prompt string
	Err    error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("generation failed for %s: %v", e.Caller, e.Err)
}

func (e *GenerationFailure) Unwrap() error {
	return e.Err
}

// Cancelled reports whether the failure came from the caller cancelling the request
func (e *GenerationFailure) Cancelled() bool {
	return errors.Is(e.Err, context.Canceled)
}

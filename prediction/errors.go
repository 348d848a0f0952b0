package prediction

import "fmt"

// MalformedOutputError is returned when the backend answered but its output does not
// satisfy the prediction schema. Nothing is persisted when it is returned.
type MalformedOutputError struct {
	Reason string
	Raw    string
}

func (e *MalformedOutputError) Error() string {
	return "malformed prediction output: " + e.Reason
}

// ValidationError reports a prediction request rejected before the backend was called
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

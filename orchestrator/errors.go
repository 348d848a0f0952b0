package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrConcurrentRunConflict is returned when a simulation already has an active run.
	// Nothing is changed when it is returned.
	ErrConcurrentRunConflict = errors.New("a scenario run is already active for this simulation")
	// ErrSimulationConcluded is returned for runs or messages against a concluded simulation
	ErrSimulationConcluded = errors.New("simulation is concluded")
)

// ValidationError reports a request that was rejected before any state changed
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Scenario run statuses
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// ScenarioRun holds the structure for the scenarioruns collection in mongo
type ScenarioRun struct {
	ID            primitive.ObjectID `json:"_id" bson:"_id"`
	SimulationID  string             `json:"simulationID" bson:"simulationID"`
	Description   string             `json:"description" bson:"description"`
	SpeakingOrder []string           `json:"speakingOrder" bson:"speakingOrder"` // participant IDs, repeats allowed
	Context       string             `json:"context,omitempty" bson:"context,omitempty"`

	// Range of sequence numbers appended by this run, both zero when nothing was appended
	StartSequence int64 `json:"startSequence" bson:"startSequence"`
	EndSequence   int64 `json:"endSequence" bson:"endSequence"`

	Status        string             `json:"status" bson:"status"` // "pending", "running", "completed", "failed"
	FailureReason string             `json:"failureReason,omitempty" bson:"failureReason,omitempty"`
	CreatedAt     primitive.DateTime `json:"createdAt" bson:"createdAt"`
	CompletedAt   primitive.DateTime `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
}

// MessageCount returns how many messages the run appended
func (r ScenarioRun) MessageCount() int64 {
	if r.StartSequence == 0 {
		return 0
	}
	return r.EndSequence - r.StartSequence + 1
}

package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Prediction statuses
const (
	PredictionCompleted = "completed"
	PredictionFailed    = "failed"
)

// Factor is a named, weighted consideration fed into an outcome prediction. A nil
// Weight leaves the factor's share implicit.
type Factor struct {
	Name        string   `json:"name" bson:"name"`
	Description string   `json:"description" bson:"description"`
	Weight      *float64 `json:"weight,omitempty" bson:"weight,omitempty"`
}

// Prediction holds the structure for the predictions collection in mongo. A
// prediction is never updated; re-running creates a new document.
type Prediction struct {
	ID                  primitive.ObjectID `json:"_id" bson:"_id"`
	SimulationID        string             `json:"simulationID" bson:"simulationID"`
	ScenarioDescription string             `json:"scenarioDescription" bson:"scenarioDescription"`
	Factors             []Factor           `json:"factors" bson:"factors"`
	FocusAreas          []string           `json:"focusAreas,omitempty" bson:"focusAreas,omitempty"`

	Probability     float64           `json:"probability" bson:"probability"` // 0.0 - 1.0
	Clamped         bool              `json:"clamped,omitempty" bson:"clamped,omitempty"`
	Rationale       string            `json:"rationale" bson:"rationale"`
	FactorAnalysis  map[string]string `json:"factorAnalysis" bson:"factorAnalysis"` // factor name -> contribution
	Recommendations []string          `json:"recommendations" bson:"recommendations"`

	Status        string             `json:"status" bson:"status"` // "completed", "failed"
	FailureReason string             `json:"failureReason,omitempty" bson:"failureReason,omitempty"`
	CreatedAt     primitive.DateTime `json:"createdAt" bson:"createdAt"`
}

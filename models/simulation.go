package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Simulation lifecycle statuses
const (
	SimulationCreated   = "created"
	SimulationActive    = "active"
	SimulationConcluded = "concluded"
)

// Simulation holds the structure for the simulations collection in mongo
type Simulation struct {
	ID               primitive.ObjectID `json:"_id" bson:"_id"`
	CaseID           string             `json:"caseID" bson:"caseID"`
	Title            string             `json:"title" bson:"title"`
	ConversationType string             `json:"conversationType" bson:"conversationType"` // e.g. "family_hearing"
	Status           string             `json:"status" bson:"status"`                     // "created", "active", "concluded"
	StartedAt        primitive.DateTime `json:"startedAt" bson:"startedAt"`
	ConcludedAt      primitive.DateTime `json:"concludedAt,omitempty" bson:"concludedAt,omitempty"`

	// ActiveRunID names the scenario run holding the simulation, across every instance
	// sharing the database. A claim older than the run claim TTL has lapsed.
	ActiveRunID  string             `json:"activeRunID,omitempty" bson:"activeRunID,omitempty"`
	RunClaimedAt primitive.DateTime `json:"runClaimedAt,omitempty" bson:"runClaimedAt,omitempty"`
}

// RunClaimed reports whether a run claim made after staleBefore holds the simulation
func (s *Simulation) RunClaimed(staleBefore time.Time) bool {
	return s.ActiveRunID != "" && s.RunClaimedAt.Time().After(staleBefore)
}

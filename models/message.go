package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Message holds the structure for the messages collection in mongo. Messages are
// append-only; Sequence runs 1..N without gaps inside a simulation.
type Message struct {
	ID            primitive.ObjectID `json:"_id" bson:"_id"`
	SimulationID  string             `json:"simulationID" bson:"simulationID"`
	ParticipantID *string            `json:"participantID,omitempty" bson:"participantID,omitempty"` // nil for system/context messages
	Content       string             `json:"content" bson:"content"`
	Sequence      int64              `json:"sequence" bson:"sequence"`
	Timestamp     primitive.DateTime `json:"timestamp" bson:"timestamp"`
}

// SpokenBy reports whether the message was authored by the given participant
func (m Message) SpokenBy(participantID string) bool {
	return m.ParticipantID != nil && *m.ParticipantID == participantID
}

package databases

// go generate: mockery --name MessageDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/courtroom-api/models"
)

const messageName = "messages"

// MessageDatabase contains the methods to use with the message database. Messages are
// never updated or deleted.
type MessageDatabase interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Message, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	LastSequence(ctx context.Context, simulationID string) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type messageDatabase struct {
	db DatabaseHelper
}

// NewMessageDatabase initializes a new instance of message database with the provided db connection
func NewMessageDatabase(db DatabaseHelper) MessageDatabase {
	return &messageDatabase{
		db: db,
	}
}

func (m *messageDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Message, error) {
	var messages []models.Message
	curr, err := m.db.Collection(messageName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = curr.Decode(&messages)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (m *messageDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return m.db.Collection(messageName).InsertOne(ctx, document, opts...)
}

// LastSequence returns the highest sequence number of the simulation, 0 when it has no messages
func (m *messageDatabase) LastSequence(ctx context.Context, simulationID string) (int64, error) {
	last := &models.Message{}
	err := m.db.Collection(messageName).FindOne(ctx,
		bson.M{"simulationID": simulationID},
		options.FindOne().SetSort(bson.D{{Key: "sequence", Value: -1}}),
	).Decode(&last)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return last.Sequence, nil
}

// EnsureIndexes creates the unique (simulationID, sequence) index that keeps the log gap
// and duplicate free even across processes
func (m *messageDatabase) EnsureIndexes(ctx context.Context) error {
	_, err := m.db.Collection(messageName).CreateIndex(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "simulationID", Value: 1}, {Key: "sequence", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("simulation_sequence"),
	})
	return err
}

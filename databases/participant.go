package databases

// go generate: mockery --name ParticipantDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/courtroom-api/models"
)

const participantName = "participants"

// ParticipantDatabase contains the methods to use with the participant database
type ParticipantDatabase interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Participant, error)
	InsertMany(ctx context.Context, participants []models.Participant, opts ...*options.InsertManyOptions) error
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

type participantDatabase struct {
	db DatabaseHelper
}

// NewParticipantDatabase initializes a new instance of participant database with the provided db connection
func NewParticipantDatabase(db DatabaseHelper) ParticipantDatabase {
	return &participantDatabase{
		db: db,
	}
}

func (p *participantDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Participant, error) {
	var participants []models.Participant
	curr, err := p.db.Collection(participantName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = curr.Decode(&participants)
	if err != nil {
		return nil, err
	}
	return participants, nil
}

// InsertMany writes all participants in one ordered batch
func (p *participantDatabase) InsertMany(ctx context.Context, participants []models.Participant, opts ...*options.InsertManyOptions) error {
	docs := make([]interface{}, len(participants))
	for i := range participants {
		docs[i] = participants[i]
	}
	return p.db.Collection(participantName).InsertMany(ctx, docs, opts...)
}

func (p *participantDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return p.db.Collection(participantName).CountDocuments(ctx, filter, opts...)
}

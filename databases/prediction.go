package databases

// go generate: mockery --name PredictionDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/courtroom-api/models"
)

const predictionName = "predictions"

// PredictionDatabase contains the methods to use with the prediction database.
// Predictions are immutable once written.
type PredictionDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Prediction, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Prediction, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
}

type predictionDatabase struct {
	db DatabaseHelper
}

// NewPredictionDatabase initializes a new instance of prediction database with the provided db connection
func NewPredictionDatabase(db DatabaseHelper) PredictionDatabase {
	return &predictionDatabase{
		db: db,
	}
}

func (p *predictionDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Prediction, error) {
	prediction := &models.Prediction{}
	err := p.db.Collection(predictionName).FindOne(ctx, filter, opts...).Decode(&prediction)
	if err != nil {
		return nil, err
	}
	return prediction, nil
}

func (p *predictionDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Prediction, error) {
	var predictions []models.Prediction
	curr, err := p.db.Collection(predictionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = curr.Decode(&predictions)
	if err != nil {
		return nil, err
	}
	return predictions, nil
}

func (p *predictionDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return p.db.Collection(predictionName).InsertOne(ctx, document, opts...)
}

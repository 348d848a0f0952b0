package databases

// go generate: mockery --name SimulationDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/courtroom-api/models"
)

const simulationName = "simulations"

// SimulationDatabase contains the methods to use with the simulation database
type SimulationDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Simulation, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Simulation, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error)
}

type simulationDatabase struct {
	db DatabaseHelper
}

// NewSimulationDatabase initializes a new instance of simulation database with the provided db connection
func NewSimulationDatabase(db DatabaseHelper) SimulationDatabase {
	return &simulationDatabase{
		db: db,
	}
}

func (s *simulationDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Simulation, error) {
	sim := &models.Simulation{}
	err := s.db.Collection(simulationName).FindOne(ctx, filter, opts...).Decode(&sim)
	if err != nil {
		return nil, err
	}
	return sim, nil
}

func (s *simulationDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Simulation, error) {
	var sims []models.Simulation
	curr, err := s.db.Collection(simulationName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = curr.Decode(&sims)
	if err != nil {
		return nil, err
	}
	return sims, nil
}

func (s *simulationDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return s.db.Collection(simulationName).InsertOne(ctx, document, opts...)
}

func (s *simulationDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	return s.db.Collection(simulationName).UpdateOne(ctx, filter, update, opts...)
}

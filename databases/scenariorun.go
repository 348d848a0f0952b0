package databases

// go generate: mockery --name ScenarioRunDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/courtroom-api/models"
)

const scenarioRunName = "scenarioruns"

// ScenarioRunDatabase contains the methods to use with the scenario run database
type ScenarioRunDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.ScenarioRun, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ScenarioRun, error)
	Upsert(ctx context.Context, run models.ScenarioRun) error
}

type scenarioRunDatabase struct {
	db DatabaseHelper
}

// NewScenarioRunDatabase initializes a new instance of scenario run database with the provided db connection
func NewScenarioRunDatabase(db DatabaseHelper) ScenarioRunDatabase {
	return &scenarioRunDatabase{
		db: db,
	}
}

func (s *scenarioRunDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.ScenarioRun, error) {
	run := &models.ScenarioRun{}
	err := s.db.Collection(scenarioRunName).FindOne(ctx, filter, opts...).Decode(&run)
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *scenarioRunDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ScenarioRun, error) {
	var runs []models.ScenarioRun
	curr, err := s.db.Collection(scenarioRunName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = curr.Decode(&runs)
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// Upsert replaces the stored run with the same ID, inserting it the first time
func (s *scenarioRunDatabase) Upsert(ctx context.Context, run models.ScenarioRun) error {
	return s.db.Collection(scenarioRunName).ReplaceOne(ctx, idFilter(run.ID), run, options.Replace().SetUpsert(true))
}

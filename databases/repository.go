package databases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/courtroom-api/models"
)

// maxAppendAttempts bounds how often AppendMessage retries after losing a sequence
// number to another writer
const maxAppendAttempts = 5

// Repository exposes the simulation records stored in mongo
type Repository struct {
	Cases        CaseDatabase
	Participants ParticipantDatabase
	Simulations  SimulationDatabase
	Messages     MessageDatabase
	Runs         ScenarioRunDatabase
	Predictions  PredictionDatabase
}

// NewRepository builds a repository on top of the given database
func NewRepository(db DatabaseHelper) *Repository {
	return &Repository{
		Cases:        NewCaseDatabase(db),
		Participants: NewParticipantDatabase(db),
		Simulations:  NewSimulationDatabase(db),
		Messages:     NewMessageDatabase(db),
		Runs:         NewScenarioRunDatabase(db),
		Predictions:  NewPredictionDatabase(db),
	}
}

// EnsureIndexes creates the indexes the repository relies on
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	return r.Messages.EnsureIndexes(ctx)
}

func idFilter(id primitive.ObjectID) bson.M {
	return bson.M{"_id": id}
}

// objectID parses a hex ID. Malformed IDs cannot exist, so they report ErrNotFound.
func objectID(kind, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%s %q: %w", kind, id, models.ErrNotFound)
	}
	return oid, nil
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %q: %w", kind, id, models.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s %q: %w", kind, id, err)
}

// CreateCase stores a new case
func (r *Repository) CreateCase(ctx context.Context, c models.Case) error {
	_, err := r.Cases.InsertOne(ctx, c)
	return err
}

// GetCase returns the case with the given ID
func (r *Repository) GetCase(ctx context.Context, id string) (*models.Case, error) {
	oid, err := objectID("case", id)
	if err != nil {
		return nil, err
	}
	c, err := r.Cases.FindOne(ctx, idFilter(oid))
	if err != nil {
		return nil, notFound("case", id, err)
	}
	return c, nil
}

// ListCases returns a page of cases, newest first
func (r *Repository) ListCases(ctx context.Context, limit, page int) ([]models.Case, error) {
	opts := newMongoPaginate(limit, page).getPaginatedOpts().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.Cases.Find(ctx, bson.M{}, opts)
}

// UpdateCaseDescription changes the only mutable field of a case
func (r *Repository) UpdateCaseDescription(ctx context.Context, id, description string, at time.Time) (*models.Case, error) {
	oid, err := objectID("case", id)
	if err != nil {
		return nil, err
	}
	matched, err := r.Cases.UpdateOne(ctx, idFilter(oid), bson.M{"$set": bson.M{
		"description": description,
		"updatedAt":   primitive.NewDateTimeFromTime(at),
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to update case %q: %w", id, err)
	}
	if matched == 0 {
		return nil, fmt.Errorf("case %q: %w", id, models.ErrNotFound)
	}
	return r.GetCase(ctx, id)
}

// CreateParticipants stores all participants of a case in one batch
func (r *Repository) CreateParticipants(ctx context.Context, participants []models.Participant) error {
	if len(participants) == 0 {
		return nil
	}
	return r.Participants.InsertMany(ctx, participants, options.InsertMany().SetOrdered(true))
}

// HasParticipants reports whether participants were already created for the case
func (r *Repository) HasParticipants(ctx context.Context, caseID string) (bool, error) {
	n, err := r.Participants.CountDocuments(ctx, bson.M{"caseID": caseID})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListParticipants returns every participant of the case
func (r *Repository) ListParticipants(ctx context.Context, caseID string) ([]models.Participant, error) {
	return r.Participants.Find(ctx, bson.M{"caseID": caseID})
}

// CreateSimulation stores a new simulation
func (r *Repository) CreateSimulation(ctx context.Context, s models.Simulation) error {
	_, err := r.Simulations.InsertOne(ctx, s)
	return err
}

// GetSimulation returns the simulation with the given ID
func (r *Repository) GetSimulation(ctx context.Context, id string) (*models.Simulation, error) {
	oid, err := objectID("simulation", id)
	if err != nil {
		return nil, err
	}
	s, err := r.Simulations.FindOne(ctx, idFilter(oid))
	if err != nil {
		return nil, notFound("simulation", id, err)
	}
	return s, nil
}

// ListSimulations returns the simulations of a case, oldest first
func (r *Repository) ListSimulations(ctx context.Context, caseID string) ([]models.Simulation, error) {
	return r.Simulations.Find(ctx, bson.M{"caseID": caseID},
		options.Find().SetSort(bson.D{{Key: "startedAt", Value: 1}}))
}

// unclaimed matches simulations no run holds, counting claims made before staleBefore
// as lapsed
func unclaimed(staleBefore time.Time) bson.A {
	return bson.A{
		bson.M{"activeRunID": bson.M{"$exists": false}},
		bson.M{"activeRunID": ""},
		bson.M{"runClaimedAt": bson.M{"$lt": primitive.NewDateTimeFromTime(staleBefore)}},
	}
}

// ActivateSimulation moves a created simulation to active and leaves any other status
// alone
func (r *Repository) ActivateSimulation(ctx context.Context, id string) error {
	oid, err := objectID("simulation", id)
	if err != nil {
		return err
	}
	_, err = r.Simulations.UpdateOne(ctx,
		bson.M{"_id": oid, "status": models.SimulationCreated},
		bson.M{"$set": bson.M{"status": models.SimulationActive}})
	if err != nil {
		return fmt.Errorf("failed to activate simulation %q: %w", id, err)
	}
	return nil
}

// ConcludeSimulation concludes a simulation unless it is already concluded or a run
// claimed after staleBefore holds it. It reports whether the simulation was concluded.
func (r *Repository) ConcludeSimulation(ctx context.Context, id string, at, staleBefore time.Time) (bool, error) {
	oid, err := objectID("simulation", id)
	if err != nil {
		return false, err
	}
	matched, err := r.Simulations.UpdateOne(ctx,
		bson.M{"_id": oid, "status": bson.M{"$ne": models.SimulationConcluded}, "$or": unclaimed(staleBefore)},
		bson.M{"$set": bson.M{"status": models.SimulationConcluded, "concludedAt": primitive.NewDateTimeFromTime(at)}})
	if err != nil {
		return false, fmt.Errorf("failed to conclude simulation %q: %w", id, err)
	}
	return matched > 0, nil
}

// ClaimRun records runID as the run holding the simulation. It fails to claim a
// concluded simulation or one held by a claim made after staleBefore.
func (r *Repository) ClaimRun(ctx context.Context, id, runID string, at, staleBefore time.Time) (bool, error) {
	oid, err := objectID("simulation", id)
	if err != nil {
		return false, err
	}
	matched, err := r.Simulations.UpdateOne(ctx,
		bson.M{"_id": oid, "status": bson.M{"$ne": models.SimulationConcluded}, "$or": unclaimed(staleBefore)},
		bson.M{"$set": bson.M{"activeRunID": runID, "runClaimedAt": primitive.NewDateTimeFromTime(at)}})
	if err != nil {
		return false, fmt.Errorf("failed to claim simulation %q: %w", id, err)
	}
	return matched > 0, nil
}

// ReleaseRun drops the claim of runID. A claim taken over by another run is kept.
func (r *Repository) ReleaseRun(ctx context.Context, id, runID string) error {
	oid, err := objectID("simulation", id)
	if err != nil {
		return err
	}
	_, err = r.Simulations.UpdateOne(ctx,
		bson.M{"_id": oid, "activeRunID": runID},
		bson.M{"$unset": bson.M{"activeRunID": "", "runClaimedAt": ""}})
	if err != nil {
		return fmt.Errorf("failed to release simulation %q: %w", id, err)
	}
	return nil
}

// AppendMessage stores msg with the next sequence number of its simulation and returns
// the stored copy. The unique (simulationID, sequence) index rejects a sequence taken
// by a concurrent writer, in which case the next free number is tried.
func (r *Repository) AppendMessage(ctx context.Context, msg models.Message) (*models.Message, error) {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		last, err := r.Messages.LastSequence(ctx, msg.SimulationID)
		if err != nil {
			return nil, fmt.Errorf("failed to read last sequence: %w", err)
		}
		msg.Sequence = last + 1
		_, err = r.Messages.InsertOne(ctx, msg)
		if err == nil {
			return &msg, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("failed to append message: %w", err)
		}
		zap.S().Debugw("sequence taken, retrying append",
			"simulationID", msg.SimulationID,
			"sequence", msg.Sequence,
			"attempt", attempt,
		)
	}
	return nil, fmt.Errorf("failed to append message to simulation %q after %d attempts", msg.SimulationID, maxAppendAttempts)
}

// ReadMessages returns the messages with from <= sequence <= to in sequence order.
// to <= 0 reads to the end of the log.
func (r *Repository) ReadMessages(ctx context.Context, simulationID string, from, to int64) ([]models.Message, error) {
	return r.Messages.Find(ctx, sequenceRange(simulationID, from, to),
		options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}}))
}

// SaveScenarioRun inserts or replaces a scenario run
func (r *Repository) SaveScenarioRun(ctx context.Context, run models.ScenarioRun) error {
	return r.Runs.Upsert(ctx, run)
}

// GetScenarioRun returns the run with the given ID
func (r *Repository) GetScenarioRun(ctx context.Context, id string) (*models.ScenarioRun, error) {
	oid, err := objectID("scenario run", id)
	if err != nil {
		return nil, err
	}
	run, err := r.Runs.FindOne(ctx, idFilter(oid))
	if err != nil {
		return nil, notFound("scenario run", id, err)
	}
	return run, nil
}

// ListScenarioRuns returns the runs of a simulation, oldest first
func (r *Repository) ListScenarioRuns(ctx context.Context, simulationID string) ([]models.ScenarioRun, error) {
	return r.Runs.Find(ctx, bson.M{"simulationID": simulationID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

// SavePrediction stores a new prediction
func (r *Repository) SavePrediction(ctx context.Context, p models.Prediction) error {
	_, err := r.Predictions.InsertOne(ctx, p)
	return err
}

// ListPredictions returns the predictions of a simulation, newest first
func (r *Repository) ListPredictions(ctx context.Context, simulationID string) ([]models.Prediction, error) {
	return r.Predictions.Find(ctx, bson.M{"simulationID": simulationID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

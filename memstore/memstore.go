// Package memstore keeps simulation records in memory. It backs the tests and the
// serve command's --memory mode.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/courtroom-api/models"
)

// Store is an in-memory implementation of the repository
type Store struct {
	mu           sync.Mutex
	cases        map[string]models.Case
	participants map[string][]models.Participant // by case ID
	simulations  map[string]models.Simulation
	messages     map[string][]models.Message // by simulation ID, sequence order
	runs         map[string]models.ScenarioRun
	predictions  []models.Prediction
}

// New returns an empty Store
func New() *Store {
	return &Store{
		cases:        make(map[string]models.Case),
		participants: make(map[string][]models.Participant),
		simulations:  make(map[string]models.Simulation),
		messages:     make(map[string][]models.Message),
		runs:         make(map[string]models.ScenarioRun),
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, models.ErrNotFound)
}

// CreateCase stores a new case
func (s *Store) CreateCase(_ context.Context, c models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.ID.Hex()
	if _, ok := s.cases[id]; ok {
		return fmt.Errorf("case %q already exists", id)
	}
	s.cases[id] = c
	return nil
}

// GetCase returns the case with the given ID
func (s *Store) GetCase(_ context.Context, id string) (*models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return nil, notFound("case", id)
	}
	return &c, nil
}

// ListCases returns a page of cases, newest first
func (s *Store) ListCases(_ context.Context, limit, page int) ([]models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Case, 0, len(s.cases))
	for _, c := range s.cases {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].ID.Hex() > out[j].ID.Hex()
		}
		return out[i].CreatedAt > out[j].CreatedAt
	})
	limit, page = max(limit, 1), max(page, 1)
	start := min((page-1)*limit, len(out))
	end := min(start+limit, len(out))
	return out[start:end], nil
}

// UpdateCaseDescription changes the only mutable field of a case
func (s *Store) UpdateCaseDescription(_ context.Context, id, description string, at time.Time) (*models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return nil, notFound("case", id)
	}
	c.Description = description
	c.UpdatedAt = primitive.NewDateTimeFromTime(at)
	s.cases[id] = c
	return &c, nil
}

// CreateParticipants stores all participants of a case at once
func (s *Store) CreateParticipants(_ context.Context, participants []models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range participants {
		s.participants[p.CaseID] = append(s.participants[p.CaseID], copyParticipant(p))
	}
	return nil
}

// HasParticipants reports whether participants were already created for the case
func (s *Store) HasParticipants(_ context.Context, caseID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants[caseID]) > 0, nil
}

// ListParticipants returns every participant of the case
func (s *Store) ListParticipants(_ context.Context, caseID string) ([]models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.participants[caseID]
	out := make([]models.Participant, len(stored))
	for i, p := range stored {
		out[i] = copyParticipant(p)
	}
	return out, nil
}

// CreateSimulation stores a new simulation
func (s *Store) CreateSimulation(_ context.Context, sim models.Simulation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simulations[sim.ID.Hex()] = sim
	return nil
}

// GetSimulation returns the simulation with the given ID
func (s *Store) GetSimulation(_ context.Context, id string) (*models.Simulation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.simulations[id]
	if !ok {
		return nil, notFound("simulation", id)
	}
	return &sim, nil
}

// ListSimulations returns the simulations of a case, oldest first
func (s *Store) ListSimulations(_ context.Context, caseID string) ([]models.Simulation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Simulation
	for _, sim := range s.simulations {
		if sim.CaseID == caseID {
			out = append(out, sim)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt == out[j].StartedAt {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		return out[i].StartedAt < out[j].StartedAt
	})
	return out, nil
}

// ActivateSimulation moves a created simulation to active and leaves any other status
// alone
func (s *Store) ActivateSimulation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.simulations[id]
	if !ok {
		return notFound("simulation", id)
	}
	if sim.Status == models.SimulationCreated {
		sim.Status = models.SimulationActive
		s.simulations[id] = sim
	}
	return nil
}

// ConcludeSimulation concludes a simulation unless it is already concluded or a run
// claimed after staleBefore holds it. It reports whether the simulation was concluded.
func (s *Store) ConcludeSimulation(_ context.Context, id string, at, staleBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.simulations[id]
	if !ok {
		return false, notFound("simulation", id)
	}
	if sim.Status == models.SimulationConcluded || sim.RunClaimed(staleBefore) {
		return false, nil
	}
	sim.Status = models.SimulationConcluded
	sim.ConcludedAt = primitive.NewDateTimeFromTime(at)
	s.simulations[id] = sim
	return true, nil
}

// ClaimRun records runID as the run holding the simulation. It fails to claim a
// concluded simulation or one held by a claim made after staleBefore.
func (s *Store) ClaimRun(_ context.Context, id, runID string, at, staleBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.simulations[id]
	if !ok {
		return false, notFound("simulation", id)
	}
	if sim.Status == models.SimulationConcluded || sim.RunClaimed(staleBefore) {
		return false, nil
	}
	sim.ActiveRunID = runID
	sim.RunClaimedAt = primitive.NewDateTimeFromTime(at)
	s.simulations[id] = sim
	return true, nil
}

// ReleaseRun drops the claim of runID. A claim taken over by another run is kept.
func (s *Store) ReleaseRun(_ context.Context, id, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sim, ok := s.simulations[id]
	if !ok {
		return notFound("simulation", id)
	}
	if sim.ActiveRunID == runID {
		sim.ActiveRunID = ""
		sim.RunClaimedAt = 0
		s.simulations[id] = sim
	}
	return nil
}

// AppendMessage stores msg with the next sequence number of its simulation
func (s *Store) AppendMessage(ctx context.Context, msg models.Message) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	log := s.messages[msg.SimulationID]
	msg.Sequence = int64(len(log)) + 1
	msg.ParticipantID = copyString(msg.ParticipantID)
	s.messages[msg.SimulationID] = append(log, msg)
	out := msg
	out.ParticipantID = copyString(msg.ParticipantID)
	return &out, nil
}

// ReadMessages returns the messages with from <= sequence <= to. to <= 0 reads to the end.
func (s *Store) ReadMessages(_ context.Context, simulationID string, from, to int64) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.messages[simulationID]
	out := make([]models.Message, 0, len(log))
	for _, m := range log {
		if m.Sequence < from || (to > 0 && m.Sequence > to) {
			continue
		}
		m.ParticipantID = copyString(m.ParticipantID)
		out = append(out, m)
	}
	return out, nil
}

// SaveScenarioRun inserts or replaces a scenario run
func (s *Store) SaveScenarioRun(_ context.Context, run models.ScenarioRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.SpeakingOrder = slices.Clone(run.SpeakingOrder)
	s.runs[run.ID.Hex()] = run
	return nil
}

// GetScenarioRun returns the run with the given ID
func (s *Store) GetScenarioRun(_ context.Context, id string) (*models.ScenarioRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, notFound("scenario run", id)
	}
	run.SpeakingOrder = slices.Clone(run.SpeakingOrder)
	return &run, nil
}

// ListScenarioRuns returns the runs of a simulation, oldest first
func (s *Store) ListScenarioRuns(_ context.Context, simulationID string) ([]models.ScenarioRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScenarioRun
	for _, run := range s.runs {
		if run.SimulationID != simulationID {
			continue
		}
		run.SpeakingOrder = slices.Clone(run.SpeakingOrder)
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out, nil
}

// SavePrediction stores a new prediction
func (s *Store) SavePrediction(_ context.Context, p models.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions = append(s.predictions, copyPrediction(p))
	return nil
}

// ListPredictions returns the predictions of a simulation, newest first
func (s *Store) ListPredictions(_ context.Context, simulationID string) ([]models.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Prediction
	for i := len(s.predictions) - 1; i >= 0; i-- {
		if s.predictions[i].SimulationID == simulationID {
			out = append(out, copyPrediction(s.predictions[i]))
		}
	}
	return out, nil
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyParticipant(p models.Participant) models.Participant {
	if p.Background != nil {
		bg := make(map[string]string, len(p.Background))
		for k, v := range p.Background {
			bg[k] = v
		}
		p.Background = bg
	}
	return p
}

func copyPrediction(p models.Prediction) models.Prediction {
	p.Factors = slices.Clone(p.Factors)
	for i, f := range p.Factors {
		if f.Weight != nil {
			w := *f.Weight
			p.Factors[i].Weight = &w
		}
	}
	p.FocusAreas = slices.Clone(p.FocusAreas)
	p.Recommendations = slices.Clone(p.Recommendations)
	if p.FactorAnalysis != nil {
		fa := make(map[string]string, len(p.FactorAnalysis))
		for k, v := range p.FactorAnalysis {
			fa[k] = v
		}
		p.FactorAnalysis = fa
	}
	return p
}

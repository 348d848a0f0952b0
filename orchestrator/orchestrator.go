// Package orchestrator drives scenario runs: agents speak in a given order and every
// utterance is appended to the simulation's shared log.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linesmerrill/courtroom-api/agents"
	"github.com/linesmerrill/courtroom-api/models"
)

// Store is the persistence the orchestrator needs
type Store interface {
	GetCase(ctx context.Context, id string) (*models.Case, error)
	GetSimulation(ctx context.Context, id string) (*models.Simulation, error)
	ActivateSimulation(ctx context.Context, id string) error
	ConcludeSimulation(ctx context.Context, id string, at, staleBefore time.Time) (bool, error)
	ClaimRun(ctx context.Context, id, runID string, at, staleBefore time.Time) (bool, error)
	ReleaseRun(ctx context.Context, id, runID string) error
	ListParticipants(ctx context.Context, caseID string) ([]models.Participant, error)
	AppendMessage(ctx context.Context, msg models.Message) (*models.Message, error)
	ReadMessages(ctx context.Context, simulationID string, from, to int64) ([]models.Message, error)
	SaveScenarioRun(ctx context.Context, run models.ScenarioRun) error
	GetScenarioRun(ctx context.Context, id string) (*models.ScenarioRun, error)
	ListScenarioRuns(ctx context.Context, simulationID string) ([]models.ScenarioRun, error)
}

// AgentBuilder builds the agent speaking for a participant
type AgentBuilder interface {
	Agent(c models.Case, conversationType string, p models.Participant, roster []models.Participant) (*agents.Agent, error)
}

// Publisher is told about every appended message
type Publisher interface {
	Publish(simulationID string, msg models.Message)
}

// RunRequest describes one scenario run
type RunRequest struct {
	SimulationID  string
	SpeakingOrder []string // participant IDs, repeats allowed
	Context       string
	Description   string
}

// DefaultRunClaimTTL is how long a run's claim on a simulation holds before another
// instance may take it over
const DefaultRunClaimTTL = 30 * time.Minute

// Orchestrator runs scenarios and accepts manual messages. Each simulation has a single
// writer at a time: appends are serialised per simulation and at most one run may be
// active for it. Runs also claim the simulation in the store, so instances sharing a
// database exclude each other.
type Orchestrator struct {
	store     Store
	agents    AgentBuilder
	publisher Publisher
	logger    *zap.SugaredLogger
	now       func() time.Time
	claimTTL  time.Duration

	mu      sync.Mutex
	active  map[string]bool
	appends map[string]*appendLock
}

type appendLock struct {
	sync.Mutex
	refs int
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithPublisher sets where appended messages are announced
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithClock sets the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithRunClaimTTL sets how long a run claim holds. It must outlast the longest run.
func WithRunClaimTTL(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.claimTTL = d
	}
}

// New returns an Orchestrator
func New(store Store, builder AgentBuilder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		agents:   builder,
		logger:   zap.S().Named("orchestrator"),
		now:      time.Now,
		claimTTL: DefaultRunClaimTTL,
		active:   make(map[string]bool),
		appends:  make(map[string]*appendLock),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// acquire marks the simulation as having an active run
func (o *Orchestrator) acquire(simulationID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active[simulationID] {
		return ErrConcurrentRunConflict
	}
	o.active[simulationID] = true
	return nil
}

func (o *Orchestrator) release(simulationID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, simulationID)
}

func (o *Orchestrator) isActive(simulationID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active[simulationID]
}

// lockAppends takes the simulation's append lock and returns its unlock. The lock is
// dropped from the registry once nobody holds or waits for it.
func (o *Orchestrator) lockAppends(simulationID string) func() {
	o.mu.Lock()
	l, ok := o.appends[simulationID]
	if !ok {
		l = &appendLock{}
		o.appends[simulationID] = l
	}
	l.refs++
	o.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		o.mu.Lock()
		defer o.mu.Unlock()
		l.refs--
		if l.refs == 0 {
			delete(o.appends, simulationID)
		}
	}
}

func (o *Orchestrator) staleBefore() time.Time {
	return o.now().Add(-o.claimTTL)
}

// claimRun claims the simulation in the store for runID
func (o *Orchestrator) claimRun(ctx context.Context, simulationID, runID string) error {
	claimed, err := o.store.ClaimRun(ctx, simulationID, runID, o.now(), o.staleBefore())
	if err != nil {
		return err
	}
	if claimed {
		return nil
	}
	sim, err := o.store.GetSimulation(ctx, simulationID)
	if err != nil {
		return err
	}
	if sim.Status == models.SimulationConcluded {
		return ErrSimulationConcluded
	}
	o.logger.Infow("simulation is held by another run", "simulationID", simulationID, "heldBy", sim.ActiveRunID)
	return ErrConcurrentRunConflict
}

// session is what a run or a manual message needs to know about its simulation
type session struct {
	sim          *models.Simulation
	legalCase    *models.Case
	participants map[string]models.Participant
	roster       []models.Participant
}

func (o *Orchestrator) load(ctx context.Context, simulationID string) (*session, error) {
	sim, err := o.store.GetSimulation(ctx, simulationID)
	if err != nil {
		return nil, err
	}
	if sim.Status == models.SimulationConcluded {
		return nil, ErrSimulationConcluded
	}

	s := &session{sim: sim}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := o.store.GetCase(gctx, sim.CaseID)
		if err != nil {
			return fmt.Errorf("failed to load case of simulation %s: %w", simulationID, err)
		}
		s.legalCase = c
		return nil
	})
	g.Go(func() error {
		roster, err := o.store.ListParticipants(gctx, sim.CaseID)
		if err != nil {
			return fmt.Errorf("failed to load participants of simulation %s: %w", simulationID, err)
		}
		s.roster = roster
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.participants = make(map[string]models.Participant, len(s.roster))
	for _, p := range s.roster {
		s.participants[p.ID.Hex()] = p
	}
	return s, nil
}

// appendMessage writes one message under the simulation's append lock and announces it.
// Manual messages re-read the simulation under the lock and are refused once it is
// concluded or while a run holds it.
func (o *Orchestrator) appendMessage(ctx context.Context, s *session, participantID *string, content string, manual bool) (*models.Message, error) {
	simulationID := s.sim.ID.Hex()
	unlock := o.lockAppends(simulationID)
	defer unlock()

	if manual {
		if o.isActive(simulationID) {
			return nil, ErrConcurrentRunConflict
		}
		sim, err := o.store.GetSimulation(ctx, simulationID)
		if err != nil {
			return nil, err
		}
		switch {
		case sim.Status == models.SimulationConcluded:
			return nil, ErrSimulationConcluded
		case sim.RunClaimed(o.staleBefore()):
			return nil, ErrConcurrentRunConflict
		}
		s.sim = sim
	}

	msg, err := o.store.AppendMessage(ctx, models.Message{
		ID:            primitive.NewObjectID(),
		SimulationID:  simulationID,
		ParticipantID: participantID,
		Content:       content,
		Timestamp:     primitive.NewDateTimeFromTime(o.now()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	// published under the lock so subscribers see sequence order
	if o.publisher != nil {
		o.publisher.Publish(msg.SimulationID, *msg)
	}

	if s.sim.Status == models.SimulationCreated {
		if err := o.store.ActivateSimulation(ctx, simulationID); err != nil {
			o.logger.Warnw("failed to activate simulation", "simulationID", simulationID, "error", err)
		} else {
			s.sim.Status = models.SimulationActive
		}
	}
	return msg, nil
}

// RunScenario lets the participants in req.SpeakingOrder speak one after another. Each
// turn sees the full log as it stands, including the turns before it. When a turn fails
// or ctx is cancelled the run is recorded as failed, the messages already appended stay
// in the log and the error is returned alongside the run.
func (o *Orchestrator) RunScenario(ctx context.Context, req RunRequest) (*models.ScenarioRun, error) {
	if len(req.SpeakingOrder) == 0 {
		return nil, &ValidationError{Field: "speakingOrder", Reason: "must name at least one participant"}
	}
	if err := o.acquire(req.SimulationID); err != nil {
		o.logger.Infow("rejected concurrent scenario run", "simulationID", req.SimulationID)
		return nil, err
	}
	defer o.release(req.SimulationID)

	s, err := o.load(ctx, req.SimulationID)
	if err != nil {
		return nil, err
	}
	built := make(map[string]*agents.Agent)
	for _, id := range req.SpeakingOrder {
		p, ok := s.participants[id]
		if !ok {
			return nil, &ValidationError{Field: "speakingOrder", Reason: fmt.Sprintf("participant %q is not part of case %s", id, s.sim.CaseID)}
		}
		if _, ok := built[id]; ok {
			continue
		}
		agent, err := o.agents.Agent(*s.legalCase, s.sim.ConversationType, p, s.roster)
		if err != nil {
			return nil, &ValidationError{Field: "speakingOrder", Reason: fmt.Sprintf("participant %q cannot speak: %v", id, err)}
		}
		built[id] = agent
	}

	runID := primitive.NewObjectID()
	if err := o.claimRun(ctx, req.SimulationID, runID.Hex()); err != nil {
		return nil, err
	}
	defer func() {
		if err := o.store.ReleaseRun(context.WithoutCancel(ctx), req.SimulationID, runID.Hex()); err != nil {
			o.logger.Errorw("failed to release run claim", "simulationID", req.SimulationID, "runID", runID.Hex(), "error", err)
		}
	}()

	run := models.ScenarioRun{
		ID:            runID,
		SimulationID:  req.SimulationID,
		Description:   req.Description,
		SpeakingOrder: append([]string(nil), req.SpeakingOrder...),
		Context:       req.Context,
		Status:        models.RunPending,
		CreatedAt:     primitive.NewDateTimeFromTime(o.now()),
	}
	if err := o.store.SaveScenarioRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save scenario run: %w", err)
	}
	run.Status = models.RunRunning
	if err := o.store.SaveScenarioRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save scenario run: %w", err)
	}

	o.logger.Infow("scenario run started",
		"simulationID", req.SimulationID,
		"runID", run.ID.Hex(),
		"turns", len(req.SpeakingOrder),
	)

	if err := o.runTurns(ctx, s, req, built, &run); err != nil {
		run.Status = models.RunFailed
		run.FailureReason = err.Error()
		run.CompletedAt = primitive.NewDateTimeFromTime(o.now())
		// the failure is recorded even when ctx is what failed
		if saveErr := o.store.SaveScenarioRun(context.WithoutCancel(ctx), run); saveErr != nil {
			o.logger.Errorw("failed to record failed scenario run", "runID", run.ID.Hex(), "error", saveErr)
		}
		o.logger.Warnw("scenario run failed",
			"simulationID", req.SimulationID,
			"runID", run.ID.Hex(),
			"appended", run.MessageCount(),
			"error", err,
		)
		return &run, err
	}

	run.Status = models.RunCompleted
	run.CompletedAt = primitive.NewDateTimeFromTime(o.now())
	if err := o.store.SaveScenarioRun(ctx, run); err != nil {
		return &run, fmt.Errorf("failed to save scenario run: %w", err)
	}
	o.logger.Infow("scenario run completed",
		"simulationID", req.SimulationID,
		"runID", run.ID.Hex(),
		"startSequence", run.StartSequence,
		"endSequence", run.EndSequence,
	)
	return &run, nil
}

func (o *Orchestrator) runTurns(ctx context.Context, s *session, req RunRequest, built map[string]*agents.Agent, run *models.ScenarioRun) error {
	memories := make(map[string]agents.Memory)

	for turn, id := range req.SpeakingOrder {
		if err := ctx.Err(); err != nil {
			return err
		}

		log, err := o.store.ReadMessages(ctx, req.SimulationID, 1, 0)
		if err != nil {
			return fmt.Errorf("failed to read transcript: %w", err)
		}

		if _, ok := memories[id]; !ok {
			memories[id] = seedMemory(s.participants[id], s.participants, log)
		}

		resp, err := built[id].Respond(ctx, agents.Input{
			Memory:    memories[id],
			Shared:    log,
			Context:   req.Context,
			Directive: req.Description,
		})
		if err != nil {
			return err
		}

		speaker := id
		msg, err := o.appendMessage(ctx, s, &speaker, resp.Utterance, false)
		if err != nil {
			return err
		}
		memories[id] = resp.Memory
		for other, mem := range memories {
			if other != id && addresses(msg.Content, s.participants[other]) {
				memories[other] = mem.Append(agents.MemoryEntry{
					Direction: agents.Inbound,
					Content:   msg.Content,
					Sequence:  msg.Sequence,
					From:      s.participants[id].Name,
				})
			}
		}

		if run.StartSequence == 0 {
			run.StartSequence = msg.Sequence
		}
		run.EndSequence = msg.Sequence
		o.logger.Debugw("turn completed",
			"runID", run.ID.Hex(),
			"turn", turn+1,
			"participantID", id,
			"sequence", msg.Sequence,
		)
	}
	return nil
}

// seedMemory rebuilds a participant's memory from the log: what it said, and what
// others said to it by name
func seedMemory(p models.Participant, participants map[string]models.Participant, log []models.Message) agents.Memory {
	id := p.ID.Hex()
	var entries []agents.MemoryEntry
	for _, m := range log {
		switch {
		case m.SpokenBy(id):
			entries = append(entries, agents.MemoryEntry{Direction: agents.Outbound, Content: m.Content, Sequence: m.Sequence})
		case addresses(m.Content, p):
			entries = append(entries, agents.MemoryEntry{Direction: agents.Inbound, Content: m.Content, Sequence: m.Sequence, From: speakerName(m, participants)})
		}
	}
	return agents.NewMemory(entries...)
}

// addresses reports whether content names the participant
func addresses(content string, p models.Participant) bool {
	name := strings.TrimSpace(p.Name)
	return name != "" && strings.Contains(strings.ToLower(content), strings.ToLower(name))
}

func speakerName(m models.Message, participants map[string]models.Participant) string {
	if m.ParticipantID == nil {
		return "The court"
	}
	if p, ok := participants[*m.ParticipantID]; ok {
		return p.Name
	}
	return "Someone"
}

// SendMessage appends content verbatim. participantID nil records a message from the
// court record rather than a participant. The reasoning backend is never consulted.
func (o *Orchestrator) SendMessage(ctx context.Context, simulationID string, participantID *string, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if o.isActive(simulationID) {
		return nil, ErrConcurrentRunConflict
	}

	s, err := o.load(ctx, simulationID)
	if err != nil {
		return nil, err
	}
	if participantID != nil {
		if _, ok := s.participants[*participantID]; !ok {
			return nil, &ValidationError{Field: "participantID", Reason: fmt.Sprintf("participant %q is not part of case %s", *participantID, s.sim.CaseID)}
		}
	}

	msg, err := o.appendMessage(ctx, s, participantID, content, true)
	if err != nil {
		return nil, err
	}
	o.logger.Debugw("message sent", "simulationID", simulationID, "sequence", msg.Sequence)
	return msg, nil
}

// ConcludeSimulation closes a simulation to further runs and messages. It waits for an
// in-flight append to finish. Concluding a concluded simulation returns it unchanged.
func (o *Orchestrator) ConcludeSimulation(ctx context.Context, simulationID string) (*models.Simulation, error) {
	if err := o.acquire(simulationID); err != nil {
		return nil, err
	}
	defer o.release(simulationID)

	unlock := o.lockAppends(simulationID)
	defer unlock()

	concluded, err := o.store.ConcludeSimulation(ctx, simulationID, o.now(), o.staleBefore())
	if err != nil {
		return nil, err
	}
	sim, err := o.store.GetSimulation(ctx, simulationID)
	if err != nil {
		return nil, err
	}
	if !concluded && sim.Status != models.SimulationConcluded {
		o.logger.Infow("cannot conclude a simulation held by a run", "simulationID", simulationID, "heldBy", sim.ActiveRunID)
		return nil, ErrConcurrentRunConflict
	}
	if concluded {
		o.logger.Infow("simulation concluded", "simulationID", simulationID)
	}
	return sim, nil
}

// GetRun returns one scenario run of a simulation
func (o *Orchestrator) GetRun(ctx context.Context, simulationID, runID string) (*models.ScenarioRun, error) {
	if _, err := o.store.GetSimulation(ctx, simulationID); err != nil {
		return nil, err
	}
	run, err := o.store.GetScenarioRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.SimulationID != simulationID {
		return nil, fmt.Errorf("scenario run %q of simulation %q: %w", runID, simulationID, models.ErrNotFound)
	}
	return run, nil
}

// ListRuns returns the scenario runs of a simulation, oldest first
func (o *Orchestrator) ListRuns(ctx context.Context, simulationID string) ([]models.ScenarioRun, error) {
	if _, err := o.store.GetSimulation(ctx, simulationID); err != nil {
		return nil, err
	}
	return o.store.ListScenarioRuns(ctx, simulationID)
}

// Transcript returns the messages with from <= sequence <= to; to <= 0 reads to the end
func (o *Orchestrator) Transcript(ctx context.Context, simulationID string, from, to int64) ([]models.Message, error) {
	if _, err := o.store.GetSimulation(ctx, simulationID); err != nil {
		return nil, err
	}
	if from < 1 {
		from = 1
	}
	return o.store.ReadMessages(ctx, simulationID, from, to)
}

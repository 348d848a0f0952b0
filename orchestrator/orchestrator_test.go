package orchestrator_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/linesmerrill/courtroom-api/agents"
	"github.com/linesmerrill/courtroom-api/memstore"
	"github.com/linesmerrill/courtroom-api/models"
	"github.com/linesmerrill/courtroom-api/orchestrator"
	"github.com/linesmerrill/courtroom-api/reasoning"
	"github.com/linesmerrill/courtroom-api/reasoning/mocks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type publisherFunc func(simulationID string, msg models.Message)

func (f publisherFunc) Publish(simulationID string, msg models.Message) {
	f(simulationID, msg)
}

type fixture struct {
	store        *memstore.Store
	backend      *mocks.Backend
	factory      *agents.Factory
	orch         *orchestrator.Orchestrator
	sim          models.Simulation
	participants map[models.Role]models.Participant
}

func (f *fixture) id(role models.Role) string {
	return f.participants[role].ID.Hex()
}

func (f *fixture) messages(t *testing.T) []models.Message {
	t.Helper()
	msgs, err := f.store.ReadMessages(context.Background(), f.sim.ID.Hex(), 1, 0)
	require.NoError(t, err)
	return msgs
}

func (f *fixture) runs(t *testing.T) []models.ScenarioRun {
	t.Helper()
	runs, err := f.store.ListScenarioRuns(context.Background(), f.sim.ID.Hex())
	require.NoError(t, err)
	return runs
}

func newFixture(t *testing.T, opts ...orchestrator.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	backend := mocks.NewBackend(t)
	reg, err := agents.DefaultRegistry()
	require.NoError(t, err)
	factory := agents.NewFactory(reg, backend, zap.NewNop().Sugar())

	c := models.Case{ID: primitive.NewObjectID(), Title: "Doe v. Doe", Type: "family"}
	require.NoError(t, store.CreateCase(ctx, c))
	participants, err := factory.CreateParticipants(c, "family_hearing", []agents.RoleBinding{
		{Role: models.RoleClient, Name: "Jane Doe"},
		{Role: models.RoleOpposingParty, Name: "John Doe"},
		{Role: models.RoleClientCounsel, Name: "Ms. Reyes"},
		{Role: models.RoleOpposingCounsel, Name: "Mr. Park"},
		{Role: models.RoleJudge, Name: "Judge Hale"},
	})
	require.NoError(t, err)
	require.NoError(t, store.CreateParticipants(ctx, participants))

	sim := models.Simulation{ID: primitive.NewObjectID(), CaseID: c.ID.Hex(), ConversationType: "family_hearing", Status: models.SimulationCreated}
	require.NoError(t, store.CreateSimulation(ctx, sim))

	byRole := make(map[models.Role]models.Participant, len(participants))
	for _, p := range participants {
		byRole[p.Role] = p
	}
	opts = append([]orchestrator.Option{orchestrator.WithLogger(zap.NewNop().Sugar())}, opts...)
	return &fixture{
		store:        store,
		backend:      backend,
		factory:      factory,
		orch:         orchestrator.New(store, factory, opts...),
		sim:          sim,
		participants: byRole,
	}
}

// peer returns a second orchestrator sharing the fixture's store, as another instance
// of the service would
func (f *fixture) peer(opts ...orchestrator.Option) *orchestrator.Orchestrator {
	opts = append([]orchestrator.Option{orchestrator.WithLogger(zap.NewNop().Sugar())}, opts...)
	return orchestrator.New(f.store, f.factory, opts...)
}

func (f *fixture) status(t *testing.T) *models.Simulation {
	t.Helper()
	sim, err := f.store.GetSimulation(context.Background(), f.sim.ID.Hex())
	require.NoError(t, err)
	return sim
}

func speakerIs(name string) interface{} {
	return mock.MatchedBy(func(req reasoning.Request) bool {
		return strings.HasPrefix(req.SystemFraming, "You are "+name)
	})
}

func TestOrchestrator_RunScenario(t *testing.T) {
	f := newFixture(t)

	f.backend.On("Generate", mock.Anything, mock.MatchedBy(func(req reasoning.Request) bool {
		return strings.HasPrefix(req.SystemFraming, "You are Judge Hale") && len(req.Context) == 0 &&
			req.Directive == "Opening statements" && req.Background == "Interim custody hearing"
	})).Return("We are here on the custody petition.", nil).Once()
	f.backend.On("Generate", mock.Anything, mock.MatchedBy(func(req reasoning.Request) bool {
		return strings.HasPrefix(req.SystemFraming, "You are Ms. Reyes") && len(req.Context) == 1 &&
			req.Context[0].Speaker == "Judge Hale"
	})).Return("My client asks for joint custody.", nil).Once()
	f.backend.On("Generate", mock.Anything, mock.MatchedBy(func(req reasoning.Request) bool {
		return strings.HasPrefix(req.SystemFraming, "You are Mr. Park") && len(req.Context) == 2
	})).Return("We oppose.", nil).Once()

	run, err := f.orch.RunScenario(context.Background(), orchestrator.RunRequest{
		SimulationID:  f.sim.ID.Hex(),
		SpeakingOrder: []string{f.id(models.RoleJudge), f.id(models.RoleClientCounsel), f.id(models.RoleOpposingCounsel)},
		Context:       "Interim custody hearing",
		Description:   "Opening statements",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, run.Status)
	assert.Equal(t, int64(1), run.StartSequence)
	assert.Equal(t, int64(3), run.EndSequence)
	assert.Equal(t, int64(3), run.MessageCount())

	msgs := f.messages(t)
	var got []string
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Sequence)
		got = append(got, *m.ParticipantID+": "+m.Content)
	}
	want := []string{
		f.id(models.RoleJudge) + ": We are here on the custody petition.",
		f.id(models.RoleClientCounsel) + ": My client asks for joint custody.",
		f.id(models.RoleOpposingCounsel) + ": We oppose.",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}

	runs := f.runs(t)
	require.Len(t, runs, 1)
	assert.Equal(t, *run, runs[0])

	sim, err := f.store.GetSimulation(context.Background(), f.sim.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.SimulationActive, sim.Status)
}

func TestOrchestrator_RunScenarioRepeatSpeakerKeepsMemory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.id(models.RoleClient)

	_, err := f.orch.SendMessage(ctx, f.sim.ID.Hex(), &client, "I have raised the children alone.")
	require.NoError(t, err)

	f.backend.On("Generate", mock.Anything, mock.MatchedBy(func(req reasoning.Request) bool {
		return strings.HasPrefix(req.SystemFraming, "You are Jane Doe") &&
			cmp.Equal(req.Memory, []string{"You said: I have raised the children alone."})
	})).Return("I work nights.", nil).Once()
	f.backend.On("Generate", mock.Anything, speakerIs("Judge Hale")).Return("Noted.", nil).Once()
	f.backend.On("Generate", mock.Anything, mock.MatchedBy(func(req reasoning.Request) bool {
		return strings.HasPrefix(req.SystemFraming, "You are Jane Doe") && cmp.Equal(req.Memory, []string{
			"You said: I have raised the children alone.",
			"You were asked: Testimony",
			"You said: I work nights.",
		})
	})).Return("My mother helps.", nil).Once()

	run, err := f.orch.RunScenario(ctx, orchestrator.RunRequest{
		SimulationID:  f.sim.ID.Hex(),
		SpeakingOrder: []string{client, f.id(models.RoleJudge), client},
		Description:   "Testimony",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), run.StartSequence)
	assert.Equal(t, int64(4), run.EndSequence)
	assert.Len(t, f.messages(t), 4)
}

func TestOrchestrator_RunScenarioFailureKeepsPartialProgress(t *testing.T) {
	f := newFixture(t)

	f.backend.On("Generate", mock.Anything, speakerIs("Judge Hale")).Return("Proceed.", nil).Once()
	f.backend.On("Generate", mock.Anything, speakerIs("Ms. Reyes")).Return("", reasoning.ErrUnavailable).Once()

	run, err := f.orch.RunScenario(context.Background(), orchestrator.RunRequest{
		SimulationID:  f.sim.ID.Hex(),
		SpeakingOrder: []string{f.id(models.RoleJudge), f.id(models.RoleClientCounsel), f.id(models.RoleOpposingCounsel)},
	})

	var failure *reasoning.GenerationFailure
	require.ErrorAs(t, err, &failure)
	assert.ErrorIs(t, err, reasoning.ErrUnavailable)
	require.NotNil(t, run)
	assert.Equal(t, models.RunFailed, run.Status)
	assert.NotEmpty(t, run.FailureReason)
	assert.Equal(t, int64(1), run.MessageCount())

	assert.Len(t, f.messages(t), 1)
	runs := f.runs(t)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunFailed, runs[0].Status)
	f.backend.AssertNotCalled(t, "Generate", mock.Anything, speakerIs("Mr. Park"))
}

func TestOrchestrator_RunScenarioCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, orchestrator.WithPublisher(publisherFunc(func(string, models.Message) {
		cancel()
	})))

	f.backend.On("Generate", mock.Anything, speakerIs("Judge Hale")).Return("Proceed.", nil).Once()

	run, err := f.orch.RunScenario(ctx, orchestrator.RunRequest{
		SimulationID:  f.sim.ID.Hex(),
		SpeakingOrder: []string{f.id(models.RoleJudge), f.id(models.RoleClientCounsel)},
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, run)
	assert.Equal(t, models.RunFailed, run.Status)
	assert.Len(t, f.messages(t), 1)

	runs := f.runs(t)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunFailed, runs[0].Status)
}

func TestOrchestrator_ConcurrentRunsConflict(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})

	f.backend.On("Generate", mock.Anything, speakerIs("Judge Hale")).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return("Order.", nil).Once()

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = f.orch.RunScenario(context.Background(), orchestrator.RunRequest{
			SimulationID:  f.sim.ID.Hex(),
			SpeakingOrder: []string{f.id(models.RoleJudge)},
		})
	}()

	<-started
	run, err := f.orch.RunScenario(context.Background(), orchestrator.RunRequest{
		SimulationID:  f.sim.ID.Hex(),
		SpeakingOrder: []string{f.id(models.RoleClient)},
	})
	assert.ErrorIs(t, err, orchestrator.ErrConcurrentRunConflict)
	assert.Nil(t, run)

	client := f.id(models.RoleClient)
	_, err = f.orch.SendMessage(context.Background(), f.sim.ID.Hex(), &client, "Can I speak?")
	assert.ErrorIs(t, err, orchestrator.ErrConcurrentRunConflict)
	_, err = f.orch.ConcludeSimulation(context.Background(), f.sim.ID.Hex())
	assert.ErrorIs(t, err, orchestrator.ErrConcurrentRunConflict)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)

	msgs := f.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Order.", msgs[0].Content)
	assert.Len(t, f.runs(t), 1)
}

func TestOrchestrator_RunClaimExcludesOtherInstances(t *testing.T) {
	f := newFixture(t)
	other := f.peer()
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})

	f.backend.On("Generate", mock.Anything, speakerIs("Judge Hale")).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return("Order.", nil).Once()

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = f.orch.RunScenario(ctx, orchestrator.RunRequest{
			SimulationID:  f.sim.ID.Hex(),
			SpeakingOrder: []string{f.id(models.RoleJudge)},
		})
	}()

	<-started
	assert.NotEmpty(t, f.status(t).ActiveRunID)

	run, err := other.RunScenario(ctx, orchestrator.RunRequest{
		SimulationID:  f.sim.ID.Hex(),
		SpeakingOrder: []string{f.id(models.RoleClient)},
	})
	assert.ErrorIs(t, err, orchestrator.ErrConcurrentRunConflict)
	assert.Nil(t, run)
	_, err = other.SendMessage(ctx, f.sim.ID.Hex(), nil, "Recess.")
	assert.ErrorIs(t, err, orchestrator.ErrConcurrentRunConflict)
	_, err = other.ConcludeSimulation(ctx, f.sim.ID.Hex())
	assert.ErrorIs(t, err, orchestrator.ErrConcurrentRunConflict)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Empty(t, f.status(t).ActiveRunID)
	assert.Len(t, f.messages(t), 1)

	_, err = other.SendMessage(ctx, f.sim.ID.Hex(), nil, "Recess.")
	require.NoError(t, err)
	sim, err := other.ConcludeSimulation(ctx, f.sim.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.SimulationConcluded, sim.Status)
}

func TestOrchestrator_LapsedRunClaimIsTakenOver(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	f := newFixture(t, orchestrator.WithClock(func() time.Time { return now }), orchestrator.WithRunClaimTTL(time.Hour))
	ctx := context.Background()

	abandoned := primitive.NewObjectID().Hex()
	claimed, err := f.store.ClaimRun(ctx, f.sim.ID.Hex(), abandoned, now.Add(-2*time.Hour), now.Add(-3*time.Hour))
	require.NoError(t, err)
	require.True(t, claimed)

	f.backend.On("Generate", mock.Anything, speakerIs("Judge Hale")).Return("We resume.", nil).Once()
	run, err := f.orch.RunScenario(ctx, orchestrator.RunRequest{
		SimulationID:  f.sim.ID.Hex(),
		SpeakingOrder: []string{f.id(models.RoleJudge)},
	})
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, run.Status)
	assert.Empty(t, f.status(t).ActiveRunID)
}

func TestOrchestrator_RunsOnDifferentSimulationsAreIndependent(t *testing.T) {
	f := newFixture(t)
	other := models.Simulation{ID: primitive.NewObjectID(), CaseID: f.sim.CaseID, ConversationType: "family_hearing", Status: models.SimulationCreated}
	require.NoError(t, f.store.CreateSimulation(context.Background(), other))

	var mu sync.Mutex
	inFlight, peak := 0, 0
	f.backend.On("Generate", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			mu.Lock()
			inFlight++
			peak = max(peak, inFlight)
			mu.Unlock()
			time.Sleep(50 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
		}).
		Return("Statement.", nil)

	var wg sync.WaitGroup
	for _, simID := range []string{f.sim.ID.Hex(), other.ID.Hex()} {
		wg.Add(1)
		go func(simID string) {
			defer wg.Done()
			_, err := f.orch.RunScenario(context.Background(), orchestrator.RunRequest{
				SimulationID:  simID,
				SpeakingOrder: []string{f.id(models.RoleJudge), f.id(models.RoleClient)},
			})
			assert.NoError(t, err)
		}(simID)
	}
	wg.Wait()

	for _, simID := range []string{f.sim.ID.Hex(), other.ID.Hex()} {
		msgs, err := f.store.ReadMessages(context.Background(), simID, 1, 0)
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
	}
	assert.Equal(t, 2, peak)
}

func TestOrchestrator_RunScenarioValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	foreign := primitive.NewObjectID().Hex()
	tests := []struct {
		name  string
		req   orchestrator.RunRequest
		field string
	}{
		{
			name:  "empty speaking order",
			req:   orchestrator.RunRequest{SimulationID: f.sim.ID.Hex()},
			field: "speakingOrder",
		},
		{
			name:  "participant from another case",
			req:   orchestrator.RunRequest{SimulationID: f.sim.ID.Hex(), SpeakingOrder: []string{f.id(models.RoleJudge), foreign}},
			field: "speakingOrder",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, err := f.orch.RunScenario(ctx, tt.req)
			var invalid *orchestrator.ValidationError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.field, invalid.Field)
			assert.Nil(t, run)
		})
	}

	_, err := f.orch.RunScenario(ctx, orchestrator.RunRequest{SimulationID: primitive.NewObjectID().Hex(), SpeakingOrder: []string{f.id(models.RoleJudge)}})
	assert.ErrorIs(t, err, models.ErrNotFound)

	// mediation has no judge, so the judge cannot be framed for it
	mediation := models.Simulation{ID: primitive.NewObjectID(), CaseID: f.sim.CaseID, ConversationType: "mediation", Status: models.SimulationCreated}
	require.NoError(t, f.store.CreateSimulation(ctx, mediation))
	run, err := f.orch.RunScenario(ctx, orchestrator.RunRequest{SimulationID: mediation.ID.Hex(), SpeakingOrder: []string{f.id(models.RoleClient), f.id(models.RoleJudge)}})
	var invalid *orchestrator.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, "cannot speak")
	assert.Nil(t, run)
	runs, err := f.store.ListScenarioRuns(ctx, mediation.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, runs)

	assert.Empty(t, f.runs(t))
	assert.Empty(t, f.messages(t))
}

func TestOrchestrator_SendMessage(t *testing.T) {
	var published []models.Message
	f := newFixture(t, orchestrator.WithPublisher(publisherFunc(func(_ string, m models.Message) {
		published = append(published, m)
	})))
	ctx := context.Background()
	judge := f.id(models.RoleJudge)

	first, err := f.orch.SendMessage(ctx, f.sim.ID.Hex(), nil, "  Case called: Doe v. Doe.  ")
	require.NoError(t, err)
	assert.Nil(t, first.ParticipantID)
	assert.Equal(t, "  Case called: Doe v. Doe.  ", first.Content)
	assert.Equal(t, int64(1), first.Sequence)

	second, err := f.orch.SendMessage(ctx, f.sim.ID.Hex(), &judge, "Be seated.")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Sequence)
	assert.True(t, second.SpokenBy(judge))

	require.Len(t, published, 2)
	assert.Equal(t, *second, published[1])
	f.backend.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)

	_, err = f.orch.SendMessage(ctx, f.sim.ID.Hex(), nil, "   ")
	var invalid *orchestrator.ValidationError
	assert.ErrorAs(t, err, &invalid)

	stranger := primitive.NewObjectID().Hex()
	_, err = f.orch.SendMessage(ctx, f.sim.ID.Hex(), &stranger, "Hello")
	assert.ErrorAs(t, err, &invalid)
	assert.Len(t, f.messages(t), 2)
}

func TestOrchestrator_ConcludeSimulation(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	f := newFixture(t, orchestrator.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	sim, err := f.orch.ConcludeSimulation(ctx, f.sim.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.SimulationConcluded, sim.Status)
	assert.Equal(t, primitive.NewDateTimeFromTime(now), sim.ConcludedAt)

	again, err := f.orch.ConcludeSimulation(ctx, f.sim.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, sim.ConcludedAt, again.ConcludedAt)

	_, err = f.orch.SendMessage(ctx, f.sim.ID.Hex(), nil, "Late filing")
	assert.ErrorIs(t, err, orchestrator.ErrSimulationConcluded)
	_, err = f.orch.RunScenario(ctx, orchestrator.RunRequest{SimulationID: f.sim.ID.Hex(), SpeakingOrder: []string{f.id(models.RoleJudge)}})
	assert.ErrorIs(t, err, orchestrator.ErrSimulationConcluded)
}

func TestOrchestrator_ConcludeWaitsForInFlightMessage(t *testing.T) {
	var f *fixture
	var once sync.Once
	concluded := make(chan error, 1)
	concludedEarly := false
	f = newFixture(t, orchestrator.WithPublisher(publisherFunc(func(simulationID string, _ models.Message) {
		once.Do(func() {
			go func() {
				_, err := f.orch.ConcludeSimulation(context.Background(), simulationID)
				concluded <- err
			}()
			select {
			case err := <-concluded:
				concludedEarly = true
				concluded <- err
			case <-time.After(50 * time.Millisecond):
			}
		})
	})))
	ctx := context.Background()

	msg, err := f.orch.SendMessage(ctx, f.sim.ID.Hex(), nil, "Case called: Doe v. Doe.")
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.Sequence)

	require.NoError(t, <-concluded)
	assert.False(t, concludedEarly, "conclude must wait for the append in flight")

	sim := f.status(t)
	assert.Equal(t, models.SimulationConcluded, sim.Status)
	assert.NotZero(t, sim.ConcludedAt)

	_, err = f.orch.SendMessage(ctx, f.sim.ID.Hex(), nil, "Late filing")
	assert.ErrorIs(t, err, orchestrator.ErrSimulationConcluded)
	assert.Len(t, f.messages(t), 1)
}

func TestOrchestrator_MessageAfterConcludeByAnotherInstance(t *testing.T) {
	f := newFixture(t)
	other := f.peer()
	ctx := context.Background()

	_, err := f.orch.SendMessage(ctx, f.sim.ID.Hex(), nil, "Case called.")
	require.NoError(t, err)
	_, err = other.ConcludeSimulation(ctx, f.sim.ID.Hex())
	require.NoError(t, err)

	_, err = f.orch.SendMessage(ctx, f.sim.ID.Hex(), nil, "Late filing")
	assert.ErrorIs(t, err, orchestrator.ErrSimulationConcluded)
	assert.Equal(t, models.SimulationConcluded, f.status(t).Status)
	assert.Len(t, f.messages(t), 1)
}

func TestOrchestrator_AddressedMessagesReachMemory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	judge := f.id(models.RoleJudge)
	client := f.id(models.RoleClient)

	_, err := f.orch.SendMessage(ctx, f.sim.ID.Hex(), &judge, "Jane Doe, describe the current schedule.")
	require.NoError(t, err)
	_, err = f.orch.SendMessage(ctx, f.sim.ID.Hex(), &judge, "Mr. Park, you will respond after.")
	require.NoError(t, err)

	f.backend.On("Generate", mock.Anything, mock.MatchedBy(func(req reasoning.Request) bool {
		return strings.HasPrefix(req.SystemFraming, "You are Jane Doe") &&
			cmp.Equal(req.Memory, []string{"Judge Hale said to you: Jane Doe, describe the current schedule."})
	})).Return("The children stay with me on weekdays.", nil).Once()
	f.backend.On("Generate", mock.Anything, speakerIs("Judge Hale")).Return("JANE DOE, who covers the nights?", nil).Once()
	f.backend.On("Generate", mock.Anything, mock.MatchedBy(func(req reasoning.Request) bool {
		return strings.HasPrefix(req.SystemFraming, "You are Jane Doe") && cmp.Equal(req.Memory, []string{
			"Judge Hale said to you: Jane Doe, describe the current schedule.",
			"You were asked: Testimony",
			"You said: The children stay with me on weekdays.",
			"Judge Hale said to you: JANE DOE, who covers the nights?",
		})
	})).Return("My mother does.", nil).Once()

	_, err = f.orch.RunScenario(ctx, orchestrator.RunRequest{
		SimulationID:  f.sim.ID.Hex(),
		SpeakingOrder: []string{client, judge, client},
		Description:   "Testimony",
	})
	require.NoError(t, err)
	assert.Len(t, f.messages(t), 5)
}

func TestOrchestrator_TranscriptAndRuns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, content := range []string{"one", "two", "three"} {
		_, err := f.orch.SendMessage(ctx, f.sim.ID.Hex(), nil, content)
		require.NoError(t, err)
	}

	msgs, err := f.orch.Transcript(ctx, f.sim.ID.Hex(), 0, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[1].Content)

	runs, err := f.orch.ListRuns(ctx, f.sim.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, runs)

	f.backend.On("Generate", mock.Anything, speakerIs("Judge Hale")).Return("Proceed.", nil)
	f.backend.On("Generate", mock.Anything, speakerIs("Ms. Reyes")).Return("Thank you, Your Honor.", nil)

	first, err := f.orch.RunScenario(ctx, orchestrator.RunRequest{
		SimulationID:  f.sim.ID.Hex(),
		SpeakingOrder: []string{f.id(models.RoleJudge), f.id(models.RoleClientCounsel)},
	})
	require.NoError(t, err)
	recess, err := f.orch.SendMessage(ctx, f.sim.ID.Hex(), nil, "Recess.")
	require.NoError(t, err)
	second, err := f.orch.RunScenario(ctx, orchestrator.RunRequest{
		SimulationID:  f.sim.ID.Hex(),
		SpeakingOrder: []string{f.id(models.RoleJudge)},
	})
	require.NoError(t, err)

	runs, err = f.orch.ListRuns(ctx, f.sim.ID.Hex())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first.ID, runs[0].ID)
	assert.Equal(t, second.ID, runs[1].ID)
	for i := 0; i+1 < len(runs); i++ {
		assert.Less(t, runs[i].EndSequence, runs[i+1].StartSequence)
	}
	assert.Equal(t, int64(4), runs[0].StartSequence)
	assert.Equal(t, int64(5), runs[0].EndSequence)
	assert.Equal(t, int64(6), recess.Sequence)
	assert.Equal(t, int64(7), runs[1].StartSequence)
	assert.Equal(t, int64(7), runs[1].EndSequence)

	log, err := f.orch.Transcript(ctx, f.sim.ID.Hex(), 1, 0)
	require.NoError(t, err)
	require.Len(t, log, 7)
	for i, m := range log {
		assert.Equal(t, int64(i+1), m.Sequence)
	}

	got, err := f.orch.GetRun(ctx, f.sim.ID.Hex(), second.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, *second, *got)
	_, err = f.orch.GetRun(ctx, f.sim.ID.Hex(), primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.orch.Transcript(ctx, "missing", 1, 0)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	_, err = f.orch.ListRuns(ctx, "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

// Package prediction estimates the outcome of a simulated proceeding from its
// transcript and a set of weighted case factors.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linesmerrill/courtroom-api/models"
	"github.com/linesmerrill/courtroom-api/reasoning"
)

// Store is the persistence the engine needs
type Store interface {
	GetSimulation(ctx context.Context, id string) (*models.Simulation, error)
	GetCase(ctx context.Context, id string) (*models.Case, error)
	ListParticipants(ctx context.Context, caseID string) ([]models.Participant, error)
	ReadMessages(ctx context.Context, simulationID string, from, to int64) ([]models.Message, error)
	SavePrediction(ctx context.Context, p models.Prediction) error
}

// Request asks for one prediction
type Request struct {
	SimulationID        string
	ScenarioDescription string
	Factors             []models.Factor
	FocusAreas          []string
}

// Engine produces outcome predictions. Each call makes exactly one backend request;
// nothing is retried.
type Engine struct {
	store           Store
	backend         reasoning.StructuredGenerator
	logger          *zap.SugaredLogger
	now             func() time.Time
	transcriptLimit int
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock sets the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithTranscriptLimit keeps only the most recent n messages in the prompt. n <= 0 sends
// the whole transcript.
func WithTranscriptLimit(n int) Option {
	return func(e *Engine) {
		e.transcriptLimit = n
	}
}

// NewEngine returns an Engine
func NewEngine(store Store, backend reasoning.StructuredGenerator, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		backend: backend,
		logger:  zap.S().Named("prediction"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// validateFactors checks the factors and returns them with trimmed names, otherwise as
// given.
func validateFactors(factors []models.Factor) ([]models.Factor, error) {
	if len(factors) == 0 {
		return nil, &ValidationError{Field: "factors", Reason: "at least one factor is required"}
	}
	seen := make(map[string]bool, len(factors))
	out := make([]models.Factor, len(factors))
	for i, f := range factors {
		f.Name = strings.TrimSpace(f.Name)
		switch {
		case f.Name == "":
			return nil, &ValidationError{Field: "factors", Reason: fmt.Sprintf("factor %d has no name", i+1)}
		case seen[factorKey(f.Name)]:
			return nil, &ValidationError{Field: "factors", Reason: fmt.Sprintf("factor %q is listed twice", f.Name)}
		case f.Weight != nil && (*f.Weight < 0 || math.IsNaN(*f.Weight) || math.IsInf(*f.Weight, 0)):
			return nil, &ValidationError{Field: "factors", Reason: fmt.Sprintf("factor %q has invalid weight %v", f.Name, *f.Weight)}
		}
		seen[factorKey(f.Name)] = true
		out[i] = f
	}
	return out, nil
}

// shares returns each factor's relative weight, summing to 1. Factors without a weight
// split what the explicit weights leave of 1 equally. When the explicit weights already
// reach 1 they get the mean explicit weight instead. All zero means equal shares.
func shares(factors []models.Factor) []float64 {
	out := make([]float64, len(factors))
	var explicit float64
	var weighted, implicit int
	for _, f := range factors {
		if f.Weight == nil {
			implicit++
			continue
		}
		explicit += *f.Weight
		weighted++
	}

	var fill float64
	if implicit > 0 {
		if explicit < 1 {
			fill = (1 - explicit) / float64(implicit)
		} else {
			fill = explicit / float64(weighted)
		}
	}

	var total float64
	for i, f := range factors {
		if f.Weight == nil {
			out[i] = fill
		} else {
			out[i] = *f.Weight
		}
		total += out[i]
	}
	for i := range out {
		if total == 0 {
			out[i] = 1 / float64(len(out))
		} else {
			out[i] /= total
		}
	}
	return out
}

// Predict asks the backend for an outcome prediction and stores it. When the backend
// fails a prediction with status failed is stored and returned together with a
// *reasoning.GenerationFailure. When the output is malformed a *MalformedOutputError is
// returned and nothing is stored.
func (e *Engine) Predict(ctx context.Context, req Request) (*models.Prediction, error) {
	if strings.TrimSpace(req.ScenarioDescription) == "" {
		return nil, &ValidationError{Field: "scenarioDescription", Reason: "must not be empty"}
	}
	factors, err := validateFactors(req.Factors)
	if err != nil {
		return nil, err
	}

	sim, err := e.store.GetSimulation(ctx, req.SimulationID)
	if err != nil {
		return nil, err
	}

	in := promptInput{scenario: req.ScenarioDescription, factors: factors, shares: shares(factors), focusAreas: req.FocusAreas}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := e.store.GetCase(gctx, sim.CaseID)
		if err != nil {
			return fmt.Errorf("failed to load case %s: %w", sim.CaseID, err)
		}
		in.legalCase = *c
		return nil
	})
	g.Go(func() error {
		participants, err := e.store.ListParticipants(gctx, sim.CaseID)
		if err != nil {
			return fmt.Errorf("failed to load participants: %w", err)
		}
		in.participants = participants
		return nil
	})
	g.Go(func() error {
		msgs, err := e.store.ReadMessages(gctx, req.SimulationID, 1, 0)
		if err != nil {
			return fmt.Errorf("failed to read transcript: %w", err)
		}
		if e.transcriptLimit > 0 && len(msgs) > e.transcriptLimit {
			msgs = msgs[len(msgs)-e.transcriptLimit:]
		}
		in.transcript = msgs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prediction := models.Prediction{
		ID:                  primitive.NewObjectID(),
		SimulationID:        req.SimulationID,
		ScenarioDescription: req.ScenarioDescription,
		Factors:             factors,
		FocusAreas:          req.FocusAreas,
		CreatedAt:           primitive.NewDateTimeFromTime(e.now()),
	}

	prompt := renderPrompt(in)
	raw, err := e.backend.GenerateStructured(ctx, prompt, outputSchema)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		failure := &reasoning.GenerationFailure{Caller: "outcome prediction", Prompt: prompt, Err: err}
		prediction.Status = models.PredictionFailed
		prediction.FailureReason = err.Error()
		if saveErr := e.store.SavePrediction(context.WithoutCancel(ctx), prediction); saveErr != nil {
			e.logger.Errorw("failed to record failed prediction", "simulationID", req.SimulationID, "error", saveErr)
		}
		e.logger.Warnw("outcome prediction failed", "simulationID", req.SimulationID, "error", err)
		return &prediction, failure
	}

	parsed, err := parseOutput(raw, factors)
	if err != nil {
		e.logger.Warnw("malformed prediction output", "simulationID", req.SimulationID, "error", err)
		return nil, err
	}

	prediction.Probability = parsed.probability
	prediction.Clamped = parsed.clamped
	prediction.Rationale = parsed.rationale
	prediction.FactorAnalysis = parsed.factorAnalysis
	prediction.Recommendations = parsed.recommendations
	prediction.Status = models.PredictionCompleted
	if err := e.store.SavePrediction(ctx, prediction); err != nil {
		return nil, fmt.Errorf("failed to save prediction: %w", err)
	}

	e.logger.Infow("outcome predicted",
		"simulationID", req.SimulationID,
		"predictionID", prediction.ID.Hex(),
		"probability", prediction.Probability,
		"clamped", prediction.Clamped,
	)
	return &prediction, nil
}

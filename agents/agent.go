// Package agents builds the role-bound participants of a simulation and lets them
// speak through a reasoning backend.
package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/linesmerrill/courtroom-api/models"
	"github.com/linesmerrill/courtroom-api/reasoning"
)

// Input is everything an agent sees when asked to speak
type Input struct {
	Memory    Memory
	Shared    []models.Message // full transcript so far, oldest first
	Context   string           // background supplied for the scenario run
	Directive string
}

// Response is an agent's utterance plus its memory after the turn
type Response struct {
	Utterance string
	Memory    Memory
}

// Agent is a participant bound to a role framing and a reasoning backend
type Agent struct {
	participant models.Participant
	framing     string
	roster      map[string]models.Participant
	backend     reasoning.Generator
	logger      *zap.SugaredLogger
}

// Participant returns the participant the agent speaks for
func (a *Agent) Participant() models.Participant {
	return a.participant
}

// Framing returns the rendered system instructions for the agent
func (a *Agent) Framing() string {
	return a.framing
}

// Respond asks the backend for the agent's next utterance. The memory in in is left
// untouched; the returned memory holds the directive and the utterance on top of it.
func (a *Agent) Respond(ctx context.Context, in Input) (Response, error) {
	req := reasoning.Request{
		SystemFraming: a.framing,
		Context:       a.turns(in.Shared),
		Background:    in.Context,
		Memory:        in.Memory.notes(),
		Directive:     in.Directive,
	}

	text, err := a.backend.Generate(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = reasoning.ErrEmptyResponse
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		a.logger.Warnw("agent failed to respond",
			"participantID", a.participant.ID.Hex(),
			"role", a.participant.Role,
			"error", err,
		)
		return Response{}, &reasoning.GenerationFailure{
			Caller: a.caller(),
			Prompt: in.Directive,
			Err:    err,
		}
	}

	utterance := strings.TrimSpace(text)
	mem := in.Memory
	if strings.TrimSpace(in.Directive) != "" {
		mem = mem.Append(MemoryEntry{Direction: Inbound, Content: strings.TrimSpace(in.Directive)})
	}
	mem = mem.Append(MemoryEntry{Direction: Outbound, Content: utterance})
	return Response{Utterance: utterance, Memory: mem}, nil
}

func (a *Agent) caller() string {
	return fmt.Sprintf("%s %s (%s)", a.participant.Role, a.participant.Name, a.participant.ID.Hex())
}

func (a *Agent) turns(messages []models.Message) []reasoning.Turn {
	out := make([]reasoning.Turn, len(messages))
	for i, m := range messages {
		t := reasoning.Turn{Sequence: m.Sequence, Content: m.Content}
		if m.ParticipantID != nil {
			if p, ok := a.roster[*m.ParticipantID]; ok {
				t.Speaker = p.Name
				t.Role = string(p.Role)
			} else {
				t.Speaker = "Unknown participant"
			}
		}
		out[i] = t
	}
	return out
}

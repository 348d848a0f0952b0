package agents

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/courtroom-api/models"
	"github.com/linesmerrill/courtroom-api/reasoning"
)

const defaultJudgeName = "Judge"

// RoleBinding assigns a name and background to a role
type RoleBinding struct {
	Role       models.Role       `json:"role"`
	Name       string            `json:"name"`
	Background map[string]string `json:"background"`
}

// Factory validates role sets and builds agents for participants
type Factory struct {
	registry *Registry
	backend  reasoning.Generator
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewFactory returns a Factory. A nil logger falls back to the global logger.
func NewFactory(registry *Registry, backend reasoning.Generator, logger *zap.SugaredLogger) *Factory {
	if logger == nil {
		logger = zap.S().Named("agents")
	}
	return &Factory{registry: registry, backend: backend, logger: logger, now: time.Now}
}

// Registry returns the conversation types the factory knows about
func (f *Factory) Registry() *Registry {
	return f.registry
}

// CreateParticipants turns the bindings into participants for c. Every role required by
// the conversation type must be bound exactly once; nothing is returned otherwise.
// The participants come back in role precedence order and are not persisted.
func (f *Factory) CreateParticipants(c models.Case, conversationType string, bindings []RoleBinding) ([]models.Participant, error) {
	ct, err := f.registry.Lookup(conversationType)
	if err != nil {
		return nil, err
	}

	bound := make(map[models.Role]RoleBinding, len(bindings))
	for _, b := range bindings {
		switch {
		case !b.Role.Valid():
			return nil, &InvalidBindingError{Role: b.Role, Reason: "unknown role"}
		case !ct.Requires(b.Role):
			return nil, &InvalidBindingError{Role: b.Role, Reason: "role takes no part in " + ct.Name}
		}
		if _, dup := bound[b.Role]; dup {
			return nil, &InvalidBindingError{Role: b.Role, Reason: "role bound more than once"}
		}
		if strings.TrimSpace(b.Name) == "" && b.Role != models.RoleJudge {
			return nil, &InvalidBindingError{Role: b.Role, Reason: "name is required"}
		}
		bound[b.Role] = b
	}

	var missing []models.Role
	for _, role := range models.Roles {
		if _, ok := bound[role]; ct.Requires(role) && !ok {
			missing = append(missing, role)
		}
	}
	if len(missing) > 0 {
		return nil, &IncompleteRoleSetError{ConversationType: ct.Name, Missing: missing}
	}

	now := primitive.NewDateTimeFromTime(f.now())
	participants := make([]models.Participant, 0, len(bound))
	for _, role := range models.Roles {
		b, ok := bound[role]
		if !ok {
			continue
		}
		participants = append(participants, models.Participant{
			ID:         primitive.NewObjectID(),
			CaseID:     c.ID.Hex(),
			Role:       role,
			Name:       bindingName(b),
			Background: withDefaults(ct, b, bound),
			CreatedAt:  now,
		})
	}

	f.logger.Debugw("created participants",
		"caseID", c.ID.Hex(),
		"conversationType", ct.Name,
		"count", len(participants),
	)
	return participants, nil
}

// Agent builds the agent for p. roster is every participant of the case and is used
// to name speakers in the transcript.
func (f *Factory) Agent(c models.Case, conversationType string, p models.Participant, roster []models.Participant) (*Agent, error) {
	ct, err := f.registry.Lookup(conversationType)
	if err != nil {
		return nil, err
	}
	if p.CaseID != c.ID.Hex() {
		return nil, fmt.Errorf("participant %s does not belong to case %s", p.ID.Hex(), c.ID.Hex())
	}
	framing, err := ct.Frame(c, p, roster)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Participant, len(roster)+1)
	for _, other := range roster {
		byID[other.ID.Hex()] = other
	}
	byID[p.ID.Hex()] = p

	return &Agent{
		participant: p,
		framing:     framing,
		roster:      byID,
		backend:     f.backend,
		logger:      f.logger,
	}, nil
}

func bindingName(b RoleBinding) string {
	name := strings.TrimSpace(b.Name)
	if name == "" && b.Role == models.RoleJudge {
		return defaultJudgeName
	}
	return name
}

func withDefaults(ct *ConversationType, b RoleBinding, bound map[models.Role]RoleBinding) map[string]string {
	bg := make(map[string]string, len(b.Background)+2)
	for k, v := range b.Background {
		bg[k] = v
	}
	setDefault := func(key, value string) {
		if strings.TrimSpace(bg[key]) == "" && value != "" {
			bg[key] = value
		}
	}

	switch b.Role {
	case models.RoleOpposingParty:
		setDefault("relationship_to_client", "ex-spouse")
	case models.RoleClientCounsel:
		setDefault("representing", strings.TrimSpace(bound[models.RoleClient].Name))
		setDefault("specialization", ct.Specialization)
	case models.RoleOpposingCounsel:
		setDefault("representing", strings.TrimSpace(bound[models.RoleOpposingParty].Name))
		setDefault("specialization", ct.Specialization)
	case models.RoleJudge:
		setDefault("jurisdiction", ct.Jurisdiction)
	}
	return bg
}

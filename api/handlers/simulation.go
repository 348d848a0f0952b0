package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/courtroom-api/agents"
	"github.com/linesmerrill/courtroom-api/api"
	"github.com/linesmerrill/courtroom-api/api/stream"
	"github.com/linesmerrill/courtroom-api/config"
	"github.com/linesmerrill/courtroom-api/models"
	"github.com/linesmerrill/courtroom-api/orchestrator"
)

// Simulation exported for testing purposes
type Simulation struct {
	DB           Repository
	Registry     *agents.Registry
	Orchestrator *orchestrator.Orchestrator
	Hub          *stream.Hub
}

type createSimulationRequest struct {
	CaseID           string `json:"caseID"`
	Title            string `json:"title"`
	ConversationType string `json:"conversationType"`
}

type sendMessageRequest struct {
	ParticipantID *string `json:"participantID"`
	Content       string  `json:"content"`
}

type conversationTypeResponse struct {
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Jurisdiction   string        `json:"jurisdiction"`
	Specialization string        `json:"specialization"`
	Roles          []models.Role `json:"roles"`
}

// ConversationTypesHandler lists the conversation types a simulation can use
func (s Simulation) ConversationTypesHandler(w http.ResponseWriter, r *http.Request) {
	names := s.Registry.Names()
	out := make([]conversationTypeResponse, 0, len(names))
	for _, name := range names {
		ct, err := s.Registry.Lookup(name)
		if err != nil {
			errorStatus("failed to look up conversation type", w, err)
			return
		}
		out = append(out, conversationTypeResponse{
			Name:           ct.Name,
			Description:    ct.Description,
			Jurisdiction:   ct.Jurisdiction,
			Specialization: ct.Specialization,
			Roles:          ct.Roles,
		})
	}
	api.WriteJSON(w, http.StatusOK, out)
}

// CreateSimulationHandler opens a simulation over a case whose participants cover every
// role the conversation type requires
func (s Simulation) CreateSimulationHandler(w http.ResponseWriter, r *http.Request) {
	var req createSimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.CaseID == "" {
		errorStatus("caseID is required", w, errBadRequest)
		return
	}
	ct, err := s.Registry.Lookup(req.ConversationType)
	if err != nil {
		errorStatus("failed to create simulation", w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	legalCase, err := s.DB.GetCase(ctx, req.CaseID)
	if err != nil {
		errorStatus("failed to get case by ID", w, err)
		return
	}
	participants, err := s.DB.ListParticipants(ctx, req.CaseID)
	if err != nil {
		errorStatus("failed to list participants", w, err)
		return
	}
	if err := coversRoles(ct, participants); err != nil {
		errorStatus("failed to create simulation", w, err)
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = legalCase.Title
	}
	sim := models.Simulation{
		ID:               primitive.NewObjectID(),
		CaseID:           req.CaseID,
		Title:            title,
		ConversationType: ct.Name,
		Status:           models.SimulationCreated,
		StartedAt:        primitive.NewDateTimeFromTime(time.Now()),
	}
	if err := s.DB.CreateSimulation(ctx, sim); err != nil {
		errorStatus("failed to create simulation", w, err)
		return
	}
	zap.S().Infow("simulation created",
		"simulationID", sim.ID.Hex(),
		"caseID", sim.CaseID,
		"conversationType", sim.ConversationType)
	api.WriteJSON(w, http.StatusCreated, sim)
}

// coversRoles returns an IncompleteRoleSetError naming every role of ct that no
// participant plays
func coversRoles(ct *agents.ConversationType, participants []models.Participant) error {
	present := make(map[models.Role]bool, len(participants))
	for _, p := range participants {
		present[p.Role] = true
	}
	var missing []models.Role
	for _, role := range ct.Roles {
		if !present[role] {
			missing = append(missing, role)
		}
	}
	if len(missing) > 0 {
		return &agents.IncompleteRoleSetError{ConversationType: ct.Name, Missing: missing}
	}
	return nil
}

// SimulationHandler returns a simulation by ID
func (s Simulation) SimulationHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	sim, err := s.DB.GetSimulation(ctx, mux.Vars(r)["simulation_id"])
	if err != nil {
		errorStatus("failed to get simulation by ID", w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, sim)
}

// ConcludeSimulationHandler closes a simulation to further runs and messages
func (s Simulation) ConcludeSimulationHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	sim, err := s.Orchestrator.ConcludeSimulation(ctx, mux.Vars(r)["simulation_id"])
	if err != nil {
		errorStatus("failed to conclude simulation", w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, sim)
}

// MessagesHandler returns the transcript, optionally limited with ?from= and ?to=
// sequence numbers (inclusive)
func (s Simulation) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	from, err := sequenceParam(r, "from")
	if err != nil {
		errorStatus("invalid from", w, err)
		return
	}
	to, err := sequenceParam(r, "to")
	if err != nil {
		errorStatus("invalid to", w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	msgs, err := s.Orchestrator.Transcript(ctx, mux.Vars(r)["simulation_id"], from, to)
	if err != nil {
		errorStatus("failed to read transcript", w, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	api.WriteJSON(w, http.StatusOK, msgs)
}

func sequenceParam(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, name)
	}
	return n, nil
}

// SendMessageHandler appends a message verbatim, without consulting any agent
func (s Simulation) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	msg, err := s.Orchestrator.SendMessage(ctx, mux.Vars(r)["simulation_id"], req.ParticipantID, req.Content)
	if err != nil {
		errorStatus("failed to send message", w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, msg)
}

// StreamHandler upgrades to a websocket that receives every message appended to the
// simulation from now on
func (s Simulation) StreamHandler(w http.ResponseWriter, r *http.Request) {
	simulationID := mux.Vars(r)["simulation_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	_, err := s.DB.GetSimulation(ctx, simulationID)
	cancel()
	if err != nil {
		errorStatus("failed to get simulation by ID", w, err)
		return
	}
	s.Hub.Serve(w, r, simulationID)
}

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/courtroom-api/agents"
	"github.com/linesmerrill/courtroom-api/api"
	"github.com/linesmerrill/courtroom-api/config"
	"github.com/linesmerrill/courtroom-api/models"
)

// Case exported for testing purposes
type Case struct {
	DB      Repository
	Factory *agents.Factory
}

type createCaseRequest struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type updateCaseRequest struct {
	Description *string `json:"description"`
}

type createParticipantsRequest struct {
	ConversationType string               `json:"conversationType"`
	Participants     []agents.RoleBinding `json:"participants"`
}

// CreateCaseHandler creates a new case
func (c Case) CreateCaseHandler(w http.ResponseWriter, r *http.Request) {
	var req createCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	if req.Title == "" || req.Type == "" {
		errorStatus("title and type are required", w, errBadRequest)
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	legalCase := models.Case{
		ID:          primitive.NewObjectID(),
		Title:       req.Title,
		Type:        req.Type,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := c.DB.CreateCase(ctx, legalCase); err != nil {
		errorStatus("failed to create case", w, err)
		return
	}
	zap.S().Infow("case created", "caseID", legalCase.ID.Hex(), "type", legalCase.Type)
	api.WriteJSON(w, http.StatusCreated, legalCase)
}

// CasesHandler returns a page of cases, newest first
func (c Case) CasesHandler(w http.ResponseWriter, r *http.Request) {
	limit, page := pagination(r)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	cases, err := c.DB.ListCases(ctx, limit, page)
	if err != nil {
		errorStatus("failed to list cases", w, err)
		return
	}
	// Because the frontend requires that the data elements inside models.Case exist, if
	// len == 0 then we will just return an empty data object
	if cases == nil {
		cases = []models.Case{}
	}
	api.WriteJSON(w, http.StatusOK, cases)
}

// CaseHandler returns a case by ID
func (c Case) CaseHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	legalCase, err := c.DB.GetCase(ctx, mux.Vars(r)["case_id"])
	if err != nil {
		errorStatus("failed to get case by ID", w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, legalCase)
}

// UpdateCaseHandler replaces the description of a case. Nothing else about a case
// changes after creation.
func (c Case) UpdateCaseHandler(w http.ResponseWriter, r *http.Request) {
	var req updateCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.Description == nil {
		errorStatus("description is required", w, errBadRequest)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	legalCase, err := c.DB.UpdateCaseDescription(ctx, mux.Vars(r)["case_id"], *req.Description, time.Now())
	if err != nil {
		errorStatus("failed to update case", w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, legalCase)
}

// CreateParticipantsHandler binds one participant per role of a conversation type. The
// whole set is created at once and only once per case.
func (c Case) CreateParticipantsHandler(w http.ResponseWriter, r *http.Request) {
	var req createParticipantsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	caseID := mux.Vars(r)["case_id"]
	legalCase, err := c.DB.GetCase(ctx, caseID)
	if err != nil {
		errorStatus("failed to get case by ID", w, err)
		return
	}

	exists, err := c.DB.HasParticipants(ctx, caseID)
	if err != nil {
		errorStatus("failed to check participants", w, err)
		return
	}
	if exists {
		config.ErrorStatus("participants already created", http.StatusConflict, w, fmt.Errorf("case %s already has participants", caseID))
		return
	}

	participants, err := c.Factory.CreateParticipants(*legalCase, req.ConversationType, req.Participants)
	if err != nil {
		errorStatus("failed to create participants", w, err)
		return
	}
	if err := c.DB.CreateParticipants(ctx, participants); err != nil {
		errorStatus("failed to save participants", w, err)
		return
	}
	zap.S().Infow("participants created",
		"caseID", caseID,
		"conversationType", req.ConversationType,
		"count", len(participants))
	api.WriteJSON(w, http.StatusCreated, participants)
}

// ParticipantsHandler returns the participants of a case
func (c Case) ParticipantsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	caseID := mux.Vars(r)["case_id"]
	if _, err := c.DB.GetCase(ctx, caseID); err != nil {
		errorStatus("failed to get case by ID", w, err)
		return
	}
	participants, err := c.DB.ListParticipants(ctx, caseID)
	if err != nil {
		errorStatus("failed to list participants", w, err)
		return
	}
	if participants == nil {
		participants = []models.Participant{}
	}
	api.WriteJSON(w, http.StatusOK, participants)
}

// SimulationsHandler returns the simulations of a case, oldest first
func (c Case) SimulationsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	caseID := mux.Vars(r)["case_id"]
	if _, err := c.DB.GetCase(ctx, caseID); err != nil {
		errorStatus("failed to get case by ID", w, err)
		return
	}
	sims, err := c.DB.ListSimulations(ctx, caseID)
	if err != nil {
		errorStatus("failed to list simulations", w, err)
		return
	}
	if sims == nil {
		sims = []models.Simulation{}
	}
	api.WriteJSON(w, http.StatusOK, sims)
}

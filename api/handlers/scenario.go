package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/courtroom-api/api"
	"github.com/linesmerrill/courtroom-api/config"
	"github.com/linesmerrill/courtroom-api/models"
	"github.com/linesmerrill/courtroom-api/orchestrator"
)

// Scenario exported for testing purposes
type Scenario struct {
	Orchestrator *orchestrator.Orchestrator
}

type runScenarioRequest struct {
	Description   string   `json:"description"`
	SpeakingOrder []string `json:"speakingOrder"`
	Context       string   `json:"context"`
}

// runFailedResponse carries the failed run next to the error so the caller can see how
// far it got
type runFailedResponse struct {
	Response models.MessageError
	Run      *models.ScenarioRun `json:"run,omitempty"`
}

// RunScenarioHandler runs one scenario to completion and returns the run record. The
// request blocks while the agents take their turns.
func (sc Scenario) RunScenarioHandler(w http.ResponseWriter, r *http.Request) {
	var req runScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	simulationID := mux.Vars(r)["simulation_id"]
	run, err := sc.Orchestrator.RunScenario(r.Context(), orchestrator.RunRequest{
		SimulationID:  simulationID,
		SpeakingOrder: req.SpeakingOrder,
		Context:       req.Context,
		Description:   req.Description,
	})
	if err != nil {
		if run == nil {
			errorStatus("failed to run scenario", w, err)
			return
		}
		zap.S().Errorw("scenario run failed",
			"simulationID", simulationID,
			"runID", run.ID.Hex(),
			"messages", run.MessageCount(),
			"error", err)
		api.WriteJSON(w, statusFor(err), runFailedResponse{
			Response: models.MessageError{Message: "scenario run failed", Error: err.Error()},
			Run:      run,
		})
		return
	}
	api.WriteJSON(w, http.StatusCreated, run)
}

// ScenarioRunsHandler lists the runs of a simulation in the order they started
func (sc Scenario) ScenarioRunsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	runs, err := sc.Orchestrator.ListRuns(ctx, mux.Vars(r)["simulation_id"])
	if err != nil {
		errorStatus("failed to list scenario runs", w, err)
		return
	}
	if runs == nil {
		runs = []models.ScenarioRun{}
	}
	api.WriteJSON(w, http.StatusOK, runs)
}

// ScenarioRunHandler returns one run of a simulation
func (sc Scenario) ScenarioRunHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	vars := mux.Vars(r)
	run, err := sc.Orchestrator.GetRun(ctx, vars["simulation_id"], vars["run_id"])
	if err != nil {
		errorStatus("failed to get scenario run by ID", w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, run)
}

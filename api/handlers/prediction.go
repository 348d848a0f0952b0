package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/courtroom-api/api"
	"github.com/linesmerrill/courtroom-api/config"
	"github.com/linesmerrill/courtroom-api/models"
	"github.com/linesmerrill/courtroom-api/prediction"
)

// Prediction exported for testing purposes
type Prediction struct {
	DB     Repository
	Engine *prediction.Engine
}

type predictionRequest struct {
	ScenarioDescription string          `json:"scenarioDescription"`
	Factors             []models.Factor `json:"factors"`
	FocusAreas          []string        `json:"focusAreas"`
}

type predictionFailedResponse struct {
	Response   models.MessageError
	Prediction *models.Prediction `json:"prediction,omitempty"`
}

// CreatePredictionHandler asks the reasoning backend for an outcome prediction over the
// simulation's transcript. A backend failure still returns the failed record.
func (p Prediction) CreatePredictionHandler(w http.ResponseWriter, r *http.Request) {
	var req predictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	pred, err := p.Engine.Predict(r.Context(), prediction.Request{
		SimulationID:        mux.Vars(r)["simulation_id"],
		ScenarioDescription: req.ScenarioDescription,
		Factors:             req.Factors,
		FocusAreas:          req.FocusAreas,
	})
	if err != nil {
		if pred == nil {
			errorStatus("failed to predict outcome", w, err)
			return
		}
		api.WriteJSON(w, statusFor(err), predictionFailedResponse{
			Response:   models.MessageError{Message: "outcome prediction failed", Error: err.Error()},
			Prediction: pred,
		})
		return
	}
	api.WriteJSON(w, http.StatusCreated, pred)
}

// PredictionsHandler lists a simulation's predictions, newest first
func (p Prediction) PredictionsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	simulationID := mux.Vars(r)["simulation_id"]
	if _, err := p.DB.GetSimulation(ctx, simulationID); err != nil {
		errorStatus("failed to get simulation by ID", w, err)
		return
	}
	preds, err := p.DB.ListPredictions(ctx, simulationID)
	if err != nil {
		errorStatus("failed to list predictions", w, err)
		return
	}
	if preds == nil {
		preds = []models.Prediction{}
	}
	api.WriteJSON(w, http.StatusOK, preds)
}

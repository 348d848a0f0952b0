// Package docs Courtroom API.
//
// Documentation of the Courtroom simulation API.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
// swagger:meta
package docs

import (
	"github.com/linesmerrill/courtroom-api/agents"
	"github.com/linesmerrill/courtroom-api/api"
	"github.com/linesmerrill/courtroom-api/models"
)

// swagger:route GET /health health healthEndpointID
// Lists the healthchex of the web service api.
// responses:
//   200: healthResponse

// Shows the current health of the api. true means it is alive, false means it is not.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// Every failure is reported in this shape.
// swagger:response errorResponse
type errorResponseWrapper struct {
	// in:body
	Body models.ErrorMessageResponse
}

// swagger:route GET /api/v1/metrics metrics metrics
// Per-route request counts and timings, slowest first.
// responses:
//   200: metricsResponse

// swagger:response metricsResponse
type metricsResponseWrapper struct {
	// in:body
	Body []api.RouteMetrics
}

// swagger:route POST /api/v1/case case createCase
// Creates a case. title and type are required.
// responses:
//   201: caseResponse
//   400: errorResponse

// swagger:route GET /api/v1/case/{case_id} case caseByID
// Gets a single case by ID.
// responses:
//   200: caseResponse
//   404: errorResponse

// swagger:route PATCH /api/v1/case/{case_id} case updateCase
// Replaces the description of a case.
// responses:
//   200: caseResponse
//   400: errorResponse
//   404: errorResponse

// swagger:response caseResponse
type caseResponseWrapper struct {
	// in:body
	Body models.Case
}

// swagger:route GET /api/v1/cases case cases
// Lists cases newest first. Supports limit and page.
// responses:
//   200: casesResponse

// swagger:response casesResponse
type casesResponseWrapper struct {
	// in:body
	Body []models.Case
}

// swagger:parameters createParticipants
type createParticipantsParams struct {
	// in:body
	Body struct {
		ConversationType string               `json:"conversationType"`
		Participants     []agents.RoleBinding `json:"participants"`
	}
}

// swagger:route POST /api/v1/case/{case_id}/participants participants createParticipants
// Binds one participant to every role the conversation type requires. Allowed once per case.
// responses:
//   201: participantsResponse
//   400: errorResponse
//   409: errorResponse
//   422: errorResponse

// swagger:route GET /api/v1/case/{case_id}/participants participants participants
// Lists the participants of a case.
// responses:
//   200: participantsResponse

// swagger:response participantsResponse
type participantsResponseWrapper struct {
	// in:body
	Body []models.Participant
}

// swagger:route POST /api/v1/simulation simulation createSimulation
// Opens a simulation over a case whose participants cover the conversation type.
// responses:
//   201: simulationResponse
//   422: errorResponse

// swagger:route POST /api/v1/simulation/{simulation_id}/conclude simulation concludeSimulation
// Concludes a simulation. No further runs or messages are accepted.
// responses:
//   200: simulationResponse
//   409: errorResponse

// swagger:response simulationResponse
type simulationResponseWrapper struct {
	// in:body
	Body models.Simulation
}

// swagger:route GET /api/v1/case/{case_id}/simulations simulation caseSimulations
// Lists the simulations opened over a case, oldest first.
// responses:
//   200: simulationsResponse
//   404: errorResponse

// swagger:response simulationsResponse
type simulationsResponseWrapper struct {
	// in:body
	Body []models.Simulation
}

// swagger:route GET /api/v1/simulation/{simulation_id}/messages simulation transcript
// Reads the transcript. from and to bound the sequence numbers, inclusive.
// responses:
//   200: transcriptResponse

// swagger:response transcriptResponse
type transcriptResponseWrapper struct {
	// in:body
	Body []models.Message
}

// swagger:route POST /api/v1/simulation/{simulation_id}/scenarios scenario runScenario
// Runs the speaking order to completion. A failed run is returned next to the error.
// responses:
//   201: scenarioRunResponse
//   400: errorResponse
//   409: errorResponse
//   502: errorResponse

// swagger:response scenarioRunResponse
type scenarioRunResponseWrapper struct {
	// in:body
	Body models.ScenarioRun
}

// swagger:route GET /api/v1/simulation/{simulation_id}/scenarios/{run_id} scenario scenarioRun
// Returns one scenario run of the simulation.
// responses:
//   200: scenarioRunResponse
//   404: errorResponse

// swagger:route POST /api/v1/simulation/{simulation_id}/predictions prediction createPrediction
// Predicts the outcome from the transcript and weighted factors.
// responses:
//   201: predictionResponse
//   400: errorResponse
//   502: errorResponse

// swagger:response predictionResponse
type predictionResponseWrapper struct {
	// in:body
	Body models.Prediction
}

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/courtroom-api/agents"
	"github.com/linesmerrill/courtroom-api/api"
	"github.com/linesmerrill/courtroom-api/api/stream"
	"github.com/linesmerrill/courtroom-api/config"
	"github.com/linesmerrill/courtroom-api/databases"
	"github.com/linesmerrill/courtroom-api/logging"
	"github.com/linesmerrill/courtroom-api/memstore"
	"github.com/linesmerrill/courtroom-api/models"
	"github.com/linesmerrill/courtroom-api/orchestrator"
	"github.com/linesmerrill/courtroom-api/prediction"
	"github.com/linesmerrill/courtroom-api/reasoning"
)

// Repository is the persistence used directly by the handlers
type Repository interface {
	CreateCase(ctx context.Context, c models.Case) error
	GetCase(ctx context.Context, id string) (*models.Case, error)
	ListCases(ctx context.Context, limit, page int) ([]models.Case, error)
	UpdateCaseDescription(ctx context.Context, id, description string, at time.Time) (*models.Case, error)
	CreateParticipants(ctx context.Context, participants []models.Participant) error
	HasParticipants(ctx context.Context, caseID string) (bool, error)
	ListParticipants(ctx context.Context, caseID string) ([]models.Participant, error)
	CreateSimulation(ctx context.Context, s models.Simulation) error
	GetSimulation(ctx context.Context, id string) (*models.Simulation, error)
	ListSimulations(ctx context.Context, caseID string) ([]models.Simulation, error)
	ListPredictions(ctx context.Context, simulationID string) ([]models.Prediction, error)
}

// Store is everything the service needs from persistence. Both the mongo repository
// and the in-memory store satisfy it.
type Store interface {
	Repository
	orchestrator.Store
	prediction.Store
}

// App stores the router and the wired services, so they can be reused
type App struct {
	Router *mux.Router
	Config config.Config

	DB           Store
	Factory      *agents.Factory
	Orchestrator *orchestrator.Orchestrator
	Engine       *prediction.Engine
	Hub          *stream.Hub
	Metrics      *api.Metrics

	client databases.ClientHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	r := mux.NewRouter()
	r.Use(api.RequestLogger)
	if a.Metrics != nil {
		r.Use(a.Metrics.Middleware)
	}

	c := Case{DB: a.DB, Factory: a.Factory}
	s := Simulation{DB: a.DB, Registry: a.Factory.Registry(), Orchestrator: a.Orchestrator, Hub: a.Hub}
	sc := Scenario{Orchestrator: a.Orchestrator}
	p := Prediction{DB: a.DB, Engine: a.Engine}
	long := api.TimeoutMiddleware(api.RunTimeout)

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	if a.Metrics != nil {
		apiCreate.HandleFunc("/metrics", a.Metrics.MetricsHandler).Methods("GET")
	}
	apiCreate.HandleFunc("/conversation-types", s.ConversationTypesHandler).Methods("GET")

	apiCreate.HandleFunc("/case", c.CreateCaseHandler).Methods("POST")
	apiCreate.HandleFunc("/cases", c.CasesHandler).Methods("GET")
	apiCreate.HandleFunc("/case/{case_id}", c.CaseHandler).Methods("GET")
	apiCreate.HandleFunc("/case/{case_id}", c.UpdateCaseHandler).Methods("PATCH")
	apiCreate.HandleFunc("/case/{case_id}/participants", c.CreateParticipantsHandler).Methods("POST")
	apiCreate.HandleFunc("/case/{case_id}/participants", c.ParticipantsHandler).Methods("GET")
	apiCreate.HandleFunc("/case/{case_id}/simulations", c.SimulationsHandler).Methods("GET")

	apiCreate.HandleFunc("/simulation", s.CreateSimulationHandler).Methods("POST")
	apiCreate.HandleFunc("/simulation/{simulation_id}", s.SimulationHandler).Methods("GET")
	apiCreate.HandleFunc("/simulation/{simulation_id}/conclude", s.ConcludeSimulationHandler).Methods("POST")
	apiCreate.HandleFunc("/simulation/{simulation_id}/messages", s.MessagesHandler).Methods("GET")
	apiCreate.HandleFunc("/simulation/{simulation_id}/messages", s.SendMessageHandler).Methods("POST")
	apiCreate.HandleFunc("/simulation/{simulation_id}/stream", s.StreamHandler).Methods("GET")

	apiCreate.Handle("/simulation/{simulation_id}/scenarios", long(http.HandlerFunc(sc.RunScenarioHandler))).Methods("POST")
	apiCreate.HandleFunc("/simulation/{simulation_id}/scenarios", sc.ScenarioRunsHandler).Methods("GET")
	apiCreate.HandleFunc("/simulation/{simulation_id}/scenarios/{run_id}", sc.ScenarioRunHandler).Methods("GET")

	apiCreate.Handle("/simulation/{simulation_id}/predictions", long(http.HandlerFunc(p.CreatePredictionHandler))).Methods("POST")
	apiCreate.HandleFunc("/simulation/{simulation_id}/predictions", p.PredictionsHandler).Methods("GET")

	return r
}

// Wire builds the core services on top of the store and the reasoning backend
func (a *App) Wire(store Store, backend reasoning.Backend, registry *agents.Registry) {
	a.DB = store
	a.Hub = stream.NewHub(logging.New("stream"))
	a.Metrics = api.NewMetrics()
	a.Factory = agents.NewFactory(registry, backend, logging.New("agents"))
	a.Orchestrator = orchestrator.New(store, a.Factory,
		orchestrator.WithPublisher(a.Hub),
		orchestrator.WithLogger(logging.New("orchestrator")),
	)
	a.Engine = prediction.NewEngine(store, backend, prediction.WithLogger(logging.New("prediction")))
}

// Initialize connects the store and the reasoning backend and sets up the routes.
// With inMemory set no database is used and nothing survives a restart.
func (a *App) Initialize(ctx context.Context, inMemory bool) error {
	backend, err := reasoning.New(ctx, a.Config.LLM, logging.New("reasoning"))
	if err != nil {
		zap.S().Errorw("failed to create reasoning backend", "provider", a.Config.LLM.Provider, "error", err)
		return err
	}

	registry, err := agents.DefaultRegistry()
	if err != nil {
		return err
	}

	var store Store
	if inMemory {
		zap.S().Warn("using the in-memory store, data will not be persisted")
		store = memstore.New()
	} else {
		store, err = a.connect(ctx)
		if err != nil {
			return err
		}
	}

	a.Wire(store, backend, registry)

	// initialize api router
	a.initializeRoutes()
	return nil
}

func (a *App) connect(ctx context.Context) (Store, error) {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		zap.S().Errorw("failed to create new client", "error", err)
		return nil, err
	}

	pingCtx, cancel := api.WithQueryTimeout(ctx)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().Errorw("failed to connect to database", "error", err)
		return nil, err
	}
	a.client = client

	repo := databases.NewRepository(databases.NewDatabase(&a.Config, client))
	if err := repo.EnsureIndexes(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}
	zap.S().Infow("courtroom-api has connected to the database", "database", a.Config.DatabaseName)
	return repo, nil
}

// Close releases the database connection, if any
func (a *App) Close(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	return a.client.Disconnect(ctx)
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/linesmerrill/courtroom-api/agents"
	"github.com/linesmerrill/courtroom-api/config"
	"github.com/linesmerrill/courtroom-api/models"
	"github.com/linesmerrill/courtroom-api/orchestrator"
	"github.com/linesmerrill/courtroom-api/prediction"
	"github.com/linesmerrill/courtroom-api/reasoning"
)

// errBadRequest marks request problems found by the handlers themselves
var errBadRequest = errors.New("bad request")

// statusFor maps the service's error taxonomy onto http status codes
func statusFor(err error) int {
	var (
		incomplete  *agents.IncompleteRoleSetError
		binding     *agents.InvalidBindingError
		runInvalid  *orchestrator.ValidationError
		predInvalid *prediction.ValidationError
		malformed   *prediction.MalformedOutputError
		generation  *reasoning.GenerationFailure
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &incomplete):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest),
		errors.Is(err, agents.ErrUnknownConversationType),
		errors.As(err, &binding),
		errors.As(err, &runInvalid),
		errors.As(err, &predInvalid):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrConcurrentRunConflict),
		errors.Is(err, orchestrator.ErrSimulationConcluded):
		return http.StatusConflict
	case errors.As(err, &malformed), errors.As(err, &generation):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorStatus writes err with the status code its type calls for
func errorStatus(message string, w http.ResponseWriter, err error) {
	config.ErrorStatus(message, statusFor(err), w, err)
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

// pagination reads limit and page from the query string, falling back to sane values
func pagination(r *http.Request) (limit, page int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	page, err = strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page <= 0 {
		page = 1
	}
	return limit, page
}

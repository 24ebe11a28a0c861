package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/proximity-service/internal/model"
	"github.com/sells-group/proximity-service/internal/poi"
	"github.com/sells-group/proximity-service/internal/resilience"
)

const (
	codeNotFound            = "NOT_FOUND"
	codeInvalidParameter    = "INVALID_PARAMETER"
	codeBatchAlreadyRunning = "BATCH_ALREADY_RUNNING"
	codeStoreUnavailable    = "STORE_UNAVAILABLE"
	codeInternal            = "INTERNAL"
)

type errorBody struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// writeError maps err onto a status code and error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *poi.ParamError
	switch {
	case errors.As(err, &pe):
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   codeInvalidParameter,
			Message: pe.Error(),
			Details: map[string]any{"field": pe.Field, "valid_range": pe.ValidRange, "received": pe.Received},
		})
	case errors.Is(err, model.ErrRecordNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: codeNotFound, Message: err.Error()})
	case errors.Is(err, model.ErrInvalidCategory), errors.Is(err, model.ErrInvalidParameter):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: codeInvalidParameter, Message: err.Error()})
	case errors.Is(err, model.ErrBatchAlreadyRunning):
		writeJSON(w, http.StatusConflict, errorBody{Error: codeBatchAlreadyRunning, Message: err.Error()})
	case resilience.IsTransient(err):
		zap.L().Warn("api: store unavailable", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error:   codeStoreUnavailable,
			Message: "storage temporarily unavailable",
			Details: map[string]any{"kind": resilience.KindOf(err).String()},
		})
	default:
		zap.L().Error("api: internal error", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: codeInternal, Message: "internal error"})
	}
}

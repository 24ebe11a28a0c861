package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sells-group/proximity-service/internal/model"
	"github.com/sells-group/proximity-service/internal/poi"
)

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if h.IndexWriteFailures != nil {
		body["index_write_failures"] = h.IndexWriteFailures()
	}
	if h.Batches != nil {
		body["batch_running"] = h.Batches.Running()
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handler) createRecord(w http.ResponseWriter, r *http.Request) {
	var in model.RecordInput
	if !decodeBody(w, r, &in) {
		return
	}
	rec, err := h.Records.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *handler) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Records.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) updateRecord(w http.ResponseWriter, r *http.Request) {
	var in model.RecordInput
	if !decodeBody(w, r, &in) {
		return
	}
	rec, err := h.Records.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.Records.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) seed(w http.ResponseWriter, r *http.Request) {
	var inputs []model.RecordInput
	if !decodeBody(w, r, &inputs) {
		return
	}
	n, err := h.Records.Seed(r.Context(), inputs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"created_count": n})
}

func (h *handler) searchNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := requiredFloat(q.Get("latitude"), "latitude", "-90 ~ 90")
	if err != nil {
		writeError(w, r, err)
		return
	}
	lon, err := requiredFloat(q.Get("longitude"), "longitude", "-180 ~ 180")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var radius *float64
	if s := q.Get("radius"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			writeError(w, r, &poi.ParamError{Field: "radius", ValidRange: "number", Received: s})
			return
		}
		radius = &v
	}
	var limit *int
	if s := q.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, r, &poi.ParamError{Field: "limit", ValidRange: "integer", Received: s})
			return
		}
		limit = &v
	}

	rad, n, err := h.Limits.Resolve(lat, lon, radius, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.Searcher.SearchNearby(r.Context(), lat, lon, rad, n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) fullSync(w http.ResponseWriter, r *http.Request) {
	res, err := h.Batches.FullSync(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) consistencyCheck(w http.ResponseWriter, r *http.Request) {
	res, err := h.Batches.ConsistencyCheck(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func requiredFloat(s, field, valid string) (float64, error) {
	if s == "" {
		return 0, &poi.ParamError{Field: field, ValidRange: valid, Received: nil}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &poi.ParamError{Field: field, ValidRange: valid, Received: s}
	}
	return v, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: codeInvalidParameter, Message: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

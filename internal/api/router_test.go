package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/proximity-service/internal/geoindex"
	"github.com/sells-group/proximity-service/internal/mirror"
	"github.com/sells-group/proximity-service/internal/model"
	"github.com/sells-group/proximity-service/internal/poi"
	"github.com/sells-group/proximity-service/internal/reconcile"
	"github.com/sells-group/proximity-service/internal/resilience"
	"github.com/sells-group/proximity-service/internal/store"
)

type testEnv struct {
	store  *store.MemoryStore
	index  *geoindex.Memory
	orch   *reconcile.Orchestrator
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemory()
	idx := geoindex.NewMemory()
	w := mirror.NewWriter(idx, resilience.DefaultRetryConfig())
	orch := reconcile.NewOrchestrator(st, idx)
	return &testEnv{
		store: st,
		index: idx,
		orch:  orch,
		router: NewRouter(Deps{
			Records:            poi.NewService(st, w),
			Searcher:           poi.NewSearcher(idx, st),
			Batches:            orch,
			Limits:             poi.DefaultSearchLimits(),
			IndexWriteFailures: w.Failures,
		}),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func cafe(name string, lat, lon float64) model.RecordInput {
	return model.RecordInput{Name: name, Address: "Teheran-ro 1", Latitude: lat, Longitude: lon, Category: "cafe"}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["index_write_failures"])
	assert.Equal(t, false, body["batch_running"])
}

func TestRecordLifecycle(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/v1/businesses", cafe("Cafe A", 37.5, 127.04))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[model.Record](t, rec)
	require.NotEmpty(t, created.ID)

	rec = e.do(t, http.MethodGet, "/v1/businesses/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cafe A", decode[model.Record](t, rec).Name)

	rec = e.do(t, http.MethodPut, "/v1/businesses/"+created.ID, cafe("Cafe A2", 37.6, 127.04))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 37.6, decode[model.Record](t, rec).Latitude)

	rec = e.do(t, http.MethodDelete, "/v1/businesses/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, http.MethodGet, "/v1/businesses/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, codeNotFound, decode[errorBody](t, rec).Error)
}

func TestCreate_InvalidCategory(t *testing.T) {
	e := newTestEnv(t)
	in := cafe("Cafe A", 37.5, 127.04)
	in.Category = "spaceport"

	rec := e.do(t, http.MethodPost, "/v1/businesses", in)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, codeInvalidParameter, body.Error)
	assert.Contains(t, body.Message, "korean_food")
}

func TestCreate_MalformedBody(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/businesses", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDelete_NotFound(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodDelete, "/v1/businesses/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSeed(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/v1/businesses/seed", []model.RecordInput{
		cafe("A", 37.5, 127.04),
		cafe("B", 37.51, 127.05),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, map[string]int{"created_count": 2}, decode[map[string]int](t, rec))

	rec = e.do(t, http.MethodPost, "/v1/businesses/seed", []model.RecordInput{cafe("C", 91, 0)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchNearby(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/v1/businesses", cafe("Cafe A", 37.5, 127.04))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodGet, "/v1/search/nearby?latitude=37.5&longitude=127.04&radius=100", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[model.SearchResponse](t, rec)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "Cafe A", resp.Results[0].Name)

	rec = e.do(t, http.MethodGet, "/v1/search/nearby?latitude=0&longitude=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[model.SearchResponse](t, rec)
	assert.Zero(t, resp.Total)
	assert.Equal(t, model.NoResultsMessage, resp.Message)
}

func TestSearchNearby_InvalidParameters(t *testing.T) {
	e := newTestEnv(t)
	tests := []struct {
		name  string
		query string
		field string
	}{
		{"missing latitude", "longitude=127", "latitude"},
		{"bad longitude", "latitude=37&longitude=east", "longitude"},
		{"limit too big", "latitude=37&longitude=127&limit=51", "limit"},
		{"radius too big", "latitude=37&longitude=127&radius=20001", "radius"},
		{"latitude out of range", "latitude=-91&longitude=127", "latitude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodGet, "/v1/search/nearby?"+tt.query, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode[errorBody](t, rec)
			assert.Equal(t, codeInvalidParameter, body.Error)
			assert.Equal(t, tt.field, body.Details["field"])
			assert.NotEmpty(t, body.Details["valid_range"])
		})
	}
}

func TestAdminSync(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.store.Save(ctx, &model.Record{ID: "A", Name: "A", Address: "a", Latitude: 37.5, Longitude: 127.04, Category: "cafe"}))
	require.NoError(t, e.index.Add(ctx, "orphan-1", 0, 0))

	rec := e.do(t, http.MethodPost, "/v1/admin/sync/consistency-check", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[model.BatchRunResult](t, rec)
	assert.Equal(t, model.BatchKindConsistencyCheck, res.Kind)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Removed)

	rec = e.do(t, http.MethodPost, "/v1/admin/sync/full", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[model.BatchRunResult](t, rec)
	assert.Equal(t, model.BatchKindFullSync, res.Kind)
	assert.Equal(t, model.BatchStatusSuccess, res.Status)
	assert.Equal(t, 1, res.Added)
}

// stubBatches reports a fixed error from both jobs.
type stubBatches struct{ err error }

func (s stubBatches) FullSync(context.Context) (model.BatchRunResult, error) {
	return model.BatchRunResult{}, s.err
}

func (s stubBatches) ConsistencyCheck(context.Context) (model.BatchRunResult, error) {
	return model.BatchRunResult{}, s.err
}

func (stubBatches) Running() bool { return true }

func TestAdminSync_AlreadyRunning(t *testing.T) {
	router := NewRouter(Deps{Batches: stubBatches{err: model.ErrBatchAlreadyRunning}})

	for _, path := range []string{"/v1/admin/sync/full", "/v1/admin/sync/consistency-check"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusConflict, rec.Code, path)
		assert.Equal(t, codeBatchAlreadyRunning, decode[errorBody](t, rec).Error)
	}
}

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{resilience.Unavailable(errors.New("connection refused")), http.StatusServiceUnavailable, codeStoreUnavailable},
		{resilience.Timeout(errors.New("deadline")), http.StatusServiceUnavailable, codeStoreUnavailable},
		{errors.New("boom"), http.StatusInternalServerError, codeInternal},
		{model.ErrInvalidParameter, http.StatusBadRequest, codeInvalidParameter},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
		assert.Equal(t, tt.status, rec.Code, tt.err.Error())
		assert.Equal(t, tt.code, decode[errorBody](t, rec).Error)
	}
}

func TestCORS(t *testing.T) {
	router := NewRouter(Deps{AllowedOrigins: []string{"https://maps.example.com"}})
	req := httptest.NewRequest(http.MethodOptions, "/v1/search/nearby", nil)
	req.Header.Set("Origin", "https://maps.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://maps.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: server_test.go
Description: Tests for the HTTP API.
*/

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kleascm/fuzzylogic/pkg/config"
	"github.com/kleascm/fuzzylogic/pkg/core"
	"github.com/kleascm/fuzzylogic/pkg/execution"
	"github.com/kleascm/fuzzylogic/pkg/fuzzy"
	"github.com/kleascm/fuzzylogic/pkg/modelfile"
	"github.com/kleascm/fuzzylogic/pkg/monitoring"
	"github.com/kleascm/fuzzylogic/pkg/recording"
	"github.com/kleascm/fuzzylogic/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func heaterDoc() *modelfile.Document {
	return &modelfile.Document{
		Name:        "heater",
		Description: "power from room temperature",
		Variables: []modelfile.VariableDoc{
			{Name: "temp", Sets: []modelfile.SetDoc{
				{Name: "cold", Function: fuzzy.FuncInvertedSCurve, Min: 0, Max: 30},
				{Name: "hot", Function: fuzzy.FuncSCurve, Min: 0, Max: 30},
			}},
			{Name: "power", Sets: []modelfile.SetDoc{
				{Name: "low", Function: fuzzy.FuncTriangle, Min: 0, Max: 50},
				{Name: "high", Function: fuzzy.FuncTriangle, Min: 50, Max: 100},
			}},
		},
		Rules: []string{"if temp.cold then power.high", "if temp.hot then power.low"},
	}
}

type fixture struct {
	engine  *core.Engine
	store   *storage.Store
	metrics *monitoring.Metrics
	server  *Server
}

func newFixture(t *testing.T, cfg config.ServerConfig, withHistory bool) *fixture {
	t.Helper()
	f := &fixture{metrics: monitoring.NewMetrics(false)}

	store, err := storage.Open(storage.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	f.store = store

	opts := Options{Config: cfg, Store: store, Metrics: f.metrics, Workers: 2}
	execOpts := []execution.Option{execution.WithObserver(f.metrics)}
	if withHistory {
		rec, err := recording.NewSQLiteRecorder(recording.Config{
			Path:      filepath.Join(t.TempDir(), "history.sqlite3"),
			BatchSize: 4,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = rec.Close() })
		opts.History = rec
		execOpts = append(execOpts, execution.WithObserver(rec))
	}

	f.engine = core.NewEngine(core.WithExecOptions(execOpts...))
	f.engine.Init()
	t.Cleanup(func() { _ = f.engine.Close() })

	f.server = New(f.engine, opts)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestModelLifecycle(t *testing.T) {
	f := newFixture(t, config.ServerConfig{}, false)

	w := f.do(t, http.MethodPost, "/api/v1/models", heaterDoc())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[ModelResponse](t, w)
	assert.Equal(t, 1, created.Revision)
	assert.Equal(t, "heater", created.Document.Name)

	w = f.do(t, http.MethodPost, "/api/v1/models", heaterDoc())
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, decode[ModelResponse](t, w).Revision)
	assert.Equal(t, 1, f.engine.Models().Len())

	w = f.do(t, http.MethodGet, "/api/v1/models", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]ModelSummary](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, ModelSummary{
		Name: "heater", Inputs: []string{"temp"}, Outputs: []string{"power"}, Variables: 2, Rules: 2,
	}, list[0])

	w = f.do(t, http.MethodGet, "/api/v1/models/HEATER", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[ModelResponse](t, w)
	assert.Equal(t, 2, got.Revision)
	assert.Equal(t, []string{"if temp.cold then power.high", "if temp.hot then power.low"}, got.Document.Rules)

	w = f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[HealthResponse](t, w)
	assert.Equal(t, 1, health.Models)
	assert.True(t, health.Store)

	w = f.do(t, http.MethodDelete, "/api/v1/models/heater", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodGet, "/api/v1/models/heater", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeNotFound, decode[ErrorResponse](t, w).Code)
	w = f.do(t, http.MethodDelete, "/api/v1/models/heater", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	names, err := f.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestPutModelRejects(t *testing.T) {
	f := newFixture(t, config.ServerConfig{}, false)

	w := f.do(t, http.MethodPost, "/api/v1/models", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidRequest, decode[ErrorResponse](t, w).Code)

	w = f.do(t, http.MethodPost, "/api/v1/models", &modelfile.Document{Name: "empty"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidModel, decode[ErrorResponse](t, w).Code)

	doc := heaterDoc()
	doc.Rules = append(doc.Rules, "if temp.freezing then power.high")
	w = f.do(t, http.MethodPost, "/api/v1/models", doc)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidModel, decode[ErrorResponse](t, w).Code)

	doc = heaterDoc()
	doc.Variables[0].Sets[0].Function = "Sawtooth"
	w = f.do(t, http.MethodPost, "/api/v1/models", doc)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, 0, f.engine.Models().Len())
}

func TestPutModelKeepsEngineAndStoreInStep(t *testing.T) {
	f := newFixture(t, config.ServerConfig{}, false)

	w := f.do(t, http.MethodPost, "/api/v1/models", heaterDoc())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	post := func(doc *modelfile.Document) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(doc))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/models", &buf).WithContext(ctx)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		f.server.Handler().ServeHTTP(w, req)
		return w
	}

	// store write fails: the engine keeps the previous model
	changed := heaterDoc()
	changed.Description = "changed"
	w = post(changed)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	m, err := f.engine.Model("heater")
	require.NoError(t, err)
	assert.Equal(t, "power from room temperature", m.Description)
	rec, err := f.store.GetRecord(context.Background(), "heater")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Revision)

	// store write fails for a new model: the engine drops it again
	other := heaterDoc()
	other.Name = "cooler"
	w = post(other)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	_, err = f.engine.Model("cooler")
	assert.Error(t, err)
	assert.Equal(t, 1, f.engine.Models().Len())

	// engine refuses: nothing reaches the store
	require.NoError(t, f.engine.Close())
	other.Name = "boiler"
	w = f.do(t, http.MethodPost, "/api/v1/models", other)
	assert.NotEqual(t, http.StatusCreated, w.Code)
	_, err = f.store.GetRecord(context.Background(), "boiler")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEvaluate(t *testing.T) {
	f := newFixture(t, config.ServerConfig{}, true)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/models", heaterDoc()).Code)

	w := f.do(t, http.MethodPost, "/api/v1/models/heater/evaluate", EvaluateRequest{Inputs: map[string]float64{"temp": 0}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[execution.Result](t, w)
	assert.Equal(t, "heater", res.Model)
	assert.Greater(t, res.Outputs["power"], 50.0)
	assert.True(t, res.Fired["power"])

	w = f.do(t, http.MethodPost, "/api/v1/models/heater/evaluate", `{"inputs": {}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidRequest, decode[ErrorResponse](t, w).Code)

	w = f.do(t, http.MethodPost, "/api/v1/models/heater/evaluate", EvaluateRequest{Inputs: map[string]float64{"humidity": 3}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/models/cooler/evaluate", EvaluateRequest{Inputs: map[string]float64{"temp": 3}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	vectors := make([]map[string]float64, 10)
	for i := range vectors {
		vectors[i] = map[string]float64{"temp": float64(i * 3)}
	}
	w = f.do(t, http.MethodPost, "/api/v1/models/heater/batch", BatchRequest{Vectors: vectors})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	batch := decode[BatchResponse](t, w)
	require.Len(t, batch.Results, 10)
	assert.Equal(t, 10, batch.Stats.Vectors)
	assert.Equal(t, 2, batch.Stats.Workers)
	assert.Equal(t, map[string]float64{"temp": 27}, batch.Results[9].Inputs)

	w = f.do(t, http.MethodPost, "/api/v1/models/heater/batch", BatchRequest{Vectors: []map[string]float64{{"temp": 1}, {}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeMissingInput, decode[ErrorResponse](t, w).Code)

	w = f.do(t, http.MethodPost, "/api/v1/models/heater/batch", BatchRequest{Vectors: vectors, Workers: 1000})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/models/heater/evaluations?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	history := decode[HistoryResponse](t, w)
	assert.Len(t, history.Evaluations, 5)

	w = f.do(t, http.MethodGet, "/api/v1/models/heater/evaluations?limit=100", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.GreaterOrEqual(t, len(decode[HistoryResponse](t, w).Evaluations), 11)

	w = f.do(t, http.MethodGet, "/api/v1/models/heater/evaluations?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFunctionsAndMetrics(t *testing.T) {
	f := newFixture(t, config.ServerConfig{}, false)

	w := f.do(t, http.MethodGet, "/api/v1/functions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	funcs := decode[[]FunctionInfo](t, w)
	require.NotEmpty(t, funcs)
	byName := make(map[string]FunctionInfo)
	for _, fn := range funcs {
		byName[fn.Name] = fn
	}
	assert.Equal(t, 1, byName[fuzzy.FuncTriangle].Params)
	assert.Contains(t, byName[fuzzy.FuncTrapezoid].Aliases, "trap")

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/models", heaterDoc()).Code)
	f.do(t, http.MethodPost, "/api/v1/models/heater/evaluate", EvaluateRequest{Inputs: map[string]float64{"temp": 12}})

	w = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "fuzzylogic_models_loaded 1")
	assert.Contains(t, body, `fuzzylogic_evaluations_total{model="heater",status="ok"} 1`)
	assert.Contains(t, body, `route="/api/v1/models/:name/evaluate"`)
}

func TestHistoryDisabled(t *testing.T) {
	f := newFixture(t, config.ServerConfig{}, false)
	w := f.do(t, http.MethodGet, "/api/v1/models/heater/evaluations", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, CodeUnavailable, decode[ErrorResponse](t, w).Code)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, config.ServerConfig{RateLimit: 0.001, Burst: 2}, false)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", nil).Code)
	w := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, CodeRateLimited, decode[ErrorResponse](t, w).Code)
}

func TestLoadStored(t *testing.T) {
	f := newFixture(t, config.ServerConfig{}, false)
	ctx := context.Background()

	_, err := f.store.PutDocument(ctx, heaterDoc())
	require.NoError(t, err)

	n, err := f.server.LoadStored(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	m, err := f.engine.Model("heater")
	require.NoError(t, err)
	assert.Equal(t, 2, m.RuleCount())

	n, err = New(f.engine, Options{}).LoadStored(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"jsonbench-api/internal/model"
	"jsonbench-api/internal/repository"
	"jsonbench-api/internal/service"
)

const heavyBody = `{
	"payload": {
		"user": {"id": 7, "name": "bench", "prefs": {"lang": "en", "tz": "UTC", "flags": [true, false]}},
		"items": [{"sku": "X1", "qty": 2, "price": 9.99}]
	},
	"metadata": {"trace": "t1", "ts": 1000, "headers": {"ua": "curl", "accept": ["*/*"]}},
	"nested_array": [
		{"level": 1, "data": {"foo": [1, 2], "bar": {"k1": "a", "k2": "b"}}},
		{"level": 2, "data": {"numbers": [3], "obj": [{"x": 4}]}}
	],
	"tags": ["a", "b"]
}`

// brokenStore fails every storage call with a driver-looking error.
type brokenStore struct {
	*repository.MemoryStore
}

var errDriver = errors.New("pq: relation \"light_data\" does not exist")

func (brokenStore) InsertLight(context.Context, model.LightData) (*model.LightRecord, error) {
	return nil, errDriver
}

func (brokenStore) GetHeavyByID(context.Context, int64) (*model.HeavyRecord, error) {
	return nil, errDriver
}

func (brokenStore) Ping(context.Context) error {
	return errDriver
}

func newBenchHandler(t *testing.T, store repository.Store, cfg BenchConfig) *BenchHandler {
	t.Helper()
	svc := service.NewBenchService(store, service.BenchOptions{})
	assert.Assert(t, svc != nil)
	return NewBenchHandler(svc, cfg)
}

func serve(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"details"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var out struct {
		Success bool     `json:"success"`
		Error   apiError `json:"error"`
	}
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, out.Success, false)
	return out.Error
}

func TestHello(t *testing.T) {
	h := newBenchHandler(t, repository.NewMemoryStore(), BenchConfig{})
	rec := serve(h.Hello, http.MethodGet, "/hello", "")

	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, rec.Body.String(), "hello world")
	assert.Check(t, is.Contains(rec.Header().Get("Content-Type"), "text/plain"))
}

func TestParseEndpoints(t *testing.T) {
	h := newBenchHandler(t, repository.NewMemoryStore(), BenchConfig{})

	testCases := []struct {
		name    string
		handler http.HandlerFunc
		body    string
		status  int
		code    string
		field   string
	}{
		{name: "light ok", handler: h.ParseLight, body: `{"key":"k","value":"v"}`, status: http.StatusOK},
		{name: "light wrong type", handler: h.ParseLight, body: `{"key":1,"value":"v"}`,
			status: http.StatusBadRequest, code: "VALIDATION_ERROR", field: "key"},
		{name: "light missing value", handler: h.ParseLight, body: `{"key":"k"}`,
			status: http.StatusBadRequest, code: "VALIDATION_ERROR", field: "value"},
		{name: "light malformed", handler: h.ParseLight, body: `{"key":`,
			status: http.StatusBadRequest, code: "BAD_REQUEST"},
		{name: "heavy ok", handler: h.ParseHeavy, body: heavyBody, status: http.StatusOK},
		{name: "heavy tags null", handler: h.ParseHeavy,
			body:   strings.Replace(heavyBody, `"tags": ["a", "b"]`, `"tags": null`, 1),
			status: http.StatusBadRequest, code: "VALIDATION_ERROR", field: "tags"},
		{name: "heavy empty body", handler: h.ParseHeavy, body: "",
			status: http.StatusBadRequest, code: "BAD_REQUEST"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(tc.handler, http.MethodPost, "/parse", tc.body)
			assert.Equal(t, rec.Code, tc.status, rec.Body.String())

			if tc.status == http.StatusOK {
				assert.Equal(t, strings.TrimSpace(rec.Body.String()), `{"parsed":true}`)
				return
			}
			apiErr := decodeError(t, rec)
			assert.Equal(t, apiErr.Code, tc.code)
			if tc.field != "" {
				assert.Assert(t, is.Len(apiErr.Details, 1))
				assert.Equal(t, apiErr.Details[0].Field, tc.field)
			}
		})
	}
}

func TestWriteThenReadLight(t *testing.T) {
	h := newBenchHandler(t, repository.NewMemoryStore(), BenchConfig{})

	rec := serve(h.WriteLight, http.MethodPost, "/write_light_db", `{"key":"key_1","value":"hello"}`)
	assert.Equal(t, rec.Code, http.StatusOK, rec.Body.String())

	var written model.LightRecord
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &written))
	assert.Equal(t, written.ID, int64(1))
	assert.Assert(t, written.CreatedAt.Equal(written.UpdatedAt))

	// no key query parameter reads key_1
	rec = serve(h.ReadLight, http.MethodGet, "/read_light_db", "")
	assert.Equal(t, rec.Code, http.StatusOK, rec.Body.String())

	var read model.LightRecord
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &read))
	assert.Equal(t, read.ID, written.ID)
	assert.Equal(t, read.Value, "hello")
	assert.Assert(t, read.CreatedAt.Equal(written.CreatedAt))

	rec = serve(h.ReadLight, http.MethodGet, "/read_light_db?key=nope", "")
	assert.Equal(t, rec.Code, http.StatusNotFound)
	assert.Equal(t, decodeError(t, rec).Message, "light record not found")
}

func TestWriteThenReadHeavy(t *testing.T) {
	h := newBenchHandler(t, repository.NewMemoryStore(), BenchConfig{})

	rec := serve(h.WriteHeavy, http.MethodPost, "/write_heavy_db", heavyBody)
	assert.Equal(t, rec.Code, http.StatusOK, rec.Body.String())

	var written map[string]interface{}
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &written))
	assert.Equal(t, written["id"], float64(1))
	assert.Equal(t, written["created_at"], written["updated_at"])

	rec = serve(h.ReadHeavy, http.MethodGet, "/read_heavy_db", "")
	assert.Equal(t, rec.Code, http.StatusOK, rec.Body.String())

	var read map[string]interface{}
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &read))
	assert.DeepEqual(t, read, written)

	nested := read["nested_array"].([]interface{})
	assert.Assert(t, is.Len(nested, 2))
	assert.DeepEqual(t, nested[1], map[string]interface{}{
		"level": float64(2),
		"data": map[string]interface{}{
			"numbers": []interface{}{float64(3)},
			"obj":     []interface{}{map[string]interface{}{"x": float64(4)}},
		},
	})
}

func TestReadHeavyErrors(t *testing.T) {
	h := newBenchHandler(t, repository.NewMemoryStore(), BenchConfig{})

	rec := serve(h.ReadHeavy, http.MethodGet, "/read_heavy_db?id=abc", "")
	assert.Equal(t, rec.Code, http.StatusBadRequest)
	assert.Equal(t, decodeError(t, rec).Code, "BAD_REQUEST")

	rec = serve(h.ReadHeavy, http.MethodGet, "/read_heavy_db?id=42", "")
	assert.Equal(t, rec.Code, http.StatusNotFound)
	apiErr := decodeError(t, rec)
	assert.Equal(t, apiErr.Code, "NOT_FOUND")
	assert.Equal(t, apiErr.Message, "heavy record not found")
}

func TestStorageErrorsAreGenericByDefault(t *testing.T) {
	store := brokenStore{repository.NewMemoryStore()}

	h := newBenchHandler(t, store, BenchConfig{})
	rec := serve(h.WriteLight, http.MethodPost, "/write_light_db", `{"key":"k","value":"v"}`)
	assert.Equal(t, rec.Code, http.StatusInternalServerError)
	apiErr := decodeError(t, rec)
	assert.Equal(t, apiErr.Code, "STORAGE_ERROR")
	assert.Equal(t, apiErr.Message, "Storage operation failed")

	rec = serve(h.ReadHeavy, http.MethodGet, "/read_heavy_db?id=1", "")
	assert.Equal(t, rec.Code, http.StatusInternalServerError)

	h = newBenchHandler(t, store, BenchConfig{ExposeStorageErrors: true})
	rec = serve(h.WriteLight, http.MethodPost, "/write_light_db", `{"key":"k","value":"v"}`)
	assert.Equal(t, rec.Code, http.StatusInternalServerError)
	assert.Equal(t, decodeError(t, rec).Message, errDriver.Error())
}

func TestInvalidBodyDoesNotReachStore(t *testing.T) {
	store := repository.NewMemoryStore()
	h := newBenchHandler(t, store, BenchConfig{})

	rec := serve(h.WriteHeavy, http.MethodPost, "/write_heavy_db", `{"payload":{}}`)
	assert.Equal(t, rec.Code, http.StatusBadRequest)

	stats, err := store.GetStats(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, stats["heavy_records"], int64(0))
}

func TestBodyLimit(t *testing.T) {
	h := newBenchHandler(t, repository.NewMemoryStore(), BenchConfig{MaxBodyBytes: 16})

	rec := serve(h.WriteLight, http.MethodPost, "/write_light_db", `{"key":"k","value":"far too long for the limit"}`)
	assert.Equal(t, rec.Code, http.StatusRequestEntityTooLarge)
	assert.Equal(t, decodeError(t, rec).Code, "PAYLOAD_TOO_LARGE")
}

func TestHealthAndReady(t *testing.T) {
	h := New("1.2.3", repository.NewMemoryStore())

	rec := serve(h.Health, http.MethodGet, "/health", "")
	assert.Equal(t, rec.Code, http.StatusOK)
	var health HealthResponse
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, health.Status, "healthy")
	assert.Equal(t, health.Version, "1.2.3")

	rec = serve(h.Ready, http.MethodGet, "/ready", "")
	assert.Equal(t, rec.Code, http.StatusOK)
	var ready ReadyResponse
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Assert(t, ready.Ready)
	assert.Assert(t, is.Len(ready.Checks, 2))

	h = New("1.2.3", brokenStore{repository.NewMemoryStore()})
	rec = serve(h.Ready, http.MethodGet, "/ready", "")
	assert.Equal(t, rec.Code, http.StatusServiceUnavailable)
	assert.Equal(t, decodeError(t, rec).Code, "SERVICE_UNAVAILABLE")
}

func TestAdminStats(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := service.NewBenchService(store, service.BenchOptions{})
	_, err := svc.WriteLight(context.Background(), []byte(`{"key":"k","value":"v"}`))
	assert.NilError(t, err)

	h := NewAdminHandler(svc, "memory", string(svc.Mode()))
	rec := serve(h.GetStats, http.MethodGet, "/admin/stats", "")
	assert.Equal(t, rec.Code, http.StatusOK)

	var stats map[string]interface{}
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, stats["store_type"], "memory")
	assert.Equal(t, stats["ingest_mode"], "typed")

	storeStats := stats["store"].(map[string]interface{})
	assert.Equal(t, storeStats["status"], "connected")
	assert.Equal(t, storeStats["light_records"], float64(1))
	assert.Check(t, is.Contains(stats, "memory"))
}

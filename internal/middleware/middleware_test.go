package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"jsonbench-api/internal/model"
	"jsonbench-api/pkg/uid"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func decodeError(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var out struct {
		Success bool                   `json:"success"`
		Error   map[string]interface{} `json:"error"`
	}
	assert.NilError(t, json.Unmarshal(body, &out))
	assert.Equal(t, out.Success, false)
	return out.Error
}

func TestRecoveryProjectionDefect(t *testing.T) {
	logs := captureLog(t)
	h := RequestID(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(&model.ProjectionError{Path: "payload.items[0].price", Err: errors.New("NaN")})
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/write_heavy_db", nil))

	assert.Equal(t, rec.Code, http.StatusInternalServerError)
	assert.Equal(t, decodeError(t, rec.Body.Bytes())["code"], "INTERNAL_ERROR")
	assert.Check(t, is.Contains(logs.String(), "DEFECT"))
	assert.Check(t, is.Contains(logs.String(), "payload.items[0].price"))
}

func TestRecoveryOtherPanic(t *testing.T) {
	logs := captureLog(t)
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, rec.Code, http.StatusInternalServerError)
	assert.Check(t, is.Contains(logs.String(), "PANIC: boom"))
	assert.Check(t, !strings.Contains(logs.String(), "DEFECT"))
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Assert(t, uid.IsValid(seen))
	assert.Equal(t, rec.Header().Get("X-Request-ID"), seen)

	given := uid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", given)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, seen, given)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "not a uuid\n")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Assert(t, seen != "not a uuid\n")
	assert.Assert(t, uid.IsValid(seen))
}

func TestLogging(t *testing.T) {
	logs := captureLog(t)
	h := RequestID(Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short"))
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/hello", nil))
	line := logs.String()
	assert.Check(t, is.Contains(line, "[GET] /hello"))
	assert.Check(t, is.Contains(line, " 418 "))
	assert.Check(t, is.Contains(line, " 5B "))
	assert.Check(t, is.Contains(line, "request_id="))
}

func handlerLabels(t *testing.T, reg *prometheus.Registry) []string {
	t.Helper()
	families, err := reg.Gather()
	assert.NilError(t, err)

	var labels []string
	for _, mf := range families {
		if mf.GetName() != "http_request_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "handler" {
					labels = append(labels, lp.GetValue())
				}
			}
		}
	}
	sort.Strings(labels)
	return labels
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := chi.NewRouter()
	r.Use(Metrics(reg))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/hello", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	})

	for _, path := range []string{"/items/1", "/items/2", "/hello?x=1", "/nope/1", "/nope/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.DeepEqual(t, handlerLabels(t, reg), []string{"/hello", "/items/{id}", unmatchedRoute})
}

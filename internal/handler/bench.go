package handler

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"jsonbench-api/internal/middleware"
	"jsonbench-api/internal/model"
	"jsonbench-api/internal/repository"
	"jsonbench-api/internal/service"
	"jsonbench-api/pkg/apierror"
	"jsonbench-api/pkg/response"
)

const (
	defaultLightKey = "key_1"
	defaultHeavyID  = "1"
)

// BenchConfig holds request handling settings for BenchHandler.
type BenchConfig struct {
	MaxBodyBytes        int64
	ExposeStorageErrors bool
}

// BenchHandler handles the benchmark endpoints.
type BenchHandler struct {
	benchService *service.BenchService
	cfg          BenchConfig
}

// NewBenchHandler creates a new bench handler.
func NewBenchHandler(benchService *service.BenchService, cfg BenchConfig) *BenchHandler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 4 << 20
	}
	return &BenchHandler{
		benchService: benchService,
		cfg:          cfg,
	}
}

// Hello handles GET /hello
func (h *BenchHandler) Hello(w http.ResponseWriter, r *http.Request) {
	response.Text(w, http.StatusOK, "hello world")
}

// ParseLight handles POST /parse_light
func (h *BenchHandler) ParseLight(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	if err := h.benchService.ParseLight(body); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, map[string]bool{"parsed": true})
}

// ParseHeavy handles POST /parse_heavy
func (h *BenchHandler) ParseHeavy(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	if err := h.benchService.ParseHeavy(body); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, map[string]bool{"parsed": true})
}

// WriteLight handles POST /write_light_db
func (h *BenchHandler) WriteLight(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	rec, err := h.benchService.WriteLight(r.Context(), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, rec)
}

// ReadLight handles GET /read_light_db?key=
func (h *BenchHandler) ReadLight(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		key = defaultLightKey
	}

	rec, err := h.benchService.ReadLight(r.Context(), key)
	if errors.Is(err, repository.ErrNotFound) {
		response.Error(w, apierror.NotFound("light record not found"))
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, rec)
}

// WriteHeavy handles POST /write_heavy_db
func (h *BenchHandler) WriteHeavy(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	rec, err := h.benchService.WriteHeavy(r.Context(), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, rec)
}

// ReadHeavy handles GET /read_heavy_db?id=
func (h *BenchHandler) ReadHeavy(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		raw = defaultHeavyID
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		response.Error(w, apierror.BadRequest("id must be an integer"))
		return
	}

	rec, err := h.benchService.ReadHeavy(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		response.Error(w, apierror.NotFound("heavy record not found"))
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, rec)
}

func (h *BenchHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, apierror.PayloadTooLarge(tooLarge.Limit))
			return nil, false
		}
		response.Error(w, apierror.BadRequest("failed to read request body"))
		return nil, false
	}
	return body, true
}

// writeError maps service errors onto API errors.
func (h *BenchHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	var serr *service.StorageError

	switch {
	case errors.Is(err, model.ErrMalformedJSON):
		response.Error(w, apierror.BadRequest(err.Error()))
	case errors.As(err, &verr):
		response.Error(w, apierror.ValidationError("invalid request body", apierror.FieldError{
			Field:   verr.Path,
			Message: verr.Reason,
		}))
	case errors.Is(err, repository.ErrNotFound):
		response.Error(w, apierror.NotFound(""))
	case errors.As(err, &serr):
		log.Printf("[Bench] storage error request_id=%s %s %s: %v",
			middleware.GetRequestID(r.Context()), r.Method, r.URL.Path, serr)
		if h.cfg.ExposeStorageErrors {
			response.Error(w, apierror.StorageError(serr.Err.Error()))
			return
		}
		response.Error(w, apierror.StorageError(""))
	default:
		log.Printf("[Bench] unexpected error request_id=%s: %v", middleware.GetRequestID(r.Context()), err)
		response.Error(w, err)
	}
}

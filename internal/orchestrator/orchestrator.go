package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/homeworkhero/internal/config"
	"github.com/local/homeworkhero/internal/dispatcher"
	"github.com/local/homeworkhero/internal/generator"
	"github.com/local/homeworkhero/internal/metrics"
	"github.com/local/homeworkhero/internal/selector"
	"github.com/local/homeworkhero/internal/statuscheck"
	"github.com/local/homeworkhero/internal/storage"
	"github.com/local/homeworkhero/internal/store"
)

type Queue interface {
	Enqueue(ctx context.Context, payload []byte) error
}

type StatusStore interface {
	Set(ctx context.Context, jobID string, st store.Status) error
	Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

type ResultLoader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

type HealthChecker interface {
	Summary(ctx context.Context) statuscheck.Summary
}

// RateLimiter admits or rejects a request for a client key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Dependencies struct {
	Queue   Queue
	Status  StatusStore
	Results ResultLoader
	Health  HealthChecker
	Limiter RateLimiter
	Catalog config.Catalog
}

type Orchestrator struct {
	deps Dependencies
}

func New(deps Dependencies) *Orchestrator {
	return &Orchestrator{deps: deps}
}

func (o *Orchestrator) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", o.handleHealth)
	mux.HandleFunc("/generate", o.handleGenerate)
	mux.HandleFunc("/progress/", o.handleProgress)
	mux.HandleFunc("/download/", o.handleDownload)
}

// GenerateRequest is the form (or JSON body) posted to /generate.
type GenerateRequest struct {
	DataSource string `json:"data_source"`
	Theme      string `json:"theme"`
	Model      string `json:"model"`
	Level      string `json:"level"`
	Sections   string `json:"sections"`
	Seed       string `json:"seed"`
}

type generateResp struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
	Seed    *int64 `json:"seed,omitempty"`
}

// RequestError is a client mistake in a generate request.
type RequestError struct {
	Field   string
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *RequestError) Unwrap() error { return e.Err }

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, generateResp{Status: "error", Message: msg})
}

func (o *Orchestrator) handleHealth(w http.ResponseWriter, r *http.Request) {
	if o.deps.Health == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}
	s := o.deps.Health.Summary(r.Context())
	code := http.StatusOK
	if !s.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, s)
}

func (o *Orchestrator) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if o.deps.Limiter != nil {
		allowed, err := o.deps.Limiter.Allow(r.Context(), clientKey(r))
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable; admitting request")
		} else if !allowed {
			writeError(w, http.StatusTooManyRequests, "Too many worksheet requests, please wait a minute.")
			return
		}
	}
	req, err := decodeGenerate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobID, seed, err := o.CreateJob(r.Context(), req)
	if err != nil {
		var re *RequestError
		if errors.As(err, &re) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Msg("job creation failed")
		writeError(w, http.StatusServiceUnavailable, "queue unavailable")
		return
	}
	writeJSON(w, http.StatusOK, generateResp{
		Status:  "success",
		Message: "Worksheet generation started...",
		JobID:   jobID,
		Seed:    &seed,
	})
}

func decodeGenerate(r *http.Request) (GenerateRequest, error) {
	var req GenerateRequest
	defer r.Body.Close()
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid json")
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("invalid form")
	}
	req = GenerateRequest{
		DataSource: r.PostForm.Get("data_source"),
		Theme:      r.PostForm.Get("theme"),
		Model:      r.PostForm.Get("model"),
		Level:      r.PostForm.Get("level"),
		Sections:   r.PostForm.Get("sections"),
		Seed:       r.PostForm.Get("seed"),
	}
	return req, nil
}

// CreateJob validates req against the catalog, records a queued status and
// enqueues the job. It returns the job id and the seed the worksheet uses.
func (o *Orchestrator) CreateJob(ctx context.Context, req GenerateRequest) (string, int64, error) {
	job, err := o.validate(req)
	if err != nil {
		return "", 0, err
	}
	job.ID = uuid.NewString()
	job.CreatedAt = time.Now().UTC()

	payload, err := job.Marshal()
	if err != nil {
		return "", 0, err
	}
	start := job.CreatedAt
	meta := map[string]any{
		"dataset": job.Dataset,
		"theme":   job.Theme,
		"seed":    job.Seed,
		"model":   job.Model,
		"level":   job.Level,
	}
	if job.Sections != nil {
		meta["sections"] = *job.Sections
	}
	if err := o.deps.Status.Set(ctx, job.ID, store.Status{
		Status:   store.StateQueued,
		Message:  "queued",
		Start:    &start,
		Metadata: meta,
	}); err != nil {
		return "", 0, fmt.Errorf("record status: %w", err)
	}
	if err := o.deps.Queue.Enqueue(ctx, payload); err != nil {
		end := time.Now().UTC()
		_ = o.deps.Status.Set(ctx, job.ID, store.Status{Status: store.StateFailed, Message: "queue unavailable", End: &end})
		return "", 0, fmt.Errorf("enqueue: %w", err)
	}
	metrics.IncJob("enqueued")
	log.Info().
		Str("job_id", job.ID).
		Str("dataset", job.Dataset).
		Str("theme", job.Theme).
		Str("model", job.Model).
		Str("level", job.Level).
		Int64("seed", job.Seed).
		Msg("job created")
	return job.ID, job.Seed, nil
}

func (o *Orchestrator) validate(req GenerateRequest) (dispatcher.Job, error) {
	c := o.deps.Catalog
	req.DataSource = strings.TrimSpace(req.DataSource)
	if req.DataSource == "" {
		return dispatcher.Job{}, &RequestError{Field: "data_source", Message: "data_source is required"}
	}
	if len(c.DataSources) > 0 && !c.HasDataSource(req.DataSource) {
		return dispatcher.Job{}, &RequestError{Field: "data_source", Message: fmt.Sprintf("unknown data source %q", req.DataSource)}
	}
	if _, ok := c.Theme(req.Theme); !ok {
		return dispatcher.Job{}, &RequestError{Field: "theme", Message: fmt.Sprintf("unknown theme %q", req.Theme)}
	}
	if req.Model == "" && len(c.Models) > 0 {
		req.Model = c.Models[0].ID
	} else if req.Model != "" && !c.HasModel(req.Model) {
		return dispatcher.Job{}, &RequestError{Field: "model", Message: fmt.Sprintf("unknown model %q", req.Model)}
	}
	if req.Level != "" && !slices.Contains(c.Levels, req.Level) {
		return dispatcher.Job{}, &RequestError{Field: "level", Message: fmt.Sprintf("unknown level %q", req.Level)}
	}

	var sections *string
	if spec := strings.TrimSpace(req.Sections); spec != "" {
		if _, err := selector.Parse(spec); err != nil {
			return dispatcher.Job{}, &RequestError{Field: "sections", Err: err}
		}
		sections = &spec
	}

	var seed int64
	if s := strings.TrimSpace(req.Seed); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return dispatcher.Job{}, &RequestError{Field: "seed", Message: fmt.Sprintf("seed must be an integer, got %q", req.Seed)}
		}
		seed = v
	} else {
		seed = rand.Int64N(1_000_000_000)
	}

	return dispatcher.Job{
		Request: generator.Request{
			Dataset:  req.DataSource,
			Theme:    req.Theme,
			Seed:     seed,
			Sections: sections,
		},
		Model: req.Model,
		Level: req.Level,
	}, nil
}

func (o *Orchestrator) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/progress/")
	if id == "" {
		http.Error(w, "missing job id", http.StatusBadRequest)
		return
	}
	st, ok, err := o.deps.Status.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	resp := map[string]any{
		"success":    st.Status == store.StateSuccess,
		"job_id":     id,
		"status":     st.Status,
		"progress":   st.Progress,
		"message":    st.Message,
		"start_time": st.Start,
		"end_time":   st.End,
	}
	if st.Status == store.StateSuccess {
		resp["download_url"] = "/download/" + id
		resp["sections_kept"] = st.Metadata["sections_kept"]
	}
	if spec := st.MetaString("sections"); spec != "" {
		resp["sections"] = spec
	}
	if kind := st.MetaString("error_kind"); kind != "" {
		resp["error_kind"] = kind
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDownload serves the finished worksheet JSON as an attachment.
func (o *Orchestrator) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/download/")
	st, ok, err := o.deps.Status.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	if !ok || id == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	switch st.Status {
	case store.StateSuccess:
	case store.StateFailed:
		http.Error(w, "job failed: "+st.Message, http.StatusConflict)
		return
	default:
		http.Error(w, "not ready", http.StatusAccepted)
		return
	}
	ref := st.MetaString("result_ref")
	if ref == "" {
		http.Error(w, "result not available", http.StatusNotFound)
		return
	}
	b, err := o.deps.Results.Load(r.Context(), ref)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "result not available", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("job_id", id).Str("result_ref", ref).Msg("result load failed")
		http.Error(w, "failed to read", http.StatusInternalServerError)
		return
	}
	name := "worksheet_" + id + ".json"
	if ds := st.MetaString("dataset"); ds != "" {
		name = fmt.Sprintf("worksheet_%s_%s.json", ds, id)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(b)
}

func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

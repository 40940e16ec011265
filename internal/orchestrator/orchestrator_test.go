package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/homeworkhero/internal/config"
	"github.com/local/homeworkhero/internal/dispatcher"
	"github.com/local/homeworkhero/internal/statuscheck"
	"github.com/local/homeworkhero/internal/storage"
	"github.com/local/homeworkhero/internal/store"
)

type fakeQueue struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (q *fakeQueue) Enqueue(_ context.Context, b []byte) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.payloads = append(q.payloads, b)
	return nil
}

type memStatus struct {
	mu sync.Mutex
	m  map[string]store.Status
}

func (s *memStatus) Set(_ context.Context, id string, st store.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[id] = st
	return nil
}

func (s *memStatus) Get(_ context.Context, id string) (store.Status, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[id]
	return st, ok, nil
}

type memResults map[string][]byte

func (m memResults) Load(_ context.Context, ref string) ([]byte, error) {
	b, ok := m[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, ref)
	}
	return b, nil
}

type stubHealth statuscheck.Summary

func (h stubHealth) Summary(context.Context) statuscheck.Summary { return statuscheck.Summary(h) }

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, error) { return false, nil }

type fixture struct {
	q       *fakeQueue
	status  *memStatus
	results memResults
	mux     *http.ServeMux
}

func newFixture(t *testing.T, mutate func(*Dependencies)) *fixture {
	t.Helper()
	cat := config.DefaultCatalog()
	cat.DataSources = []config.Option{{ID: "ww3", Name: "Ww3"}}
	f := &fixture{
		q:       &fakeQueue{},
		status:  &memStatus{m: map[string]store.Status{}},
		results: memResults{},
		mux:     http.NewServeMux(),
	}
	deps := Dependencies{Queue: f.q, Status: f.status, Results: f.results, Catalog: cat}
	if mutate != nil {
		mutate(&deps)
	}
	New(deps).RegisterRoutes(f.mux)
	return f
}

func (f *fixture) postForm(form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func validForm() url.Values {
	return url.Values{
		"data_source": {"ww3"},
		"theme":       {"wof"},
		"model":       {"gpt-4o"},
		"level":       {"C"},
		"sections":    {" 1,3-5 "},
		"seed":        {"42"},
	}
}

func TestGenerateCreatesJob(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.postForm(validForm())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Worksheet generation started...", body["message"])
	assert.EqualValues(t, 42, body["seed"])
	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, jobID)

	require.Len(t, f.q.payloads, 1)
	job, err := dispatcher.DecodeJob(f.q.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, jobID, job.ID)
	assert.Equal(t, "ww3", job.Dataset)
	assert.Equal(t, "wof", job.Theme)
	assert.Equal(t, int64(42), job.Seed)
	assert.Equal(t, "gpt-4o", job.Model)
	assert.Equal(t, "C", job.Level)
	require.NotNil(t, job.Sections)
	assert.Equal(t, "1,3-5", *job.Sections)

	st, ok, _ := f.status.Get(context.Background(), jobID)
	require.True(t, ok)
	assert.Equal(t, store.StateQueued, st.Status)
	assert.Equal(t, "ww3", st.MetaString("dataset"))
	assert.Equal(t, "1,3-5", st.MetaString("sections"))
}

func TestGenerateDefaults(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.postForm(url.Values{"data_source": {"ww3"}, "theme": {"kpop"}})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	job, err := dispatcher.DecodeJob(f.q.payloads[0])
	require.NoError(t, err)
	assert.Nil(t, job.Sections, "blank sections keeps every section")
	assert.Equal(t, "gpt-5-mini", job.Model)
	assert.GreaterOrEqual(t, job.Seed, int64(0))
	assert.EqualValues(t, job.Seed, decodeBody(t, rec)["seed"])
}

func TestGenerateAcceptsJSON(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"data_source":"ww3","theme":"kpop","sections":"2","seed":"7"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	job, err := dispatcher.DecodeJob(f.q.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, "2", *job.Sections)
	assert.Equal(t, int64(7), job.Seed)
}

func TestGenerateRejectsBadInput(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(url.Values)
		match string
	}{
		{"bad section range", func(v url.Values) { v.Set("sections", "3-b") }, `Invalid section range: "3-b"`},
		{"bad section value", func(v url.Values) { v.Set("sections", "1,x") }, `Invalid section value: "x"`},
		{"missing data source", func(v url.Values) { v.Del("data_source") }, "data_source is required"},
		{"unknown data source", func(v url.Values) { v.Set("data_source", "ww9") }, `unknown data source "ww9"`},
		{"unknown theme", func(v url.Values) { v.Set("theme", "space") }, `unknown theme "space"`},
		{"unknown model", func(v url.Values) { v.Set("model", "gpt-2") }, `unknown model "gpt-2"`},
		{"unknown level", func(v url.Values) { v.Set("level", "AA") }, `unknown level "AA"`},
		{"non-integer seed", func(v url.Values) { v.Set("seed", "4.5") }, "seed must be an integer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			form := validForm()
			tc.edit(form)
			rec := f.postForm(form)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, "error", body["status"])
			assert.Contains(t, body["message"], tc.match)
			assert.Empty(t, f.q.payloads)
		})
	}
}

func TestGenerateMethodAndQueueFailures(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, f.get("/generate").Code)

	f = newFixture(t, func(d *Dependencies) { d.Queue = &fakeQueue{err: errors.New("redis down")} })
	rec := f.postForm(validForm())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Len(t, f.status.m, 1)
	for _, st := range f.status.m {
		assert.Equal(t, store.StateFailed, st.Status)
	}
}

func TestGenerateRateLimited(t *testing.T) {
	f := newFixture(t, func(d *Dependencies) { d.Limiter = denyAll{} })
	rec := f.postForm(validForm())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Empty(t, f.q.payloads)
}

func TestProgressAndDownload(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	assert.Equal(t, http.StatusNotFound, f.get("/progress/nope").Code)
	assert.Equal(t, http.StatusNotFound, f.get("/download/nope").Code)

	_ = f.status.Set(ctx, "q1", store.Status{Status: store.StateQueued, Message: "queued"})
	rec := f.get("/progress/q1")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, false, body["success"])
	assert.NotContains(t, body, "download_url")
	assert.Equal(t, http.StatusAccepted, f.get("/download/q1").Code)

	_ = f.status.Set(ctx, "f1", store.Status{Status: store.StateFailed, Message: "build: theme missing", Metadata: map[string]any{"error_kind": "theme_error"}})
	assert.Equal(t, "theme_error", decodeBody(t, f.get("/progress/f1"))["error_kind"])
	rec = f.get("/download/f1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "theme missing")

	f.results["file://results/s1_worksheet.json"] = []byte("{\n  \"seed\": 1\n}\n")
	_ = f.status.Set(ctx, "s1", store.Status{
		Status:   store.StateSuccess,
		Progress: 100,
		Metadata: map[string]any{"result_ref": "file://results/s1_worksheet.json", "dataset": "ww3", "sections": "1,3-5", "sections_kept": 3},
	})
	body = decodeBody(t, f.get("/progress/s1"))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "/download/s1", body["download_url"])
	assert.EqualValues(t, 3, body["sections_kept"])
	assert.Equal(t, "1,3-5", body["sections"])

	rec = f.get("/download/s1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="worksheet_ww3_s1.json"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "{\n  \"seed\": 1\n}\n", rec.Body.String())

	_ = f.status.Set(ctx, "s2", store.Status{Status: store.StateSuccess, Metadata: map[string]any{"result_ref": "file://results/gone.json"}})
	assert.Equal(t, http.StatusNotFound, f.get("/download/s2").Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.get("/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	f = newFixture(t, func(d *Dependencies) {
		d.Health = stubHealth{OK: false, Redis: statuscheck.Status{Message: "connection refused"}}
	})
	rec = f.get("/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	f = newFixture(t, func(d *Dependencies) { d.Health = stubHealth{OK: true} })
	assert.Equal(t, http.StatusOK, f.get("/health").Code)
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/generate", nil)
	r.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "10.1.2.3", clientKey(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientKey(r))
}

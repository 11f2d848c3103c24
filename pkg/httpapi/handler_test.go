package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/service-jobs/pkg/aggregate"
	"github.com/jdziat/service-jobs/pkg/core"
	"github.com/jdziat/service-jobs/pkg/service"
)

var t0 = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

type testAPI struct {
	t       *testing.T
	handler http.Handler
	now     time.Time
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	api := &testAPI{t: t, now: t0}
	clock := func() time.Time { return api.now }
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(service.WithClock(clock), service.WithLogger(quiet))
	api.handler = NewHandler(svc, WithClock(clock), WithLogger(quiet))
	return api
}

func (a *testAPI) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) create() string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/jobs", `{"metadata":{"stock_number":"S-1"}}`)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[JobResponse](a.t, rec).ID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	rec := newTestAPI(t).do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateJob(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodPost, "/jobs", `{"metadata":{"vin":"1HGCM82633A004352","priority":"high"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	job := decode[JobResponse](t, rec)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, core.StatusPending, job.Status)
	assert.Equal(t, "high", job.Metadata.Priority)
	assert.Equal(t, "0m", job.TotalLabor)
	assert.Zero(t, job.ElapsedSeconds)
}

func TestCreateJob_InvalidVIN(t *testing.T) {
	rec := newTestAPI(t).do(http.MethodPost, "/jobs", `{"metadata":{"vin":"123"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "validation", body.Kind)
	assert.Contains(t, body.Error, "metadata.vin")
}

func TestCreateJob_BadJSON(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodPost, "/jobs", `{"metadata":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/jobs", `{"bogus":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWorkflow(t *testing.T) {
	api := newTestAPI(t)
	id := api.create()

	rec := api.do(http.MethodPost, "/jobs/"+id+"/start", `{"technician_id":"tech1","at":"2024-03-04T08:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, core.StatusInProgress, decode[JobResponse](t, rec).Status)

	rec = api.do(http.MethodPost, "/jobs/"+id+"/technicians", `{"technician_id":"tech2","at":"2024-03-04T08:10:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, "/jobs/"+id+"/pause", `{"at":"2024-03-04T08:30:00Z","note":"lunch"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paused := decode[JobResponse](t, rec)
	assert.Equal(t, core.StatusPaused, paused.Status)
	assert.Equal(t, 50, paused.TotalLaborMinutes)

	rec = api.do(http.MethodPost, "/jobs/"+id+"/resume", `{"technician_id":"tech1","at":"2024-03-04T09:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, "/jobs/"+id+"/qc", `{"at":"2024-03-04T09:30:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, "/jobs/"+id+"/qc/approve", `{"at":"2024-03-04T09:45:00Z"}`, ActorHeader, "qc-lead")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decode[JobResponse](t, rec)
	assert.Equal(t, core.StatusQCApproved, done.Status)
	assert.Equal(t, 80, done.TotalLaborMinutes)
	assert.Equal(t, "1h 20m", done.TotalLabor)
	assert.Equal(t, 90*60, done.ElapsedSeconds, "elapsed stops when the work completed")
	assert.Equal(t, "qc-lead", done.Events[len(done.Events)-1].ActorID)
	assert.Equal(t, "lunch", done.Events[2].Note)
}

func TestActionDefaultsToServerClock(t *testing.T) {
	api := newTestAPI(t)
	id := api.create()

	api.now = t0.Add(5 * time.Minute)
	rec := api.do(http.MethodPost, "/jobs/"+id+"/start", `{"technician_id":"tech1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	api.now = t0.Add(50 * time.Minute)
	rec = api.do(http.MethodPost, "/jobs/"+id+"/complete", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	job := decode[JobResponse](t, rec)
	assert.Equal(t, 45, job.TotalLaborMinutes)
	assert.Equal(t, "tech1", job.Events[0].ActorID)
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	id := api.create()

	rec := api.do(http.MethodPost, "/jobs/"+id+"/pause", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode[ErrorResponse](t, rec).Kind)

	rec = api.do(http.MethodPost, "/jobs/"+id+"/start", `{"technician_id":"tech1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(http.MethodPost, "/jobs/"+id+"/technicians", `{"technician_id":"tech1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decode[ErrorResponse](t, rec).Kind)

	rec = api.do(http.MethodDelete, "/jobs/"+id+"/technicians/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodPost, "/jobs/"+id+"/technicians", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "technician_id")

	rec = api.do(http.MethodGet, "/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, rec).Kind)

	rec = api.do(http.MethodPost, "/jobs/"+id+"/pause", `{"at":"2020-01-01T00:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "timestamps before the last event are rejected")
}

func TestRemoveTechnician(t *testing.T) {
	api := newTestAPI(t)
	id := api.create()
	api.do(http.MethodPost, "/jobs/"+id+"/start", `{"technician_id":"tech1"}`)
	api.do(http.MethodPost, "/jobs/"+id+"/technicians", `{"technician_id":"tech2"}`)

	api.now = t0.Add(30 * time.Minute)
	rec := api.do(http.MethodDelete, "/jobs/"+id+"/technicians/tech2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	job := decode[JobResponse](t, rec)
	assert.Equal(t, []string{"tech1"}, job.ActiveTechnicians)
	assert.Equal(t, core.StatusInProgress, job.Status)
}

func TestListJobs(t *testing.T) {
	api := newTestAPI(t)
	first := api.create()
	api.now = t0.Add(time.Minute)
	second := api.create()
	api.do(http.MethodPost, "/jobs/"+second+"/start", `{"technician_id":"tech1"}`)

	rec := api.do(http.MethodGet, "/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[ListJobsResponse](t, rec)
	require.Len(t, all.Jobs, 2)
	assert.Equal(t, second, all.Jobs[0].ID)

	rec = api.do(http.MethodGet, "/jobs?status=In%20Progress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	inProgress := decode[ListJobsResponse](t, rec)
	require.Len(t, inProgress.Jobs, 1)
	assert.Equal(t, second, inProgress.Jobs[0].ID)

	rec = api.do(http.MethodGet, "/jobs?status=pending&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[ListJobsResponse](t, rec)
	require.Len(t, pending.Jobs, 1)
	assert.Equal(t, first, pending.Jobs[0].ID)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/jobs?status=exploded", "").Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/jobs?limit=-3", "").Code)
}

func TestTimeline(t *testing.T) {
	api := newTestAPI(t)
	id := api.create()
	api.do(http.MethodPost, "/jobs/"+id+"/start", `{"technician_id":"tech1"}`)
	api.do(http.MethodPost, "/jobs/"+id+"/pause", "")
	api.do(http.MethodPost, "/jobs/"+id+"/resume", `{"technician_id":"tech1"}`)

	rec := api.do(http.MethodGet, "/jobs/"+id+"/timeline", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tl := decode[TimelineResponse](t, rec)
	require.Len(t, tl.Events, 3)
	assert.Equal(t, core.EventStarted, tl.Events[0].Type)
	assert.Equal(t, core.EventResumed, tl.Events[2].Type)

	rec = api.do(http.MethodGet, "/jobs/"+id+"/timeline?since=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[TimelineResponse](t, rec).Events, 1)
}

type failingService struct{}

func (failingService) CreateJob(context.Context, core.Metadata) (core.JobSnapshot, error) {
	return core.JobSnapshot{}, errors.New("database on fire")
}

func (failingService) GetSnapshot(context.Context, string) (core.JobSnapshot, error) {
	return core.JobSnapshot{}, errors.New("database on fire")
}

func (failingService) List(context.Context, core.Status, int) ([]core.JobSnapshot, error) {
	return nil, errors.New("database on fire")
}

func (failingService) Apply(context.Context, string, core.Action, string, time.Time, ...aggregate.Option) (core.JobSnapshot, error) {
	return core.JobSnapshot{}, errors.New("database on fire")
}

func TestInternalErrorsAreHidden(t *testing.T) {
	h := NewHandler(failingService{}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	req := httptest.NewRequest(http.MethodGet, "/jobs/j1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "internal error", body.Error)
	assert.Equal(t, "internal", body.Kind)
}

func TestServiceSatisfiesInterface(t *testing.T) {
	var _ Service = (*service.Service)(nil)
}

// Package httpapi exposes job operations over HTTP with JSON bodies.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jdziat/service-jobs/pkg/aggregate"
	"github.com/jdziat/service-jobs/pkg/core"
	"github.com/jdziat/service-jobs/pkg/metrics"
	"github.com/jdziat/service-jobs/pkg/security"
	"github.com/jdziat/service-jobs/pkg/service"
)

// ActorHeader carries the id of the person performing an operation.
const ActorHeader = "X-Actor-ID"

// maxRequestBodySize is the maximum allowed request body size (64KB).
const maxRequestBodySize = 64 << 10

// Service is the job service the handler drives.
type Service interface {
	CreateJob(ctx context.Context, metadata core.Metadata) (core.JobSnapshot, error)
	GetSnapshot(ctx context.Context, jobID string) (core.JobSnapshot, error)
	List(ctx context.Context, status core.Status, limit int) ([]core.JobSnapshot, error)
	Apply(ctx context.Context, jobID string, action core.Action, technicianID string, at time.Time, opts ...aggregate.Option) (core.JobSnapshot, error)
}

// Handler serves the job API.
type Handler struct {
	svc    Service
	logger *slog.Logger
	now    func() time.Time
	mux    *http.ServeMux
}

// Option configures a Handler.
type Option interface {
	apply(*Handler)
}

type optionFunc func(*Handler)

func (f optionFunc) apply(h *Handler) { f(h) }

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	})
}

// WithClock sets the clock used when a request omits "at".
func WithClock(now func() time.Time) Option {
	return optionFunc(func(h *Handler) {
		if now != nil {
			h.now = now
		}
	})
}

// NewHandler creates the API handler.
func NewHandler(svc Service, opts ...Option) *Handler {
	h := &Handler{
		svc:    svc,
		logger: slog.Default(),
		now:    time.Now,
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt.apply(h)
	}
	h.routes()
	return h
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /health", h.health)
	h.mux.HandleFunc("POST /jobs", h.createJob)
	h.mux.HandleFunc("GET /jobs", h.listJobs)
	h.mux.HandleFunc("GET /jobs/{id}", h.getJob)
	h.mux.HandleFunc("GET /jobs/{id}/timeline", h.timeline)

	h.mux.HandleFunc("POST /jobs/{id}/start", h.technicianAction(core.ActionStart))
	h.mux.HandleFunc("POST /jobs/{id}/technicians", h.technicianAction(core.ActionAddTechnician))
	h.mux.HandleFunc("DELETE /jobs/{id}/technicians/{technicianId}", h.removeTechnician)
	h.mux.HandleFunc("POST /jobs/{id}/resume", h.technicianAction(core.ActionResume))

	h.mux.HandleFunc("POST /jobs/{id}/pause", h.jobAction(core.ActionPause))
	h.mux.HandleFunc("POST /jobs/{id}/complete", h.jobAction(core.ActionComplete))
	h.mux.HandleFunc("POST /jobs/{id}/qc", h.jobAction(core.ActionSendToQC))
	h.mux.HandleFunc("POST /jobs/{id}/qc/approve", h.jobAction(core.ActionApproveQC))
	h.mux.HandleFunc("POST /jobs/{id}/qc/reject", h.jobAction(core.ActionRejectQC))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	snap, err := h.svc.CreateJob(r.Context(), req.Metadata)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newJobResponse(snap))
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	var status core.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := core.ParseStatus(raw)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		status = parsed
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeServiceError(w, r, &core.ValidationError{Field: "limit", Reason: "must be a non-negative integer"})
			return
		}
		limit = n
	}

	snaps, err := h.svc.List(r.Context(), status, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(snaps))}
	for _, s := range snaps {
		resp.Jobs = append(resp.Jobs, newJobResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.GetSnapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobResponse(snap))
}

// timeline returns the job's events in order. ?since=N returns only events
// with a sequence number above N.
func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	since := 0
	if raw := r.URL.Query().Get("since"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeServiceError(w, r, &core.ValidationError{Field: "since", Reason: "must be a non-negative integer"})
			return
		}
		since = n
	}
	snap, err := h.svc.GetSnapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	events := make([]core.Event, 0, len(snap.Events))
	for _, e := range snap.Events {
		if e.Seq > since {
			events = append(events, e)
		}
	}
	writeJSON(w, http.StatusOK, TimelineResponse{JobID: snap.ID, Events: events})
}

func (h *Handler) technicianAction(action core.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TechnicianRequest
		if !h.decode(w, r, &req, false) {
			return
		}
		h.apply(w, r, action, req.TechnicianID, req.At, req.Note)
	}
}

func (h *Handler) removeTechnician(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	h.apply(w, r, core.ActionRemoveTechnician, r.PathValue("technicianId"), req.At, req.Note)
}

func (h *Handler) jobAction(action core.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ActionRequest
		if !h.decode(w, r, &req, true) {
			return
		}
		h.apply(w, r, action, "", req.At, req.Note)
	}
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, action core.Action, technicianID string, at *time.Time, note string) {
	when := h.now()
	if at != nil {
		when = *at
	}
	opts := []aggregate.Option{aggregate.WithNote(note)}
	if actor := r.Header.Get(ActorHeader); actor != "" {
		opts = append(opts, aggregate.WithActor(actor))
	}

	snap, err := h.svc.Apply(r.Context(), r.PathValue("id"), action, technicianID, when, opts...)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobResponse(snap))
}

// decode reads a JSON body into v and validates it. When optional is set an
// empty body is accepted. It writes the error response itself and reports
// whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF) && optional:
			return true
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", metrics.KindValidation)
			return false
		default:
			writeError(w, http.StatusBadRequest, "invalid json: "+err.Error(), metrics.KindValidation)
			return false
		}
	}
	if err := security.ValidateStruct(v); err != nil {
		h.writeServiceError(w, r, err)
		return false
	}
	return true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	kind := service.KindOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("api request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeError(w, status, msg, kind)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidTransition), errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("api: json encode error", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Kind: kind})
}

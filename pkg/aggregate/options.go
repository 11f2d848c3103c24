package aggregate

import (
	"time"

	"github.com/jdziat/service-jobs/pkg/core"
	"github.com/jdziat/service-jobs/pkg/lifecycle"
)

// Option decorates an operation.
type Option interface {
	apply(*lifecycle.Request)
}

type optionFunc func(*lifecycle.Request)

func (f optionFunc) apply(r *lifecycle.Request) { f(r) }

// WithActor records who performed the operation. It defaults to the
// technician the operation names, if any.
func WithActor(actorID string) Option {
	return optionFunc(func(r *lifecycle.Request) {
		r.ActorID = actorID
	})
}

// WithNote attaches a free-text note to the recorded event.
func WithNote(note string) Option {
	return optionFunc(func(r *lifecycle.Request) {
		r.Note = note
	})
}

// Request builds the lifecycle request an operation with opts would run.
func Request(action core.Action, technicianID string, at time.Time, opts ...Option) lifecycle.Request {
	req := lifecycle.Request{Action: action, TechnicianID: technicianID, At: at}
	for _, opt := range opts {
		opt.apply(&req)
	}
	return req
}

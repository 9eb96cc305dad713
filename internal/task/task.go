package task

import (
	"context"

	"github.com/google/uuid"
)

// Job is a unit of background work.
// Version: 1.0
type Job interface {
	// ID uniquely identifies this execution.
	ID() uuid.UUID

	// Kind names the job type for logging, e.g. "start" or "resume".
	Kind() string

	// Subject is the identifier of the entity the job works on.
	Subject() string

	// Execute runs the job. ctx is cancelled on timeout or runner shutdown.
	Execute(ctx context.Context) error
}

// Func adapts a function into a Job.
type Func struct {
	id      uuid.UUID
	kind    string
	subject string
	fn      func(ctx context.Context) error
}

// NewFunc creates a Job that calls fn.
func NewFunc(kind, subject string, fn func(ctx context.Context) error) *Func {
	return &Func{id: uuid.New(), kind: kind, subject: subject, fn: fn}
}

// ID implements Job.
func (f *Func) ID() uuid.UUID { return f.id }

// Kind implements Job.
func (f *Func) Kind() string { return f.kind }

// Subject implements Job.
func (f *Func) Subject() string { return f.subject }

// Execute implements Job.
func (f *Func) Execute(ctx context.Context) error { return f.fn(ctx) }

// Package resource defines the boundary to the external document source.
// The orchestrator only sees these types; the concrete site scraper lives in
// internal/platform/patentsite.
package resource

import (
	"context"

	"github.com/phrazzld/patentgate/internal/domain"
)

// ArtifactRef locates a resolved document at the source.
type ArtifactRef struct {
	URL      string
	FileName string
	// Headers are sent with the download request (e.g. Referer).
	Headers map[string]string
}

// Challenge is a human verification step issued by the source.
type Challenge struct {
	Image     []byte
	ImageMIME string
	State     domain.SessionState
}

// InitiateOutcome is the result of starting an interaction.
// Exactly one of Direct or Challenge is set.
type InitiateOutcome struct {
	Direct    *ArtifactRef
	Challenge *Challenge
}

// ResumeKind enumerates the results of submitting an answer.
type ResumeKind int

const (
	// ResumeResolved means the answer was accepted and Artifact is set.
	ResumeResolved ResumeKind = iota + 1
	// ResumeWrongAnswer means the answer was rejected; State carries the
	// refreshed session to retry with.
	ResumeWrongAnswer
	// ResumeNotFound means the source does not know the resource key.
	ResumeNotFound
)

// String implements fmt.Stringer.
func (k ResumeKind) String() string {
	switch k {
	case ResumeResolved:
		return "resolved"
	case ResumeWrongAnswer:
		return "wrong_answer"
	case ResumeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// ResumeOutcome is the result of submitting an answer.
type ResumeOutcome struct {
	Kind     ResumeKind
	Artifact *ArtifactRef
	State    domain.SessionState
}

// Client talks to the external source. Implementations must be safe for
// concurrent use by independent tasks; all per-task state travels in
// SessionState. Errors are wrapped with domain.ErrTransientExternal.
type Client interface {
	// Initiate begins fetching resourceKey.
	Initiate(ctx context.Context, resourceKey string) (InitiateOutcome, error)

	// Resume submits answer for the challenge captured in state.
	Resume(ctx context.Context, state domain.SessionState, resourceKey, answer string) (ResumeOutcome, error)

	// RefreshChallenge fetches a new challenge image for an existing session.
	RefreshChallenge(ctx context.Context, state domain.SessionState) (Challenge, error)

	// Materialize downloads ref into local storage and returns the file path.
	Materialize(ctx context.Context, state domain.SessionState, ref ArtifactRef) (string, error)
}

// Solver proposes an answer for a challenge image. Suggestions are hints
// shown to the human; they are never submitted automatically.
type Solver interface {
	Suggest(ctx context.Context, image []byte, mimeType string) (string, error)
}

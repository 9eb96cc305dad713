package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/phrazzld/patentgate/internal/resource"
)

// ResumeCall records the arguments of one Resume call.
type ResumeCall struct {
	State       domain.SessionState
	ResourceKey string
	Answer      string
}

// MockResourceClient implements resource.Client for testing.
// Nil function fields fall back to harmless defaults: Initiate issues a
// challenge, Resume reports a wrong answer, RefreshChallenge returns a new
// image and Materialize returns a path under /tmp.
type MockResourceClient struct {
	InitiateFn         func(ctx context.Context, resourceKey string) (resource.InitiateOutcome, error)
	ResumeFn           func(ctx context.Context, state domain.SessionState, resourceKey, answer string) (resource.ResumeOutcome, error)
	RefreshChallengeFn func(ctx context.Context, state domain.SessionState) (resource.Challenge, error)
	MaterializeFn      func(ctx context.Context, state domain.SessionState, ref resource.ArtifactRef) (string, error)

	mu               sync.Mutex
	initiateCalls    []string
	resumeCalls      []ResumeCall
	refreshCalls     int
	materializeCalls []resource.ArtifactRef
}

var _ resource.Client = (*MockResourceClient)(nil)

// ChallengeOutcome builds an InitiateOutcome that asks for a challenge.
func ChallengeOutcome(image []byte) resource.InitiateOutcome {
	return resource.InitiateOutcome{Challenge: &resource.Challenge{
		Image:     image,
		ImageMIME: "image/png",
		State:     domain.SessionState{Cookies: []domain.Cookie{{Name: "JSESSIONID", Value: "initial"}}},
	}}
}

// ResolvedOutcome builds a ResumeOutcome that resolves to fileName.
func ResolvedOutcome(fileName string) resource.ResumeOutcome {
	return resource.ResumeOutcome{
		Kind:     resource.ResumeResolved,
		Artifact: &resource.ArtifactRef{URL: "https://example.test/" + fileName, FileName: fileName},
	}
}

// WrongAnswerOutcome builds a ResumeOutcome that rejects the answer and
// hands back a session carrying cookie value.
func WrongAnswerOutcome(value string) resource.ResumeOutcome {
	return resource.ResumeOutcome{
		Kind:  resource.ResumeWrongAnswer,
		State: domain.SessionState{Cookies: []domain.Cookie{{Name: "JSESSIONID", Value: value}}},
	}
}

// Initiate implements resource.Client.
func (m *MockResourceClient) Initiate(ctx context.Context, resourceKey string) (resource.InitiateOutcome, error) {
	m.mu.Lock()
	m.initiateCalls = append(m.initiateCalls, resourceKey)
	m.mu.Unlock()

	if m.InitiateFn != nil {
		return m.InitiateFn(ctx, resourceKey)
	}
	return ChallengeOutcome([]byte("challenge-image")), nil
}

// Resume implements resource.Client.
func (m *MockResourceClient) Resume(
	ctx context.Context,
	state domain.SessionState,
	resourceKey, answer string,
) (resource.ResumeOutcome, error) {
	m.mu.Lock()
	m.resumeCalls = append(m.resumeCalls, ResumeCall{State: state.Clone(), ResourceKey: resourceKey, Answer: answer})
	m.mu.Unlock()

	if m.ResumeFn != nil {
		return m.ResumeFn(ctx, state, resourceKey, answer)
	}
	return WrongAnswerOutcome("retry"), nil
}

// RefreshChallenge implements resource.Client.
func (m *MockResourceClient) RefreshChallenge(ctx context.Context, state domain.SessionState) (resource.Challenge, error) {
	m.mu.Lock()
	m.refreshCalls++
	m.mu.Unlock()

	if m.RefreshChallengeFn != nil {
		return m.RefreshChallengeFn(ctx, state)
	}
	return resource.Challenge{Image: []byte("fresh-image"), ImageMIME: "image/png", State: state.Clone()}, nil
}

// Materialize implements resource.Client.
func (m *MockResourceClient) Materialize(
	ctx context.Context,
	state domain.SessionState,
	ref resource.ArtifactRef,
) (string, error) {
	m.mu.Lock()
	m.materializeCalls = append(m.materializeCalls, ref)
	m.mu.Unlock()

	if m.MaterializeFn != nil {
		return m.MaterializeFn(ctx, state, ref)
	}
	return "/tmp/" + ref.FileName, nil
}

// InitiateCalls returns the resource keys passed to Initiate.
func (m *MockResourceClient) InitiateCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.initiateCalls...)
}

// ResumeCalls returns the arguments of every Resume call.
func (m *MockResourceClient) ResumeCalls() []ResumeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ResumeCall(nil), m.resumeCalls...)
}

// RefreshCalls returns how often RefreshChallenge was called.
func (m *MockResourceClient) RefreshCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshCalls
}

// MaterializeCalls returns the refs passed to Materialize.
func (m *MockResourceClient) MaterializeCalls() []resource.ArtifactRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]resource.ArtifactRef(nil), m.materializeCalls...)
}

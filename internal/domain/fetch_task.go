package domain

import (
	"bytes"
	"fmt"
	"time"
)

// FetchStatus represents the lifecycle state of a fetch task
type FetchStatus string

// Possible fetch status values
const (
	FetchStatusPending        FetchStatus = "pending"
	FetchStatusDownloading    FetchStatus = "downloading"
	FetchStatusNeedsChallenge FetchStatus = "needs_challenge"
	FetchStatusCompleted      FetchStatus = "completed"
	FetchStatusFailed         FetchStatus = "failed"
)

// allowedTransitions is the status graph. Terminal states have no entry.
var allowedTransitions = map[FetchStatus][]FetchStatus{
	FetchStatusPending:        {FetchStatusDownloading, FetchStatusCompleted, FetchStatusFailed},
	FetchStatusDownloading:    {FetchStatusNeedsChallenge, FetchStatusCompleted, FetchStatusFailed},
	FetchStatusNeedsChallenge: {FetchStatusDownloading, FetchStatusFailed},
}

// IsTerminal reports whether no further transitions are accepted.
func (s FetchStatus) IsTerminal() bool {
	return s == FetchStatusCompleted || s == FetchStatusFailed
}

// IsValid reports whether s is one of the known statuses.
func (s FetchStatus) IsValid() bool {
	switch s {
	case FetchStatusPending, FetchStatusDownloading, FetchStatusNeedsChallenge,
		FetchStatusCompleted, FetchStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s FetchStatus) CanTransitionTo(next FetchStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// FetchTask is one tracked, asynchronous attempt to fetch a document.
//
// Invariants:
//   - ChallengeImage is non-empty if and only if Status is FetchStatusNeedsChallenge.
//   - ArtifactPath is set only when Status is FetchStatusCompleted.
type FetchTask struct {
	ID              string      `json:"id"`
	ResourceKey     string      `json:"resource_key"`
	Status          FetchStatus `json:"status"`
	Message         string      `json:"message"`
	ChallengeImage  []byte      `json:"challenge_image,omitempty"`
	ChallengeMIME   string      `json:"challenge_mime,omitempty"`
	SuggestedAnswer string      `json:"suggested_answer,omitempty"`
	ArtifactPath    string      `json:"artifact_path,omitempty"`
	ArtifactName    string      `json:"artifact_name,omitempty"`
	Attempts        int         `json:"attempts"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// NewTaskID derives a task id from the resource key and a high resolution
// timestamp so repeated requests for the same key get distinct ids.
// This is best effort; stores reject the rare collision and callers retry.
func NewTaskID(resourceKey string, at time.Time) string {
	return fmt.Sprintf("download_%s_%d", resourceKey, at.UnixNano())
}

// NewFetchTask creates a pending task for the given resource key.
func NewFetchTask(resourceKey string, now time.Time) (*FetchTask, error) {
	if resourceKey == "" {
		return nil, ErrEmptyResourceKey
	}
	now = now.UTC()
	return &FetchTask{
		ID:          NewTaskID(resourceKey, now),
		ResourceKey: resourceKey,
		Status:      FetchStatusPending,
		Message:     "queued",
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Start moves a pending task into downloading.
func (t *FetchTask) Start(message string) error {
	return t.transition(FetchStatusDownloading, message)
}

// AwaitChallenge parks the task until a challenge answer arrives.
func (t *FetchTask) AwaitChallenge(image []byte, mimeType, message string) error {
	if len(image) == 0 {
		return fmt.Errorf("%w: challenge image cannot be empty", ErrValidation)
	}
	if err := t.transition(FetchStatusNeedsChallenge, message); err != nil {
		return err
	}
	t.ChallengeImage = append([]byte(nil), image...)
	t.ChallengeMIME = mimeType
	return nil
}

// BeginResume claims a waiting task for the worker that will verify an answer.
// The challenge leaves the task; the registry copy is authoritative from here.
func (t *FetchTask) BeginResume(message string) error {
	if t.Status != FetchStatusNeedsChallenge {
		if t.Status == FetchStatusDownloading && t.Attempts > 0 {
			return ErrAlreadyProcessing
		}
		return ErrNotAwaitingChallenge
	}
	if err := t.transition(FetchStatusDownloading, message); err != nil {
		return err
	}
	t.Attempts++
	return nil
}

// Complete records the fetched artifact and finishes the task.
func (t *FetchTask) Complete(path, name, message string) error {
	if path == "" || name == "" {
		return fmt.Errorf("%w: artifact path and name are required", ErrValidation)
	}
	if err := t.transition(FetchStatusCompleted, message); err != nil {
		return err
	}
	t.ArtifactPath = path
	t.ArtifactName = name
	return nil
}

// Fail finishes the task with a failure description.
func (t *FetchTask) Fail(message string) error {
	return t.transition(FetchStatusFailed, message)
}

// SetSuggestion stores a solver hint while the task waits for an answer.
// image is the challenge the hint was computed for; a hint for any other
// image returns ErrStaleChallenge.
func (t *FetchTask) SetSuggestion(image []byte, answer string) error {
	if t.Status != FetchStatusNeedsChallenge {
		return ErrNotAwaitingChallenge
	}
	if !bytes.Equal(t.ChallengeImage, image) {
		return ErrStaleChallenge
	}
	t.SuggestedAnswer = answer
	return nil
}

// IsTerminal reports whether the task has finished.
func (t *FetchTask) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// Clone returns a deep copy so store readers never share mutable state.
func (t *FetchTask) Clone() *FetchTask {
	if t == nil {
		return nil
	}
	c := *t
	if t.ChallengeImage != nil {
		c.ChallengeImage = append([]byte(nil), t.ChallengeImage...)
	}
	return &c
}

// Validate checks the task's structural invariants.
func (t *FetchTask) Validate() error {
	if t.ID == "" {
		return ErrEmptyTaskID
	}
	if t.ResourceKey == "" {
		return ErrEmptyResourceKey
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, t.Status)
	}
	hasImage := len(t.ChallengeImage) > 0
	if hasImage != (t.Status == FetchStatusNeedsChallenge) {
		return fmt.Errorf("%w: challenge image present=%t with status %s",
			ErrStateCorruption, hasImage, t.Status)
	}
	if t.ArtifactPath != "" && t.Status != FetchStatusCompleted {
		return fmt.Errorf("%w: artifact set with status %s", ErrStateCorruption, t.Status)
	}
	return nil
}

func (t *FetchTask) transition(next FetchStatus, message string) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	t.Status = next
	t.Message = message
	t.UpdatedAt = time.Now().UTC()
	if next != FetchStatusNeedsChallenge {
		t.ChallengeImage = nil
		t.ChallengeMIME = ""
		t.SuggestedAnswer = ""
	}
	return nil
}

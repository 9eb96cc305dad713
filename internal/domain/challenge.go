package domain

import (
	"errors"
	"log/slog"
	"time"
)

// Cookie is one cookie captured from an external session.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// SessionState is opaque continuation data for an external site interaction.
// Each task owns its own value; it is never shared between tasks.
type SessionState struct {
	Cookies []Cookie `json:"cookies"`
}

// Clone returns a deep copy of the state.
func (s SessionState) Clone() SessionState {
	if s.Cookies == nil {
		return SessionState{}
	}
	return SessionState{Cookies: append([]Cookie(nil), s.Cookies...)}
}

// LogValue implements slog.LogValuer. Cookie values never reach the logs.
func (s SessionState) LogValue() slog.Value {
	names := make([]string, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		names = append(names, c.Name)
	}
	return slog.GroupValue(
		slog.Int("cookie_count", len(s.Cookies)),
		slog.Any("cookie_names", names),
	)
}

// ChallengeSession is the paused state of a task awaiting a challenge answer.
type ChallengeSession struct {
	TaskID      string       `json:"task_id"`
	ResourceKey string       `json:"resource_key"`
	Image       []byte       `json:"image"`
	ImageMIME   string       `json:"image_mime"`
	State       SessionState `json:"state"`
	IssuedAt    time.Time    `json:"issued_at"`
}

// Validation errors for ChallengeSession
var (
	ErrEmptyChallengeImage = errors.New("challenge image cannot be empty")
	ErrEmptySessionTaskID  = errors.New("challenge session task id cannot be empty")
)

// Validate checks that the session can be resumed.
func (c *ChallengeSession) Validate() error {
	if c.TaskID == "" {
		return ErrEmptySessionTaskID
	}
	if c.ResourceKey == "" {
		return ErrEmptyResourceKey
	}
	if len(c.Image) == 0 {
		return ErrEmptyChallengeImage
	}
	return nil
}

// BelongsTo reports whether the session was issued for the given task.
func (c *ChallengeSession) BelongsTo(task *FetchTask) bool {
	return task != nil && c.TaskID == task.ID && c.ResourceKey == task.ResourceKey
}

// Clone returns a deep copy of the session.
func (c *ChallengeSession) Clone() *ChallengeSession {
	if c == nil {
		return nil
	}
	out := *c
	out.Image = append([]byte(nil), c.Image...)
	out.State = c.State.Clone()
	return &out
}

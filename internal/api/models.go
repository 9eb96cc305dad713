package api

import (
	"encoding/base64"
	"time"

	"github.com/phrazzld/patentgate/internal/domain"
)

// CreateTaskRequest starts a fetch.
type CreateTaskRequest struct {
	ResourceKey string `json:"resource_key" validate:"required,max=32"`
}

// SubmitAnswerRequest carries a challenge answer.
type SubmitAnswerRequest struct {
	Code string `json:"code" validate:"required,max=16"`
}

// ValidateKeyRequest asks whether a resource key is well formed.
type ValidateKeyRequest struct {
	ResourceKey string `json:"resource_key" validate:"required,max=32"`
}

// TaskResponse is the polled view of a task. ChallengeImage is a data URL and
// is present only while the task needs a challenge answer.
type TaskResponse struct {
	ID              string    `json:"task_id"`
	ResourceKey     string    `json:"resource_key"`
	Status          string    `json:"status"`
	Message         string    `json:"message"`
	Filename        string    `json:"filename,omitempty"`
	ChallengeImage  string    `json:"challenge_image,omitempty"`
	SuggestedAnswer string    `json:"suggested_answer,omitempty"`
	Attempts        int       `json:"attempts"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TaskSummary is a task in a listing; it never carries the image.
type TaskSummary struct {
	ID          string    `json:"task_id"`
	ResourceKey string    `json:"resource_key"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Filename    string    `json:"filename,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SubmitAnswerResponse acknowledges an answer. The outcome is observed by polling.
// A refused answer carries Accepted false and the reason in Message, with the
// matching 4xx/5xx status.
type SubmitAnswerResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// ValidateKeyResponse reports the result of a format check.
type ValidateKeyResponse struct {
	Valid       bool   `json:"valid"`
	ResourceKey string `json:"resource_key"`
	Message     string `json:"message"`
}

// LocalStatusResponse reports whether a document is already stored.
type LocalStatusResponse struct {
	ResourceKey string `json:"resource_key"`
	Exists      bool   `json:"exists"`
	Filename    string `json:"filename,omitempty"`
}

// FileResponse describes one stored document.
type FileResponse struct {
	Name        string    `json:"name"`
	ResourceKey string    `json:"resource_key,omitempty"`
	Size        int64     `json:"size"`
	Digest      string    `json:"digest,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
	FetchCount  int       `json:"fetch_count,omitempty"`
}

// ShareResponse is a signed download link with its QR code as a data URL.
type ShareResponse struct {
	DownloadURL string    `json:"download_url"`
	QRCode      string    `json:"qr_code"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func taskToResponse(t *domain.FetchTask) TaskResponse {
	resp := TaskResponse{
		ID:          t.ID,
		ResourceKey: t.ResourceKey,
		Status:      string(t.Status),
		Message:     t.Message,
		Filename:    t.ArtifactName,
		Attempts:    t.Attempts,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Status == domain.FetchStatusNeedsChallenge && len(t.ChallengeImage) > 0 {
		resp.ChallengeImage = dataURL(t.ChallengeMIME, t.ChallengeImage)
		resp.SuggestedAnswer = t.SuggestedAnswer
	}
	return resp
}

func taskToSummary(t *domain.FetchTask) TaskSummary {
	return TaskSummary{
		ID:          t.ID,
		ResourceKey: t.ResourceKey,
		Status:      string(t.Status),
		Message:     t.Message,
		Filename:    t.ArtifactName,
		UpdatedAt:   t.UpdatedAt,
	}
}

func artifactToResponse(a domain.Artifact) FileResponse {
	return FileResponse{
		Name:        a.Name,
		ResourceKey: a.ResourceKey,
		Size:        a.Size,
		Digest:      a.Digest,
		FetchedAt:   a.FetchedAt,
		FetchCount:  a.FetchCount,
	}
}

func dataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

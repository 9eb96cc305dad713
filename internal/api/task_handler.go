package api

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/phrazzld/patentgate/internal/api/shared"
	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/phrazzld/patentgate/internal/platform/logger"
)

// FetchService is the orchestrator as seen by the HTTP layer.
type FetchService interface {
	StartFetch(ctx context.Context, rawKey string) (*domain.FetchTask, error)
	SubmitAnswer(ctx context.Context, taskID, answer string) error
	GetTask(ctx context.Context, taskID string) (*domain.FetchTask, error)
	ListTasks(ctx context.Context) ([]*domain.FetchTask, error)
	Artifact(ctx context.Context, taskID string) (*domain.FetchTask, error)
	ValidateKey(raw string) (string, error)
	LocalStatus(rawKey string) (key, name string, exists bool, err error)
	ListFiles(ctx context.Context) ([]domain.Artifact, error)
}

// ArtifactFiles opens stored documents.
type ArtifactFiles interface {
	Open(name string) (*os.File, fs.FileInfo, error)
}

// TaskHandler handles fetch task requests.
type TaskHandler struct {
	service FetchService
	files   ArtifactFiles
	logger  *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(service FetchService, files ArtifactFiles, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		service: service,
		files:   files,
		logger:  logger.With(slog.String("component", "task_handler")),
	}
}

// CreateTask handles POST /api/tasks. It answers 202 for a queued fetch and
// 200 when the document was already stored.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	t, err := h.service.StartFetch(r.Context(), req.ResourceKey)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	status := http.StatusAccepted
	if t.Status == domain.FetchStatusCompleted {
		status = http.StatusOK
	}
	shared.RespondWithJSON(w, r, status, taskToResponse(t))
}

// ListTasks handles GET /api/tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.ListTasks(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}

	summaries := make([]TaskSummary, 0, len(tasks))
	for _, t := range tasks {
		summaries = append(summaries, taskToSummary(t))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, summaries)
}

// GetTask handles GET /api/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := getPathParam(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	t, err := h.service.GetTask(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(t))
}

// SubmitAnswer handles POST /api/tasks/{id}/answer.
func (h *TaskHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	taskID, err := getPathParam(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req SubmitAnswerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.SubmitAnswer(r.Context(), taskID, req.Code); err != nil {
		status := MapErrorToStatusCode(err)
		message := GetSafeErrorMessage(err)
		shared.LogErrorResponse(r, status, message, err)
		shared.RespondWithJSON(w, r, status, SubmitAnswerResponse{
			Accepted: false,
			Message:  message,
		})
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitAnswerResponse{
		Accepted: true,
		Message:  "answer accepted for processing",
	})
}

// DownloadArtifact handles GET /api/tasks/{id}/artifact.
func (h *TaskHandler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	taskID, err := getPathParam(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	t, err := h.service.Artifact(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	serveArtifact(w, r, h.files, t.ArtifactName)
}

// serveArtifact streams a stored PDF as an attachment.
func serveArtifact(w http.ResponseWriter, r *http.Request, files ArtifactFiles, name string) {
	f, info, err := files.Open(name)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logger.FromContextOrDefault(r.Context(), slog.Default()).
				Warn("failed to close artifact", "artifact", name, "error", cerr)
		}
	}()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

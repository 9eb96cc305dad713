package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/phrazzld/patentgate/internal/api/shared"
	"github.com/phrazzld/patentgate/internal/platform/logger"
	"github.com/phrazzld/patentgate/internal/sharelink"
)

// LinkSigner issues and verifies share links.
type LinkSigner interface {
	Issue(ctx context.Context, name string) (sharelink.Link, error)
	Verify(ctx context.Context, token string) (string, error)
}

// FileHandler lists stored documents and serves them by signed link.
type FileHandler struct {
	service FetchService
	files   ArtifactFiles
	links   LinkSigner
}

// NewFileHandler creates a FileHandler.
func NewFileHandler(service FetchService, files ArtifactFiles, links LinkSigner) *FileHandler {
	return &FileHandler{service: service, files: files, links: links}
}

// ListFiles handles GET /api/files.
func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	artifacts, err := h.service.ListFiles(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list files")
		return
	}

	resp := make([]FileResponse, 0, len(artifacts))
	for _, a := range artifacts {
		resp = append(resp, artifactToResponse(a))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// ShareFile handles GET /api/files/{name}/share.
func (h *FileHandler) ShareFile(w http.ResponseWriter, r *http.Request) {
	name, err := getPathParam(r, "name")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	f, _, err := h.files.Open(name)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	_ = f.Close()

	link, err := h.links.Issue(r.Context(), name)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create download link")
		return
	}

	png, err := sharelink.QRCode(link.URL)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create download link")
		return
	}

	logger.FromContextOrDefault(r.Context(), slog.Default()).Info("download link issued",
		slog.String("artifact", name),
		slog.Time("expires_at", link.ExpiresAt))

	shared.RespondWithJSON(w, r, http.StatusOK, ShareResponse{
		DownloadURL: link.URL,
		QRCode:      "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		ExpiresAt:   link.ExpiresAt,
	})
}

// Download handles GET /download/{token}.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	token, err := getPathParam(r, "token")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	name, err := h.links.Verify(r.Context(), token)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	serveArtifact(w, r, h.files, name)
}

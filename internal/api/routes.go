package api

import (
	"github.com/go-chi/chi/v5"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes.
type Handlers struct {
	Tasks     *TaskHandler
	Resources *ResourceHandler
	Files     *FileHandler
}

// RegisterRoutes mounts the JSON API under /api and the public download
// route at /download/{token}.
func RegisterRoutes(r chi.Router, h Handlers) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/tasks", h.Tasks.CreateTask)
		r.Get("/tasks", h.Tasks.ListTasks)
		r.Get("/tasks/{id}", h.Tasks.GetTask)
		r.Post("/tasks/{id}/answer", h.Tasks.SubmitAnswer)
		r.Get("/tasks/{id}/artifact", h.Tasks.DownloadArtifact)

		r.Post("/resources/validate", h.Resources.ValidateKey)
		r.Get("/resources/{key}/local", h.Resources.LocalStatus)

		r.Get("/files", h.Files.ListFiles)
		r.Get("/files/{name}/share", h.Files.ShareFile)
	})

	r.Get("/download/{token}", h.Files.Download)
}

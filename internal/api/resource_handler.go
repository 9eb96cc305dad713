package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/patentgate/internal/api/shared"
	"github.com/phrazzld/patentgate/internal/domain"
)

// ResourceHandler answers questions about resource keys.
type ResourceHandler struct {
	service FetchService
}

// NewResourceHandler creates a ResourceHandler.
func NewResourceHandler(service FetchService) *ResourceHandler {
	return &ResourceHandler{service: service}
}

// ValidateKey handles POST /api/resources/validate. A malformed key is a
// successful check with valid=false, not a 400.
func (h *ResourceHandler) ValidateKey(w http.ResponseWriter, r *http.Request) {
	var req ValidateKeyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	key, err := h.service.ValidateKey(req.ResourceKey)
	switch {
	case err == nil:
		shared.RespondWithJSON(w, r, http.StatusOK, ValidateKeyResponse{
			Valid:       true,
			ResourceKey: key,
			Message:     "resource key is valid",
		})
	case errors.Is(err, domain.ErrValidation):
		shared.RespondWithJSON(w, r, http.StatusOK, ValidateKeyResponse{
			Valid:       false,
			ResourceKey: key,
			Message:     GetSafeErrorMessage(err),
		})
	default:
		HandleAPIError(w, r, err, "")
	}
}

// LocalStatus handles GET /api/resources/{key}/local.
func (h *ResourceHandler) LocalStatus(w http.ResponseWriter, r *http.Request) {
	raw, err := getPathParam(r, "key")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	key, name, exists, err := h.service.LocalStatus(raw)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	resp := LocalStatusResponse{ResourceKey: key, Exists: exists}
	if exists {
		resp.Filename = name
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

package notify

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-interio/internal/common"
	"github.com/noah-isme/backend-interio/internal/events"
)

// AdminHandler manages webhook endpoint registrations.
type AdminHandler struct {
	Registry *Registry
	Validate *validator.Validate
}

type endpointPayload struct {
	URL    string   `json:"url" validate:"required,url"`
	Secret string   `json:"secret" validate:"required,min=8"`
	Topics []string `json:"topics"`
	Active *bool    `json:"active"`
}

// List handles GET /api/v1/admin/webhooks.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Registry.List()})
}

// Create handles POST /api/v1/admin/webhooks.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload endpointPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
			return
		}
	}
	if err := validateURL(payload.URL); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	for _, topic := range payload.Topics {
		if !knownTopic(topic) {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown topic: "+topic, nil)
			return
		}
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	ep := h.Registry.Add(Endpoint{
		URL:    payload.URL,
		Secret: payload.Secret,
		Topics: payload.Topics,
		Active: active,
	})
	common.JSON(w, http.StatusCreated, map[string]any{"data": ep})
}

// Delete handles DELETE /api/v1/admin/webhooks/{endpointID}.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "endpointID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid endpoint id", nil)
		return
	}
	if !h.Registry.Remove(id) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "endpoint not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Topics handles GET /api/v1/admin/webhooks/topics.
func (h *AdminHandler) Topics(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": events.DefaultTopics()})
}

func knownTopic(topic string) bool {
	for _, t := range events.DefaultTopics() {
		if t == topic {
			return true
		}
	}
	return false
}

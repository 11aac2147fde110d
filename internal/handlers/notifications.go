package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicwatch/hazard-server/internal/middleware"
	"github.com/civicwatch/hazard-server/internal/services"
)

// NotificationHandler exposes the notification inbox: listing, read,
// delete, and compliments.
type NotificationHandler struct {
	notif  *services.NotificationService
	logger *zap.SugaredLogger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(notif *services.NotificationService, logger *zap.SugaredLogger) *NotificationHandler {
	return &NotificationHandler{notif: notif, logger: logger}
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	views, err := h.notif.VisibleTo(claims.IdentityID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

// MarkRead handles POST /api/v1/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	id, err := uuid.Parse(pathParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid notification id")
		return
	}

	if err := h.notif.MarkRead(claims.IdentityID, id); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// Delete handles DELETE /api/v1/notifications/{id}
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	id, err := uuid.Parse(pathParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid notification id")
		return
	}

	if err := h.notif.Delete(claims.IdentityID, id); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Compliment handles POST /api/v1/notifications/{id}/compliment
func (h *NotificationHandler) Compliment(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	id, err := uuid.Parse(pathParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid notification id")
		return
	}

	if err := h.notif.SendCompliment(id, claims.IdentityID); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "complimented"})
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicwatch/hazard-server/internal/geocode"
	"github.com/civicwatch/hazard-server/internal/middleware"
	"github.com/civicwatch/hazard-server/internal/models"
	"github.com/civicwatch/hazard-server/internal/services"
)

// ReportHandler handles report submission, listing, lifecycle actions,
// voting, and deletion.
type ReportHandler struct {
	reports  *services.ReportService
	votes    *services.VoteService
	geocoder geocode.Reverser
	logger   *zap.SugaredLogger
}

// NewReportHandler creates a new report handler. geocoder may be nil.
func NewReportHandler(reports *services.ReportService, votes *services.VoteService, geocoder geocode.Reverser, logger *zap.SugaredLogger) *ReportHandler {
	return &ReportHandler{reports: reports, votes: votes, geocoder: geocoder, logger: logger}
}

// Submit handles POST /api/v1/reports
func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	var sub models.ReportSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if sub.Severity == "" && sub.Detection == nil {
		respondError(w, http.StatusBadRequest, "Either severity or a detection payload is required")
		return
	}

	// Address enrichment is best-effort and never blocks submission.
	if sub.Address == "" {
		sub.Address = geocode.Enrich(r.Context(), h.geocoder, sub.Latitude, sub.Longitude, h.logger)
	}

	report, err := h.reports.Create(claims.IdentityID, sub)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, report)
}

// List handles GET /api/v1/reports
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ReportFilter{
		Severity:          models.Severity(q.Get("severity")),
		VerificationState: models.VerificationState(q.Get("verification")),
		FixingState:       models.FixingState(q.Get("fixing")),
	}
	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.Since = &t
		}
	}
	if v := q.Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.Until = &t
		}
	}
	if v := q.Get("radius_km"); v != "" {
		radius, err := strconv.ParseFloat(v, 64)
		lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
		lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
		if err != nil || latErr != nil || lngErr != nil {
			respondError(w, http.StatusBadRequest, "Geofence filter requires radius_km, lat, and lng")
			return
		}
		filter.RadiusKm = radius
		filter.CenterLat = lat
		filter.CenterLng = lng
	}

	respondJSON(w, http.StatusOK, h.reports.List(filter))
}

// Get handles GET /api/v1/reports/{id}
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(pathParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid report id")
		return
	}

	report, err := h.reports.Get(id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Action handles POST /api/v1/reports/{id}/action, the authority
// intake for verification outcomes and fixing transitions.
func (h *ReportHandler) Action(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	id, err := uuid.Parse(pathParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid report id")
		return
	}

	var action models.AuthorityAction
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch {
	case action.VerificationOutcome != "":
		err = h.reports.SetVerification(claims.IdentityID, id, action.VerificationOutcome, action.FixingTransition)
	case action.FixingTransition != "":
		err = h.reports.SetFixingState(claims.IdentityID, id, action.FixingTransition)
	default:
		respondError(w, http.StatusBadRequest, "Either verification_outcome or fixing_transition is required")
		return
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}

	report, err := h.reports.Get(id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Vote handles POST /api/v1/reports/{id}/vote
func (h *ReportHandler) Vote(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	id, err := uuid.Parse(pathParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid report id")
		return
	}

	var req models.VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Direction != models.VoteUp && req.Direction != models.VoteDown {
		respondError(w, http.StatusBadRequest, "Direction must be up or down")
		return
	}

	report, err := h.votes.Vote(claims.IdentityID, id, req.Direction)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Delete handles DELETE /api/v1/reports/{id}
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	id, err := uuid.Parse(pathParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid report id")
		return
	}

	if err := h.reports.Delete(claims.IdentityID, id); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// pathParam reads a chi URL parameter.
func pathParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicwatch/hazard-server/internal/middleware"
	"github.com/civicwatch/hazard-server/internal/models"
	"github.com/civicwatch/hazard-server/internal/services"
	"github.com/civicwatch/hazard-server/internal/session"
)

// AuthHandler handles registration, login, and session lifecycle.
type AuthHandler struct {
	dir      *services.DirectoryService
	ledger   *services.LedgerService
	sessions *session.Manager
	logger   *zap.SugaredLogger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(dir *services.DirectoryService, ledger *services.LedgerService, sessions *session.Manager, logger *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{dir: dir, ledger: ledger, sessions: sessions, logger: logger}
}

type registerRequest struct {
	Role     models.Role      `json:"role"`
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Password string           `json:"password"`
	Office   *models.Location `json:"office_location,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Missing required fields: name, email, password")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleCitizen
	}
	if req.Role != models.RoleCitizen && req.Role != models.RoleAuthority {
		respondError(w, http.StatusBadRequest, "Role must be citizen or authority")
		return
	}
	if req.Role == models.RoleAuthority && req.Office == nil {
		respondError(w, http.StatusBadRequest, "Authority accounts require office_location")
		return
	}

	identity, err := h.dir.Register(r.Context(), req.Role, req.Name, req.Email, req.Password, req.Office)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, identity)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	identity, err := h.dir.Authenticate(req.Email, req.Password)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	sess, err := h.sessions.Issue(r.Context(), identity.ID, string(identity.Role))
	if err != nil {
		h.logger.Errorw("Failed to issue session", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"identity": identity,
		"session":  sess,
	})
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "refresh_token required")
		return
	}

	sess, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "refresh_token required")
		return
	}
	if err := h.sessions.Revoke(r.Context(), req.RefreshToken); err != nil {
		h.logger.Errorw("Failed to revoke session", "error", err)
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me handles GET /api/v1/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}
	identity, err := h.dir.Get(claims.IdentityID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, identity)
}

// Balance handles GET /api/v1/citizens/{id}/balance
func (h *AuthHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(pathParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid identity id")
		return
	}

	balance, err := h.ledger.BalanceFor(id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, balance)
}

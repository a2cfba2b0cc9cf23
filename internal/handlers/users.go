package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AnshRaj112/tandem-backend/internal/middleware"
	"github.com/AnshRaj112/tandem-backend/internal/models"
	"github.com/AnshRaj112/tandem-backend/internal/pairing"
	"github.com/AnshRaj112/tandem-backend/pkg/utils"
	"github.com/google/uuid"
)

// ProfileRequest is the body of POST /api/users.
type ProfileRequest struct {
	DisplayName string `json:"display_name"`
	Language    string `json:"language"`
	Gender      string `json:"gender"`
	Country     string `json:"country"`
	Age         int    `json:"age"`
}

// ProfileResponse is returned after a profile is saved.
type ProfileResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Token   string      `json:"token,omitempty"`
	User    models.User `json:"user"`
}

func (req ProfileRequest) validate() error {
	if err := utils.ValidateDisplayName(req.DisplayName); err != nil {
		return err
	}
	if err := utils.ValidateAge(req.Age); err != nil {
		return err
	}
	for field, v := range map[string]string{"language": req.Language, "gender": req.Gender, "country": req.Country} {
		if err := utils.ValidateProfileField(field, v); err != nil {
			return err
		}
	}
	return nil
}

// UpsertProfile creates a profile, or updates the caller's own one when a valid
// session token is presented, and returns a fresh gateway token.
func (h *Handler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := ""
	if token := middleware.BearerToken(r); token != "" {
		id, ok, err := h.sessions.Validate(r.Context(), token)
		if err != nil {
			h.log.Error().Err(err).Msg("session lookup failed")
			writeError(w, http.StatusServiceUnavailable, "Session store unavailable")
			return
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid session token")
			return
		}
		userID = id
	}
	created := userID == ""
	if created {
		userID = uuid.NewString()
	}

	user, err := h.profiles.UpsertProfile(r.Context(), models.User{
		ID:          userID,
		DisplayName: req.DisplayName,
		Language:    utils.NormalizeProfileValue(req.Language),
		Gender:      utils.NormalizeProfileValue(req.Gender),
		Country:     utils.NormalizeProfileValue(req.Country),
		Age:         req.Age,
	})
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("profile upsert failed")
		writeError(w, http.StatusInternalServerError, "Failed to save profile")
		return
	}

	token, err := h.sessions.Create(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("session create failed")
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	user.Status = h.coordinator.State(userID).State
	status, msg := http.StatusOK, "Profile updated"
	if created {
		status, msg = http.StatusCreated, "Profile created"
	}
	writeJSON(w, status, ProfileResponse{Success: true, Message: msg, Token: token, User: user})
}

// Me returns the caller's profile with its live pairing state.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	user, err := h.profiles.GetUser(r.Context(), userID)
	if errors.Is(err, pairing.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("profile lookup failed")
		writeError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	state := h.coordinator.State(userID)
	user.Status = state.State
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
		"session": state,
	})
}

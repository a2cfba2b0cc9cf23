package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AnshRaj112/tandem-backend/internal/models"
	"github.com/AnshRaj112/tandem-backend/internal/pairing"
	"github.com/AnshRaj112/tandem-backend/internal/services"
	"github.com/go-chi/chi/v5"
)

// parsePage reads ?before=<RFC3339>&limit=<n>.
func parsePage(r *http.Request) (*time.Time, int64, error) {
	q := r.URL.Query()
	var before *time.Time
	if raw := strings.TrimSpace(q.Get("before")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, 0, errors.New("before must be an RFC3339 timestamp")
		}
		before = &t
	}
	var limit int64
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			return nil, 0, errors.New("limit must be a positive integer")
		}
		limit = n
	}
	return before, limit, nil
}

// ListConnections returns logged pairings, newest first.
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	if h.oversight == nil {
		writeError(w, http.StatusServiceUnavailable, "Oversight log not configured")
		return
	}
	before, limit, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, hasMore, err := h.oversight.ListConnections(r.Context(), before, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("list connections failed")
		writeError(w, http.StatusInternalServerError, "Failed to fetch connections")
		return
	}
	if recs == nil {
		recs = []models.ConnectionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"connections": recs,
		"count":       len(recs),
		"has_more":    hasMore,
	})
}

// ListTranscripts returns finished transcripts. Filters: user_id, flagged=true.
func (h *Handler) ListTranscripts(w http.ResponseWriter, r *http.Request) {
	if h.oversight == nil {
		writeError(w, http.StatusServiceUnavailable, "Oversight log not configured")
		return
	}
	before, limit, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	flagged, _ := strconv.ParseBool(r.URL.Query().Get("flagged"))
	recs, hasMore, err := h.oversight.ListTranscripts(r.Context(), services.TranscriptFilter{
		Before:      before,
		UserID:      strings.TrimSpace(r.URL.Query().Get("user_id")),
		FlaggedOnly: flagged,
		Limit:       limit,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("list transcripts failed")
		writeError(w, http.StatusInternalServerError, "Failed to fetch transcripts")
		return
	}
	if recs == nil {
		recs = []models.TranscriptRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"transcripts": recs,
		"count":       len(recs),
		"has_more":    hasMore,
	})
}

// GetUser shows a user's profile, live session and last checkpoint.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	user, err := h.profiles.GetUser(r.Context(), userID)
	if errors.Is(err, pairing.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("user lookup failed")
		writeError(w, http.StatusInternalServerError, "Failed to load user")
		return
	}

	state := h.coordinator.State(userID)
	user.Status = state.State
	resp := map[string]interface{}{
		"success": true,
		"user":    user,
		"session": state,
		"online":  h.hub.Online(userID),
	}
	if h.checkpoints != nil {
		cp, err := h.checkpoints.Load(r.Context(), userID)
		if err != nil {
			h.log.Warn().Err(err).Str("user_id", userID).Msg("checkpoint load failed")
		} else {
			resp["checkpoint"] = cp
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// BlockRequest is the optional body of POST /api/admin/users/{id}/block.
type BlockRequest struct {
	Blocked *bool `json:"blocked"`
}

// BlockUser blocks (or with {"blocked":false} unblocks) a user. A blocked user is
// taken out of any live pairing and their gateway token is revoked.
func (h *Handler) BlockUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	blocked := true
	var req BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Blocked != nil {
		blocked = *req.Blocked
	}

	err := h.profiles.SetBlocked(r.Context(), userID, blocked)
	if errors.Is(err, pairing.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("set blocked failed")
		writeError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}

	if blocked {
		h.coordinator.Leave(r.Context(), userID)
		if err := h.sessions.InvalidateUser(r.Context(), userID); err != nil {
			h.log.Warn().Err(err).Str("user_id", userID).Msg("session revoke failed")
		}
		if err := h.hub.Kick(r.Context(), userID, "account blocked"); err != nil && !errors.Is(err, services.ErrRecipientOffline) {
			h.log.Warn().Err(err).Str("user_id", userID).Msg("kick failed")
		}
	}
	h.log.Info().Str("user_id", userID).Bool("blocked", blocked).Msg("user block state changed")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user_id": userID,
		"blocked": blocked,
	})
}

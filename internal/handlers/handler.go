package handlers

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/AnshRaj112/tandem-backend/internal/models"
	"github.com/AnshRaj112/tandem-backend/internal/pairing"
	"github.com/AnshRaj112/tandem-backend/internal/services"
	"github.com/rs/zerolog"
)

// Sessions issues and resolves gateway tokens.
type Sessions interface {
	Create(ctx context.Context, userID string) (string, error)
	Validate(ctx context.Context, token string) (string, bool, error)
	InvalidateUser(ctx context.Context, userID string) error
}

// MediaUploader stores attachments for media messages.
type MediaUploader interface {
	UploadFileFromHeader(ctx context.Context, fh *multipart.FileHeader, kind models.MessageKind) (*services.MediaUpload, error)
}

// OversightReader lists what the oversight log recorded.
type OversightReader interface {
	ListConnections(ctx context.Context, before *time.Time, limit int64) ([]models.ConnectionRecord, bool, error)
	ListTranscripts(ctx context.Context, f services.TranscriptFilter) ([]models.TranscriptRecord, bool, error)
}

// CheckpointLoader reads the last mirrored session state of a user.
type CheckpointLoader interface {
	Load(ctx context.Context, userID string) (pairing.Snapshot, error)
}

// Handler serves the HTTP API and the chat WebSocket gateway.
type Handler struct {
	coordinator *pairing.Coordinator
	profiles    services.ProfileStore
	sessions    Sessions
	hub         *services.ChatHub
	spam        *services.SpamGuard
	media       MediaUploader
	oversight   OversightReader
	checkpoints CheckpointLoader
	log         zerolog.Logger
}

// Deps are the collaborators a Handler needs. Media, Oversight and Checkpoints may be nil.
type Deps struct {
	Coordinator *pairing.Coordinator
	Profiles    services.ProfileStore
	Sessions    Sessions
	Hub         *services.ChatHub
	Spam        *services.SpamGuard
	Media       MediaUploader
	Oversight   OversightReader
	Checkpoints CheckpointLoader
	Logger      zerolog.Logger
}

func New(d Deps) *Handler {
	if d.Spam == nil {
		d.Spam = services.NewSpamGuard(0, 0)
	}
	return &Handler{
		coordinator: d.Coordinator,
		profiles:    d.Profiles,
		sessions:    d.Sessions,
		hub:         d.Hub,
		spam:        d.Spam,
		media:       d.Media,
		oversight:   d.Oversight,
		checkpoints: d.Checkpoints,
		log:         d.Logger.With().Str("component", "http").Logger(),
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

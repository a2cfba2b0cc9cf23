package handlers

import (
	"net/http"

	"github.com/AnshRaj112/tandem-backend/internal/models"
)

const maxUploadSize = 10 << 20 // 10MB

// UploadMedia stores an attachment and returns the media_ref to send in a message.
// Form fields: file, kind (photo, document, video, audio, voice, sticker).
func (h *Handler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		writeError(w, http.StatusServiceUnavailable, "Media uploads are not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse form: "+err.Error())
		return
	}

	kind, err := models.ParseMessageKind(r.FormValue("kind"))
	if err != nil || !kind.IsMedia() {
		writeError(w, http.StatusBadRequest, "kind must be a media message kind")
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided: "+err.Error())
		return
	}
	file.Close()

	upload, err := h.media.UploadFileFromHeader(r.Context(), fileHeader, kind)
	if err != nil {
		h.log.Error().Err(err).Str("kind", string(kind)).Msg("media upload failed")
		writeError(w, http.StatusBadGateway, "Failed to upload file")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "File uploaded successfully",
		"media":   upload,
	})
}

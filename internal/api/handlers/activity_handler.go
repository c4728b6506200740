package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/readtrack/internal/services"
)

// maxActivityLimit caps the ?limit= a client may ask for.
const maxActivityLimit = 100

// ActivityHandler handles HTTP requests for the reader activity feed.
type ActivityHandler struct {
	service services.ActivityServiceProvider
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(service services.ActivityServiceProvider) *ActivityHandler {
	return &ActivityHandler{service: service}
}

// GetRecent returns the signed-in reader's recent activity, newest first.
func (h *ActivityHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = services.DefaultActivityLimit
	}
	limit = min(limit, maxActivityLimit)

	activity, err := h.service.Recent(r.Context(), claims.ReaderID, limit)
	if err != nil {
		log.Error().Err(err).Str("reader_id", claims.ReaderID).Msg("Failed to retrieve activity")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

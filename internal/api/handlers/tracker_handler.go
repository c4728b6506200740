package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/readtrack/internal/errors"
	"github.com/isdelr/readtrack/internal/models"
	"github.com/isdelr/readtrack/internal/services"
	"github.com/isdelr/readtrack/internal/validation"
)

// TrackerHandler handles HTTP requests for a reader's reading lists.
type TrackerHandler struct {
	catalog  services.CatalogServiceProvider
	tracker  services.TrackerServiceProvider
	validate *validation.Validator
}

// NewTrackerHandler creates a new TrackerHandler.
func NewTrackerHandler(catalog services.CatalogServiceProvider, tracker services.TrackerServiceProvider) *TrackerHandler {
	return &TrackerHandler{catalog: catalog, tracker: tracker, validate: validation.New()}
}

// AddToTBRRequest names a book by title and author, typically a search result.
type AddToTBRRequest struct {
	Title    string `json:"title" form:"title" validate:"required,max=500"`
	Author   string `json:"author" form:"author" validate:"required,max=500"`
	CoverURL string `json:"cover_url" form:"cover_url" validate:"omitempty,url"`
	Genre    string `json:"genre" form:"genre" validate:"omitempty,max=50"`
}

// FinishRequest carries the optional review and rating of a finished book.
type FinishRequest struct {
	Review *string `json:"review" form:"review" validate:"omitempty,max=10000"`
	Rating *int    `json:"rating" form:"rating" validate:"omitempty,gte=1,lte=5"`
}

// listResponse wraps a reading list.
type listResponse[T any] struct {
	Books []T `json:"books"`
}

// AddToTBR finds or creates the book and puts it on the reader's to-be-read list.
// A book already on the list is answered with 400.
func (h *TrackerHandler) AddToTBR(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)

	var req AddToTBRRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeError(w, err)
		return
	}

	book, _, err := h.catalog.GetOrCreateBook(r.Context(), req.Title, req.Author, req.CoverURL)
	if err != nil {
		log.Error().Err(err).Str("title", req.Title).Msg("Failed to look up book")
		writeError(w, err)
		return
	}
	if req.Genre != "" {
		if err := h.catalog.TagBook(r.Context(), book.ID, req.Genre); err != nil {
			log.Warn().Err(err).Str("book_id", book.ID).Str("genre", req.Genre).Msg("Failed to tag book")
		}
	}

	outcome, err := h.tracker.AddToTBR(r.Context(), claims.ReaderID, book.ID)
	if err != nil {
		log.Error().Err(err).Str("reader_id", claims.ReaderID).Str("book_id", book.ID).Msg("Failed to add to TBR")
		writeError(w, err)
		return
	}
	if outcome == models.OutcomeAlreadyPresent {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Book already in TBR list",
			"outcome": outcome,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Book added to TBR list",
		"outcome": outcome,
		"book":    book,
	})
}

// UpdateStatus makes sure the book is on the reader's to-be-read list.
func (h *TrackerHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	bookID := chi.URLParam(r, "book_id")

	if _, err := h.tracker.AddToTBR(r.Context(), claims.ReaderID, bookID); err != nil {
		var domainErr *errors.Error
		if errors.As(err, &domainErr) && domainErr.Code == errors.CodeNotFound {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": domainErr.Message})
			return
		}
		log.Error().Err(err).Str("book_id", bookID).Msg("Failed to update status")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type bookDetailResponse struct {
	Book   models.Book       `json:"book"`
	Status models.BookStatus `json:"status"`
}

// GetBook returns a stored book with its genres and the caller's list membership.
func (h *TrackerHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	bookID := chi.URLParam(r, "book_id")

	book, err := h.catalog.GetBook(r.Context(), bookID)
	if err != nil {
		writeError(w, err)
		return
	}
	status, err := h.tracker.Status(r.Context(), claims.ReaderID, bookID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookDetailResponse{Book: book, Status: status})
}

// RemoveFromTBR takes a book off the reader's to-be-read list.
func (h *TrackerHandler) RemoveFromTBR(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	bookID := chi.URLParam(r, "book_id")

	if err := h.tracker.RemoveFromTBR(r.Context(), claims.ReaderID, bookID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartReading puts a book on the reader's currently-reading list.
func (h *TrackerHandler) StartReading(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	bookID := chi.URLParam(r, "book_id")

	outcome, err := h.tracker.StartReading(r.Context(), claims.ReaderID, bookID)
	if err != nil {
		writeError(w, err)
		return
	}
	if outcome == models.OutcomeAlreadyPresent {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Book already in currently reading list",
			"outcome": outcome,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "outcome": outcome})
}

// FinishReading records a book as read with an optional review and rating.
func (h *TrackerHandler) FinishReading(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	bookID := chi.URLParam(r, "book_id")

	var req FinishRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeError(w, err)
		return
	}

	record, err := h.tracker.FinishReading(r.Context(), claims.ReaderID, bookID, req.Review, req.Rating)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// ListTBR renders the reader's to-be-read list, oldest first.
func (h *TrackerHandler) ListTBR(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	entries, err := h.tracker.ListTBR(r.Context(), claims.ReaderID)
	if err != nil {
		log.Error().Err(err).Str("reader_id", claims.ReaderID).Msg("Failed to list TBR")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[models.TBREntry]{Books: entries})
}

// ListCurrentlyReading renders the reader's in-progress books.
func (h *TrackerHandler) ListCurrentlyReading(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	entries, err := h.tracker.ListCurrentlyReading(r.Context(), claims.ReaderID)
	if err != nil {
		log.Error().Err(err).Str("reader_id", claims.ReaderID).Msg("Failed to list currently reading")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[models.CurrentlyReadingEntry]{Books: entries})
}

// ListRead renders the reader's finished books.
func (h *TrackerHandler) ListRead(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	records, err := h.tracker.ListRead(r.Context(), claims.ReaderID)
	if err != nil {
		log.Error().Err(err).Str("reader_id", claims.ReaderID).Msg("Failed to list read books")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[models.ReadRecord]{Books: records})
}

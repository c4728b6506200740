package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/readtrack/internal/errors"
	"github.com/isdelr/readtrack/internal/models"
	"github.com/isdelr/readtrack/internal/services"
)

// GenreHandler serves genre browsing backed by the external catalog, and the
// genre tags stored locally.
type GenreHandler struct {
	search  services.SearchServiceProvider
	catalog services.CatalogServiceProvider
}

// NewGenreHandler creates a new GenreHandler.
func NewGenreHandler(search services.SearchServiceProvider, catalog services.CatalogServiceProvider) *GenreHandler {
	return &GenreHandler{search: search, catalog: catalog}
}

type genresResponse struct {
	Genres []string `json:"genres"`
}

type storedGenresResponse struct {
	Genres []models.Genre `json:"genres"`
}

type genreResultsResponse struct {
	Genre string               `json:"genre"`
	Books []models.BookSummary `json:"books"`
}

// Browse lists the fixed browse genres. It also backs the search page.
func (h *GenreHandler) Browse(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, genresResponse{Genres: h.search.Genres()})
}

// Search proxies a genre query to the external catalog.
func (h *GenreHandler) Search(w http.ResponseWriter, r *http.Request) {
	genre := chi.URLParam(r, "genre")
	// chi matches on RawPath when the path holds escapes such as %2F, leaving
	// the param encoded.
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(genre)
		if err != nil {
			writeError(w, errors.Validation("Invalid genre"))
			return
		}
		genre = unescaped
	}
	if genre == "" {
		h.Browse(w, r)
		return
	}

	books, err := h.search.SearchByGenre(r.Context(), genre)
	if err != nil {
		log.Warn().Err(err).Str("genre", genre).Msg("Genre search failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, genreResultsResponse{Genre: genre, Books: books})
}

// ListStored lists the genre tags attached to books in the local catalog.
func (h *GenreHandler) ListStored(w http.ResponseWriter, r *http.Request) {
	genres, err := h.catalog.ListGenres(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, storedGenresResponse{Genres: genres})
}

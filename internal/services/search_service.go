package services

import (
	"context"
	"strings"

	"github.com/isdelr/readtrack/internal/errors"
	"github.com/isdelr/readtrack/internal/models"
)

// BrowseGenres is the fixed list of categories offered for browsing.
var BrowseGenres = []string{"Fiction", "Non-fiction", "Sci-Fi", "Fantasy", "Mystery"}

// SubjectSearcher is the external catalog the search service proxies to.
type SubjectSearcher interface {
	SearchBySubject(ctx context.Context, subject string) ([]models.BookSummary, error)
}

// SearchServiceProvider defines the interface for genre browsing.
type SearchServiceProvider interface {
	Genres() []string
	SearchByGenre(ctx context.Context, genre string) ([]models.BookSummary, error)
}

// SearchService is a stateless pass-through to the external catalog.
type SearchService struct {
	searcher SubjectSearcher
}

// NewSearchService creates a new SearchService.
func NewSearchService(searcher SubjectSearcher) *SearchService {
	return &SearchService{searcher: searcher}
}

// Genres returns a copy of the browse list.
func (s *SearchService) Genres() []string {
	return append([]string(nil), BrowseGenres...)
}

// SearchByGenre returns books the external catalog files under genre.
func (s *SearchService) SearchByGenre(ctx context.Context, genre string) ([]models.BookSummary, error) {
	genre = strings.TrimSpace(genre)
	if genre == "" {
		return nil, errors.Validation("genre is required")
	}
	return s.searcher.SearchBySubject(ctx, genre)
}

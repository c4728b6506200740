package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/isdelr/readtrack/internal/errors"
	"github.com/isdelr/readtrack/internal/models"
)

// CatalogServiceProvider defines the interface for the book catalog.
type CatalogServiceProvider interface {
	GetOrCreateBook(ctx context.Context, title, author, coverURL string) (models.Book, bool, error)
	GetOrCreateGenre(ctx context.Context, name string) (models.Genre, error)
	TagBook(ctx context.Context, bookID, genreName string) error
	GetBook(ctx context.Context, id string) (models.Book, error)
	ListGenres(ctx context.Context) ([]models.Genre, error)
}

// CatalogService provides business logic for books and genres.
type CatalogService struct {
	db  *sql.DB
	now func() time.Time
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(db *sql.DB) *CatalogService {
	return &CatalogService{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// scanBook is a helper to scan a book from a row or rows object.
func scanBook(scanner interface{ Scan(...any) error }) (models.Book, error) {
	var b models.Book
	var cover sql.NullString
	if err := scanner.Scan(&b.ID, &b.Title, &b.Author, &cover, &b.CreatedAt); err != nil {
		return b, err
	}
	b.CoverURL = cover.String
	return b, nil
}

// GetOrCreateBook looks a book up by title and author, creating it if absent.
// The insert and the lookup are each single statements against the UNIQUE
// (title, author) constraint, so concurrent callers converge on one row.
func (s *CatalogService) GetOrCreateBook(ctx context.Context, title, author, coverURL string) (models.Book, bool, error) {
	title, author, coverURL = strings.TrimSpace(title), strings.TrimSpace(author), strings.TrimSpace(coverURL)
	if title == "" {
		return models.Book{}, false, errors.Validation("title is required")
	}
	if author == "" {
		return models.Book{}, false, errors.Validation("author is required")
	}

	var cover sql.NullString
	if coverURL != "" {
		cover = sql.NullString{String: coverURL, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO books (id, title, author, cover_url, created_at) VALUES (?, ?, ?, ?, ?) ON CONFLICT(title, author) DO NOTHING",
		uuid.New().String(), title, author, cover, s.now(),
	)
	if err != nil {
		return models.Book{}, false, fmt.Errorf("failed to insert book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Book{}, false, err
	}
	created := n == 1

	if !created && cover.Valid {
		// Fill in a cover for a book first stored without one.
		if _, err := s.db.ExecContext(ctx,
			"UPDATE books SET cover_url = ? WHERE title = ? AND author = ? AND (cover_url IS NULL OR cover_url = '')",
			cover, title, author,
		); err != nil {
			return models.Book{}, false, fmt.Errorf("failed to update cover: %w", err)
		}
	}

	row := s.db.QueryRowContext(ctx, "SELECT id, title, author, cover_url, created_at FROM books WHERE title = ? AND author = ?", title, author)
	book, err := scanBook(row)
	if err != nil {
		return models.Book{}, false, fmt.Errorf("failed to load book: %w", err)
	}
	if book.Genres, err = s.bookGenres(ctx, book.ID); err != nil {
		return models.Book{}, false, err
	}
	return book, created, nil
}

// GetBook retrieves a single book, with its genres, by ID.
func (s *CatalogService) GetBook(ctx context.Context, id string) (models.Book, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, title, author, cover_url, created_at FROM books WHERE id = ?", id)
	book, err := scanBook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Book{}, errors.NotFoundf("book %s not found", id)
		}
		return models.Book{}, fmt.Errorf("failed to load book: %w", err)
	}
	if book.Genres, err = s.bookGenres(ctx, book.ID); err != nil {
		return models.Book{}, err
	}
	return book, nil
}

// GetOrCreateGenre returns the genre with the given name, creating it if absent.
func (s *CatalogService) GetOrCreateGenre(ctx context.Context, name string) (models.Genre, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Genre{}, errors.Validation("genre name is required")
	}
	if utf8.RuneCountInString(name) > 50 {
		return models.Genre{}, errors.Validation("genre name must not exceed 50 characters")
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO genres (id, name) VALUES (?, ?) ON CONFLICT(name) DO NOTHING",
		uuid.New().String(), name,
	); err != nil {
		return models.Genre{}, fmt.Errorf("failed to insert genre: %w", err)
	}

	var g models.Genre
	if err := s.db.QueryRowContext(ctx, "SELECT id, name FROM genres WHERE name = ?", name).Scan(&g.ID, &g.Name); err != nil {
		return models.Genre{}, fmt.Errorf("failed to load genre: %w", err)
	}
	return g, nil
}

// TagBook attaches a genre to a book, creating the genre if needed. Tagging twice is a no-op.
func (s *CatalogService) TagBook(ctx context.Context, bookID, genreName string) error {
	genre, err := s.GetOrCreateGenre(ctx, genreName)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO book_genres (book_id, genre_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		bookID, genre.ID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return errors.NotFoundf("book %s not found", bookID)
		}
		return fmt.Errorf("failed to tag book: %w", err)
	}
	return nil
}

// ListGenres retrieves all genres ordered by name.
func (s *CatalogService) ListGenres(ctx context.Context) ([]models.Genre, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM genres ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	genres := []models.Genre{}
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

func (s *CatalogService) bookGenres(ctx context.Context, bookID string) ([]models.Genre, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.name FROM genres g
		JOIN book_genres bg ON bg.genre_id = g.id
		WHERE bg.book_id = ?
		ORDER BY g.name`, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to load genres: %w", err)
	}
	defer rows.Close()

	var genres []models.Genre
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/readtrack/internal/errors"
	"github.com/isdelr/readtrack/internal/models"
)

// TrackerServiceProvider defines the interface for a reader's status lists.
//
// The three lists (to-be-read, currently-reading, read) are independent sets
// keyed by (reader, book). Moving a book into one list never removes it from
// another.
type TrackerServiceProvider interface {
	AddToTBR(ctx context.Context, readerID, bookID string) (models.Outcome, error)
	RemoveFromTBR(ctx context.Context, readerID, bookID string) error
	StartReading(ctx context.Context, readerID, bookID string) (models.Outcome, error)
	FinishReading(ctx context.Context, readerID, bookID string, review *string, rating *int) (models.ReadRecord, error)
	ListTBR(ctx context.Context, readerID string) ([]models.TBREntry, error)
	ListCurrentlyReading(ctx context.Context, readerID string) ([]models.CurrentlyReadingEntry, error)
	ListRead(ctx context.Context, readerID string) ([]models.ReadRecord, error)
	Status(ctx context.Context, readerID, bookID string) (models.BookStatus, error)
	Counts(ctx context.Context, readerID string) (models.ListCounts, error)
}

// TrackerService implements the reading-status lists on top of SQLite.
type TrackerService struct {
	db       *sql.DB
	activity ActivityServiceProvider
	now      func() time.Time
}

// NewTrackerService creates a new TrackerService. activity may be nil.
func NewTrackerService(db *sql.DB, activity ActivityServiceProvider) *TrackerService {
	return &TrackerService{
		db:       db,
		activity: activity,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AddToTBR puts a book on the reader's to-be-read list. Adding a book that is
// already there returns OutcomeAlreadyPresent and leaves the existing row alone.
func (s *TrackerService) AddToTBR(ctx context.Context, readerID, bookID string) (models.Outcome, error) {
	inserted, err := s.insertOnce(ctx, "to_be_read", "added_date", readerID, bookID)
	if err != nil {
		return "", err
	}
	if !inserted {
		return models.OutcomeAlreadyPresent, nil
	}
	s.record(ctx, readerID, bookID, models.ActivityTBRAdd, "Added %q to to-be-read")
	return models.OutcomeAdded, nil
}

// StartReading puts a book on the reader's currently-reading list.
func (s *TrackerService) StartReading(ctx context.Context, readerID, bookID string) (models.Outcome, error) {
	inserted, err := s.insertOnce(ctx, "currently_reading", "start_date", readerID, bookID)
	if err != nil {
		return "", err
	}
	if !inserted {
		return models.OutcomeAlreadyPresent, nil
	}
	s.record(ctx, readerID, bookID, models.ActivityReadingStart, "Started reading %q")
	return models.OutcomeStarted, nil
}

// insertOnce is the atomic look-up-or-create for the to-be-read and
// currently-reading tables. It reports whether a new row was written.
func (s *TrackerService) insertOnce(ctx context.Context, table, dateColumn, readerID, bookID string) (bool, error) {
	query := fmt.Sprintf(
		"INSERT INTO %s (id, reader_id, book_id, %s) VALUES (?, ?, ?, ?) ON CONFLICT(reader_id, book_id) DO NOTHING",
		table, dateColumn,
	)
	res, err := s.db.ExecContext(ctx, query, uuid.New().String(), readerID, bookID, s.now())
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, s.missingRef(ctx, readerID, bookID)
		}
		return false, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RemoveFromTBR takes a book off the reader's to-be-read list.
func (s *TrackerService) RemoveFromTBR(ctx context.Context, readerID, bookID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM to_be_read WHERE reader_id = ? AND book_id = ?", readerID, bookID)
	if err != nil {
		return fmt.Errorf("failed to remove from to-be-read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to remove from to-be-read: %w", err)
	}
	if n == 0 {
		return errors.NotFoundf("book %s is not on the to-be-read list", bookID)
	}
	s.record(ctx, readerID, bookID, models.ActivityTBRRemove, "Removed %q from to-be-read")
	return nil
}

// FinishReading records a book as read. rating, when given, must be within
// [MinRating, MaxRating]. Finishing a book again replaces the earlier review,
// rating and finish date.
func (s *TrackerService) FinishReading(ctx context.Context, readerID, bookID string, review *string, rating *int) (models.ReadRecord, error) {
	if rating != nil && (*rating < models.MinRating || *rating > models.MaxRating) {
		return models.ReadRecord{}, errors.Validationf("rating must be between %d and %d", models.MinRating, models.MaxRating)
	}

	var reviewVal, ratingVal any
	if review != nil && strings.TrimSpace(*review) != "" {
		reviewVal = *review
	}
	if rating != nil {
		ratingVal = *rating
	}

	const query = `
		INSERT INTO read_books (id, reader_id, book_id, finish_date, review, rating)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(reader_id, book_id) DO UPDATE SET
			finish_date = excluded.finish_date,
			review = excluded.review,
			rating = excluded.rating`
	_, err := s.db.ExecContext(ctx, query, uuid.New().String(), readerID, bookID, s.now(), reviewVal, ratingVal)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.ReadRecord{}, s.missingRef(ctx, readerID, bookID)
		}
		return models.ReadRecord{}, fmt.Errorf("failed to record finished book: %w", err)
	}

	records, err := s.queryRead(ctx, "r.reader_id = ? AND r.book_id = ?", readerID, bookID)
	if err != nil {
		return models.ReadRecord{}, err
	}
	if len(records) == 0 {
		return models.ReadRecord{}, errors.NotFoundf("book %s not found", bookID)
	}

	s.record(ctx, readerID, bookID, models.ActivityReadingFinish, "Finished reading %q")
	return records[0], nil
}

// ListTBR returns the reader's to-be-read list, oldest first.
func (s *TrackerService) ListTBR(ctx context.Context, readerID string) ([]models.TBREntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.reader_id, t.added_date, b.id, b.title, b.author, b.cover_url, b.created_at
		FROM to_be_read t JOIN books b ON b.id = t.book_id
		WHERE t.reader_id = ?
		ORDER BY t.added_date ASC, t.rowid ASC`, readerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list to-be-read: %w", err)
	}
	defer rows.Close()

	entries := []models.TBREntry{}
	for rows.Next() {
		var e models.TBREntry
		var cover sql.NullString
		if err := rows.Scan(&e.ID, &e.ReaderID, &e.AddedDate, &e.Book.ID, &e.Book.Title, &e.Book.Author, &cover, &e.Book.CreatedAt); err != nil {
			return nil, err
		}
		e.Book.CoverURL = cover.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListCurrentlyReading returns the reader's in-progress books, oldest first.
func (s *TrackerService) ListCurrentlyReading(ctx context.Context, readerID string) ([]models.CurrentlyReadingEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.reader_id, c.start_date, b.id, b.title, b.author, b.cover_url, b.created_at
		FROM currently_reading c JOIN books b ON b.id = c.book_id
		WHERE c.reader_id = ?
		ORDER BY c.start_date ASC, c.rowid ASC`, readerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list currently reading: %w", err)
	}
	defer rows.Close()

	entries := []models.CurrentlyReadingEntry{}
	for rows.Next() {
		var e models.CurrentlyReadingEntry
		var cover sql.NullString
		if err := rows.Scan(&e.ID, &e.ReaderID, &e.StartDate, &e.Book.ID, &e.Book.Title, &e.Book.Author, &cover, &e.Book.CreatedAt); err != nil {
			return nil, err
		}
		e.Book.CoverURL = cover.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListRead returns the reader's finished books, oldest first.
func (s *TrackerService) ListRead(ctx context.Context, readerID string) ([]models.ReadRecord, error) {
	return s.queryRead(ctx, "r.reader_id = ?", readerID)
}

func (s *TrackerService) queryRead(ctx context.Context, where string, args ...any) ([]models.ReadRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.reader_id, r.finish_date, r.review, r.rating, b.id, b.title, b.author, b.cover_url, b.created_at
		FROM read_books r JOIN books b ON b.id = r.book_id
		WHERE `+where+`
		ORDER BY r.finish_date ASC, r.rowid ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list read books: %w", err)
	}
	defer rows.Close()

	records := []models.ReadRecord{}
	for rows.Next() {
		var rec models.ReadRecord
		var review, cover sql.NullString
		var rating sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.ReaderID, &rec.FinishDate, &review, &rating,
			&rec.Book.ID, &rec.Book.Title, &rec.Book.Author, &cover, &rec.Book.CreatedAt); err != nil {
			return nil, err
		}
		if review.Valid {
			rec.Review = &review.String
		}
		if rating.Valid {
			r := int(rating.Int64)
			rec.Rating = &r
		}
		rec.Book.CoverURL = cover.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Status reports which of the reader's lists contain the book.
func (s *TrackerService) Status(ctx context.Context, readerID, bookID string) (models.BookStatus, error) {
	status := models.BookStatus{BookID: bookID}
	var bookExists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM books WHERE id = ?1),
			EXISTS (SELECT 1 FROM to_be_read WHERE reader_id = ?2 AND book_id = ?1),
			EXISTS (SELECT 1 FROM currently_reading WHERE reader_id = ?2 AND book_id = ?1),
			EXISTS (SELECT 1 FROM read_books WHERE reader_id = ?2 AND book_id = ?1)`,
		bookID, readerID,
	).Scan(&bookExists, &status.ToBeRead, &status.CurrentlyReading, &status.Read)
	if err != nil {
		return models.BookStatus{}, fmt.Errorf("failed to load status: %w", err)
	}
	if !bookExists {
		return models.BookStatus{}, errors.NotFoundf("book %s not found", bookID)
	}
	return status, nil
}

// Counts returns the size of each of the reader's lists.
func (s *TrackerService) Counts(ctx context.Context, readerID string) (models.ListCounts, error) {
	var c models.ListCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM to_be_read WHERE reader_id = ?1),
			(SELECT COUNT(*) FROM currently_reading WHERE reader_id = ?1),
			(SELECT COUNT(*) FROM read_books WHERE reader_id = ?1)`,
		readerID,
	).Scan(&c.ToBeRead, &c.CurrentlyReading, &c.Read)
	if err != nil {
		return models.ListCounts{}, fmt.Errorf("failed to count lists: %w", err)
	}
	return c, nil
}

// missingRef turns a foreign key failure into a NotFound naming what is missing.
func (s *TrackerService) missingRef(ctx context.Context, readerID, bookID string) error {
	var readerExists, bookExists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM readers WHERE id = ?), EXISTS (SELECT 1 FROM books WHERE id = ?)",
		readerID, bookID,
	).Scan(&readerExists, &bookExists)
	if err != nil {
		return fmt.Errorf("failed to check references: %w", err)
	}
	if !readerExists {
		return errors.NotFoundf("reader %s not found", readerID)
	}
	return errors.NotFoundf("book %s not found", bookID)
}

func (s *TrackerService) record(ctx context.Context, readerID, bookID, activityType, format string) {
	if s.activity == nil {
		return
	}
	var title string
	if err := s.db.QueryRowContext(ctx, "SELECT title FROM books WHERE id = ?", bookID).Scan(&title); err != nil {
		title = bookID
	}
	if err := s.activity.Record(ctx, readerID, activityType, fmt.Sprintf(format, title), &bookID); err != nil {
		log.Warn().Err(err).Str("reader_id", readerID).Str("type", activityType).Msg("Failed to record activity")
	}
}

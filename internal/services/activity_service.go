package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/isdelr/readtrack/internal/models"
)

// DefaultActivityLimit is used when a caller asks for a non-positive limit.
const DefaultActivityLimit = 20

// ActivityServiceProvider defines the interface for the reader activity feed.
type ActivityServiceProvider interface {
	Record(ctx context.Context, readerID, activityType, message string, bookID *string) error
	Recent(ctx context.Context, readerID string, limit int) ([]models.Activity, error)
}

// ActivityService persists reader activity.
type ActivityService struct {
	db  *sql.DB
	now func() time.Time
}

// NewActivityService creates a new ActivityService.
func NewActivityService(db *sql.DB) *ActivityService {
	return &ActivityService{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Record logs a new activity entry for a reader.
func (s *ActivityService) Record(ctx context.Context, readerID, activityType, message string, bookID *string) error {
	activity := models.Activity{
		ID:        uuid.New().String(),
		ReaderID:  readerID,
		Type:      activityType,
		Message:   message,
		BookID:    bookID,
		CreatedAt: s.now(),
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO activity (id, reader_id, type, message, book_id, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		activity.ID, activity.ReaderID, activity.Type, activity.Message, activity.BookID, activity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// Recent retrieves a reader's most recent activity, newest first.
func (s *ActivityService) Recent(ctx context.Context, readerID string, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, reader_id, type, message, book_id, created_at FROM activity WHERE reader_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?",
		readerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	activities := []models.Activity{}
	for rows.Next() {
		var a models.Activity
		var bookID sql.NullString
		if err := rows.Scan(&a.ID, &a.ReaderID, &a.Type, &a.Message, &bookID, &a.CreatedAt); err != nil {
			return nil, err
		}
		if bookID.Valid {
			a.BookID = &bookID.String
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

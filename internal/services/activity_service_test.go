package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdelr/readtrack/internal/models"
	"github.com/isdelr/readtrack/internal/testutil"
)

func TestActivityService_RecentNewestFirst(t *testing.T) {
	db := testutil.NewDB(t)
	readers := NewReaderService(db, nil)
	svc := NewActivityService(db)
	ctx := context.Background()

	alice, err := readers.CreateUser(ctx, "alice", "alice@example.com", "pw123")
	require.NoError(t, err)
	bob, err := readers.CreateUser(ctx, "bob", "bob@example.com", "pw123")
	require.NoError(t, err)

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for i := 1; i <= 5; i++ {
		require.NoError(t, svc.Record(ctx, alice.ID, models.ActivityTBRAdd, fmt.Sprintf("entry %d", i), nil))
	}
	require.NoError(t, svc.Record(ctx, bob.ID, models.ActivityTBRAdd, "bob's entry", nil))

	entries, err := svc.Recent(ctx, alice.ID, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "entry 5", entries[0].Message)
	assert.Equal(t, "entry 4", entries[1].Message)
	assert.Equal(t, "entry 3", entries[2].Message)
	for _, e := range entries {
		assert.Equal(t, alice.ID, e.ReaderID)
	}

	all, err := svc.Recent(ctx, alice.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestActivityService_RecordError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO activity").
		WithArgs(sqlmock.AnyArg(), "reader-1", models.ActivitySignup, "Joined", nil, sqlmock.AnyArg()).
		WillReturnError(fmt.Errorf("disk I/O error"))

	svc := NewActivityService(db)
	err = svc.Record(context.Background(), "reader-1", models.ActivitySignup, "Joined", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record activity")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityService_RecentQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, reader_id, type, message, book_id, created_at FROM activity").
		WithArgs("reader-1", DefaultActivityLimit).
		WillReturnError(fmt.Errorf("database is locked"))

	svc := NewActivityService(db)
	_, err = svc.Recent(context.Background(), "reader-1", -1)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityService_RecentScansNullableBook(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "reader_id", "type", "message", "book_id", "created_at"}).
		AddRow("a2", "reader-1", models.ActivityTBRAdd, `Added "Dune" to to-be-read`, "book-1", now).
		AddRow("a1", "reader-1", models.ActivitySignup, "Joined", nil, now.Add(-time.Hour))
	mock.ExpectQuery("SELECT (.+) FROM activity").WithArgs("reader-1", 2).WillReturnRows(rows)

	svc := NewActivityService(db)
	entries, err := svc.Recent(context.Background(), "reader-1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].BookID)
	assert.Equal(t, "book-1", *entries[0].BookID)
	assert.Nil(t, entries[1].BookID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

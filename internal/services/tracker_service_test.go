package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdelr/readtrack/internal/errors"
	"github.com/isdelr/readtrack/internal/models"
	"github.com/isdelr/readtrack/internal/testutil"
)

type trackerFixture struct {
	readers  *ReaderService
	catalog  *CatalogService
	tracker  *TrackerService
	activity *ActivityService
}

func newTrackerFixture(t *testing.T) (*trackerFixture, func(table, where string, args ...any) int) {
	t.Helper()
	db := testutil.NewDB(t)
	activity := NewActivityService(db)
	f := &trackerFixture{
		readers:  NewReaderService(db, activity),
		catalog:  NewCatalogService(db),
		tracker:  NewTrackerService(db, activity),
		activity: activity,
	}
	count := func(table, where string, args ...any) int {
		return testutil.CountRows(t, db, table, where, args...)
	}
	return f, count
}

func (f *trackerFixture) reader(t *testing.T, name string) models.Reader {
	t.Helper()
	r, err := f.readers.CreateUser(context.Background(), name, name+"@example.com", "pw123")
	require.NoError(t, err)
	return r
}

func (f *trackerFixture) book(t *testing.T, title, author string) models.Book {
	t.Helper()
	b, _, err := f.catalog.GetOrCreateBook(context.Background(), title, author, "")
	require.NoError(t, err)
	return b
}

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

func TestTracker_AliceDuneScenario(t *testing.T) {
	f, count := newTrackerFixture(t)
	ctx := context.Background()

	alice := f.reader(t, "alice")
	dune := f.book(t, "Dune", "Herbert")

	outcome, err := f.tracker.AddToTBR(ctx, alice.ID, dune.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAdded, outcome)

	outcome, err = f.tracker.AddToTBR(ctx, alice.ID, dune.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlreadyPresent, outcome)

	assert.Equal(t, 1, count("to_be_read", "reader_id = ? AND book_id = ?", alice.ID, dune.ID))
}

func TestTracker_AddToTBRConcurrent(t *testing.T) {
	f, count := newTrackerFixture(t)
	ctx := context.Background()

	alice := f.reader(t, "alice")
	dune := f.book(t, "Dune", "Herbert")

	const workers = 16
	outcomes := make([]models.Outcome, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			outcomes[i], errs[i] = f.tracker.AddToTBR(ctx, alice.ID, dune.ID)
		}()
	}
	close(start)
	wg.Wait()

	added := 0
	for i := range workers {
		require.NoError(t, errs[i])
		if outcomes[i] == models.OutcomeAdded {
			added++
		} else {
			assert.Equal(t, models.OutcomeAlreadyPresent, outcomes[i])
		}
	}
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, count("to_be_read", "reader_id = ?", alice.ID))
}

func TestTracker_StartReadingIdempotent(t *testing.T) {
	f, count := newTrackerFixture(t)
	ctx := context.Background()

	alice := f.reader(t, "alice")
	dune := f.book(t, "Dune", "Herbert")

	outcome, err := f.tracker.StartReading(ctx, alice.ID, dune.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeStarted, outcome)

	outcome, err = f.tracker.StartReading(ctx, alice.ID, dune.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlreadyPresent, outcome)

	assert.Equal(t, 1, count("currently_reading", "reader_id = ?", alice.ID))
}

func TestTracker_FinishReadingRatingBounds(t *testing.T) {
	f, count := newTrackerFixture(t)
	ctx := context.Background()

	alice := f.reader(t, "alice")

	for _, rating := range []int{0, 6, -1} {
		book := f.book(t, "Rejected", "Author")
		_, err := f.tracker.FinishReading(ctx, alice.ID, book.ID, nil, intPtr(rating))
		assert.True(t, errors.Is(err, errors.ErrValidation), "rating %d", rating)
	}
	assert.Equal(t, 0, count("read_books", ""))

	for _, rating := range []int{1, 5} {
		book := f.book(t, "Accepted", "Author "+string(rune('A'+rating)))
		rec, err := f.tracker.FinishReading(ctx, alice.ID, book.ID, strPtr("Great"), intPtr(rating))
		require.NoError(t, err)
		require.NotNil(t, rec.Rating)
		assert.Equal(t, rating, *rec.Rating)
		assert.Equal(t, "Great", *rec.Review)
		assert.Equal(t, book.ID, rec.Book.ID)
	}
	assert.Equal(t, 2, count("read_books", ""))
}

func TestTracker_FinishReadingOptionalFields(t *testing.T) {
	f, _ := newTrackerFixture(t)
	ctx := context.Background()

	alice := f.reader(t, "alice")
	dune := f.book(t, "Dune", "Herbert")

	rec, err := f.tracker.FinishReading(ctx, alice.ID, dune.ID, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, rec.Rating)
	assert.Nil(t, rec.Review)
	assert.False(t, rec.FinishDate.IsZero())
}

func TestTracker_FinishReadingAgainUpdates(t *testing.T) {
	f, count := newTrackerFixture(t)
	ctx := context.Background()

	alice := f.reader(t, "alice")
	dune := f.book(t, "Dune", "Herbert")

	_, err := f.tracker.FinishReading(ctx, alice.ID, dune.ID, strPtr("ok"), intPtr(3))
	require.NoError(t, err)
	rec, err := f.tracker.FinishReading(ctx, alice.ID, dune.ID, strPtr("better on reread"), intPtr(5))
	require.NoError(t, err)

	assert.Equal(t, 5, *rec.Rating)
	assert.Equal(t, "better on reread", *rec.Review)
	assert.Equal(t, 1, count("read_books", "reader_id = ?", alice.ID))
}

func TestTracker_ListsAreIndependent(t *testing.T) {
	f, _ := newTrackerFixture(t)
	ctx := context.Background()

	alice := f.reader(t, "alice")
	dune := f.book(t, "Dune", "Herbert")

	_, err := f.tracker.AddToTBR(ctx, alice.ID, dune.ID)
	require.NoError(t, err)
	_, err = f.tracker.StartReading(ctx, alice.ID, dune.ID)
	require.NoError(t, err)
	_, err = f.tracker.FinishReading(ctx, alice.ID, dune.ID, nil, intPtr(4))
	require.NoError(t, err)

	status, err := f.tracker.Status(ctx, alice.ID, dune.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookStatus{BookID: dune.ID, ToBeRead: true, CurrentlyReading: true, Read: true}, status)

	counts, err := f.tracker.Counts(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListCounts{ToBeRead: 1, CurrentlyReading: 1, Read: 1}, counts)
}

func TestTracker_ListTBROrderAndFreshness(t *testing.T) {
	f, _ := newTrackerFixture(t)
	ctx := context.Background()

	alice := f.reader(t, "alice")
	bob := f.reader(t, "bob")

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	f.tracker.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	titles := []string{"Dune", "Emma", "Beloved", "Ulysses"}
	for _, title := range titles {
		b := f.book(t, title, "Someone")
		_, err := f.tracker.AddToTBR(ctx, alice.ID, b.ID)
		require.NoError(t, err)
	}
	other := f.book(t, "Other", "Someone")
	_, err := f.tracker.AddToTBR(ctx, bob.ID, other.ID)
	require.NoError(t, err)

	list, err := f.tracker.ListTBR(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, len(titles))
	for i, e := range list {
		assert.Equal(t, titles[i], e.Book.Title)
		assert.Equal(t, alice.ID, e.ReaderID)
		if i > 0 {
			assert.True(t, e.AddedDate.After(list[i-1].AddedDate))
		}
	}

	// A second call reflects writes made in between.
	require.NoError(t, f.tracker.RemoveFromTBR(ctx, alice.ID, list[0].Book.ID))
	list, err = f.tracker.ListTBR(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, list, len(titles)-1)
	assert.Equal(t, "Emma", list[0].Book.Title)
}

func TestTracker_ListTBRSameTimestampKeepsInsertionOrder(t *testing.T) {
	f, _ := newTrackerFixture(t)
	ctx := context.Background()

	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	f.tracker.now = func() time.Time { return fixed }

	alice := f.reader(t, "alice")
	for _, title := range []string{"C", "A", "B"} {
		b := f.book(t, title, "X")
		_, err := f.tracker.AddToTBR(ctx, alice.ID, b.ID)
		require.NoError(t, err)
	}

	list, err := f.tracker.ListTBR(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{list[0].Book.Title, list[1].Book.Title, list[2].Book.Title})
}

func TestTracker_EmptyListsAreNotNil(t *testing.T) {
	f, _ := newTrackerFixture(t)
	ctx := context.Background()
	alice := f.reader(t, "alice")

	tbr, err := f.tracker.ListTBR(ctx, alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, tbr)
	assert.Empty(t, tbr)

	reading, err := f.tracker.ListCurrentlyReading(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, reading)

	read, err := f.tracker.ListRead(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, read)
}

func TestTracker_UnknownReferencesAreNotFound(t *testing.T) {
	f, count := newTrackerFixture(t)
	ctx := context.Background()

	alice := f.reader(t, "alice")
	dune := f.book(t, "Dune", "Herbert")

	_, err := f.tracker.AddToTBR(ctx, alice.ID, "missing-book")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Contains(t, err.Error(), "book")

	_, err = f.tracker.StartReading(ctx, "missing-reader", dune.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Contains(t, err.Error(), "reader")

	_, err = f.tracker.FinishReading(ctx, alice.ID, "missing-book", nil, intPtr(3))
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = f.tracker.Status(ctx, alice.ID, "missing-book")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	err = f.tracker.RemoveFromTBR(ctx, alice.ID, dune.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	assert.Equal(t, 0, count("to_be_read", ""))
}

func TestTracker_DeletingBookCascades(t *testing.T) {
	f, count := newTrackerFixture(t)
	ctx := context.Background()

	alice := f.reader(t, "alice")
	dune := f.book(t, "Dune", "Herbert")
	_, err := f.tracker.AddToTBR(ctx, alice.ID, dune.ID)
	require.NoError(t, err)
	_, err = f.tracker.FinishReading(ctx, alice.ID, dune.ID, nil, intPtr(5))
	require.NoError(t, err)

	_, err = f.tracker.db.Exec("DELETE FROM books WHERE id = ?", dune.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, count("to_be_read", ""))
	assert.Equal(t, 0, count("read_books", ""))
	assert.Equal(t, 0, count("activity", "book_id IS NOT NULL"))
}

func TestTracker_RecordsActivity(t *testing.T) {
	f, _ := newTrackerFixture(t)
	ctx := context.Background()

	alice := f.reader(t, "alice")
	dune := f.book(t, "Dune", "Herbert")

	_, err := f.tracker.AddToTBR(ctx, alice.ID, dune.ID)
	require.NoError(t, err)
	_, err = f.tracker.AddToTBR(ctx, alice.ID, dune.ID) // no-op, not recorded
	require.NoError(t, err)
	_, err = f.tracker.StartReading(ctx, alice.ID, dune.ID)
	require.NoError(t, err)

	entries, err := f.activity.Recent(ctx, alice.ID, 10)
	require.NoError(t, err)

	var types []string
	for _, e := range entries {
		types = append(types, e.Type)
	}
	assert.ElementsMatch(t, []string{models.ActivitySignup, models.ActivityTBRAdd, models.ActivityReadingStart}, types)
	for _, e := range entries {
		if e.Type == models.ActivityTBRAdd {
			assert.Equal(t, `Added "Dune" to to-be-read`, e.Message)
		}
	}
}

type recordedActivity struct {
	types []string
}

func (r *recordedActivity) Record(ctx context.Context, readerID, activityType, message string, bookID *string) error {
	r.types = append(r.types, activityType)
	return nil
}

func (r *recordedActivity) Recent(ctx context.Context, readerID string, limit int) ([]models.Activity, error) {
	return nil, nil
}

func TestTracker_RemoveFromTBRRowsAffectedError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM to_be_read").
		WithArgs("reader-1", "book-1").
		WillReturnResult(sqlmock.NewErrorResult(fmt.Errorf("driver lost the count")))

	activity := &recordedActivity{}
	err = NewTrackerService(db, activity).RemoveFromTBR(context.Background(), "reader-1", "book-1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, errors.ErrNotFound))
	assert.Contains(t, err.Error(), "driver lost the count")
	assert.Empty(t, activity.types, "nothing is recorded for an unconfirmed removal")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTracker_RemoveFromTBRRecordsActivity(t *testing.T) {
	f, _ := newTrackerFixture(t)
	ctx := context.Background()

	alice := f.reader(t, "alice")
	dune := f.book(t, "Dune", "Herbert")
	_, err := f.tracker.AddToTBR(ctx, alice.ID, dune.ID)
	require.NoError(t, err)

	require.NoError(t, f.tracker.RemoveFromTBR(ctx, alice.ID, dune.ID))
	err = f.tracker.RemoveFromTBR(ctx, alice.ID, dune.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	entries, err := f.activity.Recent(ctx, alice.ID, 10)
	require.NoError(t, err)
	var removals int
	for _, e := range entries {
		if e.Type == models.ActivityTBRRemove {
			removals++
		}
	}
	assert.Equal(t, 1, removals)
}

package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"

	"github.com/isdelr/readtrack/internal/errors"
	"github.com/isdelr/readtrack/internal/models"
	"github.com/isdelr/readtrack/internal/validation"
)

// ReaderServiceProvider defines the interface for the identity store.
type ReaderServiceProvider interface {
	CreateUser(ctx context.Context, username, email, password string) (models.Reader, error)
	CreateSuperuser(ctx context.Context, username, email, password string) (models.Reader, error)
	Authenticate(ctx context.Context, username, password string) (models.Reader, error)
	GetReaderByID(ctx context.Context, id string) (models.Reader, error)
	Save(ctx context.Context, reader *models.Reader) error
	DeleteReader(ctx context.Context, id string) error
}

// ErrDuplicateReader is returned for a username or email that is already registered.
// It deliberately does not say which of the two collided.
var ErrDuplicateReader = errors.Conflict("a reader with that username or email already exists")

// ReaderService provides business logic for reader accounts.
type ReaderService struct {
	db       *sql.DB
	activity ActivityServiceProvider
	validate *validation.Validator
	now      func() time.Time
}

// NewReaderService creates a new ReaderService. activity may be nil.
func NewReaderService(db *sql.DB, activity ActivityServiceProvider) *ReaderService {
	return &ReaderService{
		db:       db,
		activity: activity,
		validate: validation.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// dummyCredential is compared against when a username is unknown, so a failed
// login costs the same whether or not the account exists.
var dummyCredential = sync.OnceValue(func() models.Credential {
	c, _ := models.RawCredential("readtrack-unknown-reader").Hash()
	return c
})

// NormalizeUsername applies NFKC normalization to a username.
func NormalizeUsername(username string) string {
	return norm.NFKC.String(username)
}

// NormalizeEmail trims the address and lower-cases its domain part.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}

// CreateUser validates and persists a new reader, storing only a hash of password.
func (s *ReaderService) CreateUser(ctx context.Context, username, email, password string) (models.Reader, error) {
	reader, err := s.newReader(username, email, password)
	if err != nil {
		return models.Reader{}, err
	}
	if err := s.Save(ctx, &reader); err != nil {
		return models.Reader{}, err
	}

	log.Info().Str("reader_id", reader.ID).Str("username", reader.Username).Msg("Reader created")
	s.record(ctx, reader.ID, models.ActivitySignup, "Joined readtrack", nil)
	return reader, nil
}

// CreateSuperuser creates a reader with the staff and superuser flags set.
func (s *ReaderService) CreateSuperuser(ctx context.Context, username, email, password string) (models.Reader, error) {
	reader, err := s.newReader(username, email, password)
	if err != nil {
		return models.Reader{}, err
	}
	reader.IsStaff = true
	reader.IsSuperuser = true
	if err := s.Save(ctx, &reader); err != nil {
		return models.Reader{}, err
	}

	log.Info().Str("reader_id", reader.ID).Str("username", reader.Username).Msg("Superuser created")
	return reader, nil
}

func (s *ReaderService) newReader(username, email, password string) (models.Reader, error) {
	if username == "" {
		return models.Reader{}, errors.Validation("username is required")
	}
	if strings.TrimSpace(email) == "" {
		return models.Reader{}, errors.Validation("email is required")
	}
	if password == "" {
		return models.Reader{}, errors.Validation("password is required")
	}
	if len(password) > models.MaxPasswordBytes {
		return models.Reader{}, errors.Validationf("password must not exceed %d bytes", models.MaxPasswordBytes)
	}

	username = NormalizeUsername(username)
	if err := s.validate.Var("username", username, "username"); err != nil {
		return models.Reader{}, err
	}
	email = NormalizeEmail(email)
	if err := s.validate.Var("email", email, "email"); err != nil {
		return models.Reader{}, err
	}

	return models.Reader{
		Username: username,
		Email:    email,
		Password: models.RawCredential(password),
		IsActive: true,
	}, nil
}

// Save inserts or updates a reader. A raw credential is hashed exactly once;
// an already-hashed credential is written back untouched.
func (s *ReaderService) Save(ctx context.Context, reader *models.Reader) error {
	hashed, err := reader.Password.Hash()
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptyPassword):
			return errors.Validation("password is required")
		case errors.Is(err, models.ErrPasswordTooLong):
			return errors.Validationf("password must not exceed %d bytes", models.MaxPasswordBytes)
		}
		return err
	}
	reader.Password = hashed

	if reader.ID == "" {
		reader.ID = uuid.New().String()
	}
	if reader.CreatedAt.IsZero() {
		reader.CreatedAt = s.now()
	}

	const query = `
		INSERT INTO readers (id, username, email, password_hash, is_active, is_staff, is_superuser, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			email = excluded.email,
			password_hash = excluded.password_hash,
			is_active = excluded.is_active,
			is_staff = excluded.is_staff,
			is_superuser = excluded.is_superuser`
	_, err = s.db.ExecContext(ctx, query,
		reader.ID, reader.Username, reader.Email, reader.Password.Encoded(),
		reader.IsActive, reader.IsStaff, reader.IsSuperuser, reader.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReader
		}
		return fmt.Errorf("failed to save reader: %w", err)
	}
	return nil
}

const readerColumns = "id, username, email, password_hash, is_active, is_staff, is_superuser, created_at"

func scanReader(scanner interface{ Scan(...any) error }) (models.Reader, error) {
	var r models.Reader
	var hash string
	if err := scanner.Scan(&r.ID, &r.Username, &r.Email, &hash, &r.IsActive, &r.IsStaff, &r.IsSuperuser, &r.CreatedAt); err != nil {
		return models.Reader{}, err
	}
	r.Password = models.HashedCredential(hash)
	return r, nil
}

// GetReaderByID retrieves a single reader by their ID.
func (s *ReaderService) GetReaderByID(ctx context.Context, id string) (models.Reader, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+readerColumns+" FROM readers WHERE id = ?", id)
	reader, err := scanReader(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Reader{}, errors.NotFoundf("reader %s not found", id)
		}
		return models.Reader{}, fmt.Errorf("failed to load reader: %w", err)
	}
	return reader, nil
}

func (s *ReaderService) getReaderByUsername(ctx context.Context, username string) (models.Reader, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+readerColumns+" FROM readers WHERE username = ?", NormalizeUsername(username))
	reader, err := scanReader(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Reader{}, errors.NotFoundf("reader %s not found", username)
		}
		return models.Reader{}, fmt.Errorf("failed to load reader: %w", err)
	}
	return reader, nil
}

// Authenticate verifies a reader's credentials. Unknown usernames, wrong
// passwords and inactive accounts all yield ErrInvalidCredentials.
func (s *ReaderService) Authenticate(ctx context.Context, username, password string) (models.Reader, error) {
	invalid := errors.InvalidCredentials("Username or Password is incorrect")

	reader, err := s.getReaderByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			return models.Reader{}, err
		}
		dummyCredential().Verify(password)
		return models.Reader{}, invalid
	}

	if !reader.CheckPassword(password) || !reader.IsActive {
		return models.Reader{}, invalid
	}
	return reader, nil
}

// DeleteReader removes a reader; their status rows and activity go with them.
func (s *ReaderService) DeleteReader(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM readers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete reader: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete reader: %w", err)
	}
	if n == 0 {
		return errors.NotFoundf("reader %s not found", id)
	}
	log.Info().Str("reader_id", id).Msg("Reader deleted")
	return nil
}

func (s *ReaderService) record(ctx context.Context, readerID, kind, message string, bookID *string) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, readerID, kind, message, bookID); err != nil {
		log.Warn().Err(err).Str("reader_id", readerID).Str("type", kind).Msg("Failed to record activity")
	}
}

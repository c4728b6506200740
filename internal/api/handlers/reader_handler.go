package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/readtrack/internal/auth"
	"github.com/isdelr/readtrack/internal/errors"
	"github.com/isdelr/readtrack/internal/models"
	"github.com/isdelr/readtrack/internal/services"
	"github.com/isdelr/readtrack/internal/validation"
)

// Redirect targets returned to the browser after signup and login.
const (
	LoginPath = "/login/"
	HomePath  = "/home/"
)

// errBadLogin is the single message for every failed login.
var errBadLogin = errors.InvalidCredentials("Username or Password is incorrect")

// ReaderHandler handles HTTP requests for reader accounts and sessions.
type ReaderHandler struct {
	readers  services.ReaderServiceProvider
	tracker  services.TrackerServiceProvider
	activity services.ActivityServiceProvider
	sessions *auth.Manager
	validate *validation.Validator
}

// NewReaderHandler creates a new ReaderHandler.
func NewReaderHandler(
	readers services.ReaderServiceProvider,
	tracker services.TrackerServiceProvider,
	activity services.ActivityServiceProvider,
	sessions *auth.Manager,
) *ReaderHandler {
	return &ReaderHandler{
		readers:  readers,
		tracker:  tracker,
		activity: activity,
		sessions: sessions,
		validate: validation.New(),
	}
}

// SignupRequest is the signup form.
type SignupRequest struct {
	Fullname        string `json:"fullname" form:"fullname" validate:"required"`
	Email           string `json:"email" form:"email" validate:"required"`
	Password        string `json:"password" form:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

// LoginRequest is the login form.
type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

// Signup handles new reader registration. Every failure is a 400.
func (h *ReaderHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeRequest(r, &req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	if req.Password != req.ConfirmPassword {
		writeErrorStatus(w, http.StatusBadRequest, errors.Validation("Passwords do not match"))
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, err)
		return
	}

	reader, err := h.readers.CreateUser(r.Context(), req.Fullname, req.Email, req.Password)
	if err != nil {
		var domainErr *errors.Error
		if !errors.As(err, &domainErr) {
			log.Error().Err(err).Str("username", req.Fullname).Msg("Failed to register reader")
			writeError(w, err)
			return
		}
		log.Info().Str("username", req.Fullname).Str("code", string(domainErr.Code)).Msg("Signup rejected")
		writeErrorStatus(w, http.StatusBadRequest, err)
		return
	}

	log.Info().Str("reader_id", reader.ID).Str("username", reader.Username).Msg("Reader registered")
	writeJSON(w, http.StatusOK, map[string]string{"redirect_url": LoginPath})
}

// Login authenticates a reader and issues the session cookie.
func (h *ReaderHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeRequest(r, &req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, errBadLogin)
		return
	}

	reader, err := h.readers.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidCredentials) {
			log.Warn().Str("username", req.Username).Msg("Failed authentication attempt")
			writeErrorStatus(w, http.StatusBadRequest, errBadLogin)
			return
		}
		writeError(w, err)
		return
	}

	token, err := h.sessions.Issue(reader)
	if err != nil {
		log.Error().Err(err).Str("reader_id", reader.ID).Msg("Failed to generate JWT")
		writeError(w, err)
		return
	}
	h.sessions.SetCookie(w, token)

	writeJSON(w, http.StatusOK, map[string]string{"redirect_url": HomePath, "token": token})
}

// Logout clears the session cookie and sends the browser to the login page.
func (h *ReaderHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)
	http.Redirect(w, r, LoginPath, http.StatusFound)
}

// HomeView is the payload of the home page.
type HomeView struct {
	Reader models.Reader     `json:"reader"`
	Counts models.ListCounts `json:"counts"`
}

// Home renders the signed-in reader with the size of each list.
func (h *ReaderHandler) Home(w http.ResponseWriter, r *http.Request) {
	reader, ok := h.loadReader(w, r)
	if !ok {
		return
	}
	counts, err := h.tracker.Counts(r.Context(), reader.ID)
	if err != nil {
		log.Error().Err(err).Str("reader_id", reader.ID).Msg("Failed to count lists")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, HomeView{Reader: reader, Counts: counts})
}

// ProfileView is the payload of the profile page.
type ProfileView struct {
	Reader   models.Reader     `json:"reader"`
	Activity []models.Activity `json:"activity"`
}

// Profile renders the signed-in reader with their recent activity.
func (h *ReaderHandler) Profile(w http.ResponseWriter, r *http.Request) {
	reader, ok := h.loadReader(w, r)
	if !ok {
		return
	}
	activity, err := h.activity.Recent(r.Context(), reader.ID, services.DefaultActivityLimit)
	if err != nil {
		log.Error().Err(err).Str("reader_id", reader.ID).Msg("Failed to load activity")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileView{Reader: reader, Activity: activity})
}

// Delete handles administrative deletion of a reader and everything they own.
func (h *ReaderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.readers.DeleteReader(r.Context(), id); err != nil {
		log.Warn().Err(err).Str("reader_id", id).Msg("Failed to delete reader")
		writeError(w, err)
		return
	}
	log.Info().Str("reader_id", id).Str("by", currentClaims(r).ReaderID).Msg("Reader deleted")
	w.WriteHeader(http.StatusNoContent)
}

// loadReader fetches the reader behind the session. A session for a deleted
// reader is cleared and answered like an anonymous visit.
func (h *ReaderHandler) loadReader(w http.ResponseWriter, r *http.Request) (models.Reader, bool) {
	claims := currentClaims(r)
	reader, err := h.readers.GetReaderByID(r.Context(), claims.ReaderID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			h.sessions.ClearCookie(w)
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return models.Reader{}, false
		}
		log.Error().Err(err).Str("reader_id", claims.ReaderID).Msg("Failed to load reader")
		writeError(w, err)
		return models.Reader{}, false
	}
	return reader, true
}

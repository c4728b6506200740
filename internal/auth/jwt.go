package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/readtrack/internal/errors"
	"github.com/isdelr/readtrack/internal/models"
)

// CookieName is the session cookie carrying the JWT.
const CookieName = "token"

// Claims defines the JWT claims structure.
type Claims struct {
	ReaderID string `json:"readerId"`
	Username string `json:"username"`
	IsStaff  bool   `json:"isStaff"`
	jwt.RegisteredClaims
}

type contextKey string

// ReaderClaimsKey is the context key for reader claims.
const ReaderClaimsKey = contextKey("readerClaims")

// Manager issues and validates session tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
}

// NewManager creates a Manager signing with secret. secure marks cookies Secure.
func NewManager(secret string, ttl time.Duration, secure bool) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl, secure: secure}
}

// Issue creates a new JWT for a given reader.
func (m *Manager) Issue(reader models.Reader) (string, error) {
	now := time.Now()
	claims := &Claims{
		ReaderID: reader.ID,
		Username: reader.Username,
		IsStaff:  reader.IsStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   reader.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses and validates a JWT string.
func (m *Manager) Validate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.ReaderID == "" {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// SetCookie stores token in the session cookie.
func (m *Manager) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Expires:  time.Now().Add(m.ttl),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
}

// ClearCookie expires the session cookie.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
}

// tokenFromRequest reads the Authorization header first, then the cookie.
func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if tokenStr, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(tokenStr)
		}
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func (m *Manager) authenticate(r *http.Request) (*Claims, error) {
	tokenStr := tokenFromRequest(r)
	if tokenStr == "" {
		return nil, errors.New("missing auth token")
	}
	return m.Validate(tokenStr)
}

// Middleware protects API routes, answering 401 when no valid session is present.
func (m *Manager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := m.authenticate(r)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected unauthenticated request")
				writeError(w, errAuthRequired)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// ViewMiddleware protects page routes, redirecting anonymous visitors to loginPath.
func (m *Manager) ViewMiddleware(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := m.authenticate(r)
			if err != nil {
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireStaff rejects authenticated readers without the staff flag. It must run after Middleware.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, errAuthRequired)
			return
		}
		if !claims.IsStaff {
			log.Warn().Str("reader_id", claims.ReaderID).Str("path", r.URL.Path).Msg("Staff-only route refused")
			writeError(w, errors.Forbidden("Staff access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ReaderClaimsKey, claims)
}

// ClaimsFromContext returns the claims stored by the middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ReaderClaimsKey).(*Claims)
	return claims, ok && claims != nil
}

var errAuthRequired = errors.Unauthorized("Authentication required")

func writeError(w http.ResponseWriter, err *errors.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Message})
}

package handlers

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"sort"
	"strings"

	"github.com/go-playground/form/v4"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/readtrack/internal/auth"
	"github.com/isdelr/readtrack/internal/errors"
)

// maxBodyBytes bounds request bodies read by decodeRequest.
const maxBodyBytes = 1 << 20

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps err to its HTTP status and writes an {"error": ...} body.
// Errors without a domain code are logged and reported as a generic 500.
func writeError(w http.ResponseWriter, err error) {
	writeErrorStatus(w, errors.StatusOf(err), err)
}

// writeErrorStatus is writeError with the status chosen by the caller.
func writeErrorStatus(w http.ResponseWriter, status int, err error) {
	var domainErr *errors.Error
	if !errors.As(err, &domainErr) {
		log.Error().Err(err).Msg("Unhandled error")
		writeJSON(w, status, map[string]string{"error": "Internal server error"})
		return
	}

	body := map[string]any{"error": domainErr.Message}
	if domainErr.Details != nil {
		body["details"] = domainErr.Details
	}
	writeJSON(w, status, body)
}

// formDecoder binds urlencoded bodies by each field's `form` tag.
var formDecoder = form.NewDecoder()

// decodeRequest fills dst from a JSON body, or from form values for any other
// content type.
func decodeRequest(r *http.Request, dst any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
		if err != nil && err != io.EOF {
			return errors.Validation("Invalid request body")
		}
		return nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return errors.Validation("Invalid form body")
	}
	if err := formDecoder.Decode(dst, r.PostForm); err != nil {
		var decodeErrs form.DecodeErrors
		if !errors.As(err, &decodeErrs) {
			return err
		}
		fields := make([]string, 0, len(decodeErrs))
		details := make(map[string]string, len(decodeErrs))
		for field := range decodeErrs {
			fields = append(fields, field)
			details[field] = "is invalid"
		}
		sort.Strings(fields)
		return errors.ValidationWithDetails(strings.Join(fields, ", ")+" is invalid", details)
	}
	return nil
}

// currentClaims returns the session claims placed on the context by the auth middleware.
func currentClaims(r *http.Request) *auth.Claims {
	claims, _ := auth.ClaimsFromContext(r.Context())
	return claims
}

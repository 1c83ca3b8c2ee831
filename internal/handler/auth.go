package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scorezilla/scorezilla/internal/domain"
)

type contextKey string

// subjectKey carries the verified token subject through the request context
const subjectKey contextKey = "subject"

// SubjectFromContext returns the verified subject of the request's
// credential, if any
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok
}

// TokenRequest is the request body for credential issuance
type TokenRequest struct {
	Subject string `json:"subject,omitempty"`
}

// TokenResponse is the response body for credential issuance
type TokenResponse struct {
	Token     string `json:"token"`
	Subject   string `json:"subject"`
	ExpiresAt string `json:"expiresAt"`
}

// IssueToken issues a bearer credential. A request naming a subject
// gets the credentialed TTL; an empty body gets an anonymous random
// subject with the longer anonymous TTL.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	subject := strings.TrimSpace(req.Subject)
	ttl := h.auth.TokenTTL
	if subject == "" {
		subject = uuid.New().String()
		ttl = h.auth.AnonTokenTTL
	}

	credential, err := h.tokens.Issue(subject, ttl, nil)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, TokenResponse{
		Token:     credential,
		Subject:   subject,
		ExpiresAt: time.Now().Add(ttl).UTC().Format(time.RFC3339),
	})
}

// requireAuth verifies the bearer credential on mutating operations and
// stores its subject in the request context
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
			return
		}

		payload, err := h.tokens.Verify(parts[1])
		if err != nil {
			h.writeDomainError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey, payload.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

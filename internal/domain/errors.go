package domain

import "errors"

// Domain errors
var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrUnauthorized     = errors.New("missing or invalid authorization")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrNotFound         = errors.New("score not found")
	ErrConflict         = errors.New("concurrent write conflict")
	ErrStorage          = errors.New("storage failure")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInternalError    = errors.New("internal server error")
)

// IsAuthError checks if an error is an authentication type error
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrUnauthorized)
}

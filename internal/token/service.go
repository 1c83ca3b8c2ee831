// Package token issues and verifies self-contained HMAC-SHA256 signed
// bearer credentials. Verification is fully stateless: any instance
// holding the same secret can validate a credential issued by any other.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scorezilla/scorezilla/internal/domain"
)

const (
	algHMACSHA256  = "HS256"
	credentialType = "JWT"
)

// Service signs and verifies bearer credentials with a shared secret
type Service struct {
	secret []byte
	now    func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source, used by tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a token service. The secret must be non-empty.
func NewService(secret string, opts ...Option) (*Service, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	s := &Service{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue creates a signed credential for subject valid for ttl. Extra
// claims are merged into the payload; sub, iat and exp always win.
func (s *Service) Issue(subject string, ttl time.Duration, extraClaims map[string]interface{}) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: empty subject", domain.ErrInvalidPayload)
	}
	now := s.now().Unix()

	payload := make(map[string]interface{}, len(extraClaims)+3)
	for k, v := range extraClaims {
		payload[k] = v
	}
	payload["sub"] = subject
	payload["iat"] = now
	payload["exp"] = now + int64(ttl.Seconds())

	signingInput, err := encodeParts(Header{Alg: algHMACSHA256, Typ: credentialType}, payload)
	if err != nil {
		return "", err
	}

	return signingInput + "." + s.sign(signingInput), nil
}

// Verify checks a credential's structure, signature and expiry, and
// returns its decoded payload.
func (s *Service) Verify(credential string) (*domain.TokenPayload, error) {
	parts := strings.Split(credential, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected three segments", domain.ErrMalformedToken)
	}

	signature, err := decodeBase64URL(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: bad signature segment", domain.ErrMalformedToken)
	}
	expected := s.mac(parts[0] + "." + parts[1])
	if !hmac.Equal(signature, expected) {
		return nil, domain.ErrInvalidSignature
	}

	var claims map[string]interface{}
	if err := decodeSegment(parts[1], &claims); err != nil {
		return nil, err
	}

	payload := &domain.TokenPayload{Claims: claims}
	if sub, ok := claims["sub"].(string); ok {
		payload.Subject = sub
	}
	if iat, ok := claims["iat"].(float64); ok {
		payload.IssuedAt = time.Unix(int64(iat), 0)
	}
	if exp, ok := claims["exp"].(float64); ok {
		payload.ExpiresAt = time.Unix(int64(exp), 0)
		if s.now().Unix() > int64(exp) {
			return nil, domain.ErrTokenExpired
		}
	}

	return payload, nil
}

// sign returns the base64url-encoded HMAC of data
func (s *Service) sign(data string) string {
	return base64.RawURLEncoding.EncodeToString(s.mac(data))
}

// mac computes the raw HMAC-SHA256 of data under the service secret
func (s *Service) mac(data string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(data))
	return h.Sum(nil)
}

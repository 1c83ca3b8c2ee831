package token

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scorezilla/scorezilla/internal/domain"
)

// Header describes the signing scheme of a credential
type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// encodeSegment serializes v as JSON and base64url-encodes it without padding
func encodeSegment(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding segment: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// decodeSegment reverses encodeSegment into out, tolerating padded input
func decodeSegment(segment string, out interface{}) error {
	data, err := decodeBase64URL(segment)
	if err != nil {
		return fmt.Errorf("%w: bad base64url segment", domain.ErrMalformedToken)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: bad JSON segment", domain.ErrMalformedToken)
	}
	return nil
}

// decodeBase64URL accepts base64url input with or without padding
func decodeBase64URL(s string) ([]byte, error) {
	if strings.ContainsRune(s, '=') {
		return base64.URLEncoding.DecodeString(s)
	}
	return base64.RawURLEncoding.DecodeString(s)
}

// encodeParts joins an encoded header and payload into the signing input
func encodeParts(header Header, payload map[string]interface{}) (string, error) {
	headerB, err := encodeSegment(header)
	if err != nil {
		return "", err
	}
	payloadB, err := encodeSegment(payload)
	if err != nil {
		return "", err
	}
	return headerB + "." + payloadB, nil
}

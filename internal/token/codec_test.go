package token

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorezilla/scorezilla/internal/domain"
)

func TestEncodeSegment(t *testing.T) {
	t.Run("produces unpadded base64url", func(t *testing.T) {
		segment, err := encodeSegment(map[string]string{"sub": "u1"})
		require.NoError(t, err)
		assert.NotContains(t, segment, "=")
		assert.NotContains(t, segment, "+")
		assert.NotContains(t, segment, "/")
	})

	t.Run("round-trips through decodeSegment", func(t *testing.T) {
		in := map[string]interface{}{"sub": "u1", "exp": float64(42)}
		segment, err := encodeSegment(in)
		require.NoError(t, err)

		var out map[string]interface{}
		require.NoError(t, decodeSegment(segment, &out))
		assert.Equal(t, in, out)
	})
}

func TestDecodeSegment(t *testing.T) {
	t.Run("accepts padded input", func(t *testing.T) {
		padded := base64.URLEncoding.EncodeToString([]byte(`{"sub":"ann"}`))
		require.Contains(t, padded, "=")

		var out map[string]interface{}
		require.NoError(t, decodeSegment(padded, &out))
		assert.Equal(t, "ann", out["sub"])
	})

	t.Run("rejects invalid base64url", func(t *testing.T) {
		var out map[string]interface{}
		err := decodeSegment("not%valid*base64", &out)
		assert.ErrorIs(t, err, domain.ErrMalformedToken)
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		segment := base64.RawURLEncoding.EncodeToString([]byte("{not json"))
		var out map[string]interface{}
		err := decodeSegment(segment, &out)
		assert.ErrorIs(t, err, domain.ErrMalformedToken)
	})
}

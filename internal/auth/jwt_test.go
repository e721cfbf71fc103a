package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodycam/backend/internal/apperrors"
)

var testSubject = uuid.MustParse("0c6f4a52-8d7e-4f0c-b3b5-4c9b5f3a2e11")

// unsignedCredential builds header.payload.sig with unpadded base64url segments.
func unsignedCredential(t *testing.T, claims map[string]any) (string, string) {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"ES256","typ":"JWT"}`))
	raw, err := json.Marshal(claims)
	require.NoError(t, err)
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return header + "." + payload + ".c2lnbmF0dXJl", payload
}

func TestPaddingFor(t *testing.T) {
	for n, want := range map[int]int{0: 0, 1: 3, 2: 2, 3: 1, 4: 0, 5: 3, 6: 2, 7: 1, 8: 0} {
		assert.Equal(t, want, PaddingFor(n), "length %d", n)
		assert.Zero(t, (n+PaddingFor(n))%4, "length %d", n)
	}
}

func TestDecodeSegment_AllResidues(t *testing.T) {
	for size := 0; size < 32; size++ {
		raw := make([]byte, size)
		for i := range raw {
			raw[i] = byte(0xf0 + i) // high bytes force '-' and '_' into the url alphabet
		}
		seg := base64.RawURLEncoding.EncodeToString(raw)

		got, err := DecodeSegment(seg)
		require.NoError(t, err, "size %d (len%%4=%d)", size, len(seg)%4)
		assert.Equal(t, raw, got)
	}
}

func TestDecodeSegment_AcceptsPaddedInput(t *testing.T) {
	got, err := DecodeSegment(base64.URLEncoding.EncodeToString([]byte("ab")))
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), got)
}

func TestDecodeSegment_ResidueOneFailsWithoutPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		_, err := DecodeSegment("abcde")
		assert.Error(t, err)
	})
}

func TestVerifier_Verify_PayloadLengths(t *testing.T) {
	v := NewVerifier("")
	residues := map[int]bool{}
	for pad := 0; pad < 8; pad++ {
		token, payload := unsignedCredential(t, map[string]any{
			"sub":   testSubject.String(),
			"role":  RoleAuthenticated,
			"email": strings.Repeat("e", pad) + "@example.com",
		})
		residues[len(payload)%4] = true

		id, err := v.Verify("Bearer " + token)
		require.NoError(t, err, "payload length %d", len(payload))
		assert.Equal(t, testSubject, id.SubjectID)
		assert.Equal(t, strings.Repeat("e", pad)+"@example.com", id.Email)
	}
	assert.Len(t, residues, 3, "payloads should cover residues 0, 2 and 3")
}

func TestVerifier_Verify_Rejects(t *testing.T) {
	v := NewVerifier("")
	valid := map[string]any{"sub": testSubject.String(), "role": RoleAuthenticated}
	expired := map[string]any{"sub": testSubject.String(), "role": RoleAuthenticated, "exp": time.Now().Add(-time.Minute).Unix()}
	noSub := map[string]any{"role": RoleAuthenticated}
	anon := map[string]any{"sub": testSubject.String(), "role": "anon"}
	badSub := map[string]any{"sub": "not-a-uuid", "role": RoleAuthenticated}

	tok := func(c map[string]any) string { s, _ := unsignedCredential(t, c); return s }

	tests := []struct {
		name   string
		bearer string
	}{
		{"empty", ""},
		{"bearer prefix only", "Bearer "},
		{"two segments", "a.b"},
		{"garbage payload", "a.!!!.c"},
		{"payload not json", "a." + base64.RawURLEncoding.EncodeToString([]byte("nope")) + ".c"},
		{"missing subject", tok(noSub)},
		{"anonymous role", tok(anon)},
		{"subject not uuid", tok(badSub)},
		{"expired", tok(expired)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.bearer)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrUnauthenticated))
		})
	}

	_, err := v.Verify(tok(valid))
	assert.NoError(t, err, "bearer prefix is optional")
}

func TestVerifier_Verify_Signed(t *testing.T) {
	const secret = "super-secret-jwt-token-with-at-least-32-characters"
	sign := func(key string, claims Claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
		require.NoError(t, err)
		return s
	}
	claims := Claims{
		Email: "worker@example.com",
		Role:  RoleAuthenticated,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testSubject.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	v := NewVerifier(secret)

	id, err := v.Verify("Bearer " + sign(secret, claims))
	require.NoError(t, err)
	assert.Equal(t, testSubject, id.SubjectID)

	_, err = v.Verify("Bearer " + sign("another-secret-of-sufficient-length-123", claims))
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	unsigned, _ := unsignedCredential(t, map[string]any{"sub": testSubject.String(), "role": RoleAuthenticated})
	_, err = v.Verify(unsigned)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	claims.Subject = ""
	_, err = v.Verify(sign(secret, claims))
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

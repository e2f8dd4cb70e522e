package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testProject = "demo-history"
	testKid     = "kid-1"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// RSA generation is slow; share one key across the package's tests.
var testKey = sync.OnceValue(func() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return key
})

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            issuerPrefix + testProject,
		"aud":            testProject,
		"sub":            "user-1",
		"iat":            testNow.Add(-time.Minute).Unix(),
		"exp":            testNow.Add(time.Hour).Unix(),
		"auth_time":      testNow.Add(-time.Minute).Unix(),
		"email":          "alice@example.com",
		"email_verified": true,
		"firebase":       map[string]any{"sign_in_provider": "password"},
	}
}

func signToken(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	raw, err := tok.SignedString(testKey())
	require.NoError(t, err)
	return raw
}

func newTestVerifier(t *testing.T) *FirebaseVerifier {
	t.Helper()
	v, err := NewFirebaseVerifier(testProject, StaticKeySource{testKid: &testKey().PublicKey})
	require.NoError(t, err)
	v.now = func() time.Time { return testNow }
	return v
}

func TestNewFirebaseVerifier_RequiresArguments(t *testing.T) {
	_, err := NewFirebaseVerifier("", StaticKeySource{})
	assert.Error(t, err)

	_, err = NewFirebaseVerifier(testProject, nil)
	assert.Error(t, err)
}

func TestVerify_ValidToken(t *testing.T) {
	v := newTestVerifier(t)

	tok, err := v.Verify(context.Background(), signToken(t, testKid, validClaims()))
	require.NoError(t, err)

	assert.Equal(t, "user-1", tok.UID)
	require.NotNil(t, tok.Email)
	assert.Equal(t, "alice@example.com", *tok.Email)
	assert.True(t, tok.EmailVerified)
	assert.Equal(t, "password", tok.SignInProvider)
	assert.False(t, tok.IsAnonymous())
	assert.True(t, tok.Expires.Equal(testNow.Add(time.Hour)))
	assert.Equal(t, "user-1", tok.Claims["sub"])
}

func TestVerify_AnonymousAndEmailless(t *testing.T) {
	v := newTestVerifier(t)
	claims := validClaims()
	delete(claims, "email")
	claims["firebase"] = map[string]any{"sign_in_provider": "anonymous"}

	tok, err := v.Verify(context.Background(), signToken(t, testKid, claims))
	require.NoError(t, err)

	assert.Nil(t, tok.Email)
	assert.True(t, tok.IsAnonymous())
}

func TestVerify_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		kid    string
		mutate func(jwt.MapClaims)
	}{
		{"wrong audience", testKid, func(c jwt.MapClaims) { c["aud"] = "other-project" }},
		{"wrong issuer", testKid, func(c jwt.MapClaims) { c["iss"] = "https://example.com/" + testProject }},
		{"expired", testKid, func(c jwt.MapClaims) { c["exp"] = testNow.Add(-time.Second).Unix() }},
		{"missing exp", testKid, func(c jwt.MapClaims) { delete(c, "exp") }},
		{"issued in the future", testKid, func(c jwt.MapClaims) { c["iat"] = testNow.Add(time.Hour).Unix() }},
		{"empty subject", testKid, func(c jwt.MapClaims) { c["sub"] = "" }},
		{"long subject", testKid, func(c jwt.MapClaims) { c["sub"] = strings.Repeat("u", 129) }},
		{"missing auth_time", testKid, func(c jwt.MapClaims) { delete(c, "auth_time") }},
		{"auth_time in the future", testKid, func(c jwt.MapClaims) { c["auth_time"] = testNow.Add(time.Hour).Unix() }},
		{"unknown kid", "kid-2", func(jwt.MapClaims) {}},
		{"missing kid", "", func(jwt.MapClaims) {}},
	}

	v := newTestVerifier(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.mutate(claims)

			_, err := v.Verify(context.Background(), signToken(t, tt.kid, claims))
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}

func TestVerify_RejectsNonRS256(t *testing.T) {
	v := newTestVerifier(t)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	tok.Header["kid"] = testKid
	raw, err := tok.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsGarbage(t *testing.T) {
	v := newTestVerifier(t)

	_, err := v.Verify(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsTamperedPayload(t *testing.T) {
	v := newTestVerifier(t)
	raw := signToken(t, testKid, validClaims())
	other := signToken(t, testKid, jwt.MapClaims{"sub": "mallory"})

	parts := strings.Split(raw, ".")
	parts[1] = strings.Split(other, ".")[1]

	_, err := v.Verify(context.Background(), strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

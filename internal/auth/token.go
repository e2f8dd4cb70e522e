package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken wraps every reason a bearer token is rejected.
var ErrInvalidToken = errors.New("auth: invalid token")

const (
	issuerPrefix      = "https://securetoken.google.com/"
	maxSubjectLength  = 128
	anonymousProvider = "anonymous"
)

// Token is the subset of a verified Firebase ID token the API relies on.
// It is JSON-encoded when stored in the token cache.
type Token struct {
	UID            string         `json:"uid"`
	Email          *string        `json:"email,omitempty"`
	EmailVerified  bool           `json:"emailVerified"`
	SignInProvider string         `json:"signInProvider"`
	Expires        time.Time      `json:"expires"`
	Claims         map[string]any `json:"claims"`
}

// IsAnonymous reports whether the token was issued to an anonymous sign-in.
func (t *Token) IsAnonymous() bool {
	return t.SignInProvider == anonymousProvider
}

// Verifier turns a raw bearer token into a verified Token.
type Verifier interface {
	Verify(ctx context.Context, raw string) (*Token, error)
}

// FirebaseVerifier checks ID tokens issued by Firebase Authentication for a
// single project: RS256 signature against Google's published keys, audience,
// issuer, expiry and issued-at.
type FirebaseVerifier struct {
	projectID string
	keys      KeySource
	now       func() time.Time
}

func NewFirebaseVerifier(projectID string, keys KeySource) (*FirebaseVerifier, error) {
	if projectID == "" {
		return nil, errors.New("auth: firebase project id is required")
	}
	if keys == nil {
		return nil, errors.New("auth: key source is required")
	}
	return &FirebaseVerifier{projectID: projectID, keys: keys, now: time.Now}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, raw string) (*Token, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid header")
			}
			return v.keys.PublicKey(ctx, kid)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.projectID),
		jwt.WithIssuer(issuerPrefix+v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	sub, _ := claims.GetSubject()
	if sub == "" || len(sub) > maxSubjectLength {
		return nil, fmt.Errorf("%w: subject must be 1-%d characters", ErrInvalidToken, maxSubjectLength)
	}
	authTime, ok := claims["auth_time"].(float64)
	if !ok || time.Unix(int64(authTime), 0).After(v.now()) {
		return nil, fmt.Errorf("%w: auth_time missing or in the future", ErrInvalidToken)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: unreadable exp", ErrInvalidToken)
	}

	tok := &Token{
		UID:     sub,
		Expires: exp.Time,
		Claims:  map[string]any(claims),
	}
	if email, ok := claims["email"].(string); ok && email != "" {
		tok.Email = &email
	}
	tok.EmailVerified, _ = claims["email_verified"].(bool)
	if fb, ok := claims["firebase"].(map[string]any); ok {
		tok.SignInProvider, _ = fb["sign_in_provider"].(string)
	}
	return tok, nil
}

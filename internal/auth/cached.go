package auth

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"
)

// TokenCache stores verified tokens keyed by a hash of the raw credential.
// GetToken returns (nil, nil) on a miss.
type TokenCache interface {
	GetToken(ctx context.Context, key string) (*Token, error)
	SetToken(ctx context.Context, key string, tok *Token, ttl time.Duration) error
}

// CachedVerifier memoises another Verifier. Cache failures are logged and
// fall through to full verification.
type CachedVerifier struct {
	next   Verifier
	cache  TokenCache
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewCachedVerifier(next Verifier, cache TokenCache, ttl time.Duration, logger *slog.Logger) *CachedVerifier {
	return &CachedVerifier{next: next, cache: cache, ttl: ttl, logger: logger, now: time.Now}
}

func (v *CachedVerifier) Verify(ctx context.Context, raw string) (*Token, error) {
	key := CacheKey(raw)

	cached, err := v.cache.GetToken(ctx, key)
	if err != nil {
		v.logger.Warn("token cache read failed", "error", err)
	} else if cached != nil && cached.Expires.After(v.now()) {
		return cached, nil
	}

	tok, err := v.next.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}

	ttl := min(v.ttl, tok.Expires.Sub(v.now()))
	if ttl > 0 {
		if err := v.cache.SetToken(ctx, key, tok, ttl); err != nil {
			v.logger.Warn("token cache write failed", "error", err)
		}
	}
	return tok, nil
}

// CacheKey hashes a raw token so credentials are never stored verbatim.
func CacheKey(raw string) string {
	sum := blake2b.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

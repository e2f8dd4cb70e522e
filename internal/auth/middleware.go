package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/history-api/internal/apperror"
)

// UserProvisioner records first sight of an authenticated user.
type UserProvisioner interface {
	EnsureUser(ctx context.Context, uid string, email *string) error
}

// ErrorWriter renders an error response. The handler package supplies the
// envelope writer so this package stays free of response formatting.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// GateConfig wires RequireAuth.
type GateConfig struct {
	Verifier    Verifier
	Provisioner UserProvisioner
	Admins      AdminList
	Logger      *slog.Logger
	WriteError  ErrorWriter

	// OnProvisionFailure, if set, is called after a failed background
	// EnsureUser. Used for metrics.
	OnProvisionFailure func(error)
}

// RequireAuth enforces a verified, non-anonymous Firebase bearer token and
// stores the resulting Principal in the request context.
//
// After a successful check the user row is provisioned in a detached
// goroutine; the request never waits on it and never sees its error.
func RequireAuth(cfg GateConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				cfg.WriteError(w, r, err)
				return
			}

			tok, err := cfg.Verifier.Verify(r.Context(), raw)
			if err != nil {
				cfg.Logger.Warn("token rejected", "error", err)
				cfg.WriteError(w, r, apperror.Unauthenticated("invalid or expired token"))
				return
			}
			if tok.IsAnonymous() {
				cfg.WriteError(w, r, apperror.Forbidden("anonymous users are not allowed"))
				return
			}

			p := &Principal{
				UID:         tok.UID,
				Email:       tok.Email,
				IsSiteAdmin: cfg.Admins.Contains(tok.Email),
				Claims:      tok.Claims,
			}

			if cfg.Provisioner != nil {
				go provision(context.WithoutCancel(r.Context()), cfg, p.UID, p.Email)
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func provision(ctx context.Context, cfg GateConfig, uid string, email *string) {
	if err := cfg.Provisioner.EnsureUser(ctx, uid, email); err != nil {
		cfg.Logger.Error("user provisioning failed", "uid", uid, "error", err)
		if cfg.OnProvisionFailure != nil {
			cfg.OnProvisionFailure(err)
		}
	}
}

// bearerToken extracts the credential from "Authorization: Bearer <token>".
// The scheme match is case-insensitive.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperror.Unauthenticated("missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", apperror.Unauthenticated("invalid authorization header")
	}
	return token, nil
}

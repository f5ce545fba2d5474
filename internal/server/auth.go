package server

import (
	"context"
	"net/http"
)

// Principal is the authenticated caller attached to the exchange by the
// credential verifier.
type Principal struct {
	Subject  string
	TenantID string
}

type principalKey struct{}

// WithPrincipal attaches the authenticated principal to the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// CredentialVerifier validates the request's credentials and produces the
// authenticated principal. Verification itself is an external collaborator:
// the gateway only reserves this stage's slot, after slug extraction (the
// resolved tenant is input to authentication) and before canonicalization.
type CredentialVerifier interface {
	Verify(r *http.Request) (*Principal, error)
}

// AuthMiddleware runs the plugged-in credential verifier, if any, and
// attaches the resulting principal to the exchange. A nil verifier makes the
// stage a pass-through.
func AuthMiddleware(verifier CredentialVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := verifier.Verify(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			if principal == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

package api

import (
	"context"
	"net/http"
	"reviewq/internal/domain"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	ctxPrincipalKey contextKey = "principal"
	principalHeader            = "X-Principal"
)

// principalHandler resolves the authenticated caller. With a secret, the
// platform-issued HS256 bearer token's subject is the principal; without one
// the X-Principal header set by the fronting gateway is trusted.
func principalHandler(secret string) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var p domain.Principal
			if secret == "" {
				p = domain.Principal(strings.TrimSpace(r.Header.Get(principalHeader)))
			} else {
				sub, err := subjectFromBearer(r, secret)
				if err != nil {
					writeError(w, http.StatusUnauthorized, err.Error())
					return
				}
				p = domain.Principal(sub)
			}
			if p == "" {
				writeError(w, http.StatusUnauthorized, "missing principal")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func subjectFromBearer(r *http.Request, secret string) (string, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return "", errMalformedAuth
	}
	tok, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", errInvalidToken
	}
	return tok.Claims.GetSubject()
}

type authError string

func (e authError) Error() string { return string(e) }

const (
	errMalformedAuth authError = "missing or malformed Authorization header"
	errInvalidToken  authError = "invalid token"
)

// PrincipalFromCtx returns the authenticated caller or "".
func PrincipalFromCtx(ctx context.Context) domain.Principal {
	p, _ := ctx.Value(ctxPrincipalKey).(domain.Principal)
	return p
}

func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey, p)
}

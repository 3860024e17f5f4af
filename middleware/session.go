package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/julienschmidt/httprouter"

	"github.com/videoreport/api/errors"
)

type contextKey string

const userIDContextKey contextKey = "user_id"

// sessionClaims is the gateway's session token shape: a subject claim
// naming the user, nothing else this module needs.
type sessionClaims struct {
	jwt.RegisteredClaims
}

// RequireSession validates the caller's session bearer token (§6's
// "session cookie/JWT" auth) and injects the authenticated user id into
// the request context. Grounded on the teacher's handlers/accesscontrol
// package use of golang-jwt/jwt/v4 for webhook/playback token validation,
// adapted here from playback-gating claims to a plain subject-as-user-id
// session token.
func RequireSession(secret string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			errors.WriteHTTPUnauthorized(w, "no authorization header", nil)
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims := &sessionClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			errors.WriteHTTPUnauthorized(w, "invalid session token", err)
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, claims.Subject)
		next(w, r.WithContext(ctx), ps)
	}
}

// UserIDFromContext returns the user id RequireSession injected, or "" if
// none is present (e.g. in a handler unit test that bypasses the
// middleware).
func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(userIDContextKey).(string)
	return uid
}

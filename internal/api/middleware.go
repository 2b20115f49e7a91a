package api

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey int

const actorKey ctxKey = iota

// anonymousActor attributes requests on servers running without token auth
// that also omit X-Actor.
const anonymousActor = "api"

// authenticate resolves the acting user. With an issuer configured a bearer
// token is mandatory; otherwise X-Actor is trusted.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get("X-Actor"))
		if s.issuer != nil {
			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if header == "" || token == header {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bearer token required"})
				return
			}
			claims, err := s.issuer.VerifyToken(token)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}
			actor = claims.Actor
		}
		if actor == "" {
			actor = anonymousActor
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

func actorFrom(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey).(string); ok {
		return v
	}
	return anonymousActor
}

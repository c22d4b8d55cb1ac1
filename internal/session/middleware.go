package session

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Header carries the session id between client and server.
const Header = "X-Session-Id"

type ctxKey struct{}

// Middleware resolves the session id from the request header, generating a
// new one when absent, and echoes it back on the response. Only the id is
// placed in the context; session data is loaded explicitly by the caller.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(Header))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IDFromContext returns the id placed by Middleware, or "".
func IDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

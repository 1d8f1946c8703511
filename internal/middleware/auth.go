package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dukerupert/prepper/internal/auth"
	"github.com/dukerupert/prepper/internal/model"
)

// UserLookup is the part of the user store authentication needs.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

var errInactive = errors.New("user not found or inactive")

// Authenticate verifies a bearer token and loads its active user.
func Authenticate(ctx context.Context, tokens *auth.TokenIssuer, users UserLookup, token string) (*model.User, error) {
	id, err := tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	u, err := users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.Active {
		return nil, errInactive
	}
	return u, nil
}

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireAuth validates the bearer token and populates AuthContext.
func RequireAuth(tokens *auth.TokenIssuer, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			u, err := Authenticate(r.Context(), tokens, users, token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{
				UserID:   u.ID,
				Username: u.Username,
				Admin:    u.Admin,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}

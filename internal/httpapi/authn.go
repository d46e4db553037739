package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"inkwell.app/internal/auth"
	"inkwell.app/internal/obs"
	"inkwell.app/internal/workspace"
)

const (
	authHeader   = "Authorization"
	bearerScheme = "Bearer "
)

// withAuth authenticates the bearer token, attaches the user and raw
// token to the context and keeps the session row for this (user, token)
// pair alive. Sessions are keyed by the token's id, never the bearer
// string itself, so the sessions table holds no redeemable secret.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		user, rec, err := a.auth.VerifyToken(r.Context(), raw)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		if a.sessions != nil {
			if _, err := a.sessions.Track(r.Context(), user.ID, rec.ID, clientIP(r), r.UserAgent()); err != nil {
				obs.Logger().Error().Err(err).Msg("session track failed")
			} else if err := a.sessions.Touch(r.Context(), rec.ID); err != nil {
				obs.Logger().Error().Err(err).Msg("session touch failed")
			}
		}

		ctx := auth.ContextWithUser(r.Context(), user)
		ctx = auth.ContextWithToken(ctx, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withWorkspace authorizes the route's workspace against the requirement
// and attaches the grant to the context.
func (a *API) withWorkspace(req workspace.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _ := auth.UserFromContext(r.Context())
			workspaceID := chi.URLParam(r, "workspaceID")

			grant, err := a.gate.Authorize(r.Context(), workspaceID, user, req)
			if err != nil {
				writeDomainError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(workspace.ContextWithGrant(r.Context(), grant)))
		})
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerScheme)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearerScheme):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

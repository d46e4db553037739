package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"inkwell.app/internal/audit"
	"inkwell.app/internal/auth"
	"inkwell.app/internal/token"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	bearer, rec, user, err := a.auth.Login(r.Context(), email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			a.audit.Security(r.Context(), audit.EventLoginFailed, "", clientIP(r),
				map[string]string{"email": email})
		}
		writeDomainError(w, r, err)
		return
	}

	a.audit.Security(r.Context(), audit.EventLogin, user.ID, clientIP(r), nil)

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     bearer,
		ExpiresAt: rec.ExpiresAt,
		UserID:    user.ID,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	raw, _ := auth.TokenFromContext(r.Context())

	if err := a.auth.Logout(r.Context(), raw); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if a.sessions != nil {
		if id, _, ok := token.Decode(token.PrefixAccess, raw); ok {
			if sess, err := a.sessions.Track(r.Context(), user.ID, id, clientIP(r), r.UserAgent()); err == nil {
				_ = a.sessions.Deactivate(r.Context(), sess.ID)
			}
		}
	}

	a.audit.Security(r.Context(), audit.EventLogout, user.ID, clientIP(r), nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

type redeemRequest struct {
	Token string `json:"token"`
}

// handleRedeem consumes a single-use token (email change confirmations
// and the like). The same bearer string can never be redeemed twice.
func (a *API) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := a.auth.RedeemToken(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			a.audit.Security(r.Context(), audit.EventTokenRejected, "", clientIP(r), nil)
		}
		writeDomainError(w, r, err)
		return
	}

	a.audit.Security(r.Context(), audit.EventTokenRedeemed, rec.UserID, clientIP(r),
		map[string]string{"purpose": rec.Purpose})

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":         rec.UserID,
		"purpose":         rec.Purpose,
		"protected_value": rec.ProtectedValue,
	})
}

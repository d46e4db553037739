package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"inkwell.app/internal/audit"
	"inkwell.app/internal/auth"
	"inkwell.app/internal/session"
	"inkwell.app/internal/token"
)

type sessionResponse struct {
	ID           string    `json:"id"`
	IPAddress    string    `json:"ip_address"`
	Browser      string    `json:"browser"`
	OS           string    `json:"os"`
	DeviceKind   string    `json:"device_kind"`
	LastActivity time.Time `json:"last_activity"`
	IsActive     bool      `json:"is_active"`
	Current      bool      `json:"current"`
	CreatedAt    time.Time `json:"created_at"`
}

func toSessionResponse(s *session.Session, currentTokenID string) sessionResponse {
	return sessionResponse{
		ID:           s.ID,
		IPAddress:    s.IPAddress,
		Browser:      s.Device.Browser,
		OS:           s.Device.OS,
		DeviceKind:   s.Device.Kind,
		LastActivity: s.LastActivity,
		IsActive:     s.IsActive,
		Current:      s.Token == currentTokenID,
		CreatedAt:    s.CreatedAt,
	}
}

// currentTokenID extracts the id segment of the caller's bearer; sessions
// are keyed by it.
func currentTokenID(r *http.Request) string {
	raw, _ := auth.TokenFromContext(r.Context())
	id, _, _ := token.Decode(token.PrefixAccess, raw)
	return id
}

func (a *API) handleSessionList(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	tokenID := currentTokenID(r)

	sessions, err := a.sessions.ListByUser(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionResponse(s, tokenID))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// handleSessionDeactivate revokes one of the caller's own sessions.
func (a *API) handleSessionDeactivate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	sessions, err := a.sessions.ListByUser(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	var target *session.Session
	for _, s := range sessions {
		if s.ID == sessionID {
			target = s
			break
		}
	}
	if target == nil {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}

	if err := a.sessions.Deactivate(r.Context(), target.ID); err != nil {
		writeDomainError(w, r, err)
		return
	}

	a.audit.Security(r.Context(), audit.EventSessionRevoked, user.ID, clientIP(r),
		map[string]string{"session_id": target.ID})
	writeJSON(w, http.StatusOK, map[string]any{"status": "deactivated"})
}

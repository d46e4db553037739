// Package httpapi is the HTTP surface over the authorization core. It
// maps the domain error taxonomy to statuses; the core packages never
// render responses themselves.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"inkwell.app/internal/audit"
	"inkwell.app/internal/auth"
	"inkwell.app/internal/config"
	"inkwell.app/internal/language"
	"inkwell.app/internal/obs"
	"inkwell.app/internal/session"
	"inkwell.app/internal/workspace"
)

// ReadyProbe checks dependencies for /readyz.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API wires the services to routes.
type API struct {
	cfg         *config.Config
	auth        *auth.Service
	sessions    *session.Tracker
	gate        *workspace.Gate
	workspaces  workspace.Store
	invitations *workspace.InvitationService
	audit       *audit.Service
	languages   *language.Cache
	readyProbe  ReadyProbe
	version     string
}

func New(cfg *config.Config, authSvc *auth.Service, sessions *session.Tracker,
	gate *workspace.Gate, workspaces workspace.Store,
	invitations *workspace.InvitationService, auditSvc *audit.Service,
	languages *language.Cache, rp ReadyProbe, version string) *API {
	return &API{
		cfg:         cfg,
		auth:        authSvc,
		sessions:    sessions,
		gate:        gate,
		workspaces:  workspaces,
		invitations: invitations,
		audit:       auditSvc,
		languages:   languages,
		readyProbe:  rp,
		version:     version,
	}
}

// Handler builds the full middleware chain and route table.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(func(next http.Handler) http.Handler {
		return obs.Instrument(routePattern, next)
	})
	r.Use(RequestID)
	r.Use(Logging)
	r.Use(SecurityHeaders)
	r.Use(CORS)
	r.Use(MaxBodyBytes(a.cfg.MaxBodyBytes))
	r.Use(RateLimit(a.cfg.RateLimitBurst, a.cfg.RateLimitPerSecond))

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Handle("/metrics", obs.MetricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/info", a.handleInfo)
		r.Get("/languages", a.handleLanguages)

		r.Post("/auth/login", a.handleLogin)
		r.Post("/auth/redeem", a.handleRedeem)
		r.Post("/invitations/refuse", a.handleInvitationRefuse)

		// Public site resolution with locale negotiation.
		r.Get("/sites/{workspaceID}", a.handleSite)

		// Everything below requires a bearer token.
		r.Group(func(r chi.Router) {
			r.Use(a.withAuth)

			r.Post("/auth/logout", a.handleLogout)
			r.Get("/me/sessions", a.handleSessionList)
			r.Delete("/me/sessions/{sessionID}", a.handleSessionDeactivate)
			r.Get("/me/security-log", a.handleSecurityLog)

			r.Post("/workspaces", a.handleWorkspaceCreate)
			r.Post("/invitations/accept", a.handleInvitationAccept)

			r.Route("/workspaces/{workspaceID}", func(r chi.Router) {
				r.With(a.withWorkspace(workspace.Requirement{As: workspace.RoleMember})).
					Get("/members", a.handleMemberList)

				r.Group(func(r chi.Router) {
					r.Use(a.withWorkspace(workspace.Requirement{As: workspace.RoleAdmin, RequireActive: true}))
					r.Post("/invitations", a.handleInvitationIssue)
					r.Delete("/members/{userID}", a.handleMemberRemove)
					r.Get("/log", a.handleWorkspaceLog)
				})

				r.Group(func(r chi.Router) {
					r.Use(a.withWorkspace(workspace.Requirement{As: workspace.RoleOwner}))
					r.Put("/members/{userID}/role", a.handleMemberRoleChange)
					r.Post("/suspend", a.handleWorkspaceSuspend)
					r.Post("/reactivate", a.handleWorkspaceReactivate)
				})
			})
		})
	})

	return r
}

// routePattern labels metrics with the chi pattern instead of the raw
// path, so ids do not explode label cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func (a *API) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": a.cfg.AppName,
		"version": a.version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    a.cfg.AppName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	langs := a.languages.All()
	out := make([]map[string]any, 0, len(langs))
	for _, l := range langs {
		out = append(out, map[string]any{
			"code":        l.Code,
			"name":        l.Name,
			"native_name": l.NativeName,
			"is_default":  l.IsDefault,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"languages": out})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{"error": msg}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// writeDomainError maps the core error taxonomy to HTTP statuses. Not
// allowed and not found share a status so responses never reveal whether
// a workspace exists.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var locErr *workspace.UnsupportedLocaleError
	switch {
	case errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, workspace.ErrAdminRequired),
		errors.Is(err, workspace.ErrOwnerRequired),
		errors.Is(err, workspace.ErrNotActive):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, workspace.ErrNotAllowed),
		errors.Is(err, workspace.ErrNotFound),
		errors.Is(err, auth.ErrNotFound),
		errors.Is(err, session.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.As(err, &locErr):
		payload := map[string]any{
			"error":     "unsupported_locale",
			"requested": locErr.Requested,
			"fallback":  locErr.Fallback,
		}
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusUnprocessableEntity, payload)
	default:
		obs.Logger().Error().Err(err).Str("path", r.URL.Path).Msg("internal error")
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"inkwell.app/internal/audit"
	"inkwell.app/internal/auth"
	"inkwell.app/internal/pagination"
	"inkwell.app/internal/workspace"
)

type createWorkspaceRequest struct {
	Name            string   `json:"name"`
	Theme           string   `json:"theme"`
	DefaultLanguage string   `json:"default_language"`
	Languages       []string `json:"languages"`
}

func (a *API) handleWorkspaceCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req createWorkspaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	defLang := a.languages.GetOrDefault(req.DefaultLanguage)
	langs := []string{defLang.Code}
	for _, code := range req.Languages {
		if l, err := a.languages.Get(code); err == nil && l.Code != defLang.Code {
			langs = append(langs, l.Code)
		}
	}

	ws := &workspace.Workspace{
		Name:            name,
		Theme:           req.Theme,
		DefaultLanguage: defLang.Code,
		Languages:       langs,
		Members: []workspace.Member{
			{UserID: user.ID, Role: workspace.RoleOwner},
		},
	}
	if err := a.workspaces.Create(r.Context(), ws); err != nil {
		writeDomainError(w, r, err)
		return
	}

	a.audit.Workspace(r.Context(), audit.EventWorkspaceCreated, ws.ID, user.ID, clientIP(r),
		map[string]string{"name": ws.Name})

	writeJSON(w, http.StatusCreated, toWorkspaceResponse(ws))
}

func (a *API) handleWorkspaceSuspend(w http.ResponseWriter, r *http.Request) {
	a.transitionWorkspace(w, r, workspace.StatusSuspended, audit.EventWorkspaceSuspended)
}

func (a *API) handleWorkspaceReactivate(w http.ResponseWriter, r *http.Request) {
	a.transitionWorkspace(w, r, workspace.StatusActive, audit.EventWorkspaceReactivated)
}

func (a *API) transitionWorkspace(w http.ResponseWriter, r *http.Request, status string, event audit.Event) {
	user, _ := auth.UserFromContext(r.Context())
	grant, _ := workspace.GrantFromContext(r.Context())

	if err := a.workspaces.UpdateStatus(r.Context(), grant.Workspace.ID, status); err != nil {
		writeDomainError(w, r, err)
		return
	}

	a.audit.Workspace(r.Context(), event, grant.Workspace.ID, user.ID, clientIP(r), nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}

type memberResponse struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *API) handleMemberList(w http.ResponseWriter, r *http.Request) {
	grant, _ := workspace.GrantFromContext(r.Context())

	out := make([]memberResponse, 0, len(grant.Workspace.Members))
	for _, m := range grant.Workspace.Members {
		out = append(out, memberResponse{
			UserID:    m.UserID,
			Role:      string(m.Role),
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": out})
}

func (a *API) handleMemberRemove(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	grant, _ := workspace.GrantFromContext(r.Context())
	targetID := chi.URLParam(r, "userID")

	targetRole, isMember := workspace.RoleOf(grant.Workspace, targetID)
	if !isMember {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	// Owners can only be removed by themselves leaving, never by admins.
	if targetRole == workspace.RoleOwner && !grant.Role.Satisfies(workspace.RoleOwner) {
		writeDomainError(w, r, workspace.ErrOwnerRequired)
		return
	}

	if err := a.workspaces.RemoveMember(r.Context(), grant.Workspace.ID, targetID); err != nil {
		writeDomainError(w, r, err)
		return
	}

	a.audit.Workspace(r.Context(), audit.EventMemberRemoved, grant.Workspace.ID, user.ID, clientIP(r),
		map[string]string{"member_id": targetID})
	writeJSON(w, http.StatusOK, map[string]any{"status": "removed"})
}

type roleChangeRequest struct {
	Role string `json:"role"`
}

func (a *API) handleMemberRoleChange(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	grant, _ := workspace.GrantFromContext(r.Context())
	targetID := chi.URLParam(r, "userID")

	var req roleChangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role := workspace.Role(req.Role)
	if !role.Valid() {
		writeError(w, r, http.StatusBadRequest, "invalid role")
		return
	}
	if _, isMember := workspace.RoleOf(grant.Workspace, targetID); !isMember {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}

	if err := a.workspaces.UpdateMemberRole(r.Context(), grant.Workspace.ID, targetID, role); err != nil {
		writeDomainError(w, r, err)
		return
	}

	a.audit.Workspace(r.Context(), audit.EventMemberRoleChanged, grant.Workspace.ID, user.ID, clientIP(r),
		map[string]string{"member_id": targetID, "role": string(role)})
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (a *API) handleInvitationIssue(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	grant, _ := workspace.GrantFromContext(r.Context())

	var req inviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role := workspace.Role(req.Role)
	if req.Role == "" {
		role = workspace.RoleMember
	}

	bearer, inv, err := a.invitations.Issue(r.Context(), grant.Workspace.ID, user.ID, req.Email, role)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	a.audit.Workspace(r.Context(), audit.EventMemberInvited, grant.Workspace.ID, user.ID, clientIP(r),
		map[string]string{"email": inv.Email, "role": string(inv.Role)})

	// The bearer string is shown exactly once; only its hash survives.
	writeJSON(w, http.StatusCreated, map[string]any{
		"invitation_id": inv.ID,
		"token":         bearer,
		"expires_at":    inv.ExpiresAt,
	})
}

type invitationTokenRequest struct {
	Token string `json:"token"`
}

func (a *API) handleInvitationAccept(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req invitationTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	inv, err := a.invitations.Redeem(r.Context(), req.Token, user.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	a.audit.Workspace(r.Context(), audit.EventInvitationAccepted, inv.WorkspaceID, user.ID, clientIP(r),
		map[string]string{"invitation_id": inv.ID, "role": string(inv.Role)})

	writeJSON(w, http.StatusOK, map[string]any{
		"workspace_id": inv.WorkspaceID,
		"role":         string(inv.Role),
	})
}

func (a *API) handleInvitationRefuse(w http.ResponseWriter, r *http.Request) {
	var req invitationTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	inv, err := a.invitations.Refuse(r.Context(), req.Token)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	a.audit.Workspace(r.Context(), audit.EventInvitationRefused, inv.WorkspaceID, "", clientIP(r),
		map[string]string{"invitation_id": inv.ID})

	writeJSON(w, http.StatusOK, map[string]any{"status": "refused"})
}

type workspaceResponse struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Status          string   `json:"status"`
	Theme           string   `json:"theme"`
	DefaultLanguage string   `json:"default_language"`
	Languages       []string `json:"languages"`
}

func toWorkspaceResponse(ws *workspace.Workspace) workspaceResponse {
	return workspaceResponse{
		ID:              ws.ID,
		Name:            ws.Name,
		Status:          ws.Status,
		Theme:           ws.Theme,
		DefaultLanguage: ws.DefaultLanguage,
		Languages:       ws.Languages,
	}
}

// handleSite resolves a workspace for an unauthenticated visitor,
// negotiating the locale. An unsupported ?locale yields a structured
// fallback response instead of a plain failure.
func (a *API) handleSite(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	requested := r.URL.Query().Get("locale")
	if requested == "" {
		if al := r.Header.Get("Accept-Language"); al != "" {
			requested = a.languages.Resolve("", al).Code
		}
	}

	ws, locale, err := a.gate.ResolveSite(r.Context(), workspaceID, requested)
	if err != nil {
		var locErr *workspace.UnsupportedLocaleError
		if errors.As(err, &locErr) && ws != nil {
			// Recoverable: hand the caller the default so it can redirect.
			writeJSON(w, http.StatusOK, map[string]any{
				"workspace":        toWorkspaceResponse(ws),
				"locale":           locErr.Fallback,
				"requested_locale": locErr.Requested,
				"locale_fallback":  true,
			})
			return
		}
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"workspace": toWorkspaceResponse(ws),
		"locale":    locale,
	})
}

// auditQuery parses the shared filter/search/pagination surface of the
// two log endpoints.
func auditQuery(r *http.Request) audit.Query {
	q := audit.Query{Page: pagination.FromRequest(r)}
	values := r.URL.Query()
	q.Filter.UserID = values.Get("user_id")
	q.Filter.Event = audit.Event(values.Get("event"))
	q.Filter.IPAddress = values.Get("ip")
	q.Search = values.Get("search")
	if v := values.Get("date_from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			q.Filter.DateFrom = &t
		}
	}
	if v := values.Get("date_to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			q.Filter.DateTo = &t
		}
	}
	return q
}

// handleSecurityLog returns the caller's own security history.
func (a *API) handleSecurityLog(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	q := auditQuery(r)
	q.Filter.UserID = user.ID

	page, err := a.audit.QuerySecurity(r.Context(), q)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditPage(page))
}

// handleWorkspaceLog returns the workspace's activity log for admins.
func (a *API) handleWorkspaceLog(w http.ResponseWriter, r *http.Request) {
	grant, _ := workspace.GrantFromContext(r.Context())

	page, err := a.audit.QueryWorkspace(r.Context(), grant.Workspace.ID, auditQuery(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditPage(page))
}

type auditEntryResponse struct {
	ID        string            `json:"id"`
	Event     string            `json:"event"`
	UserID    string            `json:"user_id,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func toAuditPage(page pagination.Page[*audit.Entry]) pagination.Page[auditEntryResponse] {
	out := pagination.Page[auditEntryResponse]{
		Data:       make([]auditEntryResponse, 0, len(page.Data)),
		TotalCount: page.TotalCount,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: page.TotalPages,
		HasNext:    page.HasNext,
		HasPrev:    page.HasPrev,
	}
	for _, e := range page.Data {
		out.Data = append(out.Data, auditEntryResponse{
			ID:        e.ID,
			Event:     string(e.Event),
			UserID:    e.UserID,
			IPAddress: e.IPAddress,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

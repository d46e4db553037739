package workspace

import (
	"context"

	"inkwell.app/internal/auth"
	"inkwell.app/internal/obs"
)

// Requirement is what a route demands from the caller. A zero As means
// "load the workspace but do not require membership".
type Requirement struct {
	As            Role
	RequireActive bool
}

// Grant is the successful outcome of an authorization decision: the
// resolved workspace and the caller's role, attached to the request
// context for downstream use.
type Grant struct {
	Workspace *Workspace
	Role      Role
	HasRole   bool
}

// Gate decides allow/deny for workspace-scoped requests.
type Gate struct {
	dir *Directory
}

func NewGate(dir *Directory) *Gate {
	return &Gate{dir: dir}
}

// Authorize evaluates the checks in order, short-circuiting on the first
// failure:
//
//  1. a role requirement with no authenticated user denies as
//     unauthenticated;
//  2. an unknown workspace denies as not-allowed, indistinguishable from
//     having no membership;
//  3. a role requirement with no membership denies as not-allowed;
//  4. admin and owner requirements deny when the tier is too low;
//  5. an active requirement denies on any non-active workspace, regardless
//     of role.
func (g *Gate) Authorize(ctx context.Context, workspaceID string, user *auth.User, req Requirement) (*Grant, error) {
	if req.As != "" && user == nil {
		return g.deny("unauthenticated", auth.ErrUnauthenticated)
	}

	w, err := g.dir.Load(ctx, workspaceID)
	if err != nil {
		if err == ErrNotFound {
			return g.deny("not_allowed", ErrNotAllowed)
		}
		return nil, err
	}

	var role Role
	var hasRole bool
	if user != nil {
		role, hasRole = RoleOf(w, user.ID)
	}

	if req.As != "" {
		if !hasRole {
			return g.deny("not_allowed", ErrNotAllowed)
		}
		switch req.As {
		case RoleAdmin:
			if !role.Satisfies(RoleAdmin) {
				return g.deny("admin_required", ErrAdminRequired)
			}
		case RoleOwner:
			if role != RoleOwner {
				return g.deny("owner_required", ErrOwnerRequired)
			}
		}
	}

	if req.RequireActive && !w.Active() {
		return g.deny("not_active", ErrNotActive)
	}

	obs.CountAuthDecision("allowed")
	return &Grant{Workspace: w, Role: role, HasRole: hasRole}, nil
}

func (g *Gate) deny(decision string, err error) (*Grant, error) {
	obs.CountAuthDecision(decision)
	return nil, err
}

// ResolveSite is the lighter gate for public, unauthenticated site
// requests: it checks only that the workspace exists and is active, and
// negotiates the locale. An unsupported requested locale yields an
// UnsupportedLocaleError carrying the workspace default, and the
// already-loaded workspace comes back with it so the caller can render
// the fallback without a second load.
func (g *Gate) ResolveSite(ctx context.Context, workspaceID, requestedLocale string) (*Workspace, string, error) {
	w, err := g.dir.Load(ctx, workspaceID)
	if err != nil {
		if err == ErrNotFound {
			return nil, "", ErrNotAllowed
		}
		return nil, "", err
	}
	if !w.Active() {
		return nil, "", ErrNotActive
	}
	if requestedLocale == "" {
		return w, w.DefaultLanguage, nil
	}
	if !w.SupportsLanguage(requestedLocale) {
		return w, "", &UnsupportedLocaleError{Requested: requestedLocale, Fallback: w.DefaultLanguage}
	}
	return w, requestedLocale, nil
}

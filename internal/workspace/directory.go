package workspace

import (
	"context"
	"errors"
)

// Directory loads workspace aggregates and answers role questions. It is
// the single read path the authorization gate uses; callers load the
// aggregate once per request and reuse it for every check.
type Directory struct {
	store Store
}

func NewDirectory(store Store) (*Directory, error) {
	if store == nil {
		return nil, errors.New("workspace: store is required")
	}
	return &Directory{store: store}, nil
}

// Load resolves the workspace aggregate by id.
func (d *Directory) Load(ctx context.Context, id string) (*Workspace, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	return d.store.Load(ctx, id)
}

// RoleOf returns the user's role in the workspace, or ok=false when the
// user has no membership.
func RoleOf(w *Workspace, userID string) (Role, bool) {
	if w == nil || userID == "" {
		return "", false
	}
	for _, m := range w.Members {
		if m.UserID == userID {
			return m.Role, true
		}
	}
	return "", false
}

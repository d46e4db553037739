package workspace

import (
	"context"
	"time"
)

// Store describes workspace persistence.
type Store interface {
	Create(ctx context.Context, w *Workspace) error
	// Load resolves the full aggregate: workspace row, members with roles,
	// invitations and languages. Returns ErrNotFound for unknown ids.
	Load(ctx context.Context, id string) (*Workspace, error)
	UpdateStatus(ctx context.Context, id, status string) error

	AddMember(ctx context.Context, m Member) error
	RemoveMember(ctx context.Context, workspaceID, userID string) error
	UpdateMemberRole(ctx context.Context, workspaceID, userID string, role Role) error

	CreateInvitation(ctx context.Context, inv *Invitation) error
	FindInvitation(ctx context.Context, id string) (*Invitation, error)
	// TransitionInvitation flips a pending invitation to a terminal status
	// as a single conditional update. Returns ErrNotFound when the
	// invitation is missing or no longer pending, which makes concurrent
	// redemption race-free: at most one transition succeeds.
	TransitionInvitation(ctx context.Context, id, to string) error
	ExpireInvitations(ctx context.Context, now time.Time) (int64, error)
}

package workspace

import (
	"context"
	"errors"
	"strings"
	"time"

	"inkwell.app/internal/auth"
	"inkwell.app/internal/ids"
	"inkwell.app/internal/token"
)

const defaultInvitationTTL = 30 * 24 * time.Hour

// InvitationService issues and redeems workspace invitations. Invitations
// share the opaque secret/hash scheme with access tokens but live in their
// own table, carry the target email and role, and flip status instead of
// being deleted on redemption.
type InvitationService struct {
	store Store

	ttl time.Duration
	now func() time.Time
}

// InvitationOption configures InvitationService.
type InvitationOption func(*InvitationService)

// WithInvitationTTL overrides the default one-month lifetime.
func WithInvitationTTL(ttl time.Duration) InvitationOption {
	return func(s *InvitationService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithInvitationClock overrides the time source (useful for tests).
func WithInvitationClock(fn func() time.Time) InvitationOption {
	return func(s *InvitationService) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewInvitationService(store Store, opts ...InvitationOption) (*InvitationService, error) {
	if store == nil {
		return nil, errors.New("workspace: store is required")
	}
	s := &InvitationService{
		store: store,
		ttl:   defaultInvitationTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue creates a pending invitation and returns the bearer string. As
// with access tokens the secret exists only in memory here; the store
// keeps its hash.
func (s *InvitationService) Issue(ctx context.Context, workspaceID, inviterID, email string, role Role) (string, *Invitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if workspaceID == "" || email == "" {
		return "", nil, errors.New("workspace: workspace id and email are required")
	}
	if !role.Valid() {
		return "", nil, errors.New("workspace: invalid role")
	}

	secret, err := token.NewSecret()
	if err != nil {
		return "", nil, err
	}
	inv := &Invitation{
		ID:          ids.New(),
		WorkspaceID: workspaceID,
		InviterID:   inviterID,
		Email:       email,
		Role:        role,
		Status:      InvitationPending,
		Hash:        token.HashSecret(secret),
		ExpiresAt:   s.now().UTC().Add(s.ttl),
	}
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return "", nil, err
	}
	return token.Encode(token.PrefixInvitation, inv.ID, secret), inv, nil
}

// Redeem accepts an invitation on behalf of userID and creates the
// membership it promised. Malformed, unknown, expired, wrong-secret and
// already-resolved invitations all collapse to auth.ErrInvalidToken, and
// concurrent redemption of the same bearer string admits exactly one
// winner via the conditional status transition.
func (s *InvitationService) Redeem(ctx context.Context, raw, userID string) (*Invitation, error) {
	if userID == "" {
		return nil, errors.New("workspace: user id is required")
	}
	inv, err := s.check(ctx, raw)
	if err != nil {
		return nil, err
	}
	// Membership first: AddMember is idempotent, so a failure here leaves
	// the invitation pending and the bearer retryable. The conditional
	// transition stays the single-winner step.
	if err := s.store.AddMember(ctx, Member{
		WorkspaceID: inv.WorkspaceID,
		UserID:      userID,
		Role:        inv.Role,
	}); err != nil {
		return nil, err
	}
	if err := s.store.TransitionInvitation(ctx, inv.ID, InvitationAccepted); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	inv.Status = InvitationAccepted
	return inv, nil
}

// Refuse resolves a pending invitation without creating a membership.
func (s *InvitationService) Refuse(ctx context.Context, raw string) (*Invitation, error) {
	inv, err := s.check(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := s.store.TransitionInvitation(ctx, inv.ID, InvitationRefused); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	inv.Status = InvitationRefused
	return inv, nil
}

// Expire marks every pending invitation past its lifetime as deleted.
// Intended to be driven by an external sweep.
func (s *InvitationService) Expire(ctx context.Context) (int64, error) {
	return s.store.ExpireInvitations(ctx, s.now().UTC())
}

func (s *InvitationService) check(ctx context.Context, raw string) (*Invitation, error) {
	id, secret, ok := token.Decode(token.PrefixInvitation, raw)
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	inv, err := s.store.FindInvitation(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	if inv.Status != InvitationPending {
		return nil, auth.ErrInvalidToken
	}
	if token.Expired(inv.ExpiresAt, s.now().UTC()) {
		return nil, auth.ErrInvalidToken
	}
	if !token.VerifySecret(inv.Hash, secret) {
		return nil, auth.ErrInvalidToken
	}
	return inv, nil
}

package workspace

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"inkwell.app/internal/auth"
	"inkwell.app/internal/token"
)

func newInvitationFixture(t *testing.T, opts ...InvitationOption) (*InvitationService, *memStore) {
	t.Helper()
	store := newMemStore()
	seedWorkspace(t, store, "w1", StatusActive,
		Member{WorkspaceID: "w1", UserID: "owner", Role: RoleOwner})
	svc, err := NewInvitationService(store, opts...)
	require.NoError(t, err)
	return svc, store
}

func TestInvitationIssueAndAccept(t *testing.T) {
	svc, store := newInvitationFixture(t)

	bearer, inv, err := svc.Issue(context.Background(), "w1", "owner", "A@B.com", RoleAdmin)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(bearer, token.PrefixInvitation))
	require.Equal(t, "a@b.com", inv.Email)
	require.Equal(t, InvitationPending, inv.Status)
	require.NotContains(t, bearer, inv.Hash)

	redeemed, err := svc.Redeem(context.Background(), bearer, "new-user")
	require.NoError(t, err)
	require.Equal(t, InvitationAccepted, redeemed.Status)

	w, err := store.Load(context.Background(), "w1")
	require.NoError(t, err)
	role, ok := RoleOf(w, "new-user")
	require.True(t, ok, "accepting must create the membership")
	require.Equal(t, RoleAdmin, role)

	// Once out of pending the invitation is dead.
	_, err = svc.Redeem(context.Background(), bearer, "someone-else")
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

// flakyMemberStore fails AddMember a set number of times before
// delegating, standing in for a transient database error.
type flakyMemberStore struct {
	*memStore
	failures int
}

func (s *flakyMemberStore) AddMember(ctx context.Context, m Member) error {
	if s.failures > 0 {
		s.failures--
		return errAddMemberDown
	}
	return s.memStore.AddMember(ctx, m)
}

var errAddMemberDown = errors.New("member insert unavailable")

func TestInvitationRedeemRetryableAfterMemberInsertFailure(t *testing.T) {
	store := newMemStore()
	seedWorkspace(t, store, "w1", StatusActive,
		Member{WorkspaceID: "w1", UserID: "owner", Role: RoleOwner})
	flaky := &flakyMemberStore{memStore: store, failures: 1}
	svc, err := NewInvitationService(flaky)
	require.NoError(t, err)

	bearer, inv, err := svc.Issue(context.Background(), "w1", "owner", "a@b.com", RoleMember)
	require.NoError(t, err)

	// First redemption hits the failing insert. The invitation must stay
	// pending so the holder can try again.
	_, err = svc.Redeem(context.Background(), bearer, "new-user")
	require.ErrorIs(t, err, errAddMemberDown)
	stored, err := store.FindInvitation(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, InvitationPending, stored.Status)

	w, err := store.Load(context.Background(), "w1")
	require.NoError(t, err)
	_, ok := RoleOf(w, "new-user")
	require.False(t, ok, "failed redemption must not leave a membership")

	// Retry with the same bearer succeeds end to end.
	redeemed, err := svc.Redeem(context.Background(), bearer, "new-user")
	require.NoError(t, err)
	require.Equal(t, InvitationAccepted, redeemed.Status)

	w, err = store.Load(context.Background(), "w1")
	require.NoError(t, err)
	role, ok := RoleOf(w, "new-user")
	require.True(t, ok)
	require.Equal(t, RoleMember, role)
}

func TestInvitationWrongSecret(t *testing.T) {
	svc, store := newInvitationFixture(t)

	_, inv, err := svc.Issue(context.Background(), "w1", "owner", "a@b.com", RoleAdmin)
	require.NoError(t, err)

	other, err := token.NewSecret()
	require.NoError(t, err)
	forged := token.Encode(token.PrefixInvitation, inv.ID, other)

	_, err = svc.Redeem(context.Background(), forged, "new-user")
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	stored, err := store.FindInvitation(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, InvitationPending, stored.Status, "a failed attempt must not resolve the invitation")
}

func TestInvitationRefuse(t *testing.T) {
	svc, store := newInvitationFixture(t)

	bearer, inv, err := svc.Issue(context.Background(), "w1", "owner", "a@b.com", RoleMember)
	require.NoError(t, err)

	refused, err := svc.Refuse(context.Background(), bearer)
	require.NoError(t, err)
	require.Equal(t, InvitationRefused, refused.Status)

	// Refusal is terminal: neither redeem nor refuse again.
	_, err = svc.Redeem(context.Background(), bearer, "new-user")
	require.ErrorIs(t, err, auth.ErrInvalidToken)
	_, err = svc.Refuse(context.Background(), bearer)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	w, err := store.Load(context.Background(), "w1")
	require.NoError(t, err)
	_, ok := RoleOf(w, "new-user")
	require.False(t, ok)
	_ = inv
}

func TestInvitationExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	svc, _ := newInvitationFixture(t,
		WithInvitationTTL(24*time.Hour),
		WithInvitationClock(func() time.Time { return clock }))

	bearer, _, err := svc.Issue(context.Background(), "w1", "owner", "a@b.com", RoleMember)
	require.NoError(t, err)

	clock = now.Add(24 * time.Hour)
	_, err = svc.Redeem(context.Background(), bearer, "new-user")
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestInvitationExpireSweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	svc, store := newInvitationFixture(t,
		WithInvitationTTL(time.Hour),
		WithInvitationClock(func() time.Time { return clock }))

	_, inv, err := svc.Issue(context.Background(), "w1", "owner", "a@b.com", RoleMember)
	require.NoError(t, err)

	clock = now.Add(2 * time.Hour)
	n, err := svc.Expire(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	stored, err := store.FindInvitation(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, InvitationDeleted, stored.Status)
}

func TestInvitationConcurrentRedemptionSingleWinner(t *testing.T) {
	svc, store := newInvitationFixture(t)

	bearer, _, err := svc.Issue(context.Background(), "w1", "owner", "a@b.com", RoleMember)
	require.NoError(t, err)

	const callers = 8
	errs := make(chan error, callers)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < callers; i++ {
		i := i
		go func() {
			start.Wait()
			_, err := svc.Redeem(context.Background(), bearer, "user-"+string(rune('a'+i)))
			errs <- err
		}()
	}
	start.Done()

	var wins int
	for i := 0; i < callers; i++ {
		if err := <-errs; err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, auth.ErrInvalidToken)
		}
	}
	require.Equal(t, 1, wins)

	w, err := store.Load(context.Background(), "w1")
	require.NoError(t, err)
	memberCount := 0
	for _, m := range w.Members {
		if strings.HasPrefix(m.UserID, "user-") {
			memberCount++
		}
	}
	require.Equal(t, 1, memberCount, "only the winning redeemer joins")
}

func TestInvitationIssueValidation(t *testing.T) {
	svc, _ := newInvitationFixture(t)

	_, _, err := svc.Issue(context.Background(), "", "owner", "a@b.com", RoleMember)
	require.Error(t, err)
	_, _, err = svc.Issue(context.Background(), "w1", "owner", "", RoleMember)
	require.Error(t, err)
	_, _, err = svc.Issue(context.Background(), "w1", "owner", "a@b.com", Role("superuser"))
	require.Error(t, err)
}

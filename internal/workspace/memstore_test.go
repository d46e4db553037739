package workspace

import (
	"context"
	"sync"
	"time"
)

// memStore is an in-memory Store used by the service and gate tests. Its
// TransitionInvitation mirrors the conditional-update semantics of the
// Postgres implementation so redemption races behave the same way.
type memStore struct {
	mu          sync.Mutex
	workspaces  map[string]*Workspace
	invitations map[string]*Invitation
}

func newMemStore() *memStore {
	return &memStore{
		workspaces:  make(map[string]*Workspace),
		invitations: make(map[string]*Invitation),
	}
}

func (s *memStore) Create(_ context.Context, w *Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *w
	s.workspaces[w.ID] = &cp
	return nil
}

func (s *memStore) Load(_ context.Context, id string) (*Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workspaces[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *w
	cp.Members = append([]Member(nil), w.Members...)
	cp.Languages = append([]string(nil), w.Languages...)
	for _, inv := range s.invitations {
		if inv.WorkspaceID == id {
			cp.Invitations = append(cp.Invitations, *inv)
		}
	}
	return &cp, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workspaces[id]
	if !ok {
		return ErrNotFound
	}
	w.Status = status
	return nil
}

func (s *memStore) AddMember(_ context.Context, m Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workspaces[m.WorkspaceID]
	if !ok {
		return ErrNotFound
	}
	for _, existing := range w.Members {
		if existing.UserID == m.UserID {
			return nil
		}
	}
	w.Members = append(w.Members, m)
	return nil
}

func (s *memStore) RemoveMember(_ context.Context, workspaceID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workspaces[workspaceID]
	if !ok {
		return ErrNotFound
	}
	members := w.Members[:0]
	for _, m := range w.Members {
		if m.UserID != userID {
			members = append(members, m)
		}
	}
	w.Members = members
	return nil
}

func (s *memStore) UpdateMemberRole(_ context.Context, workspaceID, userID string, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workspaces[workspaceID]
	if !ok {
		return ErrNotFound
	}
	for i := range w.Members {
		if w.Members[i].UserID == userID {
			w.Members[i].Role = role
			return nil
		}
	}
	return ErrNotFound
}

func (s *memStore) CreateInvitation(_ context.Context, inv *Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *inv
	s.invitations[inv.ID] = &cp
	return nil
}

func (s *memStore) FindInvitation(_ context.Context, id string) (*Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (s *memStore) TransitionInvitation(_ context.Context, id, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok || inv.Status != InvitationPending {
		return ErrNotFound
	}
	inv.Status = to
	return nil
}

func (s *memStore) ExpireInvitations(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, inv := range s.invitations {
		if inv.Status == InvitationPending && !inv.ExpiresAt.After(now) {
			inv.Status = InvitationDeleted
			n++
		}
	}
	return n, nil
}

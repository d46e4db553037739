package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"inkwell.app/internal/audit"
	"inkwell.app/internal/auth"
	"inkwell.app/internal/config"
	"inkwell.app/internal/ids"
	"inkwell.app/internal/language"
	"inkwell.app/internal/session"
	"inkwell.app/internal/token"
	"inkwell.app/internal/workspace"
)

// ---- in-memory stores ----

type memUsers struct {
	mu    sync.Mutex
	users map[string]*auth.User
}

func newMemUsers() *memUsers { return &memUsers{users: map[string]*auth.User{}} }

func (s *memUsers) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = ids.New()
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memUsers) Find(_ context.Context, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *memUsers) UpdatePassword(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (s *memUsers) UpdateEmail(_ context.Context, userID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.Email = strings.ToLower(email)
	}
	return nil
}

func (s *memUsers) Profile(_ context.Context, _ string) (*auth.Profile, error) {
	return nil, auth.ErrNotFound
}

type memTokens struct {
	mu   sync.Mutex
	recs map[string]*token.Record
}

func newMemTokens() *memTokens { return &memTokens{recs: map[string]*token.Record{}} }

func (s *memTokens) Create(_ context.Context, rec *token.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	cp := *rec
	s.recs[rec.ID] = &cp
	return nil
}

func (s *memTokens) Find(_ context.Context, id string) (*token.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return nil, token.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memTokens) Consume(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[id]; !ok {
		return token.ErrNotFound
	}
	delete(s.recs, id)
	return nil
}

func (s *memTokens) DeleteByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.recs {
		if rec.UserID == userID {
			delete(s.recs, id)
		}
	}
	return nil
}

func (s *memTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.recs {
		if token.Expired(rec.ExpiresAt, now) {
			delete(s.recs, id)
			n++
		}
	}
	return n, nil
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func newMemSessions() *memSessions { return &memSessions{sessions: map[string]*session.Session{}} }

func (s *memSessions) Insert(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.UserID == sess.UserID && existing.Token == sess.Token {
			return nil
		}
	}
	sess.ID = fmt.Sprintf("sess-%d", len(s.sessions)+1)
	sess.CreatedAt = time.Now()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *memSessions) FindByUserToken(_ context.Context, userID, tok string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.Token == tok {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, session.ErrNotFound
}

func (s *memSessions) Touch(_ context.Context, tok string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.Token == tok && sess.IsActive && now.After(sess.LastActivity) {
			sess.LastActivity = now
		}
	}
	return nil
}

func (s *memSessions) Deactivate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.IsActive = false
	}
	return nil
}

func (s *memSessions) ListByUser(_ context.Context, userID string) ([]*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*session.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			cp := *sess
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memWorkspaces struct {
	mu          sync.Mutex
	workspaces  map[string]*workspace.Workspace
	invitations map[string]*workspace.Invitation
}

func newMemWorkspaces() *memWorkspaces {
	return &memWorkspaces{
		workspaces:  map[string]*workspace.Workspace{},
		invitations: map[string]*workspace.Invitation{},
	}
}

func (s *memWorkspaces) Create(_ context.Context, w *workspace.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = ids.New()
	}
	if w.Status == "" {
		w.Status = workspace.StatusActive
	}
	cp := *w
	s.workspaces[w.ID] = &cp
	return nil
}

func (s *memWorkspaces) Load(_ context.Context, id string) (*workspace.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workspaces[id]
	if !ok {
		return nil, workspace.ErrNotFound
	}
	cp := *w
	cp.Members = append([]workspace.Member(nil), w.Members...)
	cp.Languages = append([]string(nil), w.Languages...)
	for _, inv := range s.invitations {
		if inv.WorkspaceID == id {
			cp.Invitations = append(cp.Invitations, *inv)
		}
	}
	return &cp, nil
}

func (s *memWorkspaces) UpdateStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workspaces[id]
	if !ok {
		return workspace.ErrNotFound
	}
	w.Status = status
	return nil
}

func (s *memWorkspaces) AddMember(_ context.Context, m workspace.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workspaces[m.WorkspaceID]
	if !ok {
		return workspace.ErrNotFound
	}
	for _, existing := range w.Members {
		if existing.UserID == m.UserID {
			return nil
		}
	}
	m.CreatedAt = time.Now()
	w.Members = append(w.Members, m)
	return nil
}

func (s *memWorkspaces) RemoveMember(_ context.Context, workspaceID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workspaces[workspaceID]
	if !ok {
		return workspace.ErrNotFound
	}
	var kept []workspace.Member
	for _, m := range w.Members {
		if m.UserID != userID {
			kept = append(kept, m)
		}
	}
	w.Members = kept
	return nil
}

func (s *memWorkspaces) UpdateMemberRole(_ context.Context, workspaceID, userID string, role workspace.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workspaces[workspaceID]
	if !ok {
		return workspace.ErrNotFound
	}
	for i := range w.Members {
		if w.Members[i].UserID == userID {
			w.Members[i].Role = role
		}
	}
	return nil
}

func (s *memWorkspaces) CreateInvitation(_ context.Context, inv *workspace.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.ID == "" {
		inv.ID = ids.New()
	}
	cp := *inv
	s.invitations[inv.ID] = &cp
	return nil
}

func (s *memWorkspaces) FindInvitation(_ context.Context, id string) (*workspace.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok {
		return nil, workspace.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (s *memWorkspaces) TransitionInvitation(_ context.Context, id, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok || inv.Status != workspace.InvitationPending {
		return workspace.ErrNotFound
	}
	inv.Status = to
	return nil
}

func (s *memWorkspaces) ExpireInvitations(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, inv := range s.invitations {
		if inv.Status == workspace.InvitationPending && token.Expired(inv.ExpiresAt, now) {
			inv.Status = workspace.InvitationDeleted
			n++
		}
	}
	return n, nil
}

type memAudit struct {
	mu      sync.Mutex
	entries map[audit.Scope][]*audit.Entry
}

func newMemAudit() *memAudit { return &memAudit{entries: map[audit.Scope][]*audit.Entry{}} }

func (s *memAudit) Append(_ context.Context, scope audit.Scope, e *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.entries[scope] = append(s.entries[scope], &cp)
	return nil
}

func (s *memAudit) Query(_ context.Context, scope audit.Scope, workspaceID string, q audit.Query) ([]*audit.Entry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*audit.Entry
	for _, e := range s.entries[scope] {
		if workspaceID != "" && e.WorkspaceID != workspaceID {
			continue
		}
		if q.Filter.UserID != "" && e.UserID != q.Filter.UserID {
			continue
		}
		if q.Filter.Event != "" && e.Event != q.Filter.Event {
			continue
		}
		matched = append(matched, e)
	}
	return matched, len(matched), nil
}

func (s *memAudit) events(scope audit.Scope) []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Event
	for _, e := range s.entries[scope] {
		out = append(out, e.Event)
	}
	return out
}

type memLanguages struct{}

func (memLanguages) All(context.Context) ([]language.Language, error) {
	return []language.Language{
		{Code: "en", Name: "English", NativeName: "English", IsDefault: true},
		{Code: "fr", Name: "French", NativeName: "Français"},
		{Code: "de", Name: "German", NativeName: "Deutsch"},
	}, nil
}

// ---- fixture ----

type fixture struct {
	api        *API
	handler    http.Handler
	users      *memUsers
	tokens     *memTokens
	sessions   *memSessions
	workspaces *memWorkspaces
	audits     *memAudit
	authSvc    *auth.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	users := newMemUsers()
	tokens := newMemTokens()
	sessions := newMemSessions()
	workspaces := newMemWorkspaces()
	audits := newMemAudit()

	authSvc, err := auth.NewService(users, tokens)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	tracker, err := session.NewTracker(sessions)
	if err != nil {
		t.Fatalf("session tracker: %v", err)
	}
	dir, err := workspace.NewDirectory(workspaces)
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	invitations, err := workspace.NewInvitationService(workspaces)
	if err != nil {
		t.Fatalf("invitation service: %v", err)
	}
	cache := language.NewCache(memLanguages{})
	if err := cache.Init(context.Background()); err != nil {
		t.Fatalf("language cache: %v", err)
	}

	cfg := &config.Config{
		AppName:            "inkwell-auth",
		HTTPAddr:           ":0",
		RateLimitBurst:     1000,
		RateLimitPerSecond: 1000,
		MaxBodyBytes:       1 << 20,
		DefaultLanguage:    "en",
	}

	api := New(cfg, authSvc, tracker, workspace.NewGate(dir), workspaces,
		invitations, audit.NewService(audits), cache, ReadyProbe{}, "test")

	return &fixture{
		api:        api,
		handler:    api.Handler(),
		users:      users,
		tokens:     tokens,
		sessions:   sessions,
		workspaces: workspaces,
		audits:     audits,
		authSvc:    authSvc,
	}
}

// createUser registers an active user and returns its id.
func (f *fixture) createUser(t *testing.T, email, password string) string {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &auth.User{Email: email, PasswordHash: hash, Status: auth.UserStatusActive}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

// login issues a bearer token through the service, bypassing HTTP.
func (f *fixture) login(t *testing.T, email, password string) string {
	t.Helper()
	bearer, _, _, err := f.authSvc.Login(context.Background(), email, password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return bearer
}

// createWorkspace seeds a workspace with the given owner.
func (f *fixture) createWorkspace(t *testing.T, ownerID string) string {
	t.Helper()
	w := &workspace.Workspace{
		Name:            "Acme",
		DefaultLanguage: "en",
		Languages:       []string{"en", "fr"},
		Members:         []workspace.Member{{UserID: ownerID, Role: workspace.RoleOwner}},
	}
	if err := f.workspaces.Create(context.Background(), w); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	for i := range w.Members {
		w.Members[i].WorkspaceID = w.ID
	}
	return w.ID
}

func (f *fixture) addMember(t *testing.T, workspaceID, userID string, role workspace.Role) {
	t.Helper()
	err := f.workspaces.AddMember(context.Background(), workspace.Member{
		WorkspaceID: workspaceID, UserID: userID, Role: role,
	})
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
}

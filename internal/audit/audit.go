// Package audit appends security and workspace events to their
// append-only logs. Writes are best-effort: a failing store is reported
// through the operational log and metrics, never to the caller.
package audit

import (
	"context"
	"time"

	"inkwell.app/internal/obs"
	"inkwell.app/internal/pagination"
)

// Scope selects which append-only log an entry belongs to.
type Scope string

const (
	ScopeSecurity  Scope = "security"
	ScopeWorkspace Scope = "workspace"
)

// Event is a closed taxonomy. Free-form strings are rejected so the log
// stays auditable as the application grows.
type Event string

// Security events.
const (
	EventLogin                Event = "user.login"
	EventLoginFailed          Event = "user.login_failed"
	EventLogout               Event = "user.logout"
	EventTokenIssued          Event = "token.issued"
	EventTokenRedeemed        Event = "token.redeemed"
	EventTokenRejected        Event = "token.rejected"
	EventPasswordChanged      Event = "user.password_changed"
	EventEmailChangeRequested Event = "user.email_change_requested"
	EventEmailChanged         Event = "user.email_changed"
	EventSessionCreated       Event = "session.created"
	EventSessionRevoked       Event = "session.revoked"
)

// Workspace events.
const (
	EventWorkspaceCreated     Event = "workspace.created"
	EventWorkspaceSuspended   Event = "workspace.suspended"
	EventWorkspaceReactivated Event = "workspace.reactivated"
	EventMemberInvited        Event = "member.invited"
	EventInvitationAccepted   Event = "invitation.accepted"
	EventInvitationRefused    Event = "invitation.refused"
	EventInvitationExpired    Event = "invitation.expired"
	EventMemberRemoved        Event = "member.removed"
	EventMemberRoleChanged    Event = "member.role_changed"
)

var knownEvents = map[Event]Scope{
	EventLogin:                ScopeSecurity,
	EventLoginFailed:          ScopeSecurity,
	EventLogout:               ScopeSecurity,
	EventTokenIssued:          ScopeSecurity,
	EventTokenRedeemed:        ScopeSecurity,
	EventTokenRejected:        ScopeSecurity,
	EventPasswordChanged:      ScopeSecurity,
	EventEmailChangeRequested: ScopeSecurity,
	EventEmailChanged:         ScopeSecurity,
	EventSessionCreated:       ScopeSecurity,
	EventSessionRevoked:       ScopeSecurity,
	EventWorkspaceCreated:     ScopeWorkspace,
	EventWorkspaceSuspended:   ScopeWorkspace,
	EventWorkspaceReactivated: ScopeWorkspace,
	EventMemberInvited:        ScopeWorkspace,
	EventInvitationAccepted:   ScopeWorkspace,
	EventInvitationRefused:    ScopeWorkspace,
	EventInvitationExpired:    ScopeWorkspace,
	EventMemberRemoved:        ScopeWorkspace,
	EventMemberRoleChanged:    ScopeWorkspace,
}

// Valid reports whether e belongs to the taxonomy.
func (e Event) Valid() bool {
	_, ok := knownEvents[e]
	return ok
}

// ScopeOf returns which log an event belongs to.
func ScopeOf(e Event) (Scope, bool) {
	s, ok := knownEvents[e]
	return s, ok
}

// Entry is one immutable log row. UserID may be empty for
// system-originated events; WorkspaceID is set for workspace-scoped
// entries only.
type Entry struct {
	ID          string
	Event       Event
	UserID      string
	WorkspaceID string
	IPAddress   string
	Metadata    map[string]string
	CreatedAt   time.Time
}

// Filter holds the equality filters of a log query.
type Filter struct {
	UserID    string
	Event     Event
	IPAddress string
	DateFrom  *time.Time
	DateTo    *time.Time
}

// Query combines filters, free-text search and pagination.
type Query struct {
	Filter Filter
	Search string
	Page   pagination.Params
}

// Store persists entries. Append is insert-only; nothing in this package
// updates or deletes rows.
type Store interface {
	Append(ctx context.Context, scope Scope, e *Entry) error
	Query(ctx context.Context, scope Scope, workspaceID string, q Query) ([]*Entry, int, error)
}

// Service is the write/read surface used by the rest of the application.
type Service struct {
	store Store
	now   func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Security appends to the security log. Never returns an error: failures
// must not become a cause of user-facing failure, so they are swallowed
// after being counted and logged operationally.
func (s *Service) Security(ctx context.Context, event Event, userID, ipAddress string, metadata map[string]string) *Entry {
	return s.append(ctx, ScopeSecurity, event, userID, "", ipAddress, metadata)
}

// Workspace appends to the workspace log. Same best-effort contract.
func (s *Service) Workspace(ctx context.Context, event Event, workspaceID, userID, ipAddress string, metadata map[string]string) *Entry {
	return s.append(ctx, ScopeWorkspace, event, userID, workspaceID, ipAddress, metadata)
}

func (s *Service) append(ctx context.Context, scope Scope, event Event, userID, workspaceID, ipAddress string, metadata map[string]string) *Entry {
	if !event.Valid() {
		obs.Logger().Error().Str("event", string(event)).Msg("audit event outside taxonomy dropped")
		obs.CountAuditWriteFailure()
		return nil
	}
	entry := &Entry{
		Event:       event,
		UserID:      userID,
		WorkspaceID: workspaceID,
		IPAddress:   ipAddress,
		Metadata:    metadata,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Append(ctx, scope, entry); err != nil {
		obs.Logger().Error().Err(err).Str("event", string(event)).Msg("audit write failed")
		obs.CountAuditWriteFailure()
		return nil
	}
	return entry
}

// QuerySecurity pages through the security log.
func (s *Service) QuerySecurity(ctx context.Context, q Query) (pagination.Page[*Entry], error) {
	if q.Page.Limit <= 0 {
		q.Page = pagination.DefaultParams()
	}
	entries, total, err := s.store.Query(ctx, ScopeSecurity, "", q)
	if err != nil {
		return pagination.Page[*Entry]{}, err
	}
	return pagination.NewPage(entries, total, q.Page), nil
}

// QueryWorkspace pages through one workspace's log.
func (s *Service) QueryWorkspace(ctx context.Context, workspaceID string, q Query) (pagination.Page[*Entry], error) {
	if q.Page.Limit <= 0 {
		q.Page = pagination.DefaultParams()
	}
	entries, total, err := s.store.Query(ctx, ScopeWorkspace, workspaceID, q)
	if err != nil {
		return pagination.Page[*Entry]{}, err
	}
	return pagination.NewPage(entries, total, q.Page), nil
}

// Package session tracks authenticated devices: one row per (user,
// session token) pair, updated on activity.
package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session: not found")

// Session is a device record for an authenticated user. Token is the id
// of the access token the session belongs to, never the bearer string:
// the sessions table must not hold anything redeemable.
type Session struct {
	ID           string
	UserID       string
	Token        string
	IPAddress    string
	Device       Device
	LastActivity time.Time
	IsActive     bool
	CreatedAt    time.Time
}

// Store describes session persistence. Insert must be conflict-free for
// the unique (user_id, token) pair so concurrent calls cannot create
// duplicate rows.
type Store interface {
	Insert(ctx context.Context, s *Session) error
	FindByUserToken(ctx context.Context, userID, sessionToken string) (*Session, error)
	// Touch advances last_activity to now for the active session matching
	// the token; it never moves the timestamp backwards and is a no-op
	// when nothing matches.
	Touch(ctx context.Context, sessionToken string, now time.Time) error
	Deactivate(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]*Session, error)
}

// Tracker implements the session lifecycle on top of a Store.
type Tracker struct {
	store Store
	now   func() time.Time
}

// TrackerOption configures Tracker.
type TrackerOption func(*Tracker)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if fn != nil {
			t.now = fn
		}
	}
}

func NewTracker(store Store, opts ...TrackerOption) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("session: store is required")
	}
	t := &Tracker{store: store, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Track is the idempotent get-or-create: an existing session for the
// (user, token) pair is returned unmodified, otherwise one is created with
// the parsed device info. The insert relies on the store's conflict guard,
// so two racing calls still end with a single row.
func (t *Tracker) Track(ctx context.Context, userID, sessionToken, ipAddress, userAgent string) (*Session, error) {
	if userID == "" || sessionToken == "" {
		return nil, errors.New("session: user id and token are required")
	}
	if existing, err := t.store.FindByUserToken(ctx, userID, sessionToken); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	s := &Session{
		UserID:       userID,
		Token:        sessionToken,
		IPAddress:    ipAddress,
		Device:       ParseUserAgent(userAgent),
		LastActivity: t.now().UTC(),
		IsActive:     true,
	}
	if err := t.store.Insert(ctx, s); err != nil {
		return nil, err
	}
	// Re-read: a concurrent Track may have won the insert.
	return t.store.FindByUserToken(ctx, userID, sessionToken)
}

// Touch records activity on the session token.
func (t *Tracker) Touch(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return nil
	}
	return t.store.Touch(ctx, sessionToken, t.now().UTC())
}

// Deactivate marks the session inactive. Idempotent.
func (t *Tracker) Deactivate(ctx context.Context, id string) error {
	return t.store.Deactivate(ctx, id)
}

// ListByUser returns the user's sessions, most recently active first.
func (t *Tracker) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	return t.store.ListByUser(ctx, userID)
}

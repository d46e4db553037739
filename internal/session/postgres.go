package session

import (
	"context"
	"database/sql"
	"time"

	"inkwell.app/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. The user_sessions table has a
// unique constraint on (user_id, token); Insert leans on it so concurrent
// get-or-create calls collapse into one row.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Insert(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into user_sessions(id, user_id, token, ip_address, browser, os, device_kind, user_agent, last_activity, is_active)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 on conflict (user_id, token) do nothing`,
		sess.ID, sess.UserID, sess.Token, sess.IPAddress,
		sess.Device.Browser, sess.Device.OS, sess.Device.Kind, sess.Device.Raw,
		sess.LastActivity, sess.IsActive,
	)
	return err
}

func (s *PGStore) FindByUserToken(ctx context.Context, userID, sessionToken string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, token, ip_address, browser, os, device_kind, user_agent, last_activity, is_active, created_at
		 from user_sessions where user_id=$1 and token=$2`, userID, sessionToken)
	return scanSession(row)
}

func (s *PGStore) Touch(ctx context.Context, sessionToken string, now time.Time) error {
	// greatest() keeps last_activity monotonically non-decreasing even if
	// two touches land out of order.
	_, err := s.db.ExecContext(ctx,
		`update user_sessions set last_activity = greatest(last_activity, $2)
		 where token=$1 and is_active`, sessionToken, now)
	return err
}

func (s *PGStore) Deactivate(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`update user_sessions set is_active=false where id=$1`, id)
	return err
}

func (s *PGStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, user_id, token, ip_address, browser, os, device_kind, user_agent, last_activity, is_active, created_at
		 from user_sessions where user_id=$1 order by last_activity desc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Token, &sess.IPAddress,
		&sess.Device.Browser, &sess.Device.OS, &sess.Device.Kind, &sess.Device.Raw,
		&sess.LastActivity, &sess.IsActive, &sess.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

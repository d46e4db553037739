package auth

import (
	"context"
	"database/sql"
	"strings"

	"inkwell.app/internal/ids"
)

var _ UserStore = (*PGUserStore)(nil)

// PGUserStore implements UserStore using PostgreSQL.
type PGUserStore struct {
	db *sql.DB
}

func NewPGUserStore(db *sql.DB) *PGUserStore {
	return &PGUserStore{db: db}
}

func (s *PGUserStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, password_hash, status) values($1,$2,$3,$4)`,
		u.ID, strings.ToLower(strings.TrimSpace(u.Email)), u.PasswordHash, u.Status,
	)
	return err
}

func (s *PGUserStore) Find(ctx context.Context, id string) (*User, error) {
	return s.scanUser(ctx,
		`select id, email, password_hash, status, created_at, updated_at from users where id=$1`, id)
}

func (s *PGUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(ctx,
		`select id, email, password_hash, status, created_at, updated_at from users where email=$1`,
		strings.ToLower(strings.TrimSpace(email)))
}

func (s *PGUserStore) scanUser(ctx context.Context, query string, arg any) (*User, error) {
	row := s.db.QueryRowContext(ctx, query, arg)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *PGUserStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2, updated_at=now() where id=$1`, userID, passwordHash)
	return err
}

func (s *PGUserStore) UpdateEmail(ctx context.Context, userID, email string) error {
	_, err := s.db.ExecContext(ctx,
		`update users set email=$2, updated_at=now() where id=$1`,
		userID, strings.ToLower(strings.TrimSpace(email)))
	return err
}

func (s *PGUserStore) Profile(ctx context.Context, userID string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`select user_id, display_name, locale, created_at, updated_at from user_profiles where user_id=$1`,
		userID)
	var p Profile
	if err := row.Scan(&p.UserID, &p.DisplayName, &p.Locale, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

package token

import (
	"context"
	"database/sql"
	"time"

	"inkwell.app/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into user_tokens(id, user_id, hash, purpose, protected_value, expires_at)
		 values($1,$2,$3,$4,$5,$6)`,
		rec.ID, rec.UserID, rec.Hash, rec.Purpose, rec.ProtectedValue, rec.ExpiresAt,
	)
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, hash, purpose, protected_value, expires_at, created_at, updated_at
		 from user_tokens where id=$1`, id)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.Hash, &rec.Purpose, &rec.ProtectedValue,
		&rec.ExpiresAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *PGStore) Consume(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from user_tokens where id=$1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `delete from user_tokens where user_id=$1`, userID)
	return err
}

func (s *PGStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from user_tokens where expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

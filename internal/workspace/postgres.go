package workspace

import (
	"context"
	"database/sql"
	"strings"
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

func (s *PGStore) Create(ctx context.Context, w *Workspace) error {
	if w.ID == "" {
		w.ID = ids.New()
	}
	if w.Status == "" {
		w.Status = StatusActive
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`insert into workspaces(id, name, status, theme, default_language) values($1,$2,$3,$4,$5)`,
		w.ID, w.Name, w.Status, w.Theme, w.DefaultLanguage,
	); err != nil {
		return err
	}
	for _, code := range w.Languages {
		if _, err := tx.ExecContext(ctx,
			`insert into workspace_languages(workspace_id, language_code) values($1,$2) on conflict do nothing`,
			w.ID, code,
		); err != nil {
			return err
		}
	}
	for _, m := range w.Members {
		if _, err := tx.ExecContext(ctx,
			`insert into workspace_members(workspace_id, user_id, role) values($1,$2,$3)`,
			w.ID, m.UserID, m.Role,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PGStore) Load(ctx context.Context, id string) (*Workspace, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, status, theme, default_language, created_at, updated_at
		 from workspaces where id=$1`, id)
	var w Workspace
	if err := row.Scan(&w.ID, &w.Name, &w.Status, &w.Theme, &w.DefaultLanguage,
		&w.CreatedAt, &w.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := s.loadMembers(ctx, &w); err != nil {
		return nil, err
	}
	if err := s.loadInvitations(ctx, &w); err != nil {
		return nil, err
	}
	if err := s.loadLanguages(ctx, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *PGStore) loadMembers(ctx context.Context, w *Workspace) error {
	rows, err := s.db.QueryContext(ctx,
		`select workspace_id, user_id, role, created_at from workspace_members
		 where workspace_id=$1 order by created_at`, w.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return err
		}
		w.Members = append(w.Members, m)
	}
	return rows.Err()
}

func (s *PGStore) loadInvitations(ctx context.Context, w *Workspace) error {
	rows, err := s.db.QueryContext(ctx,
		`select id, workspace_id, inviter_id, email, role, status, hash, expires_at, created_at, updated_at
		 from workspace_invitations where workspace_id=$1 order by created_at`, w.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var inv Invitation
		if err := rows.Scan(&inv.ID, &inv.WorkspaceID, &inv.InviterID, &inv.Email, &inv.Role,
			&inv.Status, &inv.Hash, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return err
		}
		w.Invitations = append(w.Invitations, inv)
	}
	return rows.Err()
}

func (s *PGStore) loadLanguages(ctx context.Context, w *Workspace) error {
	rows, err := s.db.QueryContext(ctx,
		`select language_code from workspace_languages where workspace_id=$1 order by language_code`, w.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return err
		}
		w.Languages = append(w.Languages, code)
	}
	return rows.Err()
}

func (s *PGStore) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`update workspaces set status=$2, updated_at=now() where id=$1`, id, status)
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

func (s *PGStore) AddMember(ctx context.Context, m Member) error {
	_, err := s.db.ExecContext(ctx,
		`insert into workspace_members(workspace_id, user_id, role) values($1,$2,$3)
		 on conflict (workspace_id, user_id) do nothing`,
		m.WorkspaceID, m.UserID, m.Role)
	return err
}

func (s *PGStore) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`delete from workspace_members where workspace_id=$1 and user_id=$2`, workspaceID, userID)
	return err
}

func (s *PGStore) UpdateMemberRole(ctx context.Context, workspaceID, userID string, role Role) error {
	res, err := s.db.ExecContext(ctx,
		`update workspace_members set role=$3 where workspace_id=$1 and user_id=$2`,
		workspaceID, userID, role)
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

func (s *PGStore) CreateInvitation(ctx context.Context, inv *Invitation) error {
	if inv.ID == "" {
		inv.ID = ids.New()
	}
	if inv.Status == "" {
		inv.Status = InvitationPending
	}
	_, err := s.db.ExecContext(ctx,
		`insert into workspace_invitations(id, workspace_id, inviter_id, email, role, status, hash, expires_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		inv.ID, inv.WorkspaceID, inv.InviterID, strings.ToLower(strings.TrimSpace(inv.Email)),
		inv.Role, inv.Status, inv.Hash, inv.ExpiresAt)
	return err
}

func (s *PGStore) FindInvitation(ctx context.Context, id string) (*Invitation, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, workspace_id, inviter_id, email, role, status, hash, expires_at, created_at, updated_at
		 from workspace_invitations where id=$1`, id)
	var inv Invitation
	if err := row.Scan(&inv.ID, &inv.WorkspaceID, &inv.InviterID, &inv.Email, &inv.Role,
		&inv.Status, &inv.Hash, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (s *PGStore) TransitionInvitation(ctx context.Context, id, to string) error {
	res, err := s.db.ExecContext(ctx,
		`update workspace_invitations set status=$2, updated_at=now()
		 where id=$1 and status='pending'`, id, to)
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

func (s *PGStore) ExpireInvitations(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`update workspace_invitations set status='deleted', updated_at=now()
		 where status='pending' and expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"inkwell.app/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. The two logs share a shape;
// the workspace variant adds the workspace foreign key.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func tableFor(scope Scope) string {
	if scope == ScopeWorkspace {
		return "workspace_logs"
	}
	return "security_logs"
}

func (s *PGStore) Append(ctx context.Context, scope Scope, e *Entry) error {
	if e.ID == "" {
		e.ID = ids.New()
	}
	meta, _ := json.Marshal(e.Metadata)
	userID := sql.NullString{String: e.UserID, Valid: e.UserID != ""}

	if scope == ScopeWorkspace {
		_, err := s.db.ExecContext(ctx,
			`insert into workspace_logs(id, workspace_id, event, user_id, ip_address, metadata, created_at)
			 values($1,$2,$3,$4,$5,$6,$7)`,
			e.ID, e.WorkspaceID, e.Event, userID, e.IPAddress, meta, e.CreatedAt)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`insert into security_logs(id, event, user_id, ip_address, metadata, created_at)
		 values($1,$2,$3,$4,$5,$6)`,
		e.ID, e.Event, userID, e.IPAddress, meta, e.CreatedAt)
	return err
}

// Query applies equality filters, then the free-text search: the search
// string is whitespace-tokenized, every term must match (AND), and each
// term may match any of event, ip or metadata (OR), case-insensitively.
func (s *PGStore) Query(ctx context.Context, scope Scope, workspaceID string, q Query) ([]*Entry, int, error) {
	table := tableFor(scope)

	var conds []string
	var args []any
	add := func(format string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(format, len(args)))
	}

	if scope == ScopeWorkspace && workspaceID != "" {
		add("workspace_id=$%d", workspaceID)
	}
	if q.Filter.UserID != "" {
		add("user_id=$%d", q.Filter.UserID)
	}
	if q.Filter.Event != "" {
		add("event=$%d", string(q.Filter.Event))
	}
	if q.Filter.IPAddress != "" {
		add("ip_address=$%d", q.Filter.IPAddress)
	}
	if q.Filter.DateFrom != nil {
		add("created_at >= $%d", *q.Filter.DateFrom)
	}
	if q.Filter.DateTo != nil {
		add("created_at <= $%d", *q.Filter.DateTo)
	}
	for _, term := range strings.Fields(q.Search) {
		args = append(args, "%"+term+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(event ilike $%d or ip_address ilike $%d or metadata::text ilike $%d)", n, n, n))
	}

	where := ""
	if len(conds) > 0 {
		where = " where " + strings.Join(conds, " and ")
	}

	var total int
	countQuery := "select count(*) from " + table + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.Page.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, q.Page.Offset)
	selectCols := "id, event, user_id, ip_address, metadata, created_at"
	if scope == ScopeWorkspace {
		selectCols = "id, workspace_id, event, user_id, ip_address, metadata, created_at"
	}
	query := fmt.Sprintf("select %s from %s%s order by created_at desc limit $%d offset $%d",
		selectCols, table, where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			e      Entry
			userID sql.NullString
			meta   []byte
		)
		if scope == ScopeWorkspace {
			err = rows.Scan(&e.ID, &e.WorkspaceID, &e.Event, &userID, &e.IPAddress, &meta, &e.CreatedAt)
		} else {
			err = rows.Scan(&e.ID, &e.Event, &userID, &e.IPAddress, &meta, &e.CreatedAt)
		}
		if err != nil {
			return nil, 0, err
		}
		e.UserID = userID.String
		_ = json.Unmarshal(meta, &e.Metadata)
		entries = append(entries, &e)
	}
	return entries, total, rows.Err()
}

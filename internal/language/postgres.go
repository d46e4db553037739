package language

import (
	"context"
	"database/sql"
)

var _ Store = (*PGStore)(nil)

type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) All(ctx context.Context) ([]Language, error) {
	rows, err := s.db.QueryContext(ctx,
		`select code, name, native_name, is_default from languages order by code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var langs []Language
	for rows.Next() {
		var l Language
		if err := rows.Scan(&l.Code, &l.Name, &l.NativeName, &l.IsDefault); err != nil {
			return nil, err
		}
		langs = append(langs, l)
	}
	return langs, rows.Err()
}

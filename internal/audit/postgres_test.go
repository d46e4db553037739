package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"inkwell.app/internal/pagination"
)

func TestPGStoreAppendSecurity(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`insert into security_logs`).
		WithArgs(sqlmock.AnyArg(), "user.login", "user-1", "203.0.113.9", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPGStore(db)
	entry := &Entry{Event: EventLogin, UserID: "user-1", IPAddress: "203.0.113.9", CreatedAt: time.Now()}
	if err := store.Append(context.Background(), ScopeSecurity, entry); err != nil {
		t.Fatalf("append: %v", err)
	}
	if entry.ID == "" {
		t.Fatal("expected an id to be assigned")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreAppendWorkspace(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`insert into workspace_logs`).
		WithArgs(sqlmock.AnyArg(), "ws-1", "member.invited", "user-1", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPGStore(db)
	entry := &Entry{Event: EventMemberInvited, WorkspaceID: "ws-1", UserID: "user-1", CreatedAt: time.Now()}
	if err := store.Append(context.Background(), ScopeWorkspace, entry); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreQueryFiltersAndSearch(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`select count\(\*\) from security_logs where user_id=\$1 and \(event ilike \$2 or ip_address ilike \$2 or metadata::text ilike \$2\)`).
		WithArgs("user-1", "%login%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`select id, event, user_id, ip_address, metadata, created_at from security_logs where user_id=\$1 .+ order by created_at desc limit \$3 offset \$4`).
		WithArgs("user-1", "%login%", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event", "user_id", "ip_address", "metadata", "created_at"}).
			AddRow("log-1", "user.login", "user-1", "203.0.113.9", []byte(`{"device":"desktop"}`), created))

	store := NewPGStore(db)
	entries, total, err := store.Query(context.Background(), ScopeSecurity, "", Query{
		Filter: Filter{UserID: "user-1"},
		Search: "login",
		Page:   pagination.Params{Page: 1, Limit: 20},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 1 || len(entries) != 1 {
		t.Fatalf("expected one entry, got total=%d len=%d", total, len(entries))
	}
	if entries[0].Metadata["device"] != "desktop" {
		t.Fatalf("metadata not decoded: %#v", entries[0].Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreQueryWorkspaceScoped(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`select count\(\*\) from workspace_logs where workspace_id=\$1`).
		WithArgs("ws-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`select id, workspace_id, event, user_id, ip_address, metadata, created_at from workspace_logs where workspace_id=\$1 order by created_at desc limit \$2 offset \$3`).
		WithArgs("ws-1", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "workspace_id", "event", "user_id", "ip_address", "metadata", "created_at"}))

	store := NewPGStore(db)
	entries, total, err := store.Query(context.Background(), ScopeWorkspace, "ws-1", Query{Page: pagination.Params{Page: 1, Limit: 20}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 0 || len(entries) != 0 {
		t.Fatalf("expected empty page, got total=%d len=%d", total, len(entries))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"workhub.org/internal/auth"
	"workhub.org/internal/workspace"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func TestRolesForUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`select workspace_id, role from workspace_members`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"workspace_id", "role"}).
			AddRow("ws-1", "OWNER").
			AddRow("ws-2", "viewer").
			AddRow("ws-3", "SOMETHING_ODD"))

	roles, err := store.RolesForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RolesForUser: %v", err)
	}
	if roles["ws-1"] != auth.RoleOwner {
		t.Fatalf("owner row lost: %v", roles)
	}
	if roles["ws-2"] != auth.RoleViewer {
		t.Fatalf("lowercase role not normalized: %v", roles)
	}
	if _, ok := roles["ws-3"]; ok {
		t.Fatalf("unknown role must grant nothing: %v", roles)
	}
}

func TestRolesForUserEmpty(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`select workspace_id, role from workspace_members`).
		WithArgs("user-9").
		WillReturnRows(sqlmock.NewRows([]string{"workspace_id", "role"}))

	roles, err := store.RolesForUser(context.Background(), "user-9")
	if err != nil {
		t.Fatalf("no assignments is not an error: %v", err)
	}
	if roles == nil || len(roles) != 0 {
		t.Fatalf("expected empty map, got %v", roles)
	}
}

func TestRolesForUserWrapsFailures(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`select workspace_id, role from workspace_members`).
		WithArgs("user-1").
		WillReturnError(errors.New("connection refused"))

	if _, err := store.RolesForUser(context.Background(), "user-1"); !errors.Is(err, auth.ErrDirectoryUnavailable) {
		t.Fatalf("expected ErrDirectoryUnavailable, got %v", err)
	}
}

func TestCreateWorkspaceConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`insert into workspaces`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.CreateWorkspace(context.Background(), &workspace.Workspace{
		ID:        "ws-1",
		Name:      "Ops",
		CreatedBy: "user-1",
		Status:    workspace.StatusActive,
		CreatedAt: time.Now(),
	})
	if !errors.Is(err, workspace.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestGetWorkspaceNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`select id, name`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := store.GetWorkspace(context.Background(), "missing"); !errors.Is(err, workspace.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetWorkspaceNullSchemaName(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery(`select id, name`).
		WithArgs("ws-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "created_by", "schema_name", "status",
			"created_at", "updated_at", "last_seen_at",
		}).AddRow("ws-1", "Ops", "", "user-1", nil, "Active", now, now, now))

	ws, err := store.GetWorkspace(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("GetWorkspace: %v", err)
	}
	if ws.SchemaName != "" {
		t.Fatalf("null schema_name should map to empty string, got %q", ws.SchemaName)
	}
	if ws.Status != workspace.StatusActive {
		t.Fatalf("unexpected status: %s", ws.Status)
	}
}

func TestAddMemberConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`insert into workspace_members`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.AddMember(context.Background(), &workspace.Member{
		ID:          "m-1",
		WorkspaceID: "ws-1",
		UserID:      "user-2",
		Role:        auth.RoleMember,
		AddedAt:     time.Now(),
	})
	if !errors.Is(err, workspace.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSetWorkspaceStatusNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`update workspaces set status`).
		WithArgs("missing", "Archived").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.SetWorkspaceStatus(context.Background(), "missing", workspace.StatusArchived); !errors.Is(err, workspace.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveMemberNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`delete from workspace_members`).
		WithArgs("m-9", "ws-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.RemoveMember(context.Background(), "ws-1", "m-9"); !errors.Is(err, workspace.ErrMemberMissing) {
		t.Fatalf("expected ErrMemberMissing, got %v", err)
	}
}

func TestUpdateMemberRole(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery(`update workspace_members set role`).
		WithArgs("m-1", "ws-1", "ADMIN").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "workspace_id", "user_id", "display_name", "role", "added_at",
		}).AddRow("m-1", "ws-1", "user-2", "Sam", "ADMIN", now))

	m, err := store.UpdateMemberRole(context.Background(), "ws-1", "m-1", auth.RoleAdmin)
	if err != nil {
		t.Fatalf("UpdateMemberRole: %v", err)
	}
	if m.Role != auth.RoleAdmin {
		t.Fatalf("unexpected role: %s", m.Role)
	}
}

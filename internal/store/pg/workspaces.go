package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"workhub.org/internal/auth"
	"workhub.org/internal/workspace"
)

var (
	_ workspace.Store = (*Store)(nil)
	_ auth.Directory  = (*Store)(nil)
)

func (s *Store) CreateWorkspace(ctx context.Context, ws *workspace.Workspace) error {
	_, err := s.db.ExecContext(ctx, `
		insert into workspaces (id, name, description, created_by, status, created_at, updated_at, last_seen_at)
		values ($1, $2, $3, $4, $5, $6, $6, $6)
	`, ws.ID, ws.Name, ws.Description, ws.CreatedBy, string(ws.Status), ws.CreatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return workspace.ErrConflict
	}
	return err
}

func (s *Store) GetWorkspace(ctx context.Context, id string) (workspace.Workspace, error) {
	var (
		ws         workspace.Workspace
		schemaName sql.NullString
		status     string
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, coalesce(description, ''), created_by, schema_name, status,
		       created_at, updated_at, last_seen_at
		from workspaces
		where id = $1
	`, id).Scan(&ws.ID, &ws.Name, &ws.Description, &ws.CreatedBy, &schemaName, &status,
		&ws.CreatedAt, &ws.UpdatedAt, &ws.LastSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return workspace.Workspace{}, workspace.ErrNotFound
	}
	if err != nil {
		return workspace.Workspace{}, err
	}
	if schemaName.Valid {
		ws.SchemaName = schemaName.String
	}
	ws.Status = workspace.Status(status)
	return ws, nil
}

func (s *Store) ListWorkspacesForUser(ctx context.Context, userID string) ([]workspace.Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
		select w.id, w.name, coalesce(w.description, ''), w.created_by, w.schema_name, w.status,
		       w.created_at, w.updated_at, w.last_seen_at
		from workspaces w
		join workspace_members m on m.workspace_id = w.id
		where m.user_id = $1
		order by w.created_at desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []workspace.Workspace
	for rows.Next() {
		var (
			ws         workspace.Workspace
			schemaName sql.NullString
			status     string
		)
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.Description, &ws.CreatedBy, &schemaName, &status,
			&ws.CreatedAt, &ws.UpdatedAt, &ws.LastSeenAt); err != nil {
			return nil, err
		}
		if schemaName.Valid {
			ws.SchemaName = schemaName.String
		}
		ws.Status = workspace.Status(status)
		result = append(result, ws)
	}
	return result, rows.Err()
}

func (s *Store) SetWorkspaceStatus(ctx context.Context, id string, status workspace.Status) error {
	res, err := s.db.ExecContext(ctx, `
		update workspaces set status = $2, updated_at = now() where id = $1
	`, id, string(status))
	if err != nil {
		return err
	}
	return noRowsToNotFound(res, workspace.ErrNotFound)
}

func (s *Store) DeleteWorkspace(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `delete from workspace_members where workspace_id = $1`, id)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `delete from workspaces where id = $1`, id)
	if err != nil {
		return err
	}
	return noRowsToNotFound(res, workspace.ErrNotFound)
}

func (s *Store) TouchWorkspace(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `update workspaces set last_seen_at = now() where id = $1`, id)
	return err
}

func (s *Store) AddMember(ctx context.Context, m *workspace.Member) error {
	_, err := s.db.ExecContext(ctx, `
		insert into workspace_members (id, workspace_id, user_id, display_name, role, added_at)
		values ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.WorkspaceID, m.UserID, m.DisplayName, string(m.Role), m.AddedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return workspace.ErrConflict
	}
	return err
}

func (s *Store) GetMember(ctx context.Context, workspaceID, memberID string) (workspace.Member, error) {
	m, err := s.scanMember(s.db.QueryRowContext(ctx, `
		select id, workspace_id, user_id, coalesce(display_name, ''), role, added_at
		from workspace_members
		where id = $1 and workspace_id = $2
	`, memberID, workspaceID))
	if errors.Is(err, sql.ErrNoRows) {
		return workspace.Member{}, workspace.ErrMemberMissing
	}
	return m, err
}

func (s *Store) ListMembers(ctx context.Context, workspaceID string) ([]workspace.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, workspace_id, user_id, coalesce(display_name, ''), role, added_at
		from workspace_members
		where workspace_id = $1
		order by added_at
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []workspace.Member
	for rows.Next() {
		m, err := s.scanMember(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (s *Store) UpdateMemberRole(ctx context.Context, workspaceID, memberID string, role auth.Role) (workspace.Member, error) {
	m, err := s.scanMember(s.db.QueryRowContext(ctx, `
		update workspace_members set role = $3
		where id = $1 and workspace_id = $2
		returning id, workspace_id, user_id, coalesce(display_name, ''), role, added_at
	`, memberID, workspaceID, string(role)))
	if errors.Is(err, sql.ErrNoRows) {
		return workspace.Member{}, workspace.ErrMemberMissing
	}
	return m, err
}

func (s *Store) RemoveMember(ctx context.Context, workspaceID, memberID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from workspace_members where id = $1 and workspace_id = $2
	`, memberID, workspaceID)
	if err != nil {
		return err
	}
	return noRowsToNotFound(res, workspace.ErrMemberMissing)
}

// RolesForUser is the authoritative role directory read: every (workspace,
// role) pair currently assigned to the user. A user with no assignments gets
// an empty map, not an error.
func (s *Store) RolesForUser(ctx context.Context, subject string) (map[string]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select workspace_id, role from workspace_members where user_id = $1
	`, subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrDirectoryUnavailable, err)
	}
	defer rows.Close()

	roles := map[string]auth.Role{}
	for rows.Next() {
		var (
			workspaceID string
			rawRole     string
		)
		if err := rows.Scan(&workspaceID, &rawRole); err != nil {
			return nil, fmt.Errorf("%w: %v", auth.ErrDirectoryUnavailable, err)
		}
		role, err := auth.ParseRole(rawRole)
		if err != nil {
			// A row outside the closed role set grants nothing.
			continue
		}
		roles[workspaceID] = role
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrDirectoryUnavailable, err)
	}
	return roles, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanMember(row rowScanner) (workspace.Member, error) {
	var (
		m       workspace.Member
		rawRole string
	)
	if err := row.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.DisplayName, &rawRole, &m.AddedAt); err != nil {
		return workspace.Member{}, err
	}
	m.Role = auth.Role(rawRole)
	return m, nil
}

func noRowsToNotFound(res sql.Result, sentinel error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel
	}
	return nil
}

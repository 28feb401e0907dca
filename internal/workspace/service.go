package workspace

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"workhub.org/internal/audit"
	"workhub.org/internal/auth"
	"workhub.org/internal/ids"
)

// Provisioner creates the isolated tenant schema for a workspace. Satisfied
// by tenant.Provisioner.
type Provisioner interface {
	Provision(ctx context.Context, workspaceID string) (string, error)
}

// Service orchestrates workspace and membership operations over the store
// and the tenant schema provisioner.
type Service struct {
	store       Store
	provisioner Provisioner
	now         func() time.Time
}

func NewService(store Store, provisioner Provisioner) *Service {
	return &Service{store: store, provisioner: provisioner, now: time.Now}
}

// WithClock overrides the time source. Test use only.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Create inserts the workspace record, provisions its tenant schema
// synchronously, and adds the creator as OWNER. Provisioning failure aborts
// the creation as a whole: the metadata row is removed so no workspace ever
// exists whose schema_name points at a schema that was never built.
func (s *Service) Create(ctx context.Context, name, description, createdBy, creatorName string) (Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Workspace{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(createdBy) == "" {
		return Workspace{}, fmt.Errorf("%w: creator is required", ErrInvalidInput)
	}

	now := s.now().UTC()
	ws := Workspace{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedBy:   createdBy,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastSeenAt:  now,
	}
	if err := s.store.CreateWorkspace(ctx, &ws); err != nil {
		return Workspace{}, err
	}

	schemaName, err := s.provisioner.Provision(ctx, ws.ID)
	if err != nil {
		_ = s.store.DeleteWorkspace(ctx, ws.ID)
		return Workspace{}, err
	}
	ws.SchemaName = schemaName

	owner := Member{
		ID:          ids.New(),
		WorkspaceID: ws.ID,
		UserID:      createdBy,
		DisplayName: creatorName,
		Role:        auth.RoleOwner,
		AddedAt:     now,
	}
	if err := s.store.AddMember(ctx, &owner); err != nil {
		_ = s.store.DeleteWorkspace(ctx, ws.ID)
		return Workspace{}, err
	}

	_ = audit.LogEvent(ctx, "workspace.created", map[string]any{
		"workspace_id": ws.ID,
		"name":         ws.Name,
		"schema":       ws.SchemaName,
	})
	return ws, nil
}

// Get returns a workspace with its members and refreshes last_seen_at.
func (s *Service) Get(ctx context.Context, id string) (Workspace, []Member, error) {
	ws, err := s.store.GetWorkspace(ctx, id)
	if err != nil {
		return Workspace{}, nil, err
	}
	members, err := s.store.ListMembers(ctx, id)
	if err != nil {
		return Workspace{}, nil, err
	}
	_ = s.store.TouchWorkspace(ctx, id)
	return ws, members, nil
}

// ListForUser returns the workspaces the user is a member of.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Workspace, error) {
	return s.store.ListWorkspacesForUser(ctx, userID)
}

// Archive soft-deletes a workspace. The tenant schema is left in place.
func (s *Service) Archive(ctx context.Context, id string) error {
	if err := s.store.SetWorkspaceStatus(ctx, id, StatusArchived); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "workspace.archived", map[string]any{
		"workspace_id": id,
	})
	return nil
}

// AddMember grants a user a role on the workspace.
func (s *Service) AddMember(ctx context.Context, workspaceID, userID, displayName string, role auth.Role) (Member, error) {
	if strings.TrimSpace(userID) == "" {
		return Member{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if !role.Valid() {
		return Member{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	m := Member{
		ID:          ids.New(),
		WorkspaceID: workspaceID,
		UserID:      userID,
		DisplayName: strings.TrimSpace(displayName),
		Role:        role,
		AddedAt:     s.now().UTC(),
	}
	if err := s.store.AddMember(ctx, &m); err != nil {
		return Member{}, err
	}
	_ = audit.LogEvent(ctx, "workspace.member.added", map[string]any{
		"workspace_id": workspaceID,
		"member_id":    m.ID,
		"user_id":      userID,
		"role":         string(role),
	})
	return m, nil
}

// ListMembers returns the workspace's membership.
func (s *Service) ListMembers(ctx context.Context, workspaceID string) ([]Member, error) {
	return s.store.ListMembers(ctx, workspaceID)
}

// UpdateMemberRole changes an existing member's role.
func (s *Service) UpdateMemberRole(ctx context.Context, workspaceID, memberID string, role auth.Role) (Member, error) {
	if !role.Valid() {
		return Member{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	m, err := s.store.UpdateMemberRole(ctx, workspaceID, memberID, role)
	if err != nil {
		return Member{}, err
	}
	_ = audit.LogEvent(ctx, "workspace.member.role_updated", map[string]any{
		"workspace_id": workspaceID,
		"member_id":    memberID,
		"new_role":     string(role),
	})
	return m, nil
}

// RemoveMember revokes a user's membership. Unexpired capability tokens keep
// honoring the old role until they expire; that staleness window is bounded
// by the token ttl and is intentional.
func (s *Service) RemoveMember(ctx context.Context, workspaceID, memberID string) (Member, error) {
	m, err := s.store.GetMember(ctx, workspaceID, memberID)
	if err != nil {
		return Member{}, err
	}
	if err := s.store.RemoveMember(ctx, workspaceID, memberID); err != nil {
		return Member{}, err
	}
	_ = audit.LogEvent(ctx, "workspace.member.removed", map[string]any{
		"workspace_id": workspaceID,
		"member_id":    memberID,
		"user_id":      m.UserID,
	})
	return m, nil
}

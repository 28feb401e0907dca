// Package workspace holds the workspace and membership domain: the global
// metadata records, and the creation flow that provisions each workspace's
// isolated tenant schema before the workspace becomes visible.
package workspace

import (
	"context"
	"errors"
	"time"

	"workhub.org/internal/auth"
)

var (
	ErrNotFound      = errors.New("workspace: not found")
	ErrConflict      = errors.New("workspace: resource conflict")
	ErrInvalidInput  = errors.New("workspace: invalid input")
	ErrMemberMissing = errors.New("workspace: member not found")
)

// Status of a workspace. Archiving is a soft delete: the schema and data
// stay, the workspace stops accepting tenant-scoped work.
type Status string

const (
	StatusActive   Status = "Active"
	StatusArchived Status = "Archived"
)

// Workspace is the global metadata record. SchemaName is empty until the
// tenant schema is provisioned and immutable afterwards.
type Workspace struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	SchemaName  string    `json:"schema_name,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// Member is one (workspace, user, role) assignment. The authoritative role
// directory is the full set of these rows.
type Member struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        auth.Role `json:"role"`
	AddedAt     time.Time `json:"added_at"`
}

// Store describes persistence for workspaces and members.
type Store interface {
	CreateWorkspace(ctx context.Context, ws *Workspace) error
	GetWorkspace(ctx context.Context, id string) (Workspace, error)
	ListWorkspacesForUser(ctx context.Context, userID string) ([]Workspace, error)
	SetWorkspaceStatus(ctx context.Context, id string, status Status) error
	// DeleteWorkspace removes the metadata row. Only used to abort a creation
	// whose schema provisioning failed; soft delete is SetWorkspaceStatus.
	DeleteWorkspace(ctx context.Context, id string) error
	TouchWorkspace(ctx context.Context, id string) error

	AddMember(ctx context.Context, m *Member) error
	GetMember(ctx context.Context, workspaceID, memberID string) (Member, error)
	ListMembers(ctx context.Context, workspaceID string) ([]Member, error)
	UpdateMemberRole(ctx context.Context, workspaceID, memberID string, role auth.Role) (Member, error)
	RemoveMember(ctx context.Context, workspaceID, memberID string) error
}

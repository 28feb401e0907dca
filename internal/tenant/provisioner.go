// Package tenant owns the per-workspace schema convention: one isolated
// Postgres schema per workspace, named deterministically from the workspace
// id. Every tenant-scoped query in the service resolves the schema through
// this package; nothing else formats schema names.
package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"workhub.org/internal/obs"
)

var (
	ErrInvalidWorkspaceID      = errors.New("tenant: invalid workspace id")
	ErrWorkspaceNotFound       = errors.New("tenant: workspace not found")
	ErrWorkspaceNotProvisioned = errors.New("tenant: workspace schema not provisioned")
	ErrProvisioningFailed      = errors.New("tenant: schema provisioning failed")
)

const schemaPrefix = "ws_"

// schemaNamePattern is the complete output space of SchemaName. Anything a
// query interpolates as a schema identifier must match it; this is a
// tenant-isolation requirement, not an optimization.
var schemaNamePattern = regexp.MustCompile(`^ws_[0-9a-f]{32}$`)

// SchemaName derives the schema identifier for a workspace: the fixed prefix
// plus the uuid with separators stripped. The mapping is deterministic, so
// any caller can recompute it, but the persisted Workspace record stays the
// canonical source.
func SchemaName(workspaceID string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(workspaceID))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidWorkspaceID, workspaceID)
	}
	name := schemaPrefix + strings.ReplaceAll(id.String(), "-", "")
	if !schemaNamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidWorkspaceID, workspaceID)
	}
	return name, nil
}

// Provisioner creates and looks up tenant schemas over the shared pool.
type Provisioner struct {
	db *sql.DB
}

func NewProvisioner(db *sql.DB) *Provisioner {
	return &Provisioner{db: db}
}

// tenantTables is the fixed per-workspace table set. Every statement is
// IF NOT EXISTS so a retried or racing Provision converges without error;
// %s is always a SchemaName output validated against schemaNamePattern.
var tenantTables = []string{
	`CREATE TABLE IF NOT EXISTS %s.workspace_integrations (
		workspace_integration_id uuid PRIMARY KEY,
		workspace_id uuid NOT NULL,
		user_id text,
		integration_display_name text,
		provider text NOT NULL,
		url text,
		extra_config_json jsonb,
		connection_status text,
		added_by_user_id text,
		added_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS %s.workspace_agents (
		workspace_agent_id uuid PRIMARY KEY,
		workspace_id uuid NOT NULL,
		agent_type text NOT NULL,
		is_enabled boolean NOT NULL DEFAULT true,
		config_json jsonb,
		created_at timestamptz NOT NULL DEFAULT now(),
		created_by_user_id text
	)`,
	`CREATE TABLE IF NOT EXISTS %s.automation_jobs (
		job_id uuid PRIMARY KEY,
		workspace_id uuid NOT NULL,
		workspace_agent_id uuid,
		name text NOT NULL,
		schedule_cron text,
		is_active boolean NOT NULL DEFAULT true,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS %s.automation_job_runs (
		job_run_id uuid PRIMARY KEY,
		job_id uuid NOT NULL,
		started_at timestamptz NOT NULL DEFAULT now(),
		completed_at timestamptz,
		status text,
		error_message text
	)`,
	`CREATE TABLE IF NOT EXISTS %s.file_artifacts (
		file_artifact_id uuid PRIMARY KEY,
		workspace_id uuid NOT NULL,
		workspace_agent_id uuid,
		job_run_id uuid,
		type text,
		blob_url text,
		file_name text,
		created_at timestamptz NOT NULL DEFAULT now(),
		created_by_user_id text
	)`,
	`CREATE INDEX IF NOT EXISTS ix_workspace_integrations_workspace_id ON %s.workspace_integrations (workspace_id)`,
	`CREATE INDEX IF NOT EXISTS ix_workspace_integrations_provider ON %s.workspace_integrations (provider)`,
	`CREATE INDEX IF NOT EXISTS ix_workspace_agents_workspace_id ON %s.workspace_agents (workspace_id)`,
	`CREATE INDEX IF NOT EXISTS ix_automation_jobs_workspace_id ON %s.automation_jobs (workspace_id)`,
	`CREATE INDEX IF NOT EXISTS ix_automation_job_runs_job_id ON %s.automation_job_runs (job_id)`,
	`CREATE INDEX IF NOT EXISTS ix_file_artifacts_workspace_id ON %s.file_artifacts (workspace_id)`,
}

// Provision creates the workspace's schema and fixed table set, then records
// the name on the Workspace row. The whole sequence is idempotent: a retry
// after a mid-sequence failure, or a concurrent duplicate call, converges to
// the same end state. An already-provisioned workspace returns its existing
// name as success.
func (p *Provisioner) Provision(ctx context.Context, workspaceID string) (string, error) {
	name, err := SchemaName(workspaceID)
	if err != nil {
		return "", err
	}

	var recorded sql.NullString
	err = p.db.QueryRowContext(ctx,
		`select schema_name from workspaces where id = $1`, workspaceID,
	).Scan(&recorded)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrWorkspaceNotFound, workspaceID)
	}
	if err != nil {
		return "", fmt.Errorf("%w: read workspace record: %v", ErrProvisioningFailed, err)
	}
	if recorded.Valid && recorded.String != "" && recorded.String != name {
		// schema_name is immutable and a pure function of the id; a mismatch
		// means the record was corrupted, never regenerate over it.
		return "", fmt.Errorf("%w: recorded schema %q does not match %q",
			ErrProvisioningFailed, recorded.String, name)
	}
	if recorded.Valid && recorded.String == name {
		exists, err := p.schemaExists(ctx, name)
		if err != nil {
			return "", fmt.Errorf("%w: verify schema: %v", ErrProvisioningFailed, err)
		}
		if exists {
			return name, nil
		}
		// The record claims a schema that is missing: fall through and
		// rebuild it so the invariant (name set => schema exists) holds.
	}

	if _, err := p.db.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS `+name); err != nil {
		if !isDuplicateObject(err) {
			return "", fmt.Errorf("%w: create schema %s: %v", ErrProvisioningFailed, name, err)
		}
	}
	for _, stmt := range tenantTables {
		if _, err := p.db.ExecContext(ctx, fmt.Sprintf(stmt, name)); err != nil {
			if isDuplicateObject(err) {
				continue
			}
			return "", fmt.Errorf("%w: create tenant tables in %s: %v", ErrProvisioningFailed, name, err)
		}
	}

	// Re-verify before recording: the Workspace row must never carry a
	// schema_name whose schema does not actually exist.
	exists, err := p.schemaExists(ctx, name)
	if err != nil {
		return "", fmt.Errorf("%w: verify schema: %v", ErrProvisioningFailed, err)
	}
	if !exists {
		return "", fmt.Errorf("%w: schema %s missing after creation", ErrProvisioningFailed, name)
	}

	if _, err := p.db.ExecContext(ctx,
		`update workspaces set schema_name = $2, updated_at = now() where id = $1`,
		workspaceID, name,
	); err != nil {
		return "", fmt.Errorf("%w: record schema name: %v", ErrProvisioningFailed, err)
	}

	obs.SchemaProvisioned()
	obs.Log(map[string]any{
		"level":        "info",
		"msg":          "tenant_schema_provisioned",
		"workspace_id": workspaceID,
		"schema":       name,
	})
	return name, nil
}

// ResolveSchemaName reads the persisted schema name for a workspace. This is
// the single resolution point for all tenant-scoped data access.
func (p *Provisioner) ResolveSchemaName(ctx context.Context, workspaceID string) (string, error) {
	if _, err := uuid.Parse(strings.TrimSpace(workspaceID)); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidWorkspaceID, workspaceID)
	}
	var recorded sql.NullString
	err := p.db.QueryRowContext(ctx,
		`select schema_name from workspaces where id = $1`, workspaceID,
	).Scan(&recorded)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrWorkspaceNotFound, workspaceID)
	}
	if err != nil {
		return "", err
	}
	if !recorded.Valid || recorded.String == "" {
		return "", fmt.Errorf("%w: %s", ErrWorkspaceNotProvisioned, workspaceID)
	}
	if !schemaNamePattern.MatchString(recorded.String) {
		return "", fmt.Errorf("%w: recorded schema %q is not a valid tenant identifier",
			ErrProvisioningFailed, recorded.String)
	}
	return recorded.String, nil
}

func (p *Provisioner) schemaExists(ctx context.Context, name string) (bool, error) {
	var one int
	err := p.db.QueryRowContext(ctx,
		`select 1 from information_schema.schemata where schema_name = $1`, name,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const (
	pgErrDuplicateSchema = "42P06"
	pgErrDuplicateTable  = "42P07"
	pgErrDuplicateObject = "42710"
)

// isDuplicateObject reports whether err is Postgres telling us the schema,
// table or index already exists. Two racing Provision calls for the same
// workspace both treat that as success.
func isDuplicateObject(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgErrDuplicateSchema, pgErrDuplicateTable, pgErrDuplicateObject:
		return true
	}
	return false
}

package auth

import "context"

// Directory is the authoritative read of a user's workspace role assignments.
// Implementations must return an empty map, not an error, for users without
// assignments.
type Directory interface {
	RolesForUser(ctx context.Context, subject string) (map[string]Role, error)
}

// Resolution is the outcome of resolving a caller's role for one workspace.
type Resolution struct {
	// Roles is the effective role map for the rest of this request: the token
	// map, widened by the fallback read when one happened.
	Roles map[string]Role
	// Role is set when Found is true.
	Role  Role
	Found bool
	// FellBack reports that the directory was consulted.
	FellBack bool
	// DirectoryErr carries the fallback read failure, if any. The resolution
	// still fails closed (Found stays false); callers log the error.
	DirectoryErr error
}

// ResolveRole answers "which role does subject hold on workspaceID" given the
// role map embedded in an unexpired capability token. A missing entry is
// treated as potential staleness and triggers exactly one directory read for
// the request; the merged map applies to this request only. A second miss is
// not an error here; the handler's minimum-role check turns it into a
// membership denial.
func ResolveRole(ctx context.Context, dir Directory, subject, workspaceID string, tokenRoles map[string]Role) Resolution {
	res := Resolution{Roles: tokenRoles}
	if workspaceID == "" {
		return res
	}
	if role, ok := tokenRoles[workspaceID]; ok {
		res.Role = role
		res.Found = true
		return res
	}
	if dir == nil {
		return res
	}

	res.FellBack = true
	fresh, err := dir.RolesForUser(ctx, subject)
	if err != nil {
		res.DirectoryErr = err
		return res
	}

	merged := make(map[string]Role, len(tokenRoles)+len(fresh))
	for id, role := range tokenRoles {
		merged[id] = role
	}
	for id, role := range fresh {
		merged[id] = role
	}
	res.Roles = merged

	if role, ok := merged[workspaceID]; ok {
		res.Role = role
		res.Found = true
	}
	return res
}

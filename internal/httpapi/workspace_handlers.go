package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"workhub.org/internal/audit"
	"workhub.org/internal/auth"
	"workhub.org/internal/obs"
	"workhub.org/internal/workspace"
)

type createWorkspaceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type createWorkspaceResponse struct {
	Workspace workspace.Workspace `json:"workspace"`
	// Token is a refreshed capability token including the OWNER role on the
	// new workspace; the token used to make this request cannot know it yet.
	Token     string               `json:"token,omitempty"`
	Roles     map[string]auth.Role `json:"roles,omitempty"`
	ExpiresAt time.Time            `json:"expires_at,omitempty"`
}

type workspaceDetailResponse struct {
	Workspace workspace.Workspace `json:"workspace"`
	Members   []workspace.Member  `json:"members"`
}

func (a *API) handleWorkspaces(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createWorkspace(w, r)
	case http.MethodGet:
		a.listWorkspaces(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createWorkspace(w http.ResponseWriter, r *http.Request) {
	rc, ok := a.requireAuthenticated(w, r)
	if !ok {
		return
	}
	var req createWorkspaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	ws, err := a.workspaces.Create(r.Context(), req.Name, req.Description, rc.Subject, rc.Email)
	if err != nil {
		handleWorkspaceError(w, r, err)
		return
	}

	resp := createWorkspaceResponse{Workspace: ws}
	if roles, err := a.directory.RolesForUser(r.Context(), rc.Subject); err == nil {
		if token, err := a.codec.Issue(rc.Subject, rc.Email, roles, a.codec.TTL()); err == nil {
			resp.Token = token
			resp.Roles = roles
			resp.ExpiresAt = time.Now().UTC().Add(a.codec.TTL())
		}
	} else {
		obs.Log(map[string]any{
			"level":      "warn",
			"msg":        "refresh_after_create_skipped",
			"request_id": audit.RequestIDFromContext(r.Context()),
			"cause":      err.Error(),
		})
	}

	w.Header().Set("Location", fmt.Sprintf("/v1/workspaces/%s", ws.ID))
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	rc, ok := a.requireAuthenticated(w, r)
	if !ok {
		return
	}
	list, err := a.workspaces.ListForUser(r.Context(), rc.Subject)
	if err != nil {
		handleWorkspaceError(w, r, err)
		return
	}
	if list == nil {
		list = []workspace.Workspace{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"workspaces": list})
}

// handleWorkspaceScoped routes /v1/workspaces/{id}[/members[/{memberID}]].
func (a *API) handleWorkspaceScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/workspaces/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	workspaceID := parts[0]

	switch {
	case len(parts) == 1:
		a.handleWorkspaceItem(w, r, workspaceID)
	case len(parts) == 2 && parts[1] == "members":
		a.handleMembers(w, r, workspaceID)
	case len(parts) == 3 && parts[1] == "members":
		a.handleMemberItem(w, r, workspaceID, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "resource not found")
	}
}

func (a *API) handleWorkspaceItem(w http.ResponseWriter, r *http.Request, workspaceID string) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.requireRole(w, r, auth.RoleViewer); !ok {
			return
		}
		ws, members, err := a.workspaces.Get(r.Context(), workspaceID)
		if err != nil {
			handleWorkspaceError(w, r, err)
			return
		}
		if members == nil {
			members = []workspace.Member{}
		}
		writeJSON(w, http.StatusOK, workspaceDetailResponse{Workspace: ws, Members: members})
	case http.MethodDelete:
		if _, ok := a.requireRole(w, r, auth.RoleOwner); !ok {
			return
		}
		if err := a.workspaces.Archive(r.Context(), workspaceID); err != nil {
			handleWorkspaceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "archived"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

package httpapi

import (
	"fmt"
	"net/http"

	"workhub.org/internal/auth"
	"workhub.org/internal/workspace"
)

type addMemberRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type updateMemberRequest struct {
	Role string `json:"role"`
}

func (a *API) handleMembers(w http.ResponseWriter, r *http.Request, workspaceID string) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.requireRole(w, r, auth.RoleViewer); !ok {
			return
		}
		members, err := a.workspaces.ListMembers(r.Context(), workspaceID)
		if err != nil {
			handleWorkspaceError(w, r, err)
			return
		}
		if members == nil {
			members = []workspace.Member{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"members": members})
	case http.MethodPost:
		if _, ok := a.requireRole(w, r, auth.RoleAdmin); !ok {
			return
		}
		var req addMemberRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", err.Error())
			return
		}
		role, err := auth.ParseRole(req.Role)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", "role must be one of VIEWER, MEMBER, ADMIN, OWNER")
			return
		}
		m, err := a.workspaces.AddMember(r.Context(), workspaceID, req.UserID, req.DisplayName, role)
		if err != nil {
			handleWorkspaceError(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/workspaces/%s/members/%s", workspaceID, m.ID))
		writeJSON(w, http.StatusCreated, m)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleMemberItem(w http.ResponseWriter, r *http.Request, workspaceID, memberID string) {
	switch r.Method {
	case http.MethodPatch:
		if _, ok := a.requireRole(w, r, auth.RoleAdmin); !ok {
			return
		}
		var req updateMemberRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", err.Error())
			return
		}
		role, err := auth.ParseRole(req.Role)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", "role must be one of VIEWER, MEMBER, ADMIN, OWNER")
			return
		}
		m, err := a.workspaces.UpdateMemberRole(r.Context(), workspaceID, memberID, role)
		if err != nil {
			handleWorkspaceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	case http.MethodDelete:
		if _, ok := a.requireRole(w, r, auth.RoleAdmin); !ok {
			return
		}
		m, err := a.workspaces.RemoveMember(r.Context(), workspaceID, memberID)
		if err != nil {
			handleWorkspaceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"removed": m})
	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
	}
}

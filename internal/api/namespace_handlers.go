package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/slowlime/knotd/internal/acl"
	"github.com/slowlime/knotd/internal/apierr"
	"github.com/slowlime/knotd/internal/model"
	"github.com/slowlime/knotd/internal/store"
	"github.com/slowlime/knotd/internal/validate"
)

// handleCreateNamespace implements POST /namespace: any active user may
// found a namespace, becoming its sole owner.
func (s *Server) handleCreateNamespace(w http.ResponseWriter, r *http.Request) error {
	user, err := requireUser(r)
	if err != nil {
		return err
	}
	if !acl.IsActive(user) {
		return apierr.NewNoPermission()
	}

	var payload struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Homepage    *string `json:"homepage"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		return err
	}
	in := validate.NamespaceCreate{Name: payload.Name, Description: payload.Description, Homepage: payload.Homepage}
	if err := in.Validate(); err != nil {
		return err
	}

	if _, err := s.store.CreateNamespace(r.Context(), payload.Name, payload.Description, payload.Homepage, user); err != nil {
		return err
	}
	writeMessage(w, http.StatusCreated, "namespace created")
	return nil
}

// handleGetNamespace implements GET /namespace/{ns}.
func (s *Server) handleGetNamespace(w http.ResponseWriter, r *http.Request) error {
	name := chi.URLParam(r, "ns")
	detail, err := s.store.GetNamespace(r.Context(), name)
	if err != nil {
		return err
	}
	members := make([]namespaceMemberView, 0, len(detail.Members))
	for _, m := range detail.Members {
		members = append(members, namespaceMemberView{Username: m.Username, Role: m.RoleName})
	}
	roles := make([]namespaceRoleView, 0, len(detail.Roles))
	for _, role := range detail.Roles {
		roles = append(roles, viewNamespaceRole(&role))
	}
	resp := map[string]any{
		"namespace": viewNamespace(&detail.Namespace),
		"members":   members,
		"roles":     roles,
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (s *Server) namespaceByName(r *http.Request, name string) (*model.Namespace, error) {
	id, err := s.store.GetNamespaceIDByName(r.Context(), name)
	if err != nil {
		return nil, err
	}
	return &model.Namespace{ID: id}, nil
}

// handleEditNamespace implements POST /namespace/{ns}.
func (s *Server) handleEditNamespace(w http.ResponseWriter, r *http.Request) error {
	user, err := requireUser(r)
	if err != nil {
		return err
	}
	ns, err := s.namespaceByName(r, chi.URLParam(r, "ns"))
	if err != nil {
		return err
	}
	ok, err := acl.CheckNamespace(r.Context(), s.store, user, ns.ID, model.PermNamespaceEdit)
	if err != nil {
		return err
	}
	if err := acl.Require(ok); err != nil {
		return err
	}

	var payload struct {
		Description *string `json:"description"`
		Homepage    **string `json:"homepage"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		return err
	}
	if err := s.store.EditNamespace(r.Context(), ns.ID, payload.Description, payload.Homepage); err != nil {
		return err
	}
	writeMessage(w, http.StatusOK, "namespace updated")
	return nil
}

// handleDeleteNamespace implements DELETE /namespace/{ns}; only an owner or
// admin may delete a namespace.
func (s *Server) handleDeleteNamespace(w http.ResponseWriter, r *http.Request) error {
	user, err := requireUser(r)
	if err != nil {
		return err
	}
	ns, err := s.namespaceByName(r, chi.URLParam(r, "ns"))
	if err != nil {
		return err
	}
	ok, err := acl.CheckNamespace(r.Context(), s.store, user, ns.ID, model.PermNamespaceOwner)
	if err != nil {
		return err
	}
	if err := acl.Require(ok); err != nil {
		return err
	}
	if err := s.store.DeleteNamespace(r.Context(), ns.ID); err != nil {
		return err
	}
	writeMessage(w, http.StatusOK, "namespace deleted")
	return nil
}

// handleListNamespacePackages implements GET /namespace/{ns}/package.
func (s *Server) handleListNamespacePackages(w http.ResponseWriter, r *http.Request) error {
	name := chi.URLParam(r, "ns")
	pkgs, err := s.store.GetPackages(r.Context(), store.PackageListFilter{Namespace: &name})
	if err != nil {
		return err
	}
	out := make([]packageBriefView, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, viewPackageBrief(&p))
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

// handleListNamespaceMembers implements GET /namespace/{ns}/user.
func (s *Server) handleListNamespaceMembers(w http.ResponseWriter, r *http.Request) error {
	if _, err := requireUser(r); err != nil {
		return err
	}
	detail, err := s.store.GetNamespace(r.Context(), chi.URLParam(r, "ns"))
	if err != nil {
		return err
	}
	members := make([]namespaceMemberView, 0, len(detail.Members))
	for _, m := range detail.Members {
		members = append(members, namespaceMemberView{Username: m.Username, Role: m.RoleName})
	}
	writeJSON(w, http.StatusOK, members)
	return nil
}

func (s *Server) roleByName(r *http.Request, namespaceID int64, name string) (*model.NamespaceRole, error) {
	return s.store.GetNamespaceRoleByName(r.Context(), namespaceID, name)
}

// handleAddNamespaceMember implements POST /namespace/{ns}/user.
func (s *Server) handleAddNamespaceMember(w http.ResponseWriter, r *http.Request) error {
	user, err := requireUser(r)
	if err != nil {
		return err
	}
	ns, err := s.namespaceByName(r, chi.URLParam(r, "ns"))
	if err != nil {
		return err
	}
	ok, err := acl.CheckNamespace(r.Context(), s.store, user, ns.ID, model.PermNamespaceAdmin)
	if err != nil {
		return err
	}
	if err := acl.Require(ok); err != nil {
		return err
	}

	var payload struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		return err
	}
	target, err := s.store.GetUserByUsername(r.Context(), payload.Username)
	if err != nil {
		return err
	}
	role, err := s.roleByName(r, ns.ID, payload.Role)
	if err != nil {
		return err
	}
	canAssign, err := acl.CanAssignRole(r.Context(), s.store, user, ns.ID, role.Permissions)
	if err != nil {
		return err
	}
	if err := acl.Require(canAssign); err != nil {
		return err
	}

	if err := s.store.AddNamespaceMember(r.Context(), ns.ID, target.ID, role.ID, user); err != nil {
		return err
	}
	writeMessage(w, http.StatusCreated, "member added")
	return nil
}

// handleEditNamespaceMember implements POST /namespace/{ns}/user/{u}.
func (s *Server) handleEditNamespaceMember(w http.ResponseWriter, r *http.Request) error {
	user, err := requireUser(r)
	if err != nil {
		return err
	}
	ns, err := s.namespaceByName(r, chi.URLParam(r, "ns"))
	if err != nil {
		return err
	}
	ok, err := acl.CheckNamespace(r.Context(), s.store, user, ns.ID, model.PermNamespaceAdmin)
	if err != nil {
		return err
	}
	if err := acl.Require(ok); err != nil {
		return err
	}

	target, err := s.store.GetUserByUsername(r.Context(), chi.URLParam(r, "u"))
	if err != nil {
		return err
	}

	var payload struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		return err
	}
	role, err := s.roleByName(r, ns.ID, payload.Role)
	if err != nil {
		return err
	}
	canAssign, err := acl.CanAssignRole(r.Context(), s.store, user, ns.ID, role.Permissions)
	if err != nil {
		return err
	}
	if err := acl.Require(canAssign); err != nil {
		return err
	}

	if !model.Implies(role.Permissions, model.PermNamespaceOwner) {
		remaining, err := s.store.CountNamespaceOwners(r.Context(), ns.ID, target.ID)
		if err != nil {
			return err
		}
		currentPerms, err := s.store.MemberPermissions(r.Context(), ns.ID, target.ID)
		if err != nil {
			return err
		}
		if model.Implies(currentPerms, model.PermNamespaceOwner) && remaining == 0 {
			return apierr.NewPrecondition("namespace must retain at least one owner")
		}
	}

	if err := s.store.EditNamespaceMember(r.Context(), ns.ID, target.ID, role.ID, user); err != nil {
		return err
	}
	writeMessage(w, http.StatusOK, "member updated")
	return nil
}

// handleRemoveNamespaceMember implements DELETE /namespace/{ns}/user/{u}.
func (s *Server) handleRemoveNamespaceMember(w http.ResponseWriter, r *http.Request) error {
	user, err := requireUser(r)
	if err != nil {
		return err
	}
	ns, err := s.namespaceByName(r, chi.URLParam(r, "ns"))
	if err != nil {
		return err
	}
	ok, err := acl.CheckNamespace(r.Context(), s.store, user, ns.ID, model.PermNamespaceAdmin)
	if err != nil {
		return err
	}
	if err := acl.Require(ok); err != nil {
		return err
	}

	target, err := s.store.GetUserByUsername(r.Context(), chi.URLParam(r, "u"))
	if err != nil {
		return err
	}
	currentPerms, err := s.store.MemberPermissions(r.Context(), ns.ID, target.ID)
	if err != nil {
		return err
	}
	canAssignTarget, err := acl.CanAssignRole(r.Context(), s.store, user, ns.ID, currentPerms)
	if err != nil {
		return err
	}
	if err := acl.Require(canAssignTarget); err != nil {
		return err
	}
	remaining, err := s.store.CountNamespaceOwners(r.Context(), ns.ID, target.ID)
	if err != nil {
		return err
	}
	if model.Implies(currentPerms, model.PermNamespaceOwner) && remaining == 0 {
		return apierr.NewPrecondition("namespace must retain at least one owner")
	}

	if err := s.store.RemoveNamespaceMember(r.Context(), ns.ID, target.ID); err != nil {
		return err
	}
	writeMessage(w, http.StatusOK, "member removed")
	return nil
}

// handleListNamespaceRoles implements GET /namespace/{ns}/role.
func (s *Server) handleListNamespaceRoles(w http.ResponseWriter, r *http.Request) error {
	detail, err := s.store.GetNamespace(r.Context(), chi.URLParam(r, "ns"))
	if err != nil {
		return err
	}
	roles := make([]namespaceRoleView, 0, len(detail.Roles))
	for _, role := range detail.Roles {
		roles = append(roles, viewNamespaceRole(&role))
	}
	writeJSON(w, http.StatusOK, roles)
	return nil
}

// handleCreateNamespaceRole implements POST /namespace/{ns}/role.
func (s *Server) handleCreateNamespaceRole(w http.ResponseWriter, r *http.Request) error {
	user, err := requireUser(r)
	if err != nil {
		return err
	}
	ns, err := s.namespaceByName(r, chi.URLParam(r, "ns"))
	if err != nil {
		return err
	}
	ok, err := acl.CheckNamespace(r.Context(), s.store, user, ns.ID, model.PermNamespaceAdmin)
	if err != nil {
		return err
	}
	if err := acl.Require(ok); err != nil {
		return err
	}

	var payload struct {
		Name        string                  `json:"name"`
		Permissions []model.PermissionCode `json:"permissions"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		return err
	}
	in := validate.NamespaceRoleCreate{Name: payload.Name, Permissions: payload.Permissions}
	if err := in.Validate(); err != nil {
		return err
	}
	canAssign, err := acl.CanAssignRole(r.Context(), s.store, user, ns.ID, payload.Permissions)
	if err != nil {
		return err
	}
	if err := acl.Require(canAssign); err != nil {
		return err
	}

	if _, err := s.store.CreateNamespaceRole(r.Context(), ns.ID, payload.Name, payload.Permissions, user); err != nil {
		return err
	}
	writeMessage(w, http.StatusCreated, "role created")
	return nil
}

// handleEditNamespaceRole implements POST /namespace/{ns}/role/{r}.
func (s *Server) handleEditNamespaceRole(w http.ResponseWriter, r *http.Request) error {
	user, err := requireUser(r)
	if err != nil {
		return err
	}
	ns, err := s.namespaceByName(r, chi.URLParam(r, "ns"))
	if err != nil {
		return err
	}
	ok, err := acl.CheckNamespace(r.Context(), s.store, user, ns.ID, model.PermNamespaceAdmin)
	if err != nil {
		return err
	}
	if err := acl.Require(ok); err != nil {
		return err
	}

	role, err := s.roleByName(r, ns.ID, chi.URLParam(r, "r"))
	if err != nil {
		return err
	}
	canAssignCurrent, err := acl.CanAssignRole(r.Context(), s.store, user, ns.ID, role.Permissions)
	if err != nil {
		return err
	}
	if err := acl.Require(canAssignCurrent); err != nil {
		return err
	}

	var payload struct {
		Permissions []model.PermissionCode `json:"permissions"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		return err
	}
	in := validate.NamespaceRoleCreate{Name: role.Name, Permissions: payload.Permissions}
	if err := in.Validate(); err != nil {
		return err
	}
	canAssign, err := acl.CanAssignRole(r.Context(), s.store, user, ns.ID, payload.Permissions)
	if err != nil {
		return err
	}
	if err := acl.Require(canAssign); err != nil {
		return err
	}

	if err := s.store.EditNamespaceRole(r.Context(), role.ID, payload.Permissions, user); err != nil {
		return err
	}
	writeMessage(w, http.StatusOK, "role updated")
	return nil
}

// handleDeleteNamespaceRole implements DELETE /namespace/{ns}/role/{r}.
func (s *Server) handleDeleteNamespaceRole(w http.ResponseWriter, r *http.Request) error {
	user, err := requireUser(r)
	if err != nil {
		return err
	}
	ns, err := s.namespaceByName(r, chi.URLParam(r, "ns"))
	if err != nil {
		return err
	}
	ok, err := acl.CheckNamespace(r.Context(), s.store, user, ns.ID, model.PermNamespaceAdmin)
	if err != nil {
		return err
	}
	if err := acl.Require(ok); err != nil {
		return err
	}

	role, err := s.roleByName(r, ns.ID, chi.URLParam(r, "r"))
	if err != nil {
		return err
	}
	canAssignCurrent, err := acl.CanAssignRole(r.Context(), s.store, user, ns.ID, role.Permissions)
	if err != nil {
		return err
	}
	if err := acl.Require(canAssignCurrent); err != nil {
		return err
	}

	if err := s.store.DeleteNamespaceRole(r.Context(), role.ID); err != nil {
		return err
	}
	writeMessage(w, http.StatusOK, "role deleted")
	return nil
}

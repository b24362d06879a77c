// Package acl composes identity, namespace permissions, and package
// ownership into the boolean checks spec.md §4.4 requires. All functions are
// pure over already-loaded model values plus a small read port for
// namespace permission lookups; no function queries the database directly.
package acl

import (
	"context"

	"github.com/slowlime/knotd/internal/apierr"
	"github.com/slowlime/knotd/internal/model"
)

// NamespacePermissionReader loads the permission set a user holds in one
// namespace, unioned across every role assigned to them there.
type NamespacePermissionReader interface {
	NamespacePermissions(ctx context.Context, userID, namespaceID int64) ([]model.PermissionCode, error)
}

// IsAdmin reports whether user has the global admin role.
func IsAdmin(user *model.User) bool {
	return user != nil && user.Role == model.RoleAdmin
}

// IsActive reports whether user is not banned.
func IsActive(user *model.User) bool {
	return user != nil && user.Role != model.RoleBanned
}

// CanViewUser reports whether viewer may see target's profile.
func CanViewUser(viewer, target *model.User) bool {
	if viewer == nil {
		return false
	}
	if target != nil && viewer.ID == target.ID {
		return true
	}
	return IsAdmin(viewer) || IsActive(viewer)
}

// NamespacePermissions returns the union of permissions user holds in ns.
func NamespacePermissions(ctx context.Context, reader NamespacePermissionReader, user *model.User, namespaceID int64) ([]model.PermissionCode, error) {
	if user == nil {
		return nil, nil
	}
	return reader.NamespacePermissions(ctx, user.ID, namespaceID)
}

// CanEditPackage implements spec.md's canEditPackage: admin bypasses
// everything, banned users can do nothing, owners may always edit, and
// absent ownership a namespace package-edit grant suffices.
func CanEditPackage(ctx context.Context, reader NamespacePermissionReader, user *model.User, pkg *model.Package) (bool, error) {
	if !IsActive(user) {
		return false, nil
	}
	if IsAdmin(user) {
		return true, nil
	}
	if isOwner(user, pkg) {
		return true, nil
	}
	if pkg.NamespaceID == nil {
		return false, nil
	}
	perms, err := reader.NamespacePermissions(ctx, user.ID, *pkg.NamespaceID)
	if err != nil {
		return false, err
	}
	return model.Implies(perms, model.PermPackageEdit), nil
}

// CanDeletePackage is CanEditPackage but requires namespace-admin in lieu of
// package-edit when the caller is not an owner.
func CanDeletePackage(ctx context.Context, reader NamespacePermissionReader, user *model.User, pkg *model.Package) (bool, error) {
	if !IsActive(user) {
		return false, nil
	}
	if IsAdmin(user) {
		return true, nil
	}
	if isOwner(user, pkg) {
		return true, nil
	}
	if pkg.NamespaceID == nil {
		return false, nil
	}
	perms, err := reader.NamespacePermissions(ctx, user.ID, *pkg.NamespaceID)
	if err != nil {
		return false, err
	}
	return model.Implies(perms, model.PermNamespaceAdmin), nil
}

func isOwner(user *model.User, pkg *model.Package) bool {
	if user == nil {
		return false
	}
	for _, o := range pkg.Owners {
		if o == user.Username {
			return true
		}
	}
	return false
}

// CheckNamespace reports whether user satisfies required on namespaceID,
// admin bypassing the check unconditionally.
func CheckNamespace(ctx context.Context, reader NamespacePermissionReader, user *model.User, namespaceID int64, required model.PermissionCode) (bool, error) {
	if !IsActive(user) {
		return false, nil
	}
	if IsAdmin(user) {
		return true, nil
	}
	perms, err := reader.NamespacePermissions(ctx, user.ID, namespaceID)
	if err != nil {
		return false, err
	}
	return model.Implies(perms, required), nil
}

// CheckNamespaceMove implements the ordering rule for mutations that move a
// package between namespaces: the caller must hold removal permission
// (package-edit) in the old namespace and addition permission
// (package-create) in the new one. Admin satisfies both unconditionally.
func CheckNamespaceMove(ctx context.Context, reader NamespacePermissionReader, user *model.User, oldNamespaceID, newNamespaceID int64) (bool, error) {
	if IsAdmin(user) {
		return true, nil
	}
	okOld, err := CheckNamespace(ctx, reader, user, oldNamespaceID, model.PermPackageEdit)
	if err != nil || !okOld {
		return false, err
	}
	return CheckNamespace(ctx, reader, user, newNamespaceID, model.PermPackageCreate)
}

// CanAssignRole reports whether the caller may grant role (identified by its
// permission set) to a member: the caller's namespace permissions must imply
// every permission the role carries, unless the caller is admin.
func CanAssignRole(ctx context.Context, reader NamespacePermissionReader, user *model.User, namespaceID int64, rolePermissions []model.PermissionCode) (bool, error) {
	if IsAdmin(user) {
		return true, nil
	}
	perms, err := NamespacePermissions(ctx, reader, user, namespaceID)
	if err != nil {
		return false, err
	}
	return model.ImpliesAll(perms, rolePermissions), nil
}

// Require converts a false check result into apierr.NewNoPermission.
func Require(ok bool) error {
	if ok {
		return nil
	}
	return apierr.NewNoPermission()
}

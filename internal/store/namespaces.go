package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/slowlime/knotd/internal/apierr"
	"github.com/slowlime/knotd/internal/model"
)

// CreateNamespace creates a namespace, its owner role, and adds creator as
// the first member holding that role — all inside the caller's transaction,
// per spec.md §4.5.
func (s *Store) CreateNamespace(ctx context.Context, name, description string, homepage *string, creator *model.User) (*model.Namespace, error) {
	now := nowString()
	res, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO namespaces (name, description, homepage, created_at) VALUES (?, ?, ?, ?)
	`, name, description, homepage, now)
	if err != nil {
		if isUniqueViolation(err, "namespaces.name") {
			return nil, apierr.NewAlreadyExists("Namespace")
		}
		return nil, err
	}
	nsID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	roleRes, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO namespace_roles (namespace_id, name, created_by, created_at, updated_by, updated_at)
		VALUES (?, 'owner', ?, ?, ?, ?)
	`, nsID, creator.ID, now, creator.ID, now)
	if err != nil {
		return nil, err
	}
	roleID, err := roleRes.LastInsertId()
	if err != nil {
		return nil, err
	}
	if _, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO namespace_role_permissions (role_id, permission) VALUES (?, ?)
	`, roleID, string(model.PermNamespaceOwner)); err != nil {
		return nil, err
	}
	if _, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO namespace_members (namespace_id, user_id, role_id, added_by, added_at, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, nsID, creator.ID, roleID, creator.ID, now, creator.ID, now); err != nil {
		return nil, err
	}

	return s.getNamespaceByID(ctx, nsID)
}

func (s *Store) getNamespaceByID(ctx context.Context, id int64) (*model.Namespace, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT id, name, description, homepage, created_at FROM namespaces WHERE id = ?`, id)
	var ns model.Namespace
	var created string
	if err := row.Scan(&ns.ID, &ns.Name, &ns.Description, &ns.Homepage, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierr.NewNotFound("Namespace")
		}
		return nil, err
	}
	ns.CreatedAt = parseTime(created)
	return &ns, nil
}

// GetNamespaceIDByName resolves a namespace's natural key to its id.
func (s *Store) GetNamespaceIDByName(ctx context.Context, name string) (int64, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT id FROM namespaces WHERE name = ? COLLATE NOCASE`, name)
	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apierr.NewNotFound("Namespace")
		}
		return 0, err
	}
	return id, nil
}

// NamespaceDetail is the full aggregate GetNamespace returns: the namespace
// plus its members and roles, each with audit usernames resolved.
type NamespaceDetail struct {
	Namespace model.Namespace
	Members   []model.NamespaceMember
	Roles     []model.NamespaceRole
}

// GetNamespace loads the full namespace aggregate by name, bounding fan-out
// to one query per collection level (members, roles, role permissions)
// rather than one query per child, per spec.md §4.5.
func (s *Store) GetNamespace(ctx context.Context, name string) (*NamespaceDetail, error) {
	id, err := s.GetNamespaceIDByName(ctx, name)
	if err != nil {
		return nil, err
	}
	ns, err := s.getNamespaceByID(ctx, id)
	if err != nil {
		return nil, err
	}

	roles, err := s.listNamespaceRoles(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.listNamespaceMembers(ctx, id)
	if err != nil {
		return nil, err
	}

	return &NamespaceDetail{Namespace: *ns, Members: members, Roles: roles}, nil
}

func (s *Store) listNamespaceRoles(ctx context.Context, namespaceID int64) ([]model.NamespaceRole, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT r.id, r.name, r.created_by, cu.username, r.created_at, r.updated_by, uu.username, r.updated_at
		FROM namespace_roles r
		JOIN users cu ON cu.id = r.created_by
		JOIN users uu ON uu.id = r.updated_by
		WHERE r.namespace_id = ?
		ORDER BY r.id
	`, namespaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []model.NamespaceRole
	roleIdx := map[int64]int{}
	for rows.Next() {
		var r model.NamespaceRole
		var created, updated string
		if err := rows.Scan(&r.ID, &r.Name, &r.Audit.CreatedBy, &r.Audit.CreatedByUsername, &created, &r.Audit.UpdatedBy, &r.Audit.UpdatedByUsername, &updated); err != nil {
			return nil, err
		}
		r.NamespaceID = namespaceID
		r.Audit.CreatedAt = parseTime(created)
		r.Audit.UpdatedAt = parseTime(updated)
		roleIdx[r.ID] = len(roles)
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	permRows, err := s.q(ctx).QueryContext(ctx, `
		SELECT rp.role_id, rp.permission
		FROM namespace_role_permissions rp
		JOIN namespace_roles r ON r.id = rp.role_id
		WHERE r.namespace_id = ?
	`, namespaceID)
	if err != nil {
		return nil, err
	}
	defer permRows.Close()
	for permRows.Next() {
		var roleID int64
		var perm string
		if err := permRows.Scan(&roleID, &perm); err != nil {
			return nil, err
		}
		if idx, ok := roleIdx[roleID]; ok {
			roles[idx].Permissions = append(roles[idx].Permissions, model.PermissionCode(perm))
		}
	}
	return roles, permRows.Err()
}

func (s *Store) listNamespaceMembers(ctx context.Context, namespaceID int64) ([]model.NamespaceMember, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT m.user_id, u.username, m.role_id, r.name, m.added_by, au.username, m.added_at, m.updated_by, uu.username, m.updated_at
		FROM namespace_members m
		JOIN users u ON u.id = m.user_id
		JOIN namespace_roles r ON r.id = m.role_id
		JOIN users au ON au.id = m.added_by
		JOIN users uu ON uu.id = m.updated_by
		WHERE m.namespace_id = ?
		ORDER BY u.username COLLATE NOCASE
	`, namespaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []model.NamespaceMember
	for rows.Next() {
		var m model.NamespaceMember
		var added, updated string
		if err := rows.Scan(&m.UserID, &m.Username, &m.RoleID, &m.RoleName, &m.Audit.CreatedBy, &m.Audit.CreatedByUsername, &added, &m.Audit.UpdatedBy, &m.Audit.UpdatedByUsername, &updated); err != nil {
			return nil, err
		}
		m.NamespaceID = namespaceID
		m.Audit.CreatedAt = parseTime(added)
		m.Audit.UpdatedAt = parseTime(updated)
		members = append(members, m)
	}
	return members, rows.Err()
}

// NamespacePermissions implements acl.NamespacePermissionReader: the union
// of permissions across every role the user holds in namespaceID (today,
// membership assigns exactly one role, but the reader is written as a union
// so a future many-roles-per-member extension needs no ACL changes).
func (s *Store) NamespacePermissions(ctx context.Context, userID, namespaceID int64) ([]model.PermissionCode, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT DISTINCT rp.permission
		FROM namespace_members m
		JOIN namespace_role_permissions rp ON rp.role_id = m.role_id
		WHERE m.namespace_id = ? AND m.user_id = ?
	`, namespaceID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []model.PermissionCode
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, model.PermissionCode(p))
	}
	return perms, rows.Err()
}

// EditNamespace updates description/homepage.
func (s *Store) EditNamespace(ctx context.Context, namespaceID int64, description *string, homepage **string) error {
	if description != nil {
		if _, err := s.q(ctx).ExecContext(ctx, `UPDATE namespaces SET description = ? WHERE id = ?`, *description, namespaceID); err != nil {
			return err
		}
	}
	if homepage != nil {
		if _, err := s.q(ctx).ExecContext(ctx, `UPDATE namespaces SET homepage = ? WHERE id = ?`, *homepage, namespaceID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteNamespace removes a namespace; FK cascades remove its members and
// roles, and packages referencing it have namespace_id set to NULL
// (invariant 11).
func (s *Store) DeleteNamespace(ctx context.Context, namespaceID int64) error {
	_, err := s.q(ctx).ExecContext(ctx, `DELETE FROM namespaces WHERE id = ?`, namespaceID)
	return err
}

// CreateNamespaceRole creates a role with the given permission set.
func (s *Store) CreateNamespaceRole(ctx context.Context, namespaceID int64, name string, permissions []model.PermissionCode, actor *model.User) (int64, error) {
	now := nowString()
	res, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO namespace_roles (namespace_id, name, created_by, created_at, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, namespaceID, name, actor.ID, now, actor.ID, now)
	if err != nil {
		if isUniqueViolation(err, "namespace_roles") {
			return 0, apierr.NewAlreadyExists("Role")
		}
		return 0, err
	}
	roleID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, p := range permissions {
		if _, err := s.q(ctx).ExecContext(ctx, `
			INSERT INTO namespace_role_permissions (role_id, permission) VALUES (?, ?)
		`, roleID, string(p)); err != nil {
			return 0, err
		}
	}
	return roleID, nil
}

// GetNamespaceRoleByName resolves one role within a namespace.
func (s *Store) GetNamespaceRoleByName(ctx context.Context, namespaceID int64, name string) (*model.NamespaceRole, error) {
	roles, err := s.listNamespaceRoles(ctx, namespaceID)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		if r.Name == name {
			return &r, nil
		}
	}
	return nil, apierr.NewNotFound("Role")
}

// EditNamespaceRole replaces a role's permission set and touches its audit.
func (s *Store) EditNamespaceRole(ctx context.Context, roleID int64, permissions []model.PermissionCode, actor *model.User) error {
	now := nowString()
	if _, err := s.q(ctx).ExecContext(ctx, `
		UPDATE namespace_roles SET updated_by = ?, updated_at = ? WHERE id = ?
	`, actor.ID, now, roleID); err != nil {
		return err
	}
	if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM namespace_role_permissions WHERE role_id = ?`, roleID); err != nil {
		return err
	}
	for _, p := range permissions {
		if _, err := s.q(ctx).ExecContext(ctx, `
			INSERT INTO namespace_role_permissions (role_id, permission) VALUES (?, ?)
		`, roleID, string(p)); err != nil {
			return err
		}
	}
	return nil
}

// DeleteNamespaceRole removes a role, guarded by invariant 7 (no members may
// still reference it).
func (s *Store) DeleteNamespaceRole(ctx context.Context, roleID int64) error {
	var count int
	row := s.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM namespace_members WHERE role_id = ?`, roleID)
	if err := row.Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return apierr.NewPrecondition("role is still assigned to members")
	}
	_, err := s.q(ctx).ExecContext(ctx, `DELETE FROM namespace_roles WHERE id = ?`, roleID)
	return err
}

// CountNamespaceOwners counts members whose role implies namespace-owner,
// used to enforce invariant 1.
func (s *Store) CountNamespaceOwners(ctx context.Context, namespaceID int64, excludingUserID int64) (int, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT m.user_id)
		FROM namespace_members m
		JOIN namespace_role_permissions rp ON rp.role_id = m.role_id
		WHERE m.namespace_id = ? AND rp.permission = ? AND m.user_id != ?
	`, namespaceID, string(model.PermNamespaceOwner), excludingUserID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// AddNamespaceMember adds user with the given role.
func (s *Store) AddNamespaceMember(ctx context.Context, namespaceID, userID, roleID int64, actor *model.User) error {
	now := nowString()
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO namespace_members (namespace_id, user_id, role_id, added_by, added_at, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, namespaceID, userID, roleID, actor.ID, now, actor.ID, now)
	if isUniqueViolation(err, "namespace_members") {
		return apierr.NewAlreadyExists("NamespaceMember")
	}
	return err
}

// EditNamespaceMember reassigns user's role within namespaceID.
func (s *Store) EditNamespaceMember(ctx context.Context, namespaceID, userID, roleID int64, actor *model.User) error {
	now := nowString()
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE namespace_members SET role_id = ?, updated_by = ?, updated_at = ?
		WHERE namespace_id = ? AND user_id = ?
	`, roleID, actor.ID, now, namespaceID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierr.NewNotFound("NamespaceMember")
	}
	return nil
}

// RemoveNamespaceMember removes user from namespaceID.
func (s *Store) RemoveNamespaceMember(ctx context.Context, namespaceID, userID int64) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM namespace_members WHERE namespace_id = ? AND user_id = ?`, namespaceID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierr.NewNotFound("NamespaceMember")
	}
	return nil
}

// MemberPermissions returns the permission set held by a single member's
// role, used by the ACL's role-assignment-safety check.
func (s *Store) MemberPermissions(ctx context.Context, namespaceID, userID int64) ([]model.PermissionCode, error) {
	return s.NamespacePermissions(ctx, userID, namespaceID)
}

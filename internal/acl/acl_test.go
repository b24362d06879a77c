package acl_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlime/knotd/internal/acl"
	"github.com/slowlime/knotd/internal/model"
)

// fakeReader implements acl.NamespacePermissionReader over an in-memory map,
// one entry per (userID, namespaceID) pair.
type fakeReader struct {
	perms map[[2]int64][]model.PermissionCode
}

func (f *fakeReader) NamespacePermissions(ctx context.Context, userID, namespaceID int64) ([]model.PermissionCode, error) {
	return f.perms[[2]int64{userID, namespaceID}], nil
}

func TestIsActiveAndIsAdmin(t *testing.T) {
	assert.False(t, acl.IsActive(nil))
	assert.False(t, acl.IsActive(&model.User{Role: model.RoleBanned}))
	assert.True(t, acl.IsActive(&model.User{Role: model.RoleRegular}))
	assert.True(t, acl.IsAdmin(&model.User{Role: model.RoleAdmin}))
	assert.False(t, acl.IsAdmin(&model.User{Role: model.RoleRegular}))
}

func TestCanViewUser(t *testing.T) {
	self := &model.User{ID: 1, Role: model.RoleBanned}
	assert.True(t, acl.CanViewUser(self, self), "a banned user may still view their own profile")
	assert.False(t, acl.CanViewUser(nil, self))

	viewer := &model.User{ID: 2, Role: model.RoleRegular}
	assert.True(t, acl.CanViewUser(viewer, self))
}

func TestCanEditPackage(t *testing.T) {
	reader := &fakeReader{perms: map[[2]int64][]model.PermissionCode{
		{1, 10}: {model.PermPackageEdit},
	}}
	ns := int64(10)
	pkg := &model.Package{NamespaceID: &ns, Owners: []string{"bob"}}

	owner := &model.User{ID: 99, Username: "bob", Role: model.RoleRegular}
	ok, err := acl.CanEditPackage(context.Background(), reader, owner, pkg)
	require.NoError(t, err)
	assert.True(t, ok, "owners can always edit")

	editor := &model.User{ID: 1, Username: "alice", Role: model.RoleRegular}
	ok, err = acl.CanEditPackage(context.Background(), reader, editor, pkg)
	require.NoError(t, err)
	assert.True(t, ok, "a namespace package-edit grant suffices")

	stranger := &model.User{ID: 2, Username: "eve", Role: model.RoleRegular}
	ok, err = acl.CanEditPackage(context.Background(), reader, stranger, pkg)
	require.NoError(t, err)
	assert.False(t, ok)

	banned := &model.User{ID: 1, Username: "alice", Role: model.RoleBanned}
	ok, err = acl.CanEditPackage(context.Background(), reader, banned, pkg)
	require.NoError(t, err)
	assert.False(t, ok, "banned users can do nothing even with a grant")
}

func TestCanDeletePackageRequiresAdminNotEdit(t *testing.T) {
	reader := &fakeReader{perms: map[[2]int64][]model.PermissionCode{
		{1, 10}: {model.PermPackageEdit},
		{2, 10}: {model.PermNamespaceAdmin},
	}}
	ns := int64(10)
	pkg := &model.Package{NamespaceID: &ns}

	editorOnly := &model.User{ID: 1, Role: model.RoleRegular}
	ok, err := acl.CanDeletePackage(context.Background(), reader, editorOnly, pkg)
	require.NoError(t, err)
	assert.False(t, ok, "package-edit alone is not enough to delete")

	admin := &model.User{ID: 2, Role: model.RoleRegular}
	ok, err = acl.CanDeletePackage(context.Background(), reader, admin, pkg)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckNamespaceMove(t *testing.T) {
	reader := &fakeReader{perms: map[[2]int64][]model.PermissionCode{
		{1, 10}: {model.PermPackageEdit},
		{1, 20}: {model.PermPackageCreate},
		{1, 30}: {model.PermPackageEdit},
	}}
	user := &model.User{ID: 1, Role: model.RoleRegular}

	ok, err := acl.CheckNamespaceMove(context.Background(), reader, user, 10, 20)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = acl.CheckNamespaceMove(context.Background(), reader, user, 10, 30)
	require.NoError(t, err)
	assert.False(t, ok, "the destination namespace lacks package-create")
}

func TestCanAssignRole(t *testing.T) {
	reader := &fakeReader{perms: map[[2]int64][]model.PermissionCode{
		{1, 10}: {model.PermNamespaceAdmin},
	}}
	admin := &model.User{ID: 1, Role: model.RoleRegular}

	ok, err := acl.CanAssignRole(context.Background(), reader, admin, 10, []model.PermissionCode{model.PermPackageEdit, model.PermPackageCreate})
	require.NoError(t, err)
	assert.True(t, ok, "namespace-admin implies both package permissions")

	ok, err = acl.CanAssignRole(context.Background(), reader, admin, 10, []model.PermissionCode{model.PermNamespaceOwner})
	require.NoError(t, err)
	assert.False(t, ok, "admin cannot grant a role more powerful than their own")
}

func TestRequire(t *testing.T) {
	assert.NoError(t, acl.Require(true))
	assert.Error(t, acl.Require(false))
}

package store_test

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlime/knotd/internal/apierr"
	"github.com/slowlime/knotd/internal/model"
	"github.com/slowlime/knotd/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knotd.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustCreateUser(t *testing.T, s *store.Store, username string) *model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), username, username+"@example.com", "hashed")
	require.NoError(t, err)
	return u
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreateUser(t, s, "alice")
	assert.NotZero(t, u.ID)
	assert.Equal(t, model.RoleRegular, u.Role)

	got, err := s.GetUserByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID, "username lookups are case-insensitive")
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "alice")
	_, err := s.CreateUser(ctx, "Alice", "other@example.com", "hashed")
	require.Error(t, err)
	var taken *apierr.UsernameTaken
	require.ErrorAs(t, err, &taken)
	assert.Equal(t, http.StatusBadRequest, taken.Status())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, s, "alice")
	_, err := s.CreateUser(ctx, "bob", "ALICE@example.com", "hashed")
	require.Error(t, err)
	var registered *apierr.EmailRegistered
	require.ErrorAs(t, err, &registered)
	assert.Equal(t, http.StatusBadRequest, registered.Status())
}

func TestGetUserByUsernameNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetUserByUsername(context.Background(), "ghost")
	var notFound *apierr.NotFound
	require.ErrorAs(t, err, &notFound)
}

func TestCreateNamespaceOwnerMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	creator := mustCreateUser(t, s, "alice")

	ns, err := s.CreateNamespace(ctx, "acme", "widgets", nil, creator)
	require.NoError(t, err)
	assert.Equal(t, "acme", ns.Name)

	detail, err := s.GetNamespace(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, detail.Members, 1)
	assert.Equal(t, "alice", detail.Members[0].Username)

	perms, err := s.NamespacePermissions(ctx, creator.ID, detail.Namespace.ID)
	require.NoError(t, err)
	assert.True(t, model.Implies(perms, model.PermNamespaceOwner), "the creator is made an owner")
}

func TestCreateNamespaceDuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	creator := mustCreateUser(t, s, "alice")

	_, err := s.CreateNamespace(ctx, "acme", "", nil, creator)
	require.NoError(t, err)
	_, err = s.CreateNamespace(ctx, "ACME", "", nil, creator)
	var already *apierr.AlreadyExists
	require.ErrorAs(t, err, &already)
}

func TestCreatePackageAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	creator := mustCreateUser(t, s, "alice")

	in := store.PackageCreateInput{
		Name:    "widget",
		Summary: "a widget",
		Labels:  []string{"tools"},
		Owners:  []string{"alice"},
		Versions: []store.VersionInput{
			{Version: "1.0.0", Description: "first release"},
		},
		Tags: []store.TagInput{{Name: "latest", Version: "1.0.0"}},
	}
	pkg, err := s.CreatePackage(ctx, in, creator)
	require.NoError(t, err)
	assert.Equal(t, "widget", pkg.Name)
	require.Len(t, pkg.Versions, 1)
	require.Len(t, pkg.Tags, 1)
	assert.Equal(t, "latest", pkg.Tags[0].Name)
	assert.Contains(t, pkg.Owners, "alice")
	assert.Contains(t, pkg.Labels, "tools")

	got, err := s.GetPackage(ctx, "widget")
	require.NoError(t, err)
	assert.Equal(t, pkg.ID, got.ID)
}

func TestCreatePackageUnknownOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	creator := mustCreateUser(t, s, "alice")

	in := store.PackageCreateInput{Name: "widget", Owners: []string{"ghost"}}
	_, err := s.CreatePackage(ctx, in, creator)
	var unknown *apierr.UnknownOwners
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"ghost"}, unknown.Usernames)
}

func TestCreatePackageUnknownDependency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	creator := mustCreateUser(t, s, "alice")

	in := store.PackageCreateInput{
		Name: "widget",
		Versions: []store.VersionInput{
			{
				Version:      "1.0.0",
				Dependencies: []store.DependencyInput{{PackageName: "ghost-dep", Spec: "^1"}},
			},
		},
	}
	_, err := s.CreatePackage(ctx, in, creator)
	var unknown *apierr.UnknownDependencies
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"ghost-dep"}, unknown.Packages)
}

func TestDeletePackageGCsLabels(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	creator := mustCreateUser(t, s, "alice")

	pkg, err := s.CreatePackage(ctx, store.PackageCreateInput{
		Name:   "widget",
		Labels: []string{"solo-label"},
	}, creator)
	require.NoError(t, err)

	require.NoError(t, s.DeletePackage(ctx, pkg.ID))

	_, err = s.GetPackage(ctx, "widget")
	var notFound *apierr.NotFound
	require.ErrorAs(t, err, &notFound)

	var n int
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM labels WHERE name = ?`, "solo-label").Scan(&n))
	assert.Equal(t, 0, n, "a label no package references is deleted")
}

func TestCountDependentsBlocksDeletion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	creator := mustCreateUser(t, s, "alice")

	base, err := s.CreatePackage(ctx, store.PackageCreateInput{
		Name:     "base",
		Versions: []store.VersionInput{{Version: "1.0.0"}},
	}, creator)
	require.NoError(t, err)

	_, err = s.CreatePackage(ctx, store.PackageCreateInput{
		Name: "dependent",
		Versions: []store.VersionInput{
			{Version: "1.0.0", Dependencies: []store.DependencyInput{{PackageName: "base", Spec: "^1"}}},
		},
	}, creator)
	require.NoError(t, err)

	n, err := s.CountDependents(ctx, base.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIncrementDownloads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	creator := mustCreateUser(t, s, "alice")

	pkg, err := s.CreatePackage(ctx, store.PackageCreateInput{
		Name:     "widget",
		Versions: []store.VersionInput{{Version: "1.0.0"}},
	}, creator)
	require.NoError(t, err)

	versionID, err := s.GetVersionIDByString(ctx, pkg.ID, "1.0.0")
	require.NoError(t, err)
	require.NoError(t, s.IncrementDownloads(ctx, versionID))
	require.NoError(t, s.IncrementDownloads(ctx, versionID))

	got, err := s.GetPackage(ctx, "widget")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Downloads())
}

package validate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlime/knotd/internal/apierr"
	"github.com/slowlime/knotd/internal/model"
	"github.com/slowlime/knotd/internal/validate"
)

func fieldPaths(t *testing.T, err error) []string {
	t.Helper()
	require.Error(t, err)
	v, ok := err.(*apierr.Validation)
	require.True(t, ok, "expected *apierr.Validation, got %T", err)
	paths := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		paths[i] = f.Path
	}
	return paths
}

func TestUsername(t *testing.T) {
	assert.NoError(t, validate.Username("username", "slowlime"))
	assert.Error(t, validate.Username("username", ""))
	assert.Error(t, validate.Username("username", "9-leading-digit"))
	assert.Error(t, validate.Username("username", "has spaces"))
}

func TestUserRegisterValidate(t *testing.T) {
	ok := validate.UserRegister{Username: "bob", Email: "bob@example.com", Password: "hunter2"}
	assert.NoError(t, ok.Validate())

	bad := validate.UserRegister{Username: "bob", Email: "not-an-email", Password: ""}
	paths := fieldPaths(t, bad.Validate())
	assert.Contains(t, paths, "email")
	assert.Contains(t, paths, "password")
}

func TestNamespaceCreateValidate(t *testing.T) {
	hp := "https://example.com"
	ok := validate.NamespaceCreate{Name: "acme", Description: "widgets", Homepage: &hp}
	assert.NoError(t, ok.Validate())

	badHP := "not a url"
	bad := validate.NamespaceCreate{Name: "acme", Homepage: &badHP}
	assert.Contains(t, fieldPaths(t, bad.Validate()), "homepage")
}

func TestPackageVersionBaseValidateSemver(t *testing.T) {
	ok := validate.PackageVersionBase{Version: "1.2.3"}
	assert.NoError(t, ok.Validate())

	bad := validate.PackageVersionBase{Version: "not-semver"}
	assert.Contains(t, fieldPaths(t, bad.Validate()), "version")
}

func TestPackageVersionBaseValidateChecksums(t *testing.T) {
	good := validate.PackageVersionBase{
		Version: "1.0.0",
		Checksums: []validate.ChecksumInput{
			// sha256 needs 32 raw bytes, i.e. 64 hex characters.
			{Algorithm: model.ChecksumSHA256, Value: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"},
		},
	}
	assert.NoError(t, good.Validate())

	badLen := validate.PackageVersionBase{
		Version:   "1.0.0",
		Checksums: []validate.ChecksumInput{{Algorithm: model.ChecksumSHA256, Value: "abcd"}},
	}
	assert.Contains(t, fieldPaths(t, badLen.Validate()), "checksums[0].value")

	unknownAlgo := validate.PackageVersionBase{
		Version:   "1.0.0",
		Checksums: []validate.ChecksumInput{{Algorithm: "crc32", Value: "ab"}},
	}
	assert.Contains(t, fieldPaths(t, unknownAlgo.Validate()), "checksums[0].algorithm")

	dup := validate.PackageVersionBase{
		Version: "1.0.0",
		Checksums: []validate.ChecksumInput{
			{Algorithm: model.ChecksumMD5, Value: "00000000000000000000000000000000"},
			{Algorithm: model.ChecksumMD5, Value: "00000000000000000000000000000000"},
		},
	}
	assert.Contains(t, fieldPaths(t, dup.Validate()), "checksums[1].algorithm")
}

func TestPackageCreateValidate(t *testing.T) {
	ok := validate.PackageCreate{
		Name:    "widget",
		Summary: "a widget",
		Versions: []validate.PackageVersionBase{
			{Version: "1.0.0"},
		},
		Tags: []validate.TagInput{{Name: "latest", Version: "1.0.0"}},
	}
	assert.NoError(t, ok.Validate())

	badTagTarget := validate.PackageCreate{
		Name:     "widget",
		Versions: []validate.PackageVersionBase{{Version: "1.0.0"}},
		Tags:     []validate.TagInput{{Name: "latest", Version: "2.0.0"}},
	}
	assert.Contains(t, fieldPaths(t, badTagTarget.Validate()), "tags[0].version")

	dupVersion := validate.PackageCreate{
		Name: "widget",
		Versions: []validate.PackageVersionBase{
			{Version: "1.0.0"},
			{Version: "1.0.0"},
		},
	}
	assert.Contains(t, fieldPaths(t, dupVersion.Validate()), "versions[1].version")
}

func TestPackageEditValidate(t *testing.T) {
	summary := "fine"
	ok := validate.PackageEdit{Summary: &summary}
	assert.NoError(t, ok.Validate())

	// An empty owners list is not a field-validation error: whether it leaves
	// the package without an owner depends on store state, so that check
	// lives in the store/handler layer as a Precondition, not here.
	emptyOwners := []string{}
	withEmptyOwners := validate.PackageEdit{Owners: &emptyOwners}
	assert.NoError(t, withEmptyOwners.Validate())

	tooLong := strings.Repeat("x", 257)
	badSummary := validate.PackageEdit{Summary: &tooLong}
	assert.Contains(t, fieldPaths(t, badSummary.Validate()), "summary")
}

func TestNamespaceRoleCreateValidate(t *testing.T) {
	ok := validate.NamespaceRoleCreate{Name: "maintainer", Permissions: []model.PermissionCode{model.PermPackageEdit}}
	assert.NoError(t, ok.Validate())

	bad := validate.NamespaceRoleCreate{Name: "maintainer", Permissions: []model.PermissionCode{"bogus"}}
	assert.Contains(t, fieldPaths(t, bad.Validate()), "permissions[0]")
}

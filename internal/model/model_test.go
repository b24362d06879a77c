package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slowlime/knotd/internal/model"
)

func TestImplies(t *testing.T) {
	cases := []struct {
		name     string
		held     []model.PermissionCode
		required model.PermissionCode
		want     bool
	}{
		{"owner implies admin", []model.PermissionCode{model.PermNamespaceOwner}, model.PermNamespaceAdmin, true},
		{"owner implies edit", []model.PermissionCode{model.PermNamespaceOwner}, model.PermNamespaceEdit, true},
		{"owner implies package-create", []model.PermissionCode{model.PermNamespaceOwner}, model.PermPackageCreate, true},
		{"admin implies package-edit", []model.PermissionCode{model.PermNamespaceAdmin}, model.PermPackageEdit, true},
		{"admin does not imply owner", []model.PermissionCode{model.PermNamespaceAdmin}, model.PermNamespaceOwner, false},
		{"edit does not imply admin", []model.PermissionCode{model.PermNamespaceEdit}, model.PermNamespaceAdmin, false},
		{"edit does not imply package-create", []model.PermissionCode{model.PermNamespaceEdit}, model.PermPackageCreate, false},
		{"direct permission satisfies itself", []model.PermissionCode{model.PermPackageCreate}, model.PermPackageCreate, true},
		{"empty set satisfies nothing", nil, model.PermNamespaceEdit, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, model.Implies(c.held, c.required))
		})
	}
}

func TestImpliesAll(t *testing.T) {
	held := []model.PermissionCode{model.PermNamespaceAdmin}
	assert.True(t, model.ImpliesAll(held, []model.PermissionCode{model.PermPackageCreate, model.PermPackageEdit}))
	assert.False(t, model.ImpliesAll(held, []model.PermissionCode{model.PermPackageCreate, model.PermNamespaceOwner}))
}

func TestPackageDownloadsSumsVersions(t *testing.T) {
	p := &model.Package{
		Versions: []model.PackageVersion{
			{Downloads: 3},
			{Downloads: 7},
		},
	}
	assert.Equal(t, int64(10), p.Downloads())
}

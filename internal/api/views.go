package api

import (
	"encoding/hex"

	"github.com/slowlime/knotd/internal/model"
)

type userView struct {
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	RegisteredAt string `json:"registered_at"`
	Role         string `json:"role"`
}

func viewUser(u *model.User, includeEmail bool) userView {
	v := userView{
		Username:     u.Username,
		RegisteredAt: u.RegisteredAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Role:         string(u.Role),
	}
	if includeEmail {
		v.Email = u.Email
	}
	return v
}

type namespaceView struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Homepage    *string  `json:"homepage"`
	CreatedAt   string   `json:"created_at"`
}

func viewNamespace(ns *model.Namespace) namespaceView {
	return namespaceView{
		Name:        ns.Name,
		Description: ns.Description,
		Homepage:    ns.Homepage,
		CreatedAt:   ns.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

type namespaceMemberView struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type namespaceRoleView struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

func viewNamespaceRole(r *model.NamespaceRole) namespaceRoleView {
	perms := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, string(p))
	}
	return namespaceRoleView{Name: r.Name, Permissions: perms}
}

type checksumView struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

type dependencyView struct {
	Package string `json:"package"`
	Spec    string `json:"spec"`
}

type versionView struct {
	Version       string           `json:"version"`
	Description   string           `json:"description"`
	RepositoryURL *string          `json:"repository_url"`
	TarballURL    *string          `json:"tarball_url"`
	Downloads     int64            `json:"downloads"`
	Checksums     []checksumView   `json:"checksums"`
	Dependencies  []dependencyView `json:"dependencies"`
	CreatedBy     string           `json:"created_by"`
	CreatedAt     string           `json:"created_at"`
}

func viewVersion(v *model.PackageVersion) versionView {
	checksums := make([]checksumView, 0, len(v.Checksums))
	for _, c := range v.Checksums {
		checksums = append(checksums, checksumView{Algorithm: string(c.Algorithm), Value: hex.EncodeToString(c.Value)})
	}
	deps := make([]dependencyView, 0, len(v.Dependencies))
	for _, d := range v.Dependencies {
		deps = append(deps, dependencyView{Package: d.PackageName, Spec: d.Spec})
	}
	return versionView{
		Version:       v.Version,
		Description:   v.Description,
		RepositoryURL: v.RepositoryURL,
		TarballURL:    v.TarballURL,
		Downloads:     v.Downloads,
		Checksums:     checksums,
		Dependencies:  deps,
		CreatedBy:     v.CreatedByUsername,
		CreatedAt:     v.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

type tagView struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type packageView struct {
	Name      string        `json:"name"`
	Summary   string        `json:"summary"`
	Namespace *string       `json:"namespace"`
	Labels    []string      `json:"labels"`
	Owners    []string      `json:"owners"`
	Downloads int64         `json:"downloads"`
	Versions  []versionView `json:"versions"`
	Tags      []tagView     `json:"tags"`
	CreatedBy string        `json:"created_by"`
	CreatedAt string        `json:"created_at"`
	UpdatedBy string        `json:"updated_by"`
	UpdatedAt string        `json:"updated_at"`
}

func viewPackage(p *model.Package) packageView {
	versions := make([]versionView, 0, len(p.Versions))
	for _, v := range p.Versions {
		versions = append(versions, viewVersion(&v))
	}
	tags := make([]tagView, 0, len(p.Tags))
	for _, t := range p.Tags {
		tags = append(tags, tagView{Name: t.Name, Version: t.Version})
	}
	return packageView{
		Name:      p.Name,
		Summary:   p.Summary,
		Namespace: p.NamespaceName,
		Labels:    p.Labels,
		Owners:    p.Owners,
		Downloads: p.Downloads(),
		Versions:  versions,
		Tags:      tags,
		CreatedBy: p.Audit.CreatedByUsername,
		CreatedAt: p.Audit.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedBy: p.Audit.UpdatedByUsername,
		UpdatedAt: p.Audit.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func codesToStrings() []string {
	out := make([]string, 0, len(model.AllPermissions))
	for _, p := range model.AllPermissions {
		out = append(out, string(p))
	}
	return out
}

type packageBriefView struct {
	Name      string   `json:"name"`
	Summary   string   `json:"summary"`
	Namespace *string  `json:"namespace"`
	Labels    []string `json:"labels"`
	Owners    []string `json:"owners"`
	Downloads int64    `json:"downloads"`
}

func viewPackageBrief(p *model.PackageBrief) packageBriefView {
	return packageBriefView{
		Name:      p.Name,
		Summary:   p.Summary,
		Namespace: p.NamespaceName,
		Labels:    p.Labels,
		Owners:    p.Owners,
		Downloads: p.Downloads,
	}
}

package api

import (
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/slowlime/knotd/internal/acl"
	"github.com/slowlime/knotd/internal/apierr"
	"github.com/slowlime/knotd/internal/model"
	"github.com/slowlime/knotd/internal/store"
	"github.com/slowlime/knotd/internal/validate"
)

type checksumPayload struct {
	Algorithm model.ChecksumAlgorithm `json:"algorithm"`
	Value     string                  `json:"value"`
}

type dependencyPayload struct {
	Package string `json:"package"`
	Spec    string `json:"spec"`
}

type versionPayload struct {
	Version       string              `json:"version"`
	Description   string              `json:"description"`
	RepositoryURL *string             `json:"repository_url"`
	TarballURL    *string             `json:"tarball_url"`
	Checksums     []checksumPayload   `json:"checksums"`
	Dependencies  []dependencyPayload `json:"dependencies"`
}

func (p versionPayload) toValidate() validate.PackageVersionBase {
	checksums := make([]validate.ChecksumInput, 0, len(p.Checksums))
	for _, c := range p.Checksums {
		checksums = append(checksums, validate.ChecksumInput{Algorithm: c.Algorithm, Value: c.Value})
	}
	deps := make([]validate.DependencyInput, 0, len(p.Dependencies))
	for _, d := range p.Dependencies {
		deps = append(deps, validate.DependencyInput{Package: d.Package, Spec: d.Spec})
	}
	return validate.PackageVersionBase{
		Version: p.Version, Description: p.Description,
		RepositoryURL: p.RepositoryURL, TarballURL: p.TarballURL,
		Checksums: checksums, Dependencies: deps,
	}
}

func (p versionPayload) toStoreInput() (store.VersionInput, error) {
	checksums := make([]model.Checksum, 0, len(p.Checksums))
	for _, c := range p.Checksums {
		raw, err := decodeHexChecksum(c.Value)
		if err != nil {
			return store.VersionInput{}, err
		}
		checksums = append(checksums, model.Checksum{Algorithm: c.Algorithm, Value: raw})
	}
	deps := make([]store.DependencyInput, 0, len(p.Dependencies))
	for _, d := range p.Dependencies {
		deps = append(deps, store.DependencyInput{PackageName: d.Package, Spec: d.Spec})
	}
	return store.VersionInput{
		Version: p.Version, Description: p.Description,
		RepositoryURL: p.RepositoryURL, TarballURL: p.TarballURL,
		Checksums: checksums, Dependencies: deps,
	}, nil
}

func decodeHexChecksum(v string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.ToLower(v))
	if err != nil {
		return nil, apierr.NewValidation([]apierr.FieldError{{Path: "value", Message: "must be lowercase hex"}})
	}
	return raw, nil
}

// handleListPackages implements GET /package.
func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) error {
	var filter store.PackageListFilter
	if ns := r.URL.Query().Get("namespace"); ns != "" {
		filter.Namespace = &ns
	}
	if label := r.URL.Query().Get("label"); label != "" {
		filter.Label = &label
	}
	pkgs, err := s.store.GetPackages(r.Context(), filter)
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

// handleGetPackage implements GET /package/{p}.
func (s *Server) handleGetPackage(w http.ResponseWriter, r *http.Request) error {
	pkg, err := s.store.GetPackage(r.Context(), chi.URLParam(r, "p"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, viewPackage(pkg))
	return nil
}

// handleCreatePackage implements POST /package.
func (s *Server) handleCreatePackage(w http.ResponseWriter, r *http.Request) error {
	user, err := requireUser(r)
	if err != nil {
		return err
	}
	if !acl.IsActive(user) {
		return apierr.NewNoPermission()
	}

	var payload struct {
		Name      string           `json:"name"`
		Summary   string           `json:"summary"`
		Namespace *string          `json:"namespace"`
		Labels    []string         `json:"labels"`
		Owners    []string         `json:"owners"`
		Versions  []versionPayload `json:"versions"`
		Tags      []struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"tags"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		return err
	}

	if payload.Namespace != nil {
		ns, err := s.namespaceByName(r, *payload.Namespace)
		if err != nil {
			return err
		}
		ok, err := acl.CheckNamespace(r.Context(), s.store, user, ns.ID, model.PermPackageCreate)
		if err != nil {
			return err
		}
		if err := acl.Require(ok); err != nil {
			return err
		}
	}
	if len(payload.Owners) == 0 {
		payload.Owners = []string{user.Username}
	}

	vIn := validate.PackageCreate{
		Name: payload.Name, Summary: payload.Summary, Namespace: payload.Namespace,
		Labels: payload.Labels, Owners: payload.Owners,
	}
	for _, v := range payload.Versions {
		vIn.Versions = append(vIn.Versions, v.toValidate())
	}
	for _, t := range payload.Tags {
		vIn.Tags = append(vIn.Tags, validate.TagInput{Name: t.Name, Version: t.Version})
	}
	if err := vIn.Validate(); err != nil {
		return err
	}

	in := store.PackageCreateInput{
		Name: payload.Name, Summary: payload.Summary, NamespaceName: payload.Namespace,
		Labels: payload.Labels, Owners: payload.Owners,
	}
	for _, v := range payload.Versions {
		sv, err := v.toStoreInput()
		if err != nil {
			return err
		}
		in.Versions = append(in.Versions, sv)
	}
	for _, t := range payload.Tags {
		in.Tags = append(in.Tags, store.TagInput{Name: t.Name, Version: t.Version})
	}

	if _, err := s.store.CreatePackage(r.Context(), in, user); err != nil {
		return err
	}
	writeMessage(w, http.StatusCreated, "package created")
	return nil
}

func (s *Server) requirePackageEdit(r *http.Request, user *model.User, pkg *model.Package) error {
	ok, err := acl.CanEditPackage(r.Context(), s.store, user, pkg)
	if err != nil {
		return err
	}
	return acl.Require(ok)
}

// handleEditPackage implements POST /package/{p}.
func (s *Server) handleEditPackage(w http.ResponseWriter, r *http.Request) error {
	user, err := requireUser(r)
	if err != nil {
		return err
	}
	pkg, err := s.store.GetPackage(r.Context(), chi.URLParam(r, "p"))
	if err != nil {
		return err
	}
	if err := s.requirePackageEdit(r, user, pkg); err != nil {
		return err
	}

	var payload struct {
		Summary   *string  `json:"summary"`
		Namespace **string `json:"namespace"`
		Labels    *[]string `json:"labels"`
		Owners    *[]string `json:"owners"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		return err
	}
	vIn := validate.PackageEdit{Summary: payload.Summary, Namespace: payload.Namespace, Labels: payload.Labels, Owners: payload.Owners}
	if err := vIn.Validate(); err != nil {
		return err
	}
	if payload.Owners != nil && len(*payload.Owners) == 0 {
		return apierr.NewPrecondition("package would be left without owner")
	}

	if payload.Namespace != nil {
		oldNsID := int64(0)
		if pkg.NamespaceID != nil {
			oldNsID = *pkg.NamespaceID
		}
		var newNsID int64
		if *payload.Namespace != nil {
			ns, err := s.namespaceByName(r, **payload.Namespace)
			if err != nil {
				return err
			}
			newNsID = ns.ID
		}
		ok, err := acl.CheckNamespaceMove(r.Context(), s.store, user, oldNsID, newNsID)
		if err != nil {
			return err
		}
		if err := acl.Require(ok); err != nil {
			return err
		}
	}

	in := store.PackageEditInput{Summary: payload.Summary, Namespace: payload.Namespace, Labels: payload.Labels, Owners: payload.Owners}
	if err := s.store.EditPackage(r.Context(), pkg.ID, in, user); err != nil {
		return err
	}
	writeMessage(w, http.StatusOK, "package updated")
	return nil
}

// handleDeletePackage implements DELETE /package/{p}.
func (s *Server) handleDeletePackage(w http.ResponseWriter, r *http.Request) error {
	user, err := requireUser(r)
	if err != nil {
		return err
	}
	pkg, err := s.store.GetPackage(r.Context(), chi.URLParam(r, "p"))
	if err != nil {
		return err
	}
	ok, err := acl.CanDeletePackage(r.Context(), s.store, user, pkg)
	if err != nil {
		return err
	}
	if err := acl.Require(ok); err != nil {
		return err
	}

	dependents, err := s.store.CountDependents(r.Context(), pkg.ID)
	if err != nil {
		return err
	}
	if dependents > 0 {
		return apierr.NewPrecondition("package has dependents")
	}
	if err := s.store.DeletePackage(r.Context(), pkg.ID); err != nil {
		return err
	}
	writeMessage(w, http.StatusOK, "package deleted")
	return nil
}

// handleListVersions implements GET /package/{p}/version.
func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) error {
	pkg, err := s.store.GetPackage(r.Context(), chi.URLParam(r, "p"))
	if err != nil {
		return err
	}
	out := make([]versionView, 0, len(pkg.Versions))
	for _, v := range pkg.Versions {
		out = append(out, viewVersion(&v))
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

// handleGetVersion implements GET /package/{p}/version/{v}.
func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) error {
	pkg, err := s.store.GetPackage(r.Context(), chi.URLParam(r, "p"))
	if err != nil {
		return err
	}
	versionStr := chi.URLParam(r, "v")
	for _, v := range pkg.Versions {
		if v.Version == versionStr {
			if err := s.store.IncrementDownloads(r.Context(), v.ID); err != nil {
				return err
			}
			writeJSON(w, http.StatusOK, viewVersion(&v))
			return nil
		}
	}
	return apierr.NewNotFound("PackageVersion")
}

// handleCreateVersion implements POST /package/{p}/version: publish.
func (s *Server) handleCreateVersion(w http.ResponseWriter, r *http.Request) error {
	user, err := requireUser(r)
	if err != nil {
		return err
	}
	pkg, err := s.store.GetPackage(r.Context(), chi.URLParam(r, "p"))
	if err != nil {
		return err
	}
	if err := s.requirePackageEdit(r, user, pkg); err != nil {
		return err
	}

	var payload versionPayload
	if err := decodeJSON(r, &payload); err != nil {
		return err
	}
	vIn := payload.toValidate()
	if err := vIn.Validate(); err != nil {
		return err
	}
	sv, err := payload.toStoreInput()
	if err != nil {
		return err
	}
	if _, err := s.store.CreateVersion(r.Context(), pkg.ID, sv, user); err != nil {
		return err
	}
	writeMessage(w, http.StatusCreated, "version published")
	return nil
}

func (s *Server) versionByString(r *http.Request, pkg *model.Package, versionStr string) (*model.PackageVersion, error) {
	for i := range pkg.Versions {
		if pkg.Versions[i].Version == versionStr {
			return &pkg.Versions[i], nil
		}
	}
	return nil, apierr.NewNotFound("PackageVersion")
}

// handleEditVersion implements POST /package/{p}/version/{v}.
func (s *Server) handleEditVersion(w http.ResponseWriter, r *http.Request) error {
	user, err := requireUser(r)
	if err != nil {
		return err
	}
	pkg, err := s.store.GetPackage(r.Context(), chi.URLParam(r, "p"))
	if err != nil {
		return err
	}
	if err := s.requirePackageEdit(r, user, pkg); err != nil {
		return err
	}
	v, err := s.versionByString(r, pkg, chi.URLParam(r, "v"))
	if err != nil {
		return err
	}

	var payload struct {
		Description   *string  `json:"description"`
		RepositoryURL **string `json:"repository_url"`
		TarballURL    **string `json:"tarball_url"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		return err
	}
	if err := s.store.EditVersion(r.Context(), v.ID, payload.Description, payload.RepositoryURL, payload.TarballURL); err != nil {
		return err
	}
	writeMessage(w, http.StatusOK, "version updated")
	return nil
}

// handleDeleteVersion implements DELETE /package/{p}/version/{v}.
func (s *Server) handleDeleteVersion(w http.ResponseWriter, r *http.Request) error {
	user, err := requireUser(r)
	if err != nil {
		return err
	}
	pkg, err := s.store.GetPackage(r.Context(), chi.URLParam(r, "p"))
	if err != nil {
		return err
	}
	if err := s.requirePackageEdit(r, user, pkg); err != nil {
		return err
	}
	v, err := s.versionByString(r, pkg, chi.URLParam(r, "v"))
	if err != nil {
		return err
	}
	referring, err := s.store.CountReferringTags(r.Context(), v.ID)
	if err != nil {
		return err
	}
	if referring > 0 {
		return apierr.NewPrecondition("version still has referring tags")
	}
	if err := s.store.DeleteVersion(r.Context(), v.ID); err != nil {
		return err
	}
	writeMessage(w, http.StatusOK, "version deleted")
	return nil
}

// handleListTags implements GET /package/{p}/tag.
func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) error {
	pkg, err := s.store.GetPackage(r.Context(), chi.URLParam(r, "p"))
	if err != nil {
		return err
	}
	out := make([]tagView, 0, len(pkg.Tags))
	for _, t := range pkg.Tags {
		out = append(out, tagView{Name: t.Name, Version: t.Version})
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

// handleCreateTag implements POST /package/{p}/tag.
func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) error {
	user, err := requireUser(r)
	if err != nil {
		return err
	}
	pkg, err := s.store.GetPackage(r.Context(), chi.URLParam(r, "p"))
	if err != nil {
		return err
	}
	if err := s.requirePackageEdit(r, user, pkg); err != nil {
		return err
	}

	var payload struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		return err
	}
	vIn := validate.TagCreate{Name: payload.Name, Version: payload.Version}
	if err := vIn.Validate(); err != nil {
		return err
	}
	v, err := s.versionByString(r, pkg, payload.Version)
	if err != nil {
		return err
	}
	if err := s.store.CreateTag(r.Context(), pkg.ID, payload.Name, v.ID); err != nil {
		return err
	}
	writeMessage(w, http.StatusCreated, "tag created")
	return nil
}

// handleEditTag implements POST /package/{p}/tag/{t}.
func (s *Server) handleEditTag(w http.ResponseWriter, r *http.Request) error {
	user, err := requireUser(r)
	if err != nil {
		return err
	}
	pkg, err := s.store.GetPackage(r.Context(), chi.URLParam(r, "p"))
	if err != nil {
		return err
	}
	if err := s.requirePackageEdit(r, user, pkg); err != nil {
		return err
	}

	var payload struct {
		Version string `json:"version"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		return err
	}
	v, err := s.versionByString(r, pkg, payload.Version)
	if err != nil {
		return err
	}
	if err := s.store.EditTag(r.Context(), pkg.ID, chi.URLParam(r, "t"), v.ID); err != nil {
		return err
	}
	writeMessage(w, http.StatusOK, "tag updated")
	return nil
}

// handleDeleteTag implements DELETE /package/{p}/tag/{t}.
func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) error {
	user, err := requireUser(r)
	if err != nil {
		return err
	}
	pkg, err := s.store.GetPackage(r.Context(), chi.URLParam(r, "p"))
	if err != nil {
		return err
	}
	if err := s.requirePackageEdit(r, user, pkg); err != nil {
		return err
	}
	if err := s.store.DeleteTag(r.Context(), pkg.ID, chi.URLParam(r, "t")); err != nil {
		return err
	}
	writeMessage(w, http.StatusOK, "tag deleted")
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/slowlime/knotd/internal/apierr"
	"github.com/slowlime/knotd/internal/model"
)

// DependencyInput names a dependency target by the depended-on package's
// name; CreatePackage and CreateVersion resolve it to an id, surfacing any
// unresolved names as apierr.UnknownDependencies.
type DependencyInput struct {
	PackageName string
	Spec        string
}

// VersionInput is the storage-layer shape of one version entry within a
// package create/version-create call.
type VersionInput struct {
	Version       string
	Description   string
	RepositoryURL *string
	TarballURL    *string
	Checksums     []model.Checksum
	Dependencies  []DependencyInput
}

// TagInput points a tag name at one of the versions being created alongside
// it, by version string.
type TagInput struct {
	Name    string
	Version string
}

// PackageCreateInput is the storage-layer shape of POST /package.
type PackageCreateInput struct {
	Name          string
	Summary       string
	NamespaceName *string
	Labels        []string
	Owners        []string
	Versions      []VersionInput
	Tags          []TagInput
}

// resolveNamespace maps an optional namespace name to an id, nil meaning
// "no namespace".
func (s *Store) resolveNamespace(ctx context.Context, name *string) (*int64, error) {
	if name == nil {
		return nil, nil
	}
	id, err := s.GetNamespaceIDByName(ctx, *name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// resolveOwners maps owner usernames to ids, failing with UnknownOwners if
// any name does not resolve.
func (s *Store) resolveOwners(ctx context.Context, usernames []string) ([]int64, error) {
	ids, unknown := s.ResolveUsernames(ctx, usernames)
	if len(unknown) > 0 {
		return nil, apierr.NewUnknownOwners(unknown)
	}
	out := make([]int64, 0, len(usernames))
	for _, name := range usernames {
		out = append(out, ids[name])
	}
	return out, nil
}

// resolveDependencyTargets maps every distinct dependency package name
// referenced across versions to an id, failing with UnknownDependencies if
// any do not resolve. Self-references (a package depending on itself) are
// permitted only once the package row exists, so callers resolve against
// other packages' names; the package being created cannot be its own
// dependency target since it does not exist yet.
func (s *Store) resolveDependencyTargets(ctx context.Context, versions []VersionInput) (map[string]int64, error) {
	names := map[string]bool{}
	for _, v := range versions {
		for _, d := range v.Dependencies {
			names[d.PackageName] = true
		}
	}
	ids := make(map[string]int64, len(names))
	var unknown []string
	for name := range names {
		id, err := s.getPackageIDByName(ctx, name)
		if err != nil {
			if _, ok := err.(*apierr.NotFound); ok {
				unknown = append(unknown, name)
				continue
			}
			return nil, err
		}
		ids[name] = id
	}
	if len(unknown) > 0 {
		return nil, apierr.NewUnknownDependencies(unknown)
	}
	return ids, nil
}

func (s *Store) getPackageIDByName(ctx context.Context, name string) (int64, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT id FROM packages WHERE name = ?`, name)
	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apierr.NewNotFound("Package")
		}
		return 0, err
	}
	return id, nil
}

// upsertLabel returns the id of label name, creating it if absent.
func (s *Store) upsertLabel(ctx context.Context, name string) (int64, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT id FROM labels WHERE name = ?`, name)
	var id int64
	err := row.Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	res, err := s.q(ctx).ExecContext(ctx, `INSERT INTO labels (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// gcLabel deletes label row id if no package references it any longer.
func (s *Store) gcLabel(ctx context.Context, labelID int64) error {
	var count int
	row := s.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM package_labels WHERE label_id = ?`, labelID)
	if err := row.Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := s.q(ctx).ExecContext(ctx, `DELETE FROM labels WHERE id = ?`, labelID)
	return err
}

// CreatePackage creates a package, its owners, labels, versions (with
// checksums and dependencies), and tags, all within the caller's
// transaction. Dependency and owner names are resolved up front so the
// whole call fails atomically on an unknown reference rather than leaving a
// partially built package.
func (s *Store) CreatePackage(ctx context.Context, in PackageCreateInput, actor *model.User) (*model.Package, error) {
	nsID, err := s.resolveNamespace(ctx, in.NamespaceName)
	if err != nil {
		return nil, err
	}
	ownerIDs, err := s.resolveOwners(ctx, in.Owners)
	if err != nil {
		return nil, err
	}
	depIDs, err := s.resolveDependencyTargets(ctx, in.Versions)
	if err != nil {
		return nil, err
	}

	now := nowString()
	res, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO packages (name, namespace_id, summary, created_by, created_at, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, in.Name, nsID, in.Summary, actor.ID, now, actor.ID, now)
	if err != nil {
		if isUniqueViolation(err, "packages.name") {
			return nil, apierr.NewAlreadyExists("Package")
		}
		return nil, err
	}
	pkgID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	for _, owner := range ownerIDs {
		if _, err := s.q(ctx).ExecContext(ctx, `INSERT INTO package_owners (package_id, user_id) VALUES (?, ?)`, pkgID, owner); err != nil {
			return nil, err
		}
	}
	for _, label := range in.Labels {
		labelID, err := s.upsertLabel(ctx, label)
		if err != nil {
			return nil, err
		}
		if _, err := s.q(ctx).ExecContext(ctx, `INSERT INTO package_labels (package_id, label_id) VALUES (?, ?)`, pkgID, labelID); err != nil {
			return nil, err
		}
	}

	versionIDs := make(map[string]int64, len(in.Versions))
	for _, v := range in.Versions {
		vID, err := s.insertVersion(ctx, pkgID, v, depIDs, actor)
		if err != nil {
			return nil, err
		}
		versionIDs[v.Version] = vID
	}
	for _, t := range in.Tags {
		vID := versionIDs[t.Version]
		if _, err := s.q(ctx).ExecContext(ctx, `
			INSERT INTO package_tags (package_id, name, version_id) VALUES (?, ?, ?)
		`, pkgID, t.Name, vID); err != nil {
			return nil, err
		}
	}

	return s.GetPackageByID(ctx, pkgID)
}

func (s *Store) insertVersion(ctx context.Context, pkgID int64, v VersionInput, depIDs map[string]int64, actor *model.User) (int64, error) {
	now := nowString()
	res, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO package_versions (package_id, version, description, repository_url, tarball_url, downloads, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`, pkgID, v.Version, v.Description, v.RepositoryURL, v.TarballURL, actor.ID, now)
	if err != nil {
		if isUniqueViolation(err, "package_versions") {
			return 0, apierr.NewAlreadyExists("Version")
		}
		return 0, err
	}
	vID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, cs := range v.Checksums {
		if _, err := s.q(ctx).ExecContext(ctx, `
			INSERT INTO package_version_checksums (version_id, algorithm, value) VALUES (?, ?, ?)
		`, vID, string(cs.Algorithm), cs.Value); err != nil {
			return 0, err
		}
	}
	for _, d := range v.Dependencies {
		depID, ok := depIDs[d.PackageName]
		if !ok {
			return 0, apierr.NewUnknownDependencies([]string{d.PackageName})
		}
		if _, err := s.q(ctx).ExecContext(ctx, `
			INSERT INTO package_version_dependencies (version_id, dep_package_id, spec) VALUES (?, ?, ?)
		`, vID, depID, d.Spec); err != nil {
			return 0, err
		}
	}
	return vID, nil
}

// CreateVersion adds a new version to an existing package, e.g. via publish.
func (s *Store) CreateVersion(ctx context.Context, packageID int64, v VersionInput, actor *model.User) (*model.PackageVersion, error) {
	depIDs, err := s.resolveDependencyTargets(ctx, []VersionInput{v})
	if err != nil {
		return nil, err
	}
	vID, err := s.insertVersion(ctx, packageID, v, depIDs, actor)
	if err != nil {
		return nil, err
	}
	return s.getVersionByID(ctx, vID)
}

func (s *Store) getVersionByID(ctx context.Context, id int64) (*model.PackageVersion, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT v.id, v.package_id, v.version, v.description, v.repository_url, v.tarball_url, v.downloads, v.created_by, u.username, v.created_at
		FROM package_versions v
		JOIN users u ON u.id = v.created_by
		WHERE v.id = ?
	`, id)
	var pv model.PackageVersion
	var created string
	if err := row.Scan(&pv.ID, &pv.PackageID, &pv.Version, &pv.Description, &pv.RepositoryURL, &pv.TarballURL, &pv.Downloads, &pv.CreatedBy, &pv.CreatedByUsername, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierr.NewNotFound("PackageVersion")
		}
		return nil, err
	}
	pv.CreatedAt = parseTime(created)

	checksums, err := s.listChecksums(ctx, pv.ID)
	if err != nil {
		return nil, err
	}
	pv.Checksums = checksums

	deps, err := s.listDependencies(ctx, pv.ID)
	if err != nil {
		return nil, err
	}
	pv.Dependencies = deps

	return &pv, nil
}

func (s *Store) listChecksums(ctx context.Context, versionID int64) ([]model.Checksum, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT algorithm, value FROM package_version_checksums WHERE version_id = ?`, versionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Checksum
	for rows.Next() {
		var algo string
		var value []byte
		if err := rows.Scan(&algo, &value); err != nil {
			return nil, err
		}
		out = append(out, model.Checksum{Algorithm: model.ChecksumAlgorithm(algo), Value: value})
	}
	return out, rows.Err()
}

func (s *Store) listDependencies(ctx context.Context, versionID int64) ([]model.Dependency, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT d.dep_package_id, p.name, d.spec
		FROM package_version_dependencies d
		JOIN packages p ON p.id = d.dep_package_id
		WHERE d.version_id = ?
		ORDER BY p.name
	`, versionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Dependency
	for rows.Next() {
		var d model.Dependency
		if err := rows.Scan(&d.PackageID, &d.PackageName, &d.Spec); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetPackageByID loads the full package aggregate: namespace, labels,
// owners, versions (each with checksums and dependencies), and tags. Labels,
// owners, version ids and tags take one query each; every version is then
// loaded by its own getVersionByID call, so the query count grows with the
// number of versions.
func (s *Store) GetPackageByID(ctx context.Context, id int64) (*model.Package, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT p.id, p.name, p.summary, p.namespace_id, n.name, p.created_by, cu.username, p.created_at, p.updated_by, uu.username, p.updated_at
		FROM packages p
		LEFT JOIN namespaces n ON n.id = p.namespace_id
		JOIN users cu ON cu.id = p.created_by
		JOIN users uu ON uu.id = p.updated_by
		WHERE p.id = ?
	`, id)
	var pkg model.Package
	var nsName sql.NullString
	var created, updated string
	if err := row.Scan(&pkg.ID, &pkg.Name, &pkg.Summary, &pkg.NamespaceID, &nsName, &pkg.Audit.CreatedBy, &pkg.Audit.CreatedByUsername, &created, &pkg.Audit.UpdatedBy, &pkg.Audit.UpdatedByUsername, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierr.NewNotFound("Package")
		}
		return nil, err
	}
	if nsName.Valid {
		pkg.NamespaceName = &nsName.String
	}
	pkg.Audit.CreatedAt = parseTime(created)
	pkg.Audit.UpdatedAt = parseTime(updated)

	labels, err := s.listPackageLabels(ctx, id)
	if err != nil {
		return nil, err
	}
	pkg.Labels = labels

	owners, err := s.listPackageOwners(ctx, id)
	if err != nil {
		return nil, err
	}
	pkg.Owners = owners

	versionRows, err := s.q(ctx).QueryContext(ctx, `SELECT id FROM package_versions WHERE package_id = ? ORDER BY created_at`, id)
	if err != nil {
		return nil, err
	}
	var versionIDs []int64
	for versionRows.Next() {
		var vID int64
		if err := versionRows.Scan(&vID); err != nil {
			versionRows.Close()
			return nil, err
		}
		versionIDs = append(versionIDs, vID)
	}
	versionRows.Close()
	if err := versionRows.Err(); err != nil {
		return nil, err
	}
	for _, vID := range versionIDs {
		v, err := s.getVersionByID(ctx, vID)
		if err != nil {
			return nil, err
		}
		pkg.Versions = append(pkg.Versions, *v)
	}

	tags, err := s.listPackageTags(ctx, id)
	if err != nil {
		return nil, err
	}
	pkg.Tags = tags

	return &pkg, nil
}

// GetPackage loads the full package aggregate by name.
func (s *Store) GetPackage(ctx context.Context, name string) (*model.Package, error) {
	id, err := s.getPackageIDByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.GetPackageByID(ctx, id)
}

func (s *Store) listPackageLabels(ctx context.Context, packageID int64) ([]string, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT l.name FROM package_labels pl JOIN labels l ON l.id = pl.label_id WHERE pl.package_id = ? ORDER BY l.name
	`, packageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) listPackageOwners(ctx context.Context, packageID int64) ([]string, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT u.username FROM package_owners po JOIN users u ON u.id = po.user_id WHERE po.package_id = ? ORDER BY u.username COLLATE NOCASE
	`, packageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) listPackageTags(ctx context.Context, packageID int64) ([]model.PackageTag, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT t.name, t.version_id, v.version
		FROM package_tags t
		JOIN package_versions v ON v.id = t.version_id
		WHERE t.package_id = ?
		ORDER BY t.name
	`, packageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PackageTag
	for rows.Next() {
		t := model.PackageTag{PackageID: packageID}
		if err := rows.Scan(&t.Name, &t.VersionID, &t.Version); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PackageListFilter narrows GetPackages to a namespace and/or label.
type PackageListFilter struct {
	Namespace *string
	Label     *string
}

// GetPackages returns the brief listing projection, optionally filtered.
func (s *Store) GetPackages(ctx context.Context, filter PackageListFilter) ([]model.PackageBrief, error) {
	query := `
		SELECT p.id, p.name, p.summary, n.name, p.created_by, cu.username, p.created_at, p.updated_by, uu.username, p.updated_at
		FROM packages p
		LEFT JOIN namespaces n ON n.id = p.namespace_id
		JOIN users cu ON cu.id = p.created_by
		JOIN users uu ON uu.id = p.updated_by
	`
	var args []any
	var conds []string
	if filter.Label != nil {
		query += ` JOIN package_labels pl ON pl.package_id = p.id JOIN labels l ON l.id = pl.label_id`
		conds = append(conds, "l.name = ?")
		args = append(args, *filter.Label)
	}
	if filter.Namespace != nil {
		conds = append(conds, "n.name = ? COLLATE NOCASE")
		args = append(args, *filter.Namespace)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY p.name"

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PackageBrief
	var ids []int64
	for rows.Next() {
		var b model.PackageBrief
		var nsName sql.NullString
		var created, updated string
		if err := rows.Scan(&b.ID, &b.Name, &b.Summary, &nsName, &b.Audit.CreatedBy, &b.Audit.CreatedByUsername, &created, &b.Audit.UpdatedBy, &b.Audit.UpdatedByUsername, &updated); err != nil {
			return nil, err
		}
		if nsName.Valid {
			b.NamespaceName = &nsName.String
		}
		b.Audit.CreatedAt = parseTime(created)
		b.Audit.UpdatedAt = parseTime(updated)
		out = append(out, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, id := range ids {
		labels, err := s.listPackageLabels(ctx, id)
		if err != nil {
			return nil, err
		}
		out[i].Labels = labels
		owners, err := s.listPackageOwners(ctx, id)
		if err != nil {
			return nil, err
		}
		out[i].Owners = owners
		var downloads sql.NullInt64
		row := s.q(ctx).QueryRowContext(ctx, `SELECT SUM(downloads) FROM package_versions WHERE package_id = ?`, id)
		if err := row.Scan(&downloads); err != nil {
			return nil, err
		}
		out[i].Downloads = downloads.Int64
	}

	return out, nil
}

// PackageEditInput carries only the fields the caller wants to change;
// Namespace is a pointer-to-pointer so nil means "leave unchanged" and a
// non-nil pointer to a nil string means "clear the namespace".
type PackageEditInput struct {
	Summary   *string
	Namespace **string
	Labels    *[]string
	Owners    *[]string
}

// EditPackage applies a partial update to a package, resolving a changed
// namespace or owner set and running label garbage collection afterwards
// (invariant: a label referenced by no package is deleted).
func (s *Store) EditPackage(ctx context.Context, packageID int64, in PackageEditInput, actor *model.User) error {
	if in.Summary != nil {
		if _, err := s.q(ctx).ExecContext(ctx, `UPDATE packages SET summary = ? WHERE id = ?`, *in.Summary, packageID); err != nil {
			return err
		}
	}
	if in.Namespace != nil {
		nsID, err := s.resolveNamespace(ctx, *in.Namespace)
		if err != nil {
			return err
		}
		if _, err := s.q(ctx).ExecContext(ctx, `UPDATE packages SET namespace_id = ? WHERE id = ?`, nsID, packageID); err != nil {
			return err
		}
	}
	if in.Owners != nil {
		ownerIDs, err := s.resolveOwners(ctx, *in.Owners)
		if err != nil {
			return err
		}
		if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM package_owners WHERE package_id = ?`, packageID); err != nil {
			return err
		}
		for _, id := range ownerIDs {
			if _, err := s.q(ctx).ExecContext(ctx, `INSERT INTO package_owners (package_id, user_id) VALUES (?, ?)`, packageID, id); err != nil {
				return err
			}
		}
	}
	if in.Labels != nil {
		oldLabelIDs, err := s.packageLabelIDs(ctx, packageID)
		if err != nil {
			return err
		}
		if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM package_labels WHERE package_id = ?`, packageID); err != nil {
			return err
		}
		for _, name := range *in.Labels {
			labelID, err := s.upsertLabel(ctx, name)
			if err != nil {
				return err
			}
			if _, err := s.q(ctx).ExecContext(ctx, `INSERT INTO package_labels (package_id, label_id) VALUES (?, ?)`, packageID, labelID); err != nil {
				return err
			}
		}
		for _, labelID := range oldLabelIDs {
			if err := s.gcLabel(ctx, labelID); err != nil {
				return err
			}
		}
	}

	now := nowString()
	_, err := s.q(ctx).ExecContext(ctx, `UPDATE packages SET updated_by = ?, updated_at = ? WHERE id = ?`, actor.ID, now, packageID)
	return err
}

func (s *Store) packageLabelIDs(ctx context.Context, packageID int64) ([]int64, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT label_id FROM package_labels WHERE package_id = ?`, packageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CountDependents reports how many other packages' versions depend on
// packageID, used to guard package deletion.
func (s *Store) CountDependents(ctx context.Context, packageID int64) (int, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT COUNT(DISTINCT v.package_id) FROM package_version_dependencies d JOIN package_versions v ON v.id = d.version_id WHERE d.dep_package_id = ? AND v.package_id != ?`, packageID, packageID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// DeletePackage removes a package after the caller has checked
// CountDependents is zero; labels the package referenced are garbage
// collected afterwards.
func (s *Store) DeletePackage(ctx context.Context, packageID int64) error {
	labelIDs, err := s.packageLabelIDs(ctx, packageID)
	if err != nil {
		return err
	}
	if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM packages WHERE id = ?`, packageID); err != nil {
		return err
	}
	for _, id := range labelIDs {
		if err := s.gcLabel(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// EditVersion updates a version's mutable fields.
func (s *Store) EditVersion(ctx context.Context, versionID int64, description *string, repositoryURL, tarballURL **string) error {
	if description != nil {
		if _, err := s.q(ctx).ExecContext(ctx, `UPDATE package_versions SET description = ? WHERE id = ?`, *description, versionID); err != nil {
			return err
		}
	}
	if repositoryURL != nil {
		if _, err := s.q(ctx).ExecContext(ctx, `UPDATE package_versions SET repository_url = ? WHERE id = ?`, *repositoryURL, versionID); err != nil {
			return err
		}
	}
	if tarballURL != nil {
		if _, err := s.q(ctx).ExecContext(ctx, `UPDATE package_versions SET tarball_url = ? WHERE id = ?`, *tarballURL, versionID); err != nil {
			return err
		}
	}
	return nil
}

// CountReferringTags reports how many tags still point at versionID, used
// to guard version deletion.
func (s *Store) CountReferringTags(ctx context.Context, versionID int64) (int, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM package_tags WHERE version_id = ?`, versionID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteVersion removes a version; callers must first check
// CountReferringTags is zero.
func (s *Store) DeleteVersion(ctx context.Context, versionID int64) error {
	_, err := s.q(ctx).ExecContext(ctx, `DELETE FROM package_versions WHERE id = ?`, versionID)
	return err
}

// GetVersionIDByString resolves a package's version string to its row id.
func (s *Store) GetVersionIDByString(ctx context.Context, packageID int64, version string) (int64, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT id FROM package_versions WHERE package_id = ? AND version = ?`, packageID, version)
	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apierr.NewNotFound("PackageVersion")
		}
		return 0, err
	}
	return id, nil
}

// IncrementDownloads bumps a version's download counter, used when the
// tarball URL is resolved for a client.
func (s *Store) IncrementDownloads(ctx context.Context, versionID int64) error {
	_, err := s.q(ctx).ExecContext(ctx, `UPDATE package_versions SET downloads = downloads + 1 WHERE id = ?`, versionID)
	return err
}

// CreateTag points a new tag name at an existing version.
func (s *Store) CreateTag(ctx context.Context, packageID int64, name string, versionID int64) error {
	_, err := s.q(ctx).ExecContext(ctx, `INSERT INTO package_tags (package_id, name, version_id) VALUES (?, ?, ?)`, packageID, name, versionID)
	if isUniqueViolation(err, "package_tags") {
		return apierr.NewAlreadyExists("PackageTag")
	}
	return err
}

// EditTag repoints an existing tag at a different version.
func (s *Store) EditTag(ctx context.Context, packageID int64, name string, versionID int64) error {
	res, err := s.q(ctx).ExecContext(ctx, `UPDATE package_tags SET version_id = ? WHERE package_id = ? AND name = ?`, versionID, packageID, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierr.NewNotFound("PackageTag")
	}
	return nil
}

// DeleteTag removes a tag.
func (s *Store) DeleteTag(ctx context.Context, packageID int64, name string) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM package_tags WHERE package_id = ? AND name = ?`, packageID, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierr.NewNotFound("PackageTag")
	}
	return nil
}

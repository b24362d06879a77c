// Package validate implements the registry's input/output schema checks:
// regex and length bounds, semver parsing, and the cross-field validators
// spec.md §4.2 requires. Failures are collected (not first-error-wins) and
// surfaced as a single apierr.Validation.
package validate

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/Masterminds/semver"

	"github.com/slowlime/knotd/internal/apierr"
	"github.com/slowlime/knotd/internal/model"
)

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*$`)
	packageRe  = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	tagNameRe  = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	hexRe      = regexp.MustCompile(`^[0-9a-f]+$`)
)

// collector accumulates field errors across a whole payload.
type collector struct {
	fields []apierr.FieldError
}

func (c *collector) add(path, msg string, args ...any) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	c.fields = append(c.fields, apierr.FieldError{Path: path, Message: msg})
}

func (c *collector) err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return apierr.NewValidation(c.fields)
}

func (c *collector) requireLen(path, v string, min, max int) {
	if len(v) < min || len(v) > max {
		c.add(path, "must be between %d and %d characters", min, max)
	}
}

func (c *collector) requireMatch(path, v string, re *regexp.Regexp, what string) {
	if !re.MatchString(v) {
		c.add(path, "must match the %s pattern", what)
	}
}

// Username validates a bare username string.
func Username(path, v string) error {
	c := &collector{}
	c.requireLen(path, v, 1, 32)
	c.requireMatch(path, v, usernameRe, "username")
	return c.err()
}

// UserRegister is the payload for POST /user.
type UserRegister struct {
	Username string
	Email    string
	Password string
}

func (p UserRegister) Validate() error {
	c := &collector{}
	c.requireLen("username", p.Username, 1, 32)
	c.requireMatch("username", p.Username, usernameRe, "username")
	c.requireLen("email", p.Email, 1, 64)
	if !strings.Contains(p.Email, "@") {
		c.add("email", "must be a valid email address")
	}
	if len(p.Password) == 0 || len(p.Password) > 1024 {
		c.add("password", "must be between 1 and 1024 characters")
	}
	return c.err()
}

// NamespaceCreate is the payload for POST /namespace.
type NamespaceCreate struct {
	Name        string
	Description string
	Homepage    *string
}

func (p NamespaceCreate) Validate() error {
	c := &collector{}
	c.requireLen("name", p.Name, 1, 32)
	c.requireMatch("name", p.Name, usernameRe, "namespace name")
	if len(p.Description) > 131072 {
		c.add("description", "must be at most 131072 characters")
	}
	if p.Homepage != nil {
		validateHomepage(c, "homepage", *p.Homepage)
	}
	return c.err()
}

func validateHomepage(c *collector, path, v string) {
	if len(v) > 2048 {
		c.add(path, "must be at most 2048 characters")
		return
	}
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		c.add(path, "must be an absolute http(s) URL")
	}
}

// ChecksumInput is one checksum entry in a version payload.
type ChecksumInput struct {
	Algorithm model.ChecksumAlgorithm
	Value     string
}

// DependencyInput is one dependency entry in a version payload.
type DependencyInput struct {
	Package string
	Spec    string
}

// PackageVersionBase is the shared base of version create/edit payloads.
type PackageVersionBase struct {
	Version       string
	Description   string
	RepositoryURL *string
	TarballURL    *string
	Checksums     []ChecksumInput
	Dependencies  []DependencyInput
}

func (p PackageVersionBase) validateInto(c *collector, prefix string) {
	if _, err := semver.NewVersion(p.Version); err != nil {
		c.add(prefix+"version", "must be a valid semver version")
	}
	if len(p.Description) > 131072 {
		c.add(prefix+"description", "must be at most 131072 characters")
	}
	if p.RepositoryURL != nil {
		validateHomepage(c, prefix+"repository_url", *p.RepositoryURL)
	}
	if p.TarballURL != nil {
		validateHomepage(c, prefix+"tarball_url", *p.TarballURL)
	}

	seenAlgo := map[model.ChecksumAlgorithm]bool{}
	for i, cs := range p.Checksums {
		path := fmt.Sprintf("%schecksums[%d]", prefix, i)
		length, ok := model.ChecksumLengths[cs.Algorithm]
		if !ok {
			c.add(path+".algorithm", "unknown checksum algorithm %q", cs.Algorithm)
			continue
		}
		if seenAlgo[cs.Algorithm] {
			c.add(path+".algorithm", "duplicate checksum algorithm %q", cs.Algorithm)
		}
		seenAlgo[cs.Algorithm] = true
		lower := strings.ToLower(cs.Value)
		if !hexRe.MatchString(lower) {
			c.add(path+".value", "must be lowercase hex")
			continue
		}
		raw, err := hex.DecodeString(lower)
		if err != nil || len(raw) != length {
			c.add(path+".value", "must decode to %d bytes for %s", length, cs.Algorithm)
		}
	}

	seenDep := map[string]bool{}
	for i, d := range p.Dependencies {
		path := fmt.Sprintf("%sdependencies[%d]", prefix, i)
		if seenDep[d.Package] {
			c.add(path+".package", "duplicate dependency target %q", d.Package)
		}
		seenDep[d.Package] = true
		if len(d.Spec) > 40 {
			c.add(path+".spec", "must be at most 40 characters")
		}
	}
}

func (p PackageVersionBase) Validate() error {
	c := &collector{}
	p.validateInto(c, "")
	return c.err()
}

// TagInput is one tag entry in a PackageCreate payload.
type TagInput struct {
	Name    string
	Version string
}

// PackageCreate is the payload for POST /package.
type PackageCreate struct {
	Name     string
	Summary  string
	Namespace *string
	Labels   []string
	Owners   []string
	Versions []PackageVersionBase
	Tags     []TagInput
}

func (p PackageCreate) Validate() error {
	c := &collector{}
	c.requireLen("name", p.Name, 1, 32)
	c.requireMatch("name", p.Name, packageRe, "package name")
	if len(p.Summary) > 256 {
		c.add("summary", "must be at most 256 characters")
	}
	for i, l := range p.Labels {
		if len(l) == 0 || len(l) > 32 {
			c.add(fmt.Sprintf("labels[%d]", i), "must be between 1 and 32 characters")
		}
	}

	seenVersion := map[string]bool{}
	for i, v := range p.Versions {
		prefix := fmt.Sprintf("versions[%d].", i)
		v.validateInto(c, prefix)
		if seenVersion[v.Version] {
			c.add(prefix+"version", "duplicate version string %q", v.Version)
		}
		seenVersion[v.Version] = true
	}

	seenTag := map[string]bool{}
	for i, t := range p.Tags {
		path := fmt.Sprintf("tags[%d]", i)
		c.requireMatch(path+".name", t.Name, tagNameRe, "tag name")
		if seenTag[t.Name] {
			c.add(path+".name", "duplicate tag name %q", t.Name)
		}
		seenTag[t.Name] = true
		if !seenVersion[t.Version] {
			c.add(path+".version", "must reference one of this payload's own versions")
		}
	}

	return c.err()
}

// PackageEdit is the payload for POST /package/{p}.
type PackageEdit struct {
	Summary   *string
	Namespace **string
	Labels    *[]string
	Owners    *[]string
}

func (p PackageEdit) Validate() error {
	c := &collector{}
	if p.Summary != nil && len(*p.Summary) > 256 {
		c.add("summary", "must be at most 256 characters")
	}
	if p.Labels != nil {
		for i, l := range *p.Labels {
			if len(l) == 0 || len(l) > 32 {
				c.add(fmt.Sprintf("labels[%d]", i), "must be between 1 and 32 characters")
			}
		}
	}
	return c.err()
}

// TagCreate is the payload for POST /package/{p}/tag.
type TagCreate struct {
	Name    string
	Version string
}

func (t TagCreate) Validate() error {
	c := &collector{}
	c.requireMatch("name", t.Name, tagNameRe, "tag name")
	if t.Version == "" {
		c.add("version", "is required")
	}
	return c.err()
}

// NamespaceRoleCreate is the payload for creating/editing a namespace role.
type NamespaceRoleCreate struct {
	Name        string
	Permissions []model.PermissionCode
}

func (r NamespaceRoleCreate) Validate() error {
	c := &collector{}
	c.requireLen("name", r.Name, 1, 32)
	known := map[model.PermissionCode]bool{}
	for _, p := range model.AllPermissions {
		known[p] = true
	}
	for i, p := range r.Permissions {
		if !known[p] {
			c.add(fmt.Sprintf("permissions[%d]", i), "unknown permission code %q", p)
		}
	}
	return c.err()
}

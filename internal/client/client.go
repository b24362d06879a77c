// Package client is a hand-written HTTP client for the registry's JSON API,
// used by cmd/knot. It is intentionally not code-generated: the wire surface
// is small enough that a generator would add indirection without saving
// real effort, matching how the teacher talks to external HTTP APIs with
// plain net/http plus typed request/response structs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to one knotd registry over HTTP.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New builds a Client against baseURL, defaulting to a 30s timeout like the
// teacher's outbound HTTP calls.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError mirrors one of internal/apierr's JSON bodies: a detail string
// plus whatever extra fields the server's kind of error carries.
type APIError struct {
	StatusCode int
	Detail     string       `json:"detail"`
	What       string       `json:"what,omitempty"`
	Usernames  []string     `json:"usernames,omitempty"`
	Packages   []string     `json:"packages,omitempty"`
	Fields     []FieldError `json:"fields,omitempty"`
}

// FieldError names one bad field and why, mirroring apierr.FieldError.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s (%d)", e.Detail, e.StatusCode)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d):", e.Detail, e.StatusCode)
	for _, f := range e.Fields {
		fmt.Fprintf(&b, "\n  %s: %s", f.Path, f.Message)
	}
	return b.String()
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Login exchanges credentials for a bearer token via the password grant.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return "", apiErr
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// Register creates a new user account.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	return c.do(ctx, http.MethodPost, "/user", map[string]string{
		"username": username, "email": email, "password": password,
	}, nil)
}

// User is the client-side view of GET /user/{username}.
type User struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	RegisteredAt string `json:"registered_at"`
	Role         string `json:"role"`
}

// GetUser fetches a user's profile.
func (c *Client) GetUser(ctx context.Context, username string) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/user/"+url.PathEscape(username), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Namespace is the client-side view of a namespace.
type Namespace struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Homepage    *string `json:"homepage"`
	CreatedAt   string  `json:"created_at"`
}

// NamespaceMember is one membership row within a namespace.
type NamespaceMember struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// NamespaceRole is one role definition within a namespace.
type NamespaceRole struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// NamespaceDetail is the client-side view of GET /namespace/{ns}.
type NamespaceDetail struct {
	Namespace Namespace         `json:"namespace"`
	Members   []NamespaceMember `json:"members"`
	Roles     []NamespaceRole   `json:"roles"`
}

// CreateNamespace implements POST /namespace.
func (c *Client) CreateNamespace(ctx context.Context, name, description string, homepage *string) error {
	return c.do(ctx, http.MethodPost, "/namespace", map[string]any{
		"name": name, "description": description, "homepage": homepage,
	}, nil)
}

// GetNamespace implements GET /namespace/{ns}.
func (c *Client) GetNamespace(ctx context.Context, name string) (*NamespaceDetail, error) {
	var out NamespaceDetail
	if err := c.do(ctx, http.MethodGet, "/namespace/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EditNamespace implements POST /namespace/{ns}.
func (c *Client) EditNamespace(ctx context.Context, name string, description *string, homepage **string) error {
	body := map[string]any{}
	if description != nil {
		body["description"] = *description
	}
	if homepage != nil {
		body["homepage"] = *homepage
	}
	return c.do(ctx, http.MethodPost, "/namespace/"+url.PathEscape(name), body, nil)
}

// DeleteNamespace implements DELETE /namespace/{ns}.
func (c *Client) DeleteNamespace(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/namespace/"+url.PathEscape(name), nil, nil)
}

// AddNamespaceMember implements POST /namespace/{ns}/user.
func (c *Client) AddNamespaceMember(ctx context.Context, namespace, username, role string) error {
	return c.do(ctx, http.MethodPost, "/namespace/"+url.PathEscape(namespace)+"/user", map[string]string{
		"username": username, "role": role,
	}, nil)
}

// EditNamespaceMember implements POST /namespace/{ns}/user/{u}.
func (c *Client) EditNamespaceMember(ctx context.Context, namespace, username, role string) error {
	path := "/namespace/" + url.PathEscape(namespace) + "/user/" + url.PathEscape(username)
	return c.do(ctx, http.MethodPost, path, map[string]string{"role": role}, nil)
}

// RemoveNamespaceMember implements DELETE /namespace/{ns}/user/{u}.
func (c *Client) RemoveNamespaceMember(ctx context.Context, namespace, username string) error {
	path := "/namespace/" + url.PathEscape(namespace) + "/user/" + url.PathEscape(username)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// CreateNamespaceRole implements POST /namespace/{ns}/role.
func (c *Client) CreateNamespaceRole(ctx context.Context, namespace, name string, permissions []string) error {
	path := "/namespace/" + url.PathEscape(namespace) + "/role"
	return c.do(ctx, http.MethodPost, path, map[string]any{"name": name, "permissions": permissions}, nil)
}

// EditNamespaceRole implements POST /namespace/{ns}/role/{r}.
func (c *Client) EditNamespaceRole(ctx context.Context, namespace, name string, permissions []string) error {
	path := "/namespace/" + url.PathEscape(namespace) + "/role/" + url.PathEscape(name)
	return c.do(ctx, http.MethodPost, path, map[string]any{"permissions": permissions}, nil)
}

// DeleteNamespaceRole implements DELETE /namespace/{ns}/role/{r}.
func (c *Client) DeleteNamespaceRole(ctx context.Context, namespace, name string) error {
	path := "/namespace/" + url.PathEscape(namespace) + "/role/" + url.PathEscape(name)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// PackageBrief is the client-side view of one listing entry.
type PackageBrief struct {
	Name      string   `json:"name"`
	Summary   string   `json:"summary"`
	Namespace *string  `json:"namespace"`
	Labels    []string `json:"labels"`
	Owners    []string `json:"owners"`
	Downloads int64    `json:"downloads"`
}

// ListPackages implements GET /package, optionally filtered.
func (c *Client) ListPackages(ctx context.Context, namespace, label string) ([]PackageBrief, error) {
	q := url.Values{}
	if namespace != "" {
		q.Set("namespace", namespace)
	}
	if label != "" {
		q.Set("label", label)
	}
	path := "/package"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out []PackageBrief
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListNamespacePackages implements GET /namespace/{ns}/package.
func (c *Client) ListNamespacePackages(ctx context.Context, namespace string) ([]PackageBrief, error) {
	var out []PackageBrief
	if err := c.do(ctx, http.MethodGet, "/namespace/"+url.PathEscape(namespace)+"/package", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Checksum is one (algorithm, hex value) pair.
type Checksum struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

// Dependency points a version at another package.
type Dependency struct {
	Package string `json:"package"`
	Spec    string `json:"spec"`
}

// Version is the client-side view of one package version.
type Version struct {
	Version       string       `json:"version"`
	Description   string       `json:"description"`
	RepositoryURL *string      `json:"repository_url"`
	TarballURL    *string      `json:"tarball_url"`
	Downloads     int64        `json:"downloads"`
	Checksums     []Checksum   `json:"checksums"`
	Dependencies  []Dependency `json:"dependencies"`
	CreatedBy     string       `json:"created_by"`
	CreatedAt     string       `json:"created_at"`
}

// Tag is one mutable symbolic version pointer.
type Tag struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Package is the client-side view of GET /package/{p}.
type Package struct {
	Name      string    `json:"name"`
	Summary   string    `json:"summary"`
	Namespace *string   `json:"namespace"`
	Labels    []string  `json:"labels"`
	Owners    []string  `json:"owners"`
	Downloads int64     `json:"downloads"`
	Versions  []Version `json:"versions"`
	Tags      []Tag     `json:"tags"`
	CreatedBy string    `json:"created_by"`
	CreatedAt string    `json:"created_at"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt string    `json:"updated_at"`
}

// GetPackage implements GET /package/{p}.
func (c *Client) GetPackage(ctx context.Context, name string) (*Package, error) {
	var out Package
	if err := c.do(ctx, http.MethodGet, "/package/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PackageCreateRequest is the body of POST /package, built by `knot pkg
// create` (cmd/knot) from its flags.
type PackageCreateRequest struct {
	Name      string    `json:"name"`
	Summary   string    `json:"summary"`
	Namespace *string   `json:"namespace,omitempty"`
	Labels    []string  `json:"labels,omitempty"`
	Owners    []string  `json:"owners,omitempty"`
	Versions  []Version `json:"versions,omitempty"`
	Tags      []Tag     `json:"tags,omitempty"`
}

// CreatePackage implements POST /package.
func (c *Client) CreatePackage(ctx context.Context, req PackageCreateRequest) error {
	return c.do(ctx, http.MethodPost, "/package", req, nil)
}

// EditPackage implements POST /package/{p}.
func (c *Client) EditPackage(ctx context.Context, name string, summary *string, namespace **string, labels, owners *[]string) error {
	body := map[string]any{}
	if summary != nil {
		body["summary"] = *summary
	}
	if namespace != nil {
		body["namespace"] = *namespace
	}
	if labels != nil {
		body["labels"] = *labels
	}
	if owners != nil {
		body["owners"] = *owners
	}
	return c.do(ctx, http.MethodPost, "/package/"+url.PathEscape(name), body, nil)
}

// DeletePackage implements DELETE /package/{p}.
func (c *Client) DeletePackage(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/package/"+url.PathEscape(name), nil, nil)
}

// PublishVersion implements POST /package/{p}/version.
func (c *Client) PublishVersion(ctx context.Context, pkg string, v Version) error {
	return c.do(ctx, http.MethodPost, "/package/"+url.PathEscape(pkg)+"/version", v, nil)
}

// ReplaceVersion implements POST /package/{p}/version/{v}, the edit half of
// the publish flow's create-then-on-conflict-edit behavior.
func (c *Client) ReplaceVersion(ctx context.Context, pkg string, v Version) error {
	path := "/package/" + url.PathEscape(pkg) + "/version/" + url.PathEscape(v.Version)
	body := map[string]any{
		"description":    v.Description,
		"repository_url": v.RepositoryURL,
		"tarball_url":    v.TarballURL,
	}
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// DeleteVersion implements DELETE /package/{p}/version/{v}.
func (c *Client) DeleteVersion(ctx context.Context, pkg, version string) error {
	path := "/package/" + url.PathEscape(pkg) + "/version/" + url.PathEscape(version)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// CreateTag implements POST /package/{p}/tag.
func (c *Client) CreateTag(ctx context.Context, pkg, name, version string) error {
	return c.do(ctx, http.MethodPost, "/package/"+url.PathEscape(pkg)+"/tag", map[string]string{
		"name": name, "version": version,
	}, nil)
}

// EditTag implements POST /package/{p}/tag/{t}.
func (c *Client) EditTag(ctx context.Context, pkg, name, version string) error {
	path := "/package/" + url.PathEscape(pkg) + "/tag/" + url.PathEscape(name)
	return c.do(ctx, http.MethodPost, path, map[string]string{"version": version}, nil)
}

// DeleteTag implements DELETE /package/{p}/tag/{t}.
func (c *Client) DeleteTag(ctx context.Context, pkg, name string) error {
	path := "/package/" + url.PathEscape(pkg) + "/tag/" + url.PathEscape(name)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ListPermissions implements GET /permission.
func (c *Client) ListPermissions(ctx context.Context) ([]string, error) {
	var out struct {
		Permissions []string `json:"permissions"`
	}
	if err := c.do(ctx, http.MethodGet, "/permission", nil, &out); err != nil {
		return nil, err
	}
	return out.Permissions, nil
}

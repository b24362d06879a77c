package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlime/knotd/internal/api"
	"github.com/slowlime/knotd/internal/auth"
	"github.com/slowlime/knotd/internal/config"
	"github.com/slowlime/knotd/internal/store"
)

func newTestServer(t *testing.T) (http.Handler, *store.Store, *auth.Minter) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knotd.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	minter := auth.NewMinter([]byte("test-secret"), time.Hour)
	cfg := config.Config{JWTSecret: "test-secret", TokenTTL: time.Hour}
	srv := api.New(cfg, st, minter, nil)
	return srv.Router(), st, minter
}

func registerAndLogin(t *testing.T, h http.Handler, username, password string) string {
	t.Helper()

	body, err := json.Marshal(map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": password,
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/user", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	form := url.Values{"grant_type": {"password"}, "username": {username}, "password": {password}}
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestHandleVersion(t *testing.T) {
	h, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), api.Version)
}

func TestRegisterLoginAndGetUser(t *testing.T) {
	h, _, _ := newTestServer(t)
	token := registerAndLogin(t, h, "alice", "hunter22")

	req := httptest.NewRequest(http.MethodGet, "/user/alice", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body["username"])
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	h, _, _ := newTestServer(t)
	_ = registerAndLogin(t, h, "alice", "hunter22")

	form := url.Values{"grant_type": {"password"}, "username": {"alice"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetUserRequiresAuthentication(t *testing.T) {
	h, _, _ := newTestServer(t)
	_ = registerAndLogin(t, h, "alice", "hunter22")

	req := httptest.NewRequest(http.MethodGet, "/user/alice", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestListPermissions(t *testing.T) {
	h, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/permission", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Permissions, "namespace-owner")
}

func TestCreateAndGetPackage(t *testing.T) {
	h, _, _ := newTestServer(t)
	token := registerAndLogin(t, h, "alice", "hunter22")

	payload := map[string]any{
		"name":    "widget",
		"summary": "a widget",
		"versions": []map[string]any{
			{"version": "1.0.0", "description": "first release"},
		},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/package", strings.NewReader(string(body)))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/package/widget", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pkg map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pkg))
	assert.Equal(t, "widget", pkg["name"])
}

func TestCreatePackageRequiresAuth(t *testing.T) {
	h, _, _ := newTestServer(t)
	body, err := json.Marshal(map[string]any{"name": "widget"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/package", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetPackageNotFound(t *testing.T) {
	h, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/package/ghost", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMalformedAuthorizationHeaderRejected(t *testing.T) {
	h, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/user/alice", nil)
	req.Header.Set("Authorization", "Basic not-a-bearer-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEditPackageRejectsEmptyOwners(t *testing.T) {
	h, _, _ := newTestServer(t)
	token := registerAndLogin(t, h, "alice", "hunter22")

	body, err := json.Marshal(map[string]any{
		"name":     "widget",
		"versions": []map[string]any{{"version": "1.0.0"}},
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/package", strings.NewReader(string(body)))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body, err = json.Marshal(map[string]any{"owners": []string{}})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/package/widget", strings.NewReader(string(body)))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "without owner")
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	h, _, _ := newTestServer(t)
	_ = registerAndLogin(t, h, "alice", "hunter22")

	body, err := json.Marshal(map[string]string{
		"username": "alice",
		"email":    "other@example.com",
		"password": "hunter22",
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/user", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already taken")
}

// doJSON marshals body (if non-nil), sends it with a bearer token, and
// returns the recorder.
func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(b))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNamespaceAdminCannotEditOrDeleteOwnerRole(t *testing.T) {
	h, _, _ := newTestServer(t)
	ownerToken := registerAndLogin(t, h, "alice", "hunter22")
	adminToken := registerAndLogin(t, h, "bob", "hunter22")

	rec := doJSON(t, h, http.MethodPost, "/namespace", ownerToken, map[string]string{"name": "acme"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/namespace/acme/role", ownerToken, map[string]any{
		"name":        "admin",
		"permissions": []string{"namespace-admin"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/namespace/acme/user", ownerToken, map[string]string{
		"username": "bob",
		"role":     "admin",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// bob only holds namespace-admin, which does not imply namespace-owner,
	// so he may not strip namespace-owner from the owner role...
	rec = doJSON(t, h, http.MethodPost, "/namespace/acme/role/owner", adminToken, map[string]any{
		"permissions": []string{"namespace-admin"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	// ...nor delete the owner role outright.
	rec = doJSON(t, h, http.MethodDelete, "/namespace/acme/role/owner", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
}

func TestNamespaceAdminCannotRemoveCoOwner(t *testing.T) {
	h, _, _ := newTestServer(t)
	ownerToken := registerAndLogin(t, h, "alice", "hunter22")
	adminToken := registerAndLogin(t, h, "bob", "hunter22")
	_ = registerAndLogin(t, h, "carol", "hunter22")

	rec := doJSON(t, h, http.MethodPost, "/namespace", ownerToken, map[string]string{"name": "acme"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/namespace/acme/role", ownerToken, map[string]any{
		"name":        "admin",
		"permissions": []string{"namespace-admin"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/namespace/acme/user", ownerToken, map[string]string{
		"username": "bob",
		"role":     "admin",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// carol joins as a second owner, so the owner-remains invariant alone
	// would let the removal through.
	rec = doJSON(t, h, http.MethodPost, "/namespace/acme/user", ownerToken, map[string]string{
		"username": "carol",
		"role":     "owner",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// bob (namespace-admin only) must still not be able to remove alice, a
	// namespace-owner, even though another owner remains.
	rec = doJSON(t, h, http.MethodDelete, "/namespace/acme/user/alice", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	h, _, _ := newTestServer(t)
	_ = registerAndLogin(t, h, "alice", "hunter22")

	body, err := json.Marshal(map[string]string{
		"username": "bob",
		"email":    "alice@example.com",
		"password": "hunter22",
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/user", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already registered")
}

package apierr_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlime/knotd/internal/apierr"
)

func TestWriteJSONStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  apierr.Error
		want int
	}{
		{"validation", apierr.NewValidation(nil), http.StatusUnprocessableEntity},
		{"unauthorized", apierr.NewUnauthorized("nope"), http.StatusUnauthorized},
		{"invalid credentials", apierr.NewInvalidCredentials(), http.StatusUnauthorized},
		{"no permission", apierr.NewNoPermission(), http.StatusForbidden},
		{"not found", apierr.NewNotFound("Package"), http.StatusNotFound},
		{"already exists", apierr.NewAlreadyExists("Version"), http.StatusConflict},
		{"unknown dependencies", apierr.NewUnknownDependencies([]string{"foo"}), http.StatusBadRequest},
		{"unknown owners", apierr.NewUnknownOwners([]string{"bob"}), http.StatusBadRequest},
		{"precondition", apierr.NewPrecondition("has dependents"), http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			apierr.WriteJSON(w, c.err)
			assert.Equal(t, c.want, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestWriteJSONSetsWWWAuthenticateOnlyForUnauthorized(t *testing.T) {
	w := httptest.NewRecorder()
	apierr.WriteJSON(w, apierr.NewUnauthorized("Session expired"))
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	w = httptest.NewRecorder()
	apierr.WriteJSON(w, apierr.NewNoPermission())
	assert.Empty(t, w.Header().Get("WWW-Authenticate"))
}

func TestNotFoundBodyShape(t *testing.T) {
	w := httptest.NewRecorder()
	apierr.WriteJSON(w, apierr.NewNotFound("Package"))

	var body struct {
		Detail string `json:"detail"`
		What   string `json:"what"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Package not found", body.Detail)
	assert.Equal(t, "Package", body.What)
}

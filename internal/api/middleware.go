package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/slowlime/knotd/internal/apierr"
	"github.com/slowlime/knotd/internal/model"
	"github.com/slowlime/knotd/internal/store"
)

type userCtxKey struct{}

// identifyMiddleware resolves an optional bearer token to a *model.User and
// stashes it on the context; handlers that require auth read it back with
// currentUser and fail with apierr.Unauthorized if absent. A malformed or
// expired token fails the request immediately rather than falling through
// as anonymous, since a caller presenting a bad credential almost certainly
// meant to authenticate.
func (s *Server) identifyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			apierr.WriteJSON(w, apierr.NewUnauthorized("malformed Authorization header"))
			return
		}
		user, err := s.minter.Identify(r.Context(), token, s.store.GetUserByUsername)
		if err != nil {
			if apiErr, ok := err.(apierr.Error); ok {
				apierr.WriteJSON(w, apiErr)
				return
			}
			apierr.WriteJSON(w, apierr.NewUnauthorized("invalid token"))
			return
		}
		ctx := context.WithValue(r.Context(), userCtxKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) *model.User {
	u, _ := r.Context().Value(userCtxKey{}).(*model.User)
	return u
}

func requireUser(r *http.Request) (*model.User, error) {
	u := currentUser(r)
	if u == nil {
		return nil, apierr.NewUnauthorized("authentication required")
	}
	return u, nil
}

// handlerFunc is the shape every route handler implements: parse, apply the
// ACL, call the store, and report failure as a typed apierr.Error (any other
// error is treated as unexpected and logged as a 500).
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// wrap opens one *sql.Tx for the request, runs fn within it, and commits or
// rolls back depending on the outcome — the single per-request transaction
// spec.md §5 requires.
func (s *Server) wrap(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tx, err := s.store.BeginTx(r.Context())
		if err != nil {
			s.log.Printf("begin tx: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		ctx := store.WithTx(r.Context(), tx)

		if err := fn(w, r.WithContext(ctx)); err != nil {
			_ = tx.Rollback()
			if apiErr, ok := err.(apierr.Error); ok {
				apierr.WriteJSON(w, apiErr)
				return
			}
			s.log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if err := tx.Commit(); err != nil {
			s.log.Printf("commit tx: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeMessage renders the {"message": ...} body spec.md §6 specifies for
// every successful mutation (create/edit/delete).
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierr.NewValidation([]apierr.FieldError{{Path: "", Message: "invalid JSON body"}})
	}
	return nil
}

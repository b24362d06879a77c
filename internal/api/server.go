// Package api wires the registry's HTTP surface: chi routing, the
// per-request transaction, bearer-token identity, and typed-error
// responses, generalizing the teacher's Server struct and router
// composition in server.go.
package api

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/slowlime/knotd/internal/auth"
	"github.com/slowlime/knotd/internal/config"
	"github.com/slowlime/knotd/internal/store"
)

// Version is reported by GET /.
const Version = "0.1.0"

// Server holds everything request handlers need.
type Server struct {
	cfg    config.Config
	store  *store.Store
	minter *auth.Minter
	log    *log.Logger
}

// New builds a Server. A nil logger falls back to one writing to stdout with
// the teacher's timestamp flags.
func New(cfg config.Config, st *store.Store, minter *auth.Minter, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(os.Stdout, "knotd ", log.LstdFlags|log.LUTC)
	}
	return &Server{cfg: cfg, store: st, minter: minter, log: logger}
}

// Router builds the full chi route tree for spec.md §4.6.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.identifyMiddleware)

	r.Get("/", s.handleVersion)
	r.Post("/login", s.wrap(s.handleLogin))
	r.Post("/user", s.wrap(s.handleRegister))
	r.Get("/user/{username}", s.wrap(s.handleGetUser))

	r.Get("/permission", s.wrap(s.handleListPermissions))

	r.Post("/namespace", s.wrap(s.handleCreateNamespace))
	r.Get("/namespace/{ns}", s.wrap(s.handleGetNamespace))
	r.Post("/namespace/{ns}", s.wrap(s.handleEditNamespace))
	r.Delete("/namespace/{ns}", s.wrap(s.handleDeleteNamespace))
	r.Get("/namespace/{ns}/package", s.wrap(s.handleListNamespacePackages))

	r.Get("/namespace/{ns}/user", s.wrap(s.handleListNamespaceMembers))
	r.Post("/namespace/{ns}/user", s.wrap(s.handleAddNamespaceMember))
	r.Post("/namespace/{ns}/user/{u}", s.wrap(s.handleEditNamespaceMember))
	r.Delete("/namespace/{ns}/user/{u}", s.wrap(s.handleRemoveNamespaceMember))

	r.Get("/namespace/{ns}/role", s.wrap(s.handleListNamespaceRoles))
	r.Post("/namespace/{ns}/role", s.wrap(s.handleCreateNamespaceRole))
	r.Post("/namespace/{ns}/role/{r}", s.wrap(s.handleEditNamespaceRole))
	r.Delete("/namespace/{ns}/role/{r}", s.wrap(s.handleDeleteNamespaceRole))

	r.Get("/package", s.wrap(s.handleListPackages))
	r.Post("/package", s.wrap(s.handleCreatePackage))
	r.Get("/package/{p}", s.wrap(s.handleGetPackage))
	r.Post("/package/{p}", s.wrap(s.handleEditPackage))
	r.Delete("/package/{p}", s.wrap(s.handleDeletePackage))

	r.Get("/package/{p}/version", s.wrap(s.handleListVersions))
	r.Post("/package/{p}/version", s.wrap(s.handleCreateVersion))
	r.Get("/package/{p}/version/{v}", s.wrap(s.handleGetVersion))
	r.Post("/package/{p}/version/{v}", s.wrap(s.handleEditVersion))
	r.Delete("/package/{p}/version/{v}", s.wrap(s.handleDeleteVersion))

	r.Get("/package/{p}/tag", s.wrap(s.handleListTags))
	r.Post("/package/{p}/tag", s.wrap(s.handleCreateTag))
	r.Post("/package/{p}/tag/{t}", s.wrap(s.handleEditTag))
	r.Delete("/package/{p}/tag/{t}", s.wrap(s.handleDeleteTag))

	return r
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

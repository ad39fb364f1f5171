// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/dalemusser/schedulehub/internal/app/system/auth"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the audit log under the path where this router is mounted
// (typically "/audit" from bootstrap). Admins only.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole(models.RoleAdmin))

		pr.Get("/", h.ServeList)
	})

	return r
}

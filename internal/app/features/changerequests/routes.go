// internal/app/features/changerequests/routes.go
package changerequests

import (
	"github.com/dalemusser/schedulehub/internal/app/system/auth"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		// Admins see the review queue, teachers their own requests.
		pr.Get("/", h.ServeList)
		pr.Get("/new", h.ServeNew)
		pr.Post("/", h.HandleCreate)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole(models.RoleAdmin))

		pr.Post("/{id}/approve", h.HandleApprove)
		pr.Post("/{id}/reject", h.HandleReject)
	})

	return r
}

// internal/app/features/api/routes.go
package api

import (
	"github.com/dalemusser/schedulehub/internal/app/system/auth"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the JSON API. Reads need a session; writes need an admin.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	admin := sm.RequireRole(models.RoleAdmin)

	r.Route("/rooms", func(sr chi.Router) { h.rooms().routes(sr, admin) })
	r.Route("/teachers", func(sr chi.Router) { h.teachers().routes(sr, admin) })
	r.Route("/students", func(sr chi.Router) { h.students().routes(sr, admin) })
	r.Route("/subjects", func(sr chi.Router) { h.subjects().routes(sr, admin) })
	r.Route("/major-sections", func(sr chi.Router) { h.sections().routes(sr, admin) })

	r.Route("/code-values", func(sr chi.Router) {
		sr.Get("/", h.ListCodeValues)
		sr.With(admin).Post("/", h.CreateCodeValue)
		sr.With(admin).Put("/{id}", h.UpdateCodeValue)
		sr.With(admin).Delete("/{id}", h.DeleteCodeValue)
	})

	r.Route("/timetables", func(sr chi.Router) {
		sr.Get("/", h.ListEntries)

		sr.Group(func(ar chi.Router) {
			ar.Use(admin)
			ar.Get("/export", h.Export)
			ar.Post("/generate", h.Generate)
			ar.Post("/import", h.Import)
			ar.Get("/{id}/grid", h.SectionGrid)
			ar.Post("/", h.CreateEntry)
			ar.Put("/{id}", h.UpdateEntry)
			ar.Delete("/{id}", h.DeleteEntry)
			ar.Post("/{id}/combine", h.CombineEntry)
			ar.Post("/{id}/split", h.SplitEntry)
		})
	})

	r.Route("/change-requests", func(sr chi.Router) {
		sr.Get("/", h.ListChangeRequests)
		sr.Post("/", h.CreateChangeRequest)
		sr.With(admin).Post("/{id}/approve", h.ApproveChangeRequest)
		sr.With(admin).Post("/{id}/reject", h.RejectChangeRequest)
	})

	return r
}

// internal/app/features/timetables/routes.go
package timetables

import (
	"github.com/dalemusser/schedulehub/internal/app/system/auth"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		// Teachers may open their own week; the handler checks which one.
		pr.Get("/teachers/{teacherID}", h.ServeTeacher)
		pr.Get("/teachers/{teacherID}/grid", h.ServeTeacherGrid)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole(models.RoleAdmin))

		pr.Get("/", h.ServeList)
		pr.Get("/{sectionID}", h.ServeSection)
		pr.Get("/{sectionID}/grid", h.ServeSectionGrid)

		// CELL FORM (HTMX modal)
		pr.Get("/{sectionID}/cell", h.ServeCell)
		pr.Post("/{sectionID}/cell", h.HandleCellSubmit)
		pr.Post("/{sectionID}/cell/subject", h.HandleCellSubject)
		pr.Post("/{sectionID}/cell/delete", h.HandleCellDelete)

		// COMBINE / SPLIT
		pr.Get("/{sectionID}/cell/combine", h.ServeCombine)
		pr.Post("/{sectionID}/cell/combine", h.HandleCombine)
		pr.Post("/{sectionID}/cell/split", h.HandleSplit)
	})

	return r
}

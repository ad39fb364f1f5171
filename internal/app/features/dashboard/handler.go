// internal/app/features/dashboard/handler.go
package dashboard

import (
	"net/http"

	"github.com/dalemusser/schedulehub/internal/app/system/authz"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB  *mongo.Database
	Log *zap.Logger
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		DB:  db,
		Log: logger,
	}
}

// ServeDashboard dispatches to the view for the caller's role.
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	role, ok := authz.Role(r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	switch role {
	case models.RoleAdmin:
		h.ServeAdmin(w, r)
	case models.RoleTeacher:
		h.ServeTeacher(w, r)
	default:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// internal/app/features/home/handler.go
package home

import (
	"net/http"

	"github.com/dalemusser/schedulehub/internal/app/system/authz"
	"go.uber.org/zap"
)

// Handler sends visitors of the site root where they belong.
type Handler struct {
	Log *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{Log: logger}
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET / – signed-in users land on the dashboard, others on the login page     |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeRoot(w http.ResponseWriter, r *http.Request) {
	if _, _, _, ok := authz.UserCtx(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

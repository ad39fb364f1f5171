// internal/app/features/dashboard/admin.go
package dashboard

import (
	"context"
	"net/http"

	metricsstore "github.com/dalemusser/schedulehub/internal/app/store/metrics"
	"github.com/dalemusser/schedulehub/internal/app/system/timeouts"
	"github.com/dalemusser/schedulehub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

type adminData struct {
	viewdata.BaseVM
	Counts metricsstore.Counts
}

func (h *Handler) ServeAdmin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	data := adminData{
		BaseVM: viewdata.NewBaseVM(r, "Admin Dashboard", "/"),
		Counts: metricsstore.FetchDashboardCounts(ctx, h.DB),
	}

	h.Log.Debug("admin dashboard served", zap.String("user", data.UserName))

	templates.Render(w, r, "admin_dashboard", data)
}

package dashboard

import (
	"context"
	"net/http"

	metricsstore "github.com/dalemusser/schedulehub/internal/app/store/metrics"
	"github.com/dalemusser/schedulehub/internal/app/system/authz"
	"github.com/dalemusser/schedulehub/internal/app/system/timeouts"
	"github.com/dalemusser/schedulehub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
)

type teacherData struct {
	viewdata.BaseVM
	TeacherID string
	Linked    bool
	Counts    metricsstore.TeacherCounts
}

// ServeTeacher shows a teacher their own totals. An account not yet linked
// to a teacher record gets a notice instead of counts.
func (h *Handler) ServeTeacher(w http.ResponseWriter, r *http.Request) {
	_, _, userID, _ := authz.UserCtx(r)
	teacherID := authz.TeacherID(r)

	data := teacherData{BaseVM: viewdata.NewBaseVM(r, "Dashboard", "/")}
	if !teacherID.IsZero() {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()
		data.Linked = true
		data.TeacherID = teacherID.Hex()
		data.Counts = metricsstore.FetchTeacherCounts(ctx, h.DB, teacherID, userID)
	}

	templates.Render(w, r, "teacher_dashboard", data)
}

package changerequests

import (
	"context"
	"net/http"

	"github.com/dalemusser/schedulehub/internal/app/system/authz"
	"github.com/dalemusser/schedulehub/internal/app/system/changes"
	"github.com/dalemusser/schedulehub/internal/app/system/paging"
	"github.com/dalemusser/schedulehub/internal/app/system/timeouts"
	"github.com/dalemusser/schedulehub/internal/app/system/viewdata"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
)

type listVM struct {
	viewdata.BaseVM
	Status   string
	Statuses []string
	Page     changes.Page
	Review   bool // admin queue with approve/reject buttons
	Notice   string
}

func validStatus(s string) bool {
	switch s {
	case "", models.ChangeRequestPending, models.ChangeRequestApproved, models.ChangeRequestRejected:
		return true
	}
	return false
}

// ServeList handles GET /change-requests.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	vm := listVM{
		BaseVM:   viewdata.NewBaseVM(r, "Change requests", "/dashboard"),
		Statuses: []string{models.ChangeRequestPending, models.ChangeRequestApproved, models.ChangeRequestRejected},
		Notice:   query.Get(r, "notice"),
	}

	if !authz.IsAdmin(r) {
		_, _, userID, _ := authz.UserCtx(r)
		mine, err := h.Changes.Mine(ctx, userID)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "list own change requests", err, "Could not load your change requests.", "/dashboard")
			return
		}
		vm.Title = "My change requests"
		vm.Page = changes.Page{Items: mine, Total: int64(len(mine))}
		templates.Render(w, r, "changerequest_list", vm)
		return
	}

	status := query.Get(r, "status")
	if _, set := r.URL.Query()["status"]; !set {
		status = models.ChangeRequestPending
	}
	if !validStatus(status) {
		h.ErrLog.LogBadRequest(w, r, "bad status filter", nil, "Unknown status.", "/change-requests")
		return
	}
	p := paging.ParseParams(r)
	page, err := h.Changes.List(ctx, status, p.Before, p.After)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list change requests", err, "Could not load change requests.", "/dashboard")
		return
	}
	vm.Status = status
	vm.Page = page
	vm.Review = true
	templates.Render(w, r, "changerequest_list", vm)
}

package timetables

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/schedulehub/internal/app/system/timeouts"
	"github.com/dalemusser/schedulehub/internal/app/system/timetable"
	"github.com/dalemusser/schedulehub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/text"
)

type listVM struct {
	viewdata.BaseVM
	Query    string
	Sections []timetable.SectionSummary
	Empty    int // sections with no entries yet
}

// ServeList handles GET /timetables.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	all, err := h.Svc.Sections(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list timetables", err, "Could not load the timetable list.", "/dashboard")
		return
	}

	q := query.Search(r, "q")
	vm := listVM{
		BaseVM: viewdata.NewBaseVM(r, "Timetables", "/dashboard"),
		Query:  q,
	}
	needle := text.Fold(q)
	for _, s := range all {
		if needle != "" && !strings.Contains(s.Section.NameCI, needle) &&
			!strings.Contains(strings.ToLower(s.Section.Code), needle) {
			continue
		}
		if s.Entries == 0 {
			vm.Empty++
		}
		vm.Sections = append(vm.Sections, s)
	}

	templates.Render(w, r, "timetable_list", vm)
}

package timetables

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/schedulehub/internal/app/features/errors"
	"github.com/dalemusser/schedulehub/internal/app/system/authz"
	"github.com/dalemusser/schedulehub/internal/app/system/timeouts"
	"github.com/dalemusser/schedulehub/internal/app/system/timetable"
	"github.com/dalemusser/schedulehub/internal/app/system/viewdata"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type cellVM struct {
	DayID    string
	PeriodID string
	Occupied bool

	EntryID     string
	Subject     string
	SubjectType string
	Room        string
	Teacher     string // section grid
	Section     string // teacher grid
	Combined    []string
}

type rowVM struct {
	Period string
	Cells  []cellVM
}

type gridVM struct {
	Days     []string
	Rows     []rowVM
	Editable bool
	// ReloadURL is fetched when the grid hears the change event.
	ReloadURL string
	SectionID string
	Warnings  int
	// RequestChanges links occupied cells to the change-request form.
	RequestChanges bool
}

type sectionPageVM struct {
	viewdata.BaseVM
	Section models.MajorSection
	Grid    gridVM
}

type teacherPageVM struct {
	viewdata.BaseVM
	Teacher models.Teacher
	Grid    gridVM
}

func toGridVM(v timetable.View) gridVM {
	var out gridVM
	for _, d := range v.Grid.Days() {
		out.Days = append(out.Days, d.Label)
	}
	for _, row := range v.Grid.Rows() {
		rv := rowVM{Period: row.Period.Label}
		for _, c := range row.Cells {
			cv := cellVM{DayID: c.Day.ID, PeriodID: c.Period.ID, Occupied: c.Occupied}
			if c.Occupied {
				e := c.Entry
				cv.EntryID = e.ID.Hex()
				cv.Subject = e.Subject.Name
				cv.Room = e.Room.Name
				cv.Teacher = e.Teacher.Name
				cv.Section = e.Section.Name
				if e.SubjectType != nil {
					cv.SubjectType = e.SubjectType.Name
				}
				for _, ref := range v.Combined[cv.EntryID] {
					cv.Combined = append(cv.Combined, ref.Name)
				}
			}
			rv.Cells = append(rv.Cells, cv)
		}
		out.Rows = append(out.Rows, rv)
	}
	out.Warnings = len(v.Report.Dropped) + len(v.Report.Unresolved())
	return out
}

/*─────────────────────────────────────────────────────────────────────────────*
| Section timetable                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) loadSection(w http.ResponseWriter, r *http.Request) (*timetable.SectionView, bool) {
	sectionID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "sectionID"))
	if err != nil {
		h.ErrLog.LogNotFound(w, r, "bad section id", err, "Major section not found.", "/timetables")
		return nil, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	sv, err := h.Svc.SectionGrid(ctx, sectionID)
	if errors.Is(err, timetable.ErrSectionNotFound) {
		h.ErrLog.LogNotFound(w, r, "section not found", err, "Major section not found.", "/timetables")
		return nil, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load section timetable", err, "Could not load the timetable.", "/timetables")
		return nil, false
	}
	return sv, true
}

func sectionGridVM(sv *timetable.SectionView) gridVM {
	g := toGridVM(sv.View)
	g.Editable = true
	g.SectionID = sv.Section.ID.Hex()
	g.ReloadURL = "/timetables/" + g.SectionID + "/grid"
	return g
}

// ServeSection handles GET /timetables/{sectionID}.
func (h *Handler) ServeSection(w http.ResponseWriter, r *http.Request) {
	sv, ok := h.loadSection(w, r)
	if !ok {
		return
	}
	templates.Render(w, r, "timetable_section", sectionPageVM{
		BaseVM:  viewdata.NewBaseVM(r, sv.Section.Name, httpnav.ResolveBackURL(r, "/timetables")),
		Section: sv.Section,
		Grid:    sectionGridVM(sv),
	})
}

// ServeSectionGrid re-renders only the grid; the page swaps it in on ChangedEvent.
func (h *Handler) ServeSectionGrid(w http.ResponseWriter, r *http.Request) {
	sv, ok := h.loadSection(w, r)
	if !ok {
		return
	}
	templates.RenderSnippet(w, "timetable_grid", sectionGridVM(sv))
}

/*─────────────────────────────────────────────────────────────────────────────*
| Teacher timetable                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) loadTeacher(w http.ResponseWriter, r *http.Request) (*timetable.TeacherView, bool) {
	teacherID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "teacherID"))
	if err != nil {
		h.ErrLog.LogNotFound(w, r, "bad teacher id", err, "Teacher not found.", "/dashboard")
		return nil, false
	}
	if !authz.CanViewTeacher(r, teacherID) {
		uierrors.RenderForbidden(w, r, "You can only view your own timetable.", "/dashboard")
		return nil, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	tv, err := h.Svc.TeacherGrid(ctx, teacherID)
	if errors.Is(err, timetable.ErrTeacherNotFound) {
		h.ErrLog.LogNotFound(w, r, "teacher not found", err, "Teacher not found.", "/dashboard")
		return nil, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load teacher timetable", err, "Could not load the timetable.", "/dashboard")
		return nil, false
	}
	return tv, true
}

func teacherGridVM(r *http.Request, tv *timetable.TeacherView) gridVM {
	g := toGridVM(tv.View)
	g.ReloadURL = "/timetables/teachers/" + tv.Teacher.ID.Hex() + "/grid"
	g.RequestChanges = authz.CanRequestChange(r, tv.Teacher.ID)
	return g
}

// ServeTeacher handles GET /timetables/teachers/{teacherID}.
func (h *Handler) ServeTeacher(w http.ResponseWriter, r *http.Request) {
	tv, ok := h.loadTeacher(w, r)
	if !ok {
		return
	}
	templates.Render(w, r, "timetable_teacher", teacherPageVM{
		BaseVM:  viewdata.NewBaseVM(r, tv.Teacher.FullName, "/dashboard"),
		Teacher: tv.Teacher,
		Grid:    teacherGridVM(r, tv),
	})
}

func (h *Handler) ServeTeacherGrid(w http.ResponseWriter, r *http.Request) {
	tv, ok := h.loadTeacher(w, r)
	if !ok {
		return
	}
	templates.RenderSnippet(w, "timetable_grid", teacherGridVM(r, tv))
}

package timetables

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/schedulehub/internal/app/store/audit"
	"github.com/dalemusser/schedulehub/internal/app/system/auth"
	"github.com/dalemusser/schedulehub/internal/app/system/cellform"
	"github.com/dalemusser/schedulehub/internal/app/system/timeouts"
	"github.com/dalemusser/schedulehub/internal/app/system/timetable"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/gorilla/csrf"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type option struct {
	ID       string
	Label    string
	Selected bool
}

type cellFormVM struct {
	SectionID   string
	SectionName string
	DayID       string
	PeriodID    string
	DayLabel    string
	PeriodLabel string

	State    string
	IsUpdate bool
	Locked   bool
	Message  string
	Missing  []string
	Combined []string

	Subjects     []option
	SubjectTypes []option
	Rooms        []option
	Teachers     []option

	CSRFToken string
}

// cellRequest is one rebuilt cell form with everything it was built from.
type cellRequest struct {
	sv   *timetable.SectionView
	opts timetable.Options
	cell cellform.Cell
	form *cellform.Form
}

// openCell loads the section grid and form options and opens the form on
// the cell named by the day and period parameters.
func (h *Handler) openCell(ctx context.Context, w http.ResponseWriter, r *http.Request) (*cellRequest, bool) {
	sv, ok := h.loadSection(w, r)
	if !ok {
		return nil, false
	}
	dayID, periodID := r.FormValue("day"), r.FormValue("period")
	if !sv.Grid.Has(dayID, periodID) {
		h.ErrLog.LogBadRequest(w, r, "cell outside the grid", nil, "That timetable cell does not exist.", "/timetables/"+sv.Section.ID.Hex())
		return nil, false
	}
	opts, err := h.Svc.FormOptions(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load cell form options", err, "Could not load the form.", "/timetables/"+sv.Section.ID.Hex())
		return nil, false
	}

	cr := &cellRequest{sv: sv, opts: opts, cell: sv.CellFor(dayID, periodID)}
	cr.form = cellform.New(opts.ScopeLookup())
	if err := cr.form.Open(cr.cell); err != nil {
		h.ErrLog.LogServerError(w, r, "open cell form", err, "Could not open the form.", "/timetables/"+sv.Section.ID.Hex())
		return nil, false
	}
	return cr, true
}

// fail runs the form through a submit that failed with err, so it reopens
// in Editing with err's message.
func (cr *cellRequest) fail(err error) {
	if ok, _ := cr.form.Begin(); ok {
		_ = cr.form.Fail(err)
	}
}

func postedValues(r *http.Request) cellform.Values {
	return cellform.Values{
		SubjectID:     r.PostFormValue("subject_id"),
		SubjectTypeID: r.PostFormValue("subject_type_id"),
		RoomID:        r.PostFormValue("room_id"),
		TeacherID:     r.PostFormValue("teacher_id"),
	}
}

func (cr *cellRequest) vm(r *http.Request) cellFormVM {
	f := cr.form
	v := f.Values()
	vm := cellFormVM{
		SectionID:   cr.sv.Section.ID.Hex(),
		SectionName: cr.sv.Section.Name,
		DayID:       cr.cell.DayID,
		PeriodID:    cr.cell.PeriodID,
		State:       f.State().String(),
		IsUpdate:    f.IsUpdate(),
		Locked:      f.DayPeriodLocked(),
		Message:     f.Message(),
		Missing:     f.Missing(),
		CSRFToken:   csrf.Token(r),
	}
	if d, ok := cr.sv.Grid.Day(cr.cell.DayID); ok {
		vm.DayLabel = d.Label
	}
	if p, ok := cr.sv.Grid.Period(cr.cell.PeriodID); ok {
		vm.PeriodLabel = p.Label
	}
	for _, ref := range cr.sv.Combined[cr.cell.EntryID] {
		vm.Combined = append(vm.Combined, ref.Name)
	}

	for _, s := range cr.opts.Subjects {
		vm.Subjects = append(vm.Subjects, option{ID: s.ID.Hex(), Label: s.Code + " " + s.Name, Selected: s.ID.Hex() == v.SubjectID})
	}
	for _, rm := range cr.opts.Rooms {
		vm.Rooms = append(vm.Rooms, option{ID: rm.ID.Hex(), Label: rm.Name, Selected: rm.ID.Hex() == v.RoomID})
	}
	// Teacher and type lists follow the chosen subject.
	if v.SubjectID != "" {
		for _, t := range cr.opts.TeachersFor(v.SubjectID) {
			vm.Teachers = append(vm.Teachers, option{ID: t.ID.Hex(), Label: t.FullName, Selected: t.ID.Hex() == v.TeacherID})
		}
		for _, st := range cr.opts.SubjectTypesFor(v.SubjectID) {
			vm.SubjectTypes = append(vm.SubjectTypes, option{ID: st.ID.Hex(), Label: st.Label, Selected: st.ID.Hex() == v.SubjectTypeID})
		}
	}
	return vm
}

func (h *Handler) renderCell(w http.ResponseWriter, r *http.Request, cr *cellRequest, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.RenderSnippet(w, "timetable_cell_form", cr.vm(r))
}

func actorID(r *http.Request) string {
	if u, ok := auth.CurrentUser(r); ok {
		return u.ID
	}
	return ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /timetables/{sectionID}/cell?day=&period=                               |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeCell opens the cell form: Viewing for an occupied cell, Creating otherwise.
func (h *Handler) ServeCell(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	cr, ok := h.openCell(ctx, w, r)
	if !ok {
		return
	}
	h.renderCell(w, r, cr, http.StatusOK)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /timetables/{sectionID}/cell/subject                                   |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleCellSubject re-renders the form after the subject select changes.
// shown_subject_id carries the subject the form was rendered with, so a real
// change resets the teacher and subject type.
func (h *Handler) HandleCellSubject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	cr, ok := h.openCell(ctx, w, r)
	if !ok {
		return
	}
	prev := postedValues(r)
	prev.SubjectID = r.PostFormValue("shown_subject_id")
	_ = cr.form.Restore(prev)
	_ = cr.form.SelectSubject(r.PostFormValue("subject_id"))

	h.renderCell(w, r, cr, http.StatusOK)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /timetables/{sectionID}/cell                                           |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleCellSubmit creates or updates the entry in the cell. The form closes
// on success and stays open with the error message on failure.
func (h *Handler) HandleCellSubmit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	cr, ok := h.openCell(ctx, w, r)
	if !ok {
		return
	}
	_ = cr.form.Restore(postedValues(r))
	wasUpdate := cr.form.IsUpdate()

	sectionID := cr.sv.Section.ID
	err := cr.form.Submit(ctx, h.Svc.ForSection(sectionID), h.Svc.Cache())
	if cr.form.State() != cellform.Closed {
		if err != nil && !timetable.IsUserError(err) {
			h.Log.Error("timetable cell submit failed", zap.Error(err),
				zap.String("section_id", sectionID.Hex()),
				zap.String("day_id", cr.cell.DayID),
				zap.String("period_id", cr.cell.PeriodID))
		}
		h.renderCell(w, r, cr, http.StatusUnprocessableEntity)
		return
	}

	details := map[string]string{
		"section":   cr.sv.Section.Name,
		"day_id":    cr.cell.DayID,
		"period_id": cr.cell.PeriodID,
	}
	if wasUpdate {
		id, _ := primitive.ObjectIDFromHex(cr.cell.EntryID)
		h.AuditLog.Schedule(ctx, r, audit.EventEntryUpdated, actorID(r), &id, details)
	} else {
		h.AuditLog.Schedule(ctx, r, audit.EventEntryCreated, actorID(r), nil, details)
	}
	changed(w, r, "/timetables/"+sectionID.Hex())
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /timetables/{sectionID}/cell/delete                                    |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleCellDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	cr, ok := h.openCell(ctx, w, r)
	if !ok {
		return
	}
	back := "/timetables/" + cr.sv.Section.ID.Hex()
	entryID, err := primitive.ObjectIDFromHex(cr.cell.EntryID)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "delete on empty cell", nil, "There is no class in this cell.", back)
		return
	}

	e, err := h.Svc.Delete(ctx, entryID)
	if errors.Is(err, timetable.ErrEntryNotFound) {
		// Already gone; the grid is stale.
		h.Svc.Invalidate()
		changed(w, r, back)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "delete timetable entry", err, "Could not delete the class.", back)
		return
	}

	h.AuditLog.Schedule(ctx, r, audit.EventEntryDeleted, actorID(r), &e.ID, map[string]string{
		"section": e.Section.Name,
		"subject": e.Subject.Name,
		"day":     e.Day.Name,
		"period":  e.Period.Name,
	})
	changed(w, r, back)
}

package changerequests

import (
	"context"
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/schedulehub/internal/app/features/errors"
	"github.com/dalemusser/schedulehub/internal/app/store/audit"
	"github.com/dalemusser/schedulehub/internal/app/system/authz"
	"github.com/dalemusser/schedulehub/internal/app/system/cellform"
	"github.com/dalemusser/schedulehub/internal/app/system/changes"
	"github.com/dalemusser/schedulehub/internal/app/system/limits"
	"github.com/dalemusser/schedulehub/internal/app/system/timeouts"
	"github.com/dalemusser/schedulehub/internal/app/system/timetable"
	"github.com/dalemusser/schedulehub/internal/app/system/viewdata"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type option struct {
	ID       string
	Label    string
	Selected bool
}

type newVM struct {
	viewdata.BaseVM
	Entry    models.TimetableEntry
	Days     []option
	Periods  []option
	Rooms    []option
	Teachers []option
	Reason   string
	Error    string
}

func codeOptions(cvs []models.CodeValue, selected string) []option {
	out := make([]option, 0, len(cvs))
	for _, cv := range cvs {
		out = append(out, option{ID: cv.ID.Hex(), Label: cv.Label, Selected: cv.ID.Hex() == selected})
	}
	return out
}

// loadEntry fetches the entry named by hex and checks the caller may
// request a change to it.
func (h *Handler) loadEntry(ctx context.Context, w http.ResponseWriter, r *http.Request, hex string) (models.TimetableEntry, bool) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad entry id", err, "Choose a class from your timetable first.", "/dashboard")
		return models.TimetableEntry{}, false
	}
	e, err := h.TT.Entry(ctx, id)
	if errors.Is(err, timetable.ErrEntryNotFound) {
		h.ErrLog.LogNotFound(w, r, "entry not found", err, "That class no longer exists.", "/dashboard")
		return e, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load entry", err, "Could not load the class.", "/dashboard")
		return e, false
	}
	if !authz.CanRequestChange(r, e.Teacher.ID) {
		uierrors.RenderForbidden(w, r, "You can only request changes to your own classes.", "/dashboard")
		return e, false
	}
	return e, true
}

func (h *Handler) renderNew(w http.ResponseWriter, r *http.Request, ctx context.Context, e models.TimetableEntry, p changes.Proposal, msg string, status int) {
	opts, err := h.TT.FormOptions(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load form options", err, "Could not load the form.", "/dashboard")
		return
	}
	if p.DayID == "" {
		p.DayID = opts.Catalog.DayID(e.Day)
	}
	if p.PeriodID == "" {
		p.PeriodID = opts.Catalog.PeriodID(e.Period)
	}
	if p.RoomID == "" {
		p.RoomID = e.Room.ID.Hex()
	}
	if p.TeacherID == "" {
		p.TeacherID = e.Teacher.ID.Hex()
	}

	vm := newVM{
		BaseVM:  viewdata.NewBaseVM(r, "Request a change", "/dashboard"),
		Entry:   e,
		Days:    codeOptions(opts.Days, p.DayID),
		Periods: codeOptions(opts.Periods, p.PeriodID),
		Reason:  p.Reason,
		Error:   msg,
	}
	for _, rm := range opts.Rooms {
		vm.Rooms = append(vm.Rooms, option{ID: rm.ID.Hex(), Label: rm.Name, Selected: rm.ID.Hex() == p.RoomID})
	}
	for _, t := range opts.TeachersFor(e.Subject.ID.Hex()) {
		vm.Teachers = append(vm.Teachers, option{ID: t.ID.Hex(), Label: t.FullName, Selected: t.ID.Hex() == p.TeacherID})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "changerequest_new", vm)
}

// ServeNew handles GET /change-requests/new?entry=.
func (h *Handler) ServeNew(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	e, ok := h.loadEntry(ctx, w, r, query.Get(r, "entry"))
	if !ok {
		return
	}
	h.renderNew(w, r, ctx, e, changes.Proposal{}, "", http.StatusOK)
}

// HandleCreate handles POST /change-requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxFormBody)
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/dashboard")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	e, ok := h.loadEntry(ctx, w, r, r.PostFormValue("entry_id"))
	if !ok {
		return
	}
	p := changes.Proposal{
		EntryID:   e.ID.Hex(),
		DayID:     r.PostFormValue("day_id"),
		PeriodID:  r.PostFormValue("period_id"),
		RoomID:    r.PostFormValue("room_id"),
		TeacherID: r.PostFormValue("teacher_id"),
		Reason:    strings.TrimSpace(r.PostFormValue("reason")),
	}
	by, _ := person(r)

	cr, err := h.Changes.Create(ctx, by, p)
	if err != nil {
		var inv *changes.InvalidError
		if errors.As(err, &inv) || timetable.IsUserError(err) {
			h.renderNew(w, r, ctx, e, p, cellform.MessageFor(err), http.StatusUnprocessableEntity)
			return
		}
		h.ErrLog.LogServerError(w, r, "create change request", err, "Could not submit the request.", "/dashboard")
		return
	}

	h.AuditLog.Schedule(ctx, r, audit.EventChangeRequested, by.ID.Hex(), &cr.ID, map[string]string{
		"entry_id": e.ID.Hex(),
		"section":  e.Section.Name,
		"subject":  e.Subject.Name,
	})
	h.Log.Debug("change request filed", zap.String("request_id", cr.ID.Hex()))
	http.Redirect(w, r, "/change-requests?notice=submitted", http.StatusSeeOther)
}

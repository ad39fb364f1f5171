package timetables

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/schedulehub/internal/app/store/audit"
	"github.com/dalemusser/schedulehub/internal/app/system/cellform"
	"github.com/dalemusser/schedulehub/internal/app/system/timeouts"
	"github.com/dalemusser/schedulehub/internal/app/system/timetable"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/gorilla/csrf"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type candidateVM struct {
	ID       string
	Name     string
	Combined bool
	Busy     string
	Checked  bool
}

type combineVM struct {
	SectionID   string
	SectionName string
	DayID       string
	PeriodID    string
	DayLabel    string
	PeriodLabel string
	Subject     string
	Teacher     string
	Room        string
	Candidates  []candidateVM
	Message     string
	CSRFToken   string
}

func (h *Handler) renderCombine(w http.ResponseWriter, r *http.Request, ctx context.Context, cr *cellRequest, entryID primitive.ObjectID, msg string, status int) {
	e, cands, err := h.Svc.CombineCandidates(ctx, entryID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load combine candidates", err, "Could not load the sections.", "/timetables/"+cr.sv.Section.ID.Hex())
		return
	}
	checked := map[string]bool{}
	for _, id := range r.PostForm["section_ids"] {
		checked[id] = true
	}
	vm := combineVM{
		SectionID:   cr.sv.Section.ID.Hex(),
		SectionName: cr.sv.Section.Name,
		DayID:       cr.cell.DayID,
		PeriodID:    cr.cell.PeriodID,
		DayLabel:    e.Day.Name,
		PeriodLabel: e.Period.Name,
		Subject:     e.Subject.Name,
		Teacher:     e.Teacher.Name,
		Room:        e.Room.Name,
		Message:     msg,
		CSRFToken:   csrf.Token(r),
	}
	for _, c := range cands {
		id := c.Section.ID.Hex()
		vm.Candidates = append(vm.Candidates, candidateVM{
			ID: id, Name: c.Section.Name, Combined: c.Combined, Busy: c.Busy, Checked: checked[id],
		})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.RenderSnippet(w, "timetable_combine_form", vm)
}

// occupiedCell opens the cell and requires it to hold an entry.
func (h *Handler) occupiedCell(ctx context.Context, w http.ResponseWriter, r *http.Request) (*cellRequest, primitive.ObjectID, bool) {
	cr, ok := h.openCell(ctx, w, r)
	if !ok {
		return nil, primitive.NilObjectID, false
	}
	entryID, err := primitive.ObjectIDFromHex(cr.cell.EntryID)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "combine on empty cell", nil, "There is no class in this cell.", "/timetables/"+cr.sv.Section.ID.Hex())
		return nil, primitive.NilObjectID, false
	}
	return cr, entryID, true
}

// ServeCombine handles GET /timetables/{sectionID}/cell/combine.
func (h *Handler) ServeCombine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	cr, entryID, ok := h.occupiedCell(ctx, w, r)
	if !ok {
		return
	}
	h.renderCombine(w, r, ctx, cr, entryID, "", http.StatusOK)
}

// HandleCombine copies the cell's class into the checked sections.
func (h *Handler) HandleCombine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	cr, entryID, ok := h.occupiedCell(ctx, w, r)
	if !ok {
		return
	}

	var targets []primitive.ObjectID
	for _, hex := range r.PostForm["section_ids"] {
		if oid, err := primitive.ObjectIDFromHex(hex); err == nil {
			targets = append(targets, oid)
		}
	}

	res, err := h.Svc.Combine(ctx, entryID, targets)
	if err != nil {
		if !timetable.IsUserError(err) {
			h.Log.Error("combine class failed", zap.Error(err), zap.String("entry_id", entryID.Hex()))
		}
		h.renderCombine(w, r, ctx, cr, entryID, cellform.MessageFor(err), http.StatusUnprocessableEntity)
		return
	}

	h.AuditLog.Schedule(ctx, r, audit.EventClassCombined, actorID(r), &entryID, map[string]string{
		"group":   res.Group,
		"created": strconv.Itoa(len(res.Created)),
		"skipped": strconv.Itoa(len(res.Skipped)),
	})
	changed(w, r, "/timetables/"+cr.sv.Section.ID.Hex())
}

// HandleSplit detaches the cell's class from its combined group.
func (h *Handler) HandleSplit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	cr, entryID, ok := h.occupiedCell(ctx, w, r)
	if !ok {
		return
	}

	e, err := h.Svc.Split(ctx, entryID)
	if err != nil {
		if !timetable.IsUserError(err) {
			h.Log.Error("split class failed", zap.Error(err), zap.String("entry_id", entryID.Hex()))
		}
		cr.fail(err)
		h.renderCell(w, r, cr, http.StatusUnprocessableEntity)
		return
	}

	h.AuditLog.Schedule(ctx, r, audit.EventClassSplit, actorID(r), &e.ID, map[string]string{
		"section": e.Section.Name,
		"subject": e.Subject.Name,
	})
	changed(w, r, "/timetables/"+cr.sv.Section.ID.Hex())
}

// internal/app/features/api/timetables.go
package api

import (
	"context"
	"net/http"

	"github.com/dalemusser/schedulehub/internal/app/store/audit"
	"github.com/dalemusser/schedulehub/internal/app/system/authz"
	"github.com/dalemusser/schedulehub/internal/app/system/cellform"
	"github.com/dalemusser/schedulehub/internal/app/system/inputval"
	"github.com/dalemusser/schedulehub/internal/app/system/jsonutil"
	"github.com/dalemusser/schedulehub/internal/app/system/timeouts"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// entryInput is the body of POST and PUT /api/timetables.
type entryInput struct {
	SectionID     string `json:"section_id" validate:"omitempty,objectid" label:"Section"`
	DayID         string `json:"day_id" validate:"required,objectid" label:"Day"`
	PeriodID      string `json:"period_id" validate:"required,objectid" label:"Period"`
	SubjectID     string `json:"subject_id" validate:"required,objectid" label:"Subject"`
	SubjectTypeID string `json:"subject_type_id" validate:"omitempty,objectid" label:"Subject type"`
	RoomID        string `json:"room_id" validate:"required,objectid" label:"Room"`
	TeacherID     string `json:"teacher_id" validate:"required,objectid" label:"Teacher"`
}

func (in entryInput) values() cellform.Values {
	return cellform.Values{
		DayID:         in.DayID,
		PeriodID:      in.PeriodID,
		SubjectID:     in.SubjectID,
		SubjectTypeID: in.SubjectTypeID,
		RoomID:        in.RoomID,
		TeacherID:     in.TeacherID,
	}
}

type combineInput struct {
	SectionIDs []string `json:"section_ids" validate:"required,min=1,dive,objectid" label:"Sections"`
}

// ListEntries returns one section's (admin) or one teacher's entries.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	section := query.Get(r, "section")
	teacher := query.Get(r, "teacher")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var (
		entries []models.TimetableEntry
		err     error
	)
	switch {
	case section != "":
		oid, perr := primitive.ObjectIDFromHex(section)
		if perr != nil {
			jsonutil.Error(w, http.StatusBadRequest, "bad_id", "Invalid section id.")
			return
		}
		if !authz.IsAdmin(r) {
			jsonutil.Error(w, http.StatusForbidden, "forbidden", "Only admins can read section timetables.")
			return
		}
		entries, err = h.Entries.ListBySection(ctx, oid)
	case teacher != "":
		oid, perr := primitive.ObjectIDFromHex(teacher)
		if perr != nil {
			jsonutil.Error(w, http.StatusBadRequest, "bad_id", "Invalid teacher id.")
			return
		}
		if !authz.CanViewTeacher(r, oid) {
			jsonutil.Error(w, http.StatusForbidden, "forbidden", "You can only read your own timetable.")
			return
		}
		entries, err = h.Entries.ListByTeacher(ctx, oid)
	default:
		jsonutil.Error(w, http.StatusBadRequest, "missing_filter", "Pass ?section= or ?teacher=.")
		return
	}
	if err != nil {
		h.serverError(w, r, "list timetable entries failed", err)
		return
	}
	if entries == nil {
		entries = []models.TimetableEntry{}
	}
	jsonutil.Write(w, http.StatusOK, Page[models.TimetableEntry]{Items: entries, Total: int64(len(entries))})
}

type gridItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type gridCell struct {
	DayID    string                 `json:"day_id"`
	PeriodID string                 `json:"period_id"`
	Entry    *models.TimetableEntry `json:"entry,omitempty"`
	Combined []models.Ref           `json:"combined_with,omitempty"`
}

type gridRow struct {
	Period gridItem   `json:"period"`
	Cells  []gridCell `json:"cells"`
}

type gridBody struct {
	Section    models.MajorSection `json:"section"`
	Days       []gridItem          `json:"days"`
	Rows       []gridRow           `json:"rows"`
	Unresolved int                 `json:"unresolved"`
	Dropped    int                 `json:"dropped"`
}

// SectionGrid returns the assembled days × periods grid of one section.
func (h *Handler) SectionGrid(w http.ResponseWriter, r *http.Request) {
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "bad_id", "Invalid section id.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	sv, err := h.TT.SectionGrid(ctx, oid)
	if err != nil {
		h.writeErr(w, r, "load section grid failed", err)
		return
	}

	body := gridBody{
		Section:    sv.Section,
		Unresolved: len(sv.Report.Unresolved()),
		Dropped:    len(sv.Report.Dropped),
	}
	for _, d := range sv.Grid.Days() {
		body.Days = append(body.Days, gridItem{ID: d.ID, Label: d.Label})
	}
	for _, row := range sv.Grid.Rows() {
		gr := gridRow{Period: gridItem{ID: row.Period.ID, Label: row.Period.Label}}
		for _, c := range row.Cells {
			gc := gridCell{DayID: c.Coord.DayID, PeriodID: c.Coord.PeriodID}
			if c.Occupied {
				e := c.Entry
				gc.Entry = &e
				gc.Combined = sv.Combined[e.ID.Hex()]
			}
			gr.Cells = append(gr.Cells, gc)
		}
		body.Rows = append(body.Rows, gr)
	}
	jsonutil.Write(w, http.StatusOK, body)
}

func decodeEntry(w http.ResponseWriter, r *http.Request) (entryInput, bool) {
	var in entryInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "bad_request", err.Error())
		return in, false
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.Invalid(w, res.First(), res.Fields())
		return in, false
	}
	return in, true
}

// CreateEntry places a class in a section cell. The booking rules of the
// timetable service apply.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeEntry(w, r)
	if !ok {
		return
	}
	if in.SectionID == "" {
		jsonutil.Invalid(w, "Section is required.", map[string]string{"Section": "Section is required."})
		return
	}
	sectionID, _ := primitive.ObjectIDFromHex(in.SectionID)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	e, err := h.TT.Create(ctx, sectionID, in.values())
	if err != nil {
		h.writeErr(w, r, "create timetable entry failed", err)
		return
	}
	h.AuditLog.Schedule(r.Context(), r, audit.EventEntryCreated, actorID(r), &e.ID, map[string]string{"section_id": e.SectionID.Hex()})
	jsonutil.Write(w, http.StatusCreated, e)
}

// UpdateEntry moves or re-staffs an entry (and its combined group).
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	in, ok := decodeEntry(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	e, err := h.TT.Update(ctx, id, in.values())
	if err != nil {
		h.writeErr(w, r, "update timetable entry failed", err)
		return
	}
	h.AuditLog.Schedule(r.Context(), r, audit.EventEntryUpdated, actorID(r), &e.ID, nil)
	jsonutil.Write(w, http.StatusOK, e)
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	e, err := h.TT.Delete(ctx, id)
	if err != nil {
		h.writeErr(w, r, "delete timetable entry failed", err)
		return
	}
	h.AuditLog.Schedule(r.Context(), r, audit.EventEntryDeleted, actorID(r), &e.ID, map[string]string{"section_id": e.SectionID.Hex()})
	w.WriteHeader(http.StatusNoContent)
}

type combineBody struct {
	Group   string                  `json:"combined_group"`
	Created []models.TimetableEntry `json:"created"`
	Skipped []primitive.ObjectID    `json:"skipped"`
}

// CombineEntry shares an entry with other sections at the same slot.
func (h *Handler) CombineEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var in combineInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.Invalid(w, res.First(), res.Fields())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	res, err := h.TT.Combine(ctx, id, oids(in.SectionIDs))
	if err != nil {
		h.writeErr(w, r, "combine class failed", err)
		return
	}
	h.AuditLog.Schedule(r.Context(), r, audit.EventClassCombined, actorID(r), &id, map[string]string{"group": res.Group})
	out := combineBody{Group: res.Group, Created: res.Created, Skipped: res.Skipped}
	if out.Created == nil {
		out.Created = []models.TimetableEntry{}
	}
	jsonutil.Write(w, http.StatusOK, out)
}

func (h *Handler) SplitEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	e, err := h.TT.Split(ctx, id)
	if err != nil {
		h.writeErr(w, r, "split class failed", err)
		return
	}
	h.AuditLog.Schedule(r.Context(), r, audit.EventClassSplit, actorID(r), &id, nil)
	jsonutil.Write(w, http.StatusOK, e)
}

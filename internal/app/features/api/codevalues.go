// internal/app/features/api/codevalues.go
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/schedulehub/internal/app/store/audit"
	codevaluestore "github.com/dalemusser/schedulehub/internal/app/store/codevalues"
	"github.com/dalemusser/schedulehub/internal/app/system/inputval"
	"github.com/dalemusser/schedulehub/internal/app/system/jsonutil"
	"github.com/dalemusser/schedulehub/internal/app/system/timeouts"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type codeValueInput struct {
	Category  string `json:"category" validate:"codecategory" label:"Category"`
	Code      string `json:"code" validate:"notblank,max=32" label:"Code"`
	Label     string `json:"label" validate:"notblank,max=80" label:"Label"`
	SortOrder int    `json:"sort_order" validate:"gte=0" label:"Sort order"`
}

type codeValueUpdate struct {
	Label     string `json:"label" validate:"notblank,max=80" label:"Label"`
	SortOrder int    `json:"sort_order" validate:"gte=0" label:"Sort order"`
}

// ListCodeValues returns one category in display order, or every category
// when ?category= is absent.
func (h *Handler) ListCodeValues(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(query.Get(r, "category"))

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	var (
		cvs []models.CodeValue
		err error
	)
	switch {
	case category == "":
		opts := options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "sort_order", Value: 1}, {Key: "_id", Value: 1}})
		cvs, err = h.Codes.Find(ctx, bson.M{}, opts)
	case models.IsValidCategory(category):
		cvs, err = h.Codes.ListByCategory(ctx, category)
	default:
		jsonutil.Error(w, http.StatusBadRequest, "bad_category", "Category must be day, period or subject_type.")
		return
	}
	if err != nil {
		h.serverError(w, r, "list code values failed", err)
		return
	}
	if cvs == nil {
		cvs = []models.CodeValue{}
	}
	jsonutil.Write(w, http.StatusOK, Page[models.CodeValue]{Items: cvs, Total: int64(len(cvs))})
}

func (h *Handler) CreateCodeValue(w http.ResponseWriter, r *http.Request) {
	var in codeValueInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.Invalid(w, res.First(), res.Fields())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	cv, err := h.Codes.Create(ctx, models.CodeValue{
		Category:  in.Category,
		Code:      in.Code,
		Label:     in.Label,
		SortOrder: in.SortOrder,
	})
	switch {
	case errors.Is(err, codevaluestore.ErrDuplicateCode):
		jsonutil.Error(w, http.StatusConflict, "duplicate", err.Error())
		return
	case errors.Is(err, codevaluestore.ErrInvalidCategory):
		jsonutil.Error(w, http.StatusBadRequest, "bad_category", err.Error())
		return
	case err != nil:
		h.serverError(w, r, "create code value failed", err)
		return
	}
	h.TT.Invalidate()
	h.AuditLog.Record(r.Context(), r, audit.EventRecordCreated, actorID(r), "code_values", cv.ID, map[string]string{"category": cv.Category})
	jsonutil.Write(w, http.StatusCreated, cv)
}

// UpdateCodeValue changes the label and sort order. Category and code are fixed.
func (h *Handler) UpdateCodeValue(w http.ResponseWriter, r *http.Request) {
	oid, ok := parseID(w, r)
	if !ok {
		return
	}
	var in codeValueUpdate
	if err := jsonutil.Decode(w, r, &in); err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.Invalid(w, res.First(), res.Fields())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Codes.Update(ctx, oid, in.Label, in.SortOrder); err != nil {
		h.writeErr(w, r, "update code value failed", err)
		return
	}
	cv, err := h.Codes.GetByID(ctx, oid)
	if err != nil {
		h.writeErr(w, r, "reload code value failed", err)
		return
	}
	// Category names the embedded field: day, period or subject_type.
	if _, err := h.Entries.RenameRef(ctx, cv.Category, cv.ID, cv.Label); err != nil {
		h.serverError(w, r, "rename code value in timetable entries failed", err)
		return
	}
	h.TT.Invalidate()
	h.AuditLog.Record(r.Context(), r, audit.EventRecordUpdated, actorID(r), "code_values", oid, nil)
	jsonutil.Write(w, http.StatusOK, cv)
}

// DeleteCodeValue refuses to remove a value still used by an entry or subject.
func (h *Handler) DeleteCodeValue(w http.ResponseWriter, r *http.Request) {
	oid, ok := parseID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	cv, err := h.Codes.GetByID(ctx, oid)
	if err != nil {
		h.writeErr(w, r, "load code value failed", err)
		return
	}

	field := map[string]string{
		models.CategoryDay:         "day.id",
		models.CategoryPeriod:      "period.id",
		models.CategorySubjectType: "subject_type.id",
	}[cv.Category]
	msg, err := h.entryRefs(ctx, field, oid, "value")
	if err == nil && msg == "" && cv.Category == models.CategorySubjectType {
		var n int64
		n, err = h.Subjects.Count(ctx, bson.M{"subject_type_ids": oid})
		if n > 0 {
			msg = "This subject type is still offered by a subject."
		}
	}
	if err != nil {
		h.serverError(w, r, "check code value references failed", err)
		return
	}
	if msg != "" {
		jsonutil.Error(w, http.StatusConflict, "in_use", msg)
		return
	}

	if _, err := h.Codes.Delete(ctx, oid); err != nil {
		h.serverError(w, r, "delete code value failed", err)
		return
	}
	h.TT.Invalidate()
	h.AuditLog.Record(r.Context(), r, audit.EventRecordDeleted, actorID(r), "code_values", oid, map[string]string{"category": cv.Category})
	w.WriteHeader(http.StatusNoContent)
}

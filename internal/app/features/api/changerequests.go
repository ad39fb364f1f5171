// internal/app/features/api/changerequests.go
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/schedulehub/internal/app/store/audit"
	"github.com/dalemusser/schedulehub/internal/app/system/authz"
	"github.com/dalemusser/schedulehub/internal/app/system/changes"
	"github.com/dalemusser/schedulehub/internal/app/system/jsonutil"
	"github.com/dalemusser/schedulehub/internal/app/system/paging"
	"github.com/dalemusser/schedulehub/internal/app/system/timeouts"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type changeRequestInput struct {
	EntryID   string `json:"entry_id"`
	DayID     string `json:"day_id"`
	PeriodID  string `json:"period_id"`
	RoomID    string `json:"room_id"`
	TeacherID string `json:"teacher_id"`
	Reason    string `json:"reason"`
}

type reviewInput struct {
	Note string `json:"note"`
}

func person(r *http.Request) changes.Person {
	_, name, id, _ := authz.UserCtx(r)
	return changes.Person{ID: id, Name: name}
}

// ListChangeRequests pages the admin queue by ?status= (default pending).
// Teachers get their own requests, newest last.
func (h *Handler) ListChangeRequests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if !authz.IsAdmin(r) {
		p := person(r)
		items, err := h.Changes.Mine(ctx, p.ID)
		if err != nil {
			h.serverError(w, r, "list own change requests failed", err)
			return
		}
		if items == nil {
			items = []models.ChangeRequest{}
		}
		jsonutil.Write(w, http.StatusOK, Page[models.ChangeRequest]{Items: items, Total: int64(len(items))})
		return
	}

	status := strings.ToLower(strings.TrimSpace(query.Get(r, "status")))
	switch status {
	case "":
		status = models.ChangeRequestPending
	case "all":
		status = ""
	case models.ChangeRequestPending, models.ChangeRequestApproved, models.ChangeRequestRejected:
	default:
		jsonutil.Error(w, http.StatusBadRequest, "bad_status", "Status must be pending, approved, rejected or all.")
		return
	}

	pp := paging.ParseParams(r)
	pg, err := h.Changes.List(ctx, status, pp.Before, pp.After)
	if err != nil {
		h.serverError(w, r, "list change requests failed", err)
		return
	}
	items := pg.Items
	if items == nil {
		items = []models.ChangeRequest{}
	}
	jsonutil.Write(w, http.StatusOK, Page[models.ChangeRequest]{
		Items:      items,
		HasNext:    pg.HasNext,
		HasPrev:    pg.HasPrev,
		NextCursor: pg.NextCursor,
		PrevCursor: pg.PrevCursor,
		Total:      pg.Total,
	})
}

// CreateChangeRequest files a proposal against an entry the caller teaches
// (admins may file against any entry).
func (h *Handler) CreateChangeRequest(w http.ResponseWriter, r *http.Request) {
	var in changeRequestInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if oid, err := primitive.ObjectIDFromHex(in.EntryID); err == nil {
		e, err := h.TT.Entry(ctx, oid)
		if err != nil {
			h.writeErr(w, r, "load entry for change request failed", err)
			return
		}
		if !authz.CanRequestChange(r, e.Teacher.ID) {
			jsonutil.Error(w, http.StatusForbidden, "forbidden", "You can only request changes to your own classes.")
			return
		}
	}

	cr, err := h.Changes.Create(ctx, person(r), changes.Proposal{
		EntryID:   in.EntryID,
		DayID:     in.DayID,
		PeriodID:  in.PeriodID,
		RoomID:    in.RoomID,
		TeacherID: in.TeacherID,
		Reason:    in.Reason,
	})
	if err != nil {
		h.writeErr(w, r, "create change request failed", err)
		return
	}
	h.AuditLog.Schedule(r.Context(), r, audit.EventChangeRequested, actorID(r), &cr.ID, map[string]string{"entry_id": cr.EntryID.Hex()})
	jsonutil.Write(w, http.StatusCreated, cr)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, approve bool) {
	oid, ok := parseID(w, r)
	if !ok {
		return
	}
	var in reviewInput
	if r.ContentLength != 0 {
		if err := jsonutil.Decode(w, r, &in); err != nil {
			jsonutil.Error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var (
		cr    models.ChangeRequest
		err   error
		event = audit.EventChangeRejected
	)
	if approve {
		event = audit.EventChangeApproved
		cr, err = h.Changes.Approve(ctx, oid, person(r), in.Note)
	} else {
		cr, err = h.Changes.Reject(ctx, oid, person(r), in.Note)
	}
	if err != nil {
		h.writeErr(w, r, "review change request failed", err)
		return
	}
	h.AuditLog.Schedule(r.Context(), r, event, actorID(r), &cr.ID, map[string]string{"entry_id": cr.EntryID.Hex()})
	jsonutil.Write(w, http.StatusOK, cr)
}

func (h *Handler) ApproveChangeRequest(w http.ResponseWriter, r *http.Request) { h.review(w, r, true) }
func (h *Handler) RejectChangeRequest(w http.ResponseWriter, r *http.Request)  { h.review(w, r, false) }

package changerequests

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/schedulehub/internal/app/store/audit"
	"github.com/dalemusser/schedulehub/internal/app/system/cellform"
	"github.com/dalemusser/schedulehub/internal/app/system/changes"
	"github.com/dalemusser/schedulehub/internal/app/system/limits"
	"github.com/dalemusser/schedulehub/internal/app/system/timeouts"
	"github.com/dalemusser/schedulehub/internal/app/system/timetable"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type decision struct {
	apply func(ctx context.Context, id primitive.ObjectID, by changes.Person, note string) (any, error)
	event string
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, d decision) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxFormBody)
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/change-requests")
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.LogNotFound(w, r, "bad change request id", err, "Change request not found.", "/change-requests")
		return
	}
	back := urlutil.SafeReturn(r.PostFormValue("return"), "", "/change-requests")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	by, _ := person(r)
	_, err = d.apply(ctx, id, by, r.PostFormValue("note"))
	switch {
	case err == nil:
	case errors.Is(err, changes.ErrNotFound):
		h.ErrLog.LogNotFound(w, r, "change request not found", err, "Change request not found.", back)
		return
	case errors.Is(err, changes.ErrNotPending):
		h.ErrLog.LogBadRequest(w, r, "change request already reviewed", err, "This request has already been reviewed.", back)
		return
	case timetable.IsUserError(err):
		h.ErrLog.LogBadRequest(w, r, "change request cannot be applied", err, cellform.MessageFor(err), back)
		return
	default:
		h.ErrLog.LogServerError(w, r, "review change request", err, "Could not record the decision.", back)
		return
	}

	h.AuditLog.Schedule(ctx, r, d.event, by.ID.Hex(), &id, nil)
	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", back)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// HandleApprove handles POST /change-requests/{id}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, decision{
		apply: func(ctx context.Context, id primitive.ObjectID, by changes.Person, note string) (any, error) {
			return h.Changes.Approve(ctx, id, by, note)
		},
		event: audit.EventChangeApproved,
	})
}

// HandleReject handles POST /change-requests/{id}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, decision{
		apply: func(ctx context.Context, id primitive.ObjectID, by changes.Person, note string) (any, error) {
			return h.Changes.Reject(ctx, id, by, note)
		},
		event: audit.EventChangeRejected,
	})
}

// internal/app/features/api/resource.go
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/schedulehub/internal/app/store/audit"
	"github.com/dalemusser/schedulehub/internal/app/system/inputval"
	"github.com/dalemusser/schedulehub/internal/app/system/jsonutil"
	"github.com/dalemusser/schedulehub/internal/app/system/paging"
	"github.com/dalemusser/schedulehub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// crud is the store surface shared by the catalog collections.
type crud[T any] interface {
	Create(ctx context.Context, v T) (T, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (T, error)
	Update(ctx context.Context, id primitive.ObjectID, v T) error
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
	Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]T, error)
	Count(ctx context.Context, filter bson.M) (int64, error)
}

// resource serves list/get/create/update/delete for one catalog collection.
// In is the request body; toModel turns a validated In into a T.
type resource[T any, In any] struct {
	collection string
	sortField  string // folded name used for ordering and ?q= prefix search
	store      crud[T]
	key        func(T) string
	id         func(T) primitive.ObjectID
	toModel    func(ctx context.Context, in In) (T, error)
	dup        error

	// inUse refuses deletes of records other documents still point at.
	inUse func(ctx context.Context, id primitive.ObjectID) (string, error)
	// afterDelete cleans up references once the record is gone.
	afterDelete func(ctx context.Context, id primitive.ObjectID) error
	// renamed copies an updated record's name into the entries that embed it.
	renamed func(ctx context.Context, v T) error
	// changed runs after every successful write.
	changed func()

	h *Handler
}

func (rs *resource[T, In]) routes(r chi.Router, admin func(http.Handler) http.Handler) {
	r.Get("/", rs.list)
	r.Get("/{id}", rs.get)
	r.With(admin).Post("/", rs.create)
	r.With(admin).Put("/{id}", rs.update)
	r.With(admin).Delete("/{id}", rs.remove)
}

func (rs *resource[T, In]) list(w http.ResponseWriter, r *http.Request) {
	p := paging.ParseParams(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	filter := bson.M{}
	if fq := text.Fold(p.Query); fq != "" {
		filter[rs.sortField] = bson.M{"$gte": fq, "$lt": fq + "\uffff"}
	}

	total, err := rs.store.Count(ctx, filter)
	if err != nil {
		rs.h.serverError(w, r, "count "+rs.collection+" failed", err)
		return
	}

	find := options.Find()
	cfg := paging.ConfigureKeyset(p.Before, p.After)
	cfg.ApplyToFind(find, rs.sortField)

	rows, err := rs.store.Find(ctx, paging.Merge(filter, cfg.KeysetWindow(rs.sortField)), find)
	if err != nil {
		rs.h.serverError(w, r, "find "+rs.collection+" failed", err)
		return
	}
	if cfg.Direction == paging.Backward {
		paging.Reverse(rows)
	}
	pg := paging.TrimPage(&rows, p.Before, p.After)
	prev, next := paging.BuildCursors(rows, rs.key, rs.id)

	if rows == nil {
		rows = []T{}
	}
	out := Page[T]{Items: rows, HasNext: pg.HasNext, HasPrev: pg.HasPrev, Total: total}
	if pg.HasNext {
		out.NextCursor = next
	}
	if pg.HasPrev {
		out.PrevCursor = prev
	}
	jsonutil.Write(w, http.StatusOK, out)
}

func parseID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "bad_id", "Invalid id.")
		return primitive.NilObjectID, false
	}
	return oid, true
}

func (rs *resource[T, In]) get(w http.ResponseWriter, r *http.Request) {
	oid, ok := parseID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	v, err := rs.store.GetByID(ctx, oid)
	if err != nil {
		rs.h.writeErr(w, r, "load "+rs.collection+" failed", err)
		return
	}
	jsonutil.Write(w, http.StatusOK, v)
}

// decode reads and validates the body, then builds the model.
func (rs *resource[T, In]) decode(ctx context.Context, w http.ResponseWriter, r *http.Request) (T, bool) {
	var zero T
	var in In
	if err := jsonutil.Decode(w, r, &in); err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "bad_request", err.Error())
		return zero, false
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.Invalid(w, res.First(), res.Fields())
		return zero, false
	}
	v, err := rs.toModel(ctx, in)
	if err != nil {
		rs.h.writeErr(w, r, "resolve "+rs.collection+" input failed", err)
		return zero, false
	}
	return v, true
}

func (rs *resource[T, In]) create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	v, ok := rs.decode(ctx, w, r)
	if !ok {
		return
	}
	created, err := rs.store.Create(ctx, v)
	if errors.Is(err, rs.dup) {
		jsonutil.Error(w, http.StatusConflict, "duplicate", rs.dup.Error())
		return
	}
	if err != nil {
		rs.h.serverError(w, r, "create "+rs.collection+" failed", err)
		return
	}
	rs.written(r, audit.EventRecordCreated, rs.id(created))
	jsonutil.Write(w, http.StatusCreated, created)
}

func (rs *resource[T, In]) update(w http.ResponseWriter, r *http.Request) {
	oid, ok := parseID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	v, ok := rs.decode(ctx, w, r)
	if !ok {
		return
	}
	err := rs.store.Update(ctx, oid, v)
	if errors.Is(err, rs.dup) {
		jsonutil.Error(w, http.StatusConflict, "duplicate", rs.dup.Error())
		return
	}
	if err != nil {
		rs.h.writeErr(w, r, "update "+rs.collection+" failed", err)
		return
	}
	updated, err := rs.store.GetByID(ctx, oid)
	if err != nil {
		rs.h.writeErr(w, r, "reload "+rs.collection+" failed", err)
		return
	}
	if rs.renamed != nil {
		if err := rs.renamed(ctx, updated); err != nil {
			rs.h.serverError(w, r, "rename "+rs.collection+" in timetable entries failed", err)
			return
		}
	}
	rs.written(r, audit.EventRecordUpdated, oid)
	jsonutil.Write(w, http.StatusOK, updated)
}

func (rs *resource[T, In]) remove(w http.ResponseWriter, r *http.Request) {
	oid, ok := parseID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if rs.inUse != nil {
		msg, err := rs.inUse(ctx, oid)
		if err != nil {
			rs.h.serverError(w, r, "check "+rs.collection+" references failed", err)
			return
		}
		if msg != "" {
			jsonutil.Error(w, http.StatusConflict, "in_use", msg)
			return
		}
	}

	n, err := rs.store.Delete(ctx, oid)
	if err != nil {
		rs.h.serverError(w, r, "delete "+rs.collection+" failed", err)
		return
	}
	if n == 0 {
		jsonutil.Error(w, http.StatusNotFound, "not_found", "Not found.")
		return
	}
	if rs.afterDelete != nil {
		if err := rs.afterDelete(ctx, oid); err != nil {
			rs.h.serverError(w, r, "clean up "+rs.collection+" references failed", err)
			return
		}
	}
	rs.written(r, audit.EventRecordDeleted, oid)
	w.WriteHeader(http.StatusNoContent)
}

func (rs *resource[T, In]) written(r *http.Request, event string, id primitive.ObjectID) {
	if rs.changed != nil {
		rs.changed()
	}
	rs.h.AuditLog.Record(r.Context(), r, event, actorID(r), rs.collection, id, nil)
}

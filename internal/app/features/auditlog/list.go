// internal/app/features/auditlog/list.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/schedulehub/internal/app/store/audit"
	"github.com/dalemusser/schedulehub/internal/app/system/timeouts"
	"github.com/dalemusser/schedulehub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const pageSize = 50

// ServeList handles GET /audit: the audit log with filters and paging.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	data, err := h.buildList(ctx, r)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "query audit events failed", err, "A database error occurred.", "/dashboard")
		return
	}
	templates.Render(w, r, "audit_list", data)
}

// parseFilter reads ?category, ?event_type, ?start_date, ?end_date and ?page.
// Unknown categories and malformed dates are ignored.
func parseFilter(r *http.Request) (audit.QueryFilter, listData) {
	var d listData
	d.Category = strings.TrimSpace(query.Get(r, "category"))
	if eventTypesForCategory(d.Category) == nil {
		d.Category = ""
	}
	d.EventType = strings.TrimSpace(query.Get(r, "event_type"))
	d.StartDate = strings.TrimSpace(query.Get(r, "start_date"))
	d.EndDate = strings.TrimSpace(query.Get(r, "end_date"))

	d.Page = 1
	if p, err := strconv.Atoi(query.Get(r, "page")); err == nil && p > 0 {
		d.Page = p
	}

	f := audit.QueryFilter{
		Category:  d.Category,
		EventType: d.EventType,
		Limit:     pageSize,
		Offset:    int64((d.Page - 1) * pageSize),
	}
	if t, err := time.Parse("2006-01-02", d.StartDate); err == nil {
		f.StartTime = &t
	} else {
		d.StartDate = ""
	}
	if t, err := time.Parse("2006-01-02", d.EndDate); err == nil {
		end := t.Add(24 * time.Hour)
		f.EndTime = &end
	} else {
		d.EndDate = ""
	}
	return f, d
}

func (h *Handler) buildList(ctx context.Context, r *http.Request) (listData, error) {
	filter, data := parseFilter(r)
	data.BaseVM = viewdata.NewBaseVM(r, "Audit log", "/dashboard")
	data.Categories = allCategories()
	data.EventTypes = eventTypesForCategory(data.Category)

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		return data, err
	}
	total, err := h.Events.CountByFilter(ctx, filter)
	if err != nil {
		return data, err
	}

	names := h.userNames(ctx, events)
	data.Items = make([]listItem, 0, len(events))
	for _, e := range events {
		item := listItem{
			ID:         e.ID.Hex(),
			Timestamp:  e.Timestamp,
			Category:   e.Category,
			EventType:  e.EventType,
			Collection: e.Collection,
			IP:         e.IP,
			Success:    e.Success,
			Reason:     e.FailureReason,
			Details:    e.Details,
		}
		if e.ActorID != nil {
			item.ActorName = nameOr(names, *e.ActorID)
		}
		if e.UserID != nil {
			item.TargetName = nameOr(names, *e.UserID)
		}
		if e.RecordID != nil {
			item.RecordID = e.RecordID.Hex()
		}
		data.Items = append(data.Items, item)
	}

	data.Total = total
	data.Shown = len(data.Items)
	data.TotalPages = int((total + pageSize - 1) / pageSize)
	if data.TotalPages < 1 {
		data.TotalPages = 1
	}
	data.HasPrev = data.Page > 1
	data.HasNext = data.Page < data.TotalPages
	data.PrevPage = max(data.Page-1, 1)
	data.NextPage = min(data.Page+1, data.TotalPages)
	return data, nil
}

// userNames batch-resolves actor and target names. Lookup failures leave
// the ids unresolved.
func (h *Handler) userNames(ctx context.Context, events []audit.Event) map[primitive.ObjectID]string {
	seen := make(map[primitive.ObjectID]struct{})
	var ids []primitive.ObjectID
	add := func(id *primitive.ObjectID) {
		if id == nil {
			return
		}
		if _, ok := seen[*id]; ok {
			return
		}
		seen[*id] = struct{}{}
		ids = append(ids, *id)
	}
	for _, e := range events {
		add(e.ActorID)
		add(e.UserID)
	}

	names := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return names
	}
	users, err := h.Users.GetByIDs(ctx, ids)
	if err != nil {
		h.Log.Warn("failed to fetch user names for audit log", zap.Error(err))
		return names
	}
	for _, u := range users {
		names[u.ID] = u.FullName
	}
	return names
}

func nameOr(names map[primitive.ObjectID]string, id primitive.ObjectID) string {
	if n, ok := names[id]; ok {
		return n
	}
	return id.Hex()
}

// Package changes files and reviews timetable change requests. Approval
// applies the proposal through the timetable service, so the same booking
// rules guard both paths.
package changes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	changerequeststore "github.com/dalemusser/schedulehub/internal/app/store/changerequests"
	"github.com/dalemusser/schedulehub/internal/app/system/cellform"
	"github.com/dalemusser/schedulehub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/schedulehub/internal/app/system/inputval"
	"github.com/dalemusser/schedulehub/internal/app/system/paging"
	"github.com/dalemusser/schedulehub/internal/app/system/timetable"
	"github.com/dalemusser/schedulehub/internal/app/system/timetablegrid"
	"github.com/dalemusser/schedulehub/internal/app/system/txn"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	ErrNotFound   = errors.New("change request not found")
	ErrNotPending = changerequeststore.ErrNotPending
)

// InvalidError carries input validation failures.
type InvalidError struct {
	*inputval.Result
}

func (e *InvalidError) Error() string       { return e.All() }
func (e *InvalidError) UserMessage() string { return e.First() }

// Person is the requester or reviewer of a change.
type Person struct {
	ID   primitive.ObjectID
	Name string
}

// Proposal is what a requester submits. Empty ids keep the entry's current value.
type Proposal struct {
	EntryID   string `validate:"required,objectid" label:"Class"`
	DayID     string `validate:"omitempty,objectid" label:"Day"`
	PeriodID  string `validate:"omitempty,objectid" label:"Period"`
	RoomID    string `validate:"omitempty,objectid" label:"Room"`
	TeacherID string `validate:"omitempty,objectid" label:"Teacher"`
	Reason    string `validate:"notblank,max=1000" label:"Reason"`
}

type Service struct {
	store  *changerequeststore.Store
	tt     *timetable.Service
	client *mongo.Client // nil disables transactions
	log    *zap.Logger
}

func New(db *mongo.Database, client *mongo.Client, tt *timetable.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: changerequeststore.New(db), tt: tt, client: client, log: logger}
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (models.ChangeRequest, error) {
	cr, err := s.store.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return cr, ErrNotFound
	}
	return cr, err
}

func snapshot(e models.TimetableEntry) models.SlotSnapshot {
	return models.SlotSnapshot{Day: e.Day, Period: e.Period, Room: e.Room, Teacher: e.Teacher}
}

func sameSlot(a, b models.SlotSnapshot) bool {
	return timetablegrid.Normalize(a.Day.Name) == timetablegrid.Normalize(b.Day.Name) &&
		timetablegrid.Normalize(a.Period.Name) == timetablegrid.Normalize(b.Period.Name) &&
		a.Room.ID == b.Room.ID && a.Teacher.ID == b.Teacher.ID
}

// Create files a pending request against one entry.
func (s *Service) Create(ctx context.Context, by Person, p Proposal) (models.ChangeRequest, error) {
	p.Reason = strings.TrimSpace(htmlsanitize.StripTags(p.Reason))
	if res := inputval.Validate(p); res.HasErrors() {
		return models.ChangeRequest{}, &InvalidError{res}
	}
	entryID, _ := primitive.ObjectIDFromHex(p.EntryID)

	e, err := s.tt.Entry(ctx, entryID)
	if err != nil {
		return models.ChangeRequest{}, err
	}
	pending, err := s.store.HasPendingForEntry(ctx, e.ID)
	if err != nil {
		return models.ChangeRequest{}, fmt.Errorf("check pending: %w", err)
	}
	if pending {
		return models.ChangeRequest{}, timetable.NewUserError("This class already has a change request waiting for review.")
	}

	proposed, err := s.propose(ctx, snapshot(e), p)
	if err != nil {
		return models.ChangeRequest{}, err
	}
	if sameSlot(proposed, snapshot(e)) {
		return models.ChangeRequest{}, timetable.NewUserError("The proposal is the same as the current timetable.")
	}

	cr, err := s.store.Create(ctx, models.ChangeRequest{
		EntryID:         e.ID,
		SectionID:       e.SectionID,
		SectionName:     e.Section.Name,
		SubjectName:     e.Subject.Name,
		RequestedBy:     by.ID,
		RequestedByName: by.Name,
		Current:         snapshot(e),
		Proposed:        proposed,
		Reason:          p.Reason,
		Status:          models.ChangeRequestPending,
	})
	if err != nil {
		return cr, fmt.Errorf("create change request: %w", err)
	}
	s.log.Info("change requested",
		zap.String("request_id", cr.ID.Hex()),
		zap.String("entry_id", e.ID.Hex()),
		zap.String("by", by.ID.Hex()))
	return cr, nil
}

// propose overlays the proposal's ids on cur, resolving names from the form options.
func (s *Service) propose(ctx context.Context, cur models.SlotSnapshot, p Proposal) (models.SlotSnapshot, error) {
	opts, err := s.tt.FormOptions(ctx)
	if err != nil {
		return cur, err
	}
	out := cur
	if p.DayID != "" {
		cv, ok := findCode(opts.Days, p.DayID)
		if !ok {
			return cur, timetable.NewUserError("The chosen day does not exist.")
		}
		out.Day = models.Ref{ID: cv.ID, Name: cv.Label}
	}
	if p.PeriodID != "" {
		cv, ok := findCode(opts.Periods, p.PeriodID)
		if !ok {
			return cur, timetable.NewUserError("The chosen period does not exist.")
		}
		out.Period = models.Ref{ID: cv.ID, Name: cv.Label}
	}
	if p.RoomID != "" {
		found := false
		for _, rm := range opts.Rooms {
			if rm.ID.Hex() == p.RoomID {
				out.Room = models.Ref{ID: rm.ID, Name: rm.Name}
				found = true
				break
			}
		}
		if !found {
			return cur, timetable.NewUserError("The chosen room is not available.")
		}
	}
	if p.TeacherID != "" {
		found := false
		for _, t := range opts.Teachers {
			if t.ID.Hex() == p.TeacherID {
				out.Teacher = models.Ref{ID: t.ID, Name: t.FullName}
				found = true
				break
			}
		}
		if !found {
			return cur, timetable.NewUserError("The chosen teacher is not available.")
		}
	}
	return out, nil
}

func findCode(cvs []models.CodeValue, hex string) (models.CodeValue, bool) {
	for _, cv := range cvs {
		if cv.ID.Hex() == hex {
			return cv, true
		}
	}
	return models.CodeValue{}, false
}

// Approve marks the request approved and applies the proposal in one
// transaction. The decision is claimed first, so a concurrent reviewer
// cannot see the move applied under a rejected request. If the timetable
// refuses the move the request is reopened and the error returned.
func (s *Service) Approve(ctx context.Context, id primitive.ObjectID, by Person, note string) (models.ChangeRequest, error) {
	cr, err := s.Get(ctx, id)
	if err != nil {
		return cr, err
	}
	if cr.Status != models.ChangeRequestPending {
		return cr, ErrNotPending
	}

	e, err := s.tt.Entry(ctx, cr.EntryID)
	if errors.Is(err, timetable.ErrEntryNotFound) {
		return cr, timetable.NewUserError("The class this request refers to no longer exists. Reject the request instead.")
	}
	if err != nil {
		return cr, err
	}
	cat, err := s.tt.Catalog(ctx)
	if err != nil {
		return cr, err
	}
	v := cellform.Values{
		DayID:     cat.DayID(cr.Proposed.Day),
		PeriodID:  cat.PeriodID(cr.Proposed.Period),
		SubjectID: e.Subject.ID.Hex(),
		RoomID:    cr.Proposed.Room.ID.Hex(),
		TeacherID: cr.Proposed.Teacher.ID.Hex(),
	}
	if e.SubjectType != nil {
		v.SubjectTypeID = e.SubjectType.ID.Hex()
	}
	if v.DayID == "" || v.PeriodID == "" {
		return cr, timetable.NewUserError("The proposed day or period is no longer in the catalog.")
	}

	var out models.ChangeRequest
	err = txn.Run(ctx, s.client, s.log, func(ctx context.Context) error {
		claimed, err := s.store.Review(ctx, id, models.ChangeRequestApproved, by.ID, by.Name, cleanNote(note))
		if err != nil {
			return err
		}
		if _, err := s.tt.Update(ctx, e.ID, v); err != nil {
			// Without a transaction the claim is already written.
			if rerr := s.store.Reopen(ctx, claimed); rerr != nil && mongo.SessionFromContext(ctx) == nil {
				s.log.Error("approve failed and request not reopened",
					zap.String("request_id", id.Hex()), zap.Error(rerr))
			}
			return err
		}
		out = claimed
		return nil
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return cr, ErrNotFound
	}
	if err != nil {
		return cr, err
	}
	s.tt.Invalidate()
	s.log.Info("change approved", zap.String("request_id", id.Hex()), zap.String("by", by.ID.Hex()))
	return out, nil
}

// Reject marks a pending request rejected.
func (s *Service) Reject(ctx context.Context, id primitive.ObjectID, by Person, note string) (models.ChangeRequest, error) {
	out, err := s.store.Review(ctx, id, models.ChangeRequestRejected, by.ID, by.Name, cleanNote(note))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return out, ErrNotFound
	}
	if err != nil {
		return out, err
	}
	s.log.Info("change rejected", zap.String("request_id", id.Hex()), zap.String("by", by.ID.Hex()))
	return out, nil
}

func cleanNote(note string) string {
	note = strings.TrimSpace(htmlsanitize.StripTags(note))
	if len(note) > 1000 {
		note = note[:1000]
	}
	return note
}

// Page is one keyset page of requests, oldest first.
type Page struct {
	Items      []models.ChangeRequest
	HasPrev    bool
	HasNext    bool
	PrevCursor string
	NextCursor string
	Total      int64
}

// List pages through requests with status ("" for all).
func (s *Service) List(ctx context.Context, status, before, after string) (Page, error) {
	var pg Page
	cfg := paging.ConfigureKeyset(before, after)
	find := options.Find()
	cfg.ApplyIDToFind(find)

	rows, err := s.store.ListByStatus(ctx, status, cfg.IDWindow(), find)
	if err != nil {
		return pg, fmt.Errorf("list change requests: %w", err)
	}
	if cfg.Direction == paging.Backward {
		paging.Reverse(rows)
	}
	res := paging.TrimPage(&rows, before, after)
	pg.Items, pg.HasPrev, pg.HasNext = rows, res.HasPrev, res.HasNext
	pg.PrevCursor, pg.NextCursor = paging.BuildCursors(rows,
		func(models.ChangeRequest) string { return "" },
		func(c models.ChangeRequest) primitive.ObjectID { return c.ID })

	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	if pg.Total, err = s.store.Count(ctx, filter); err != nil {
		return pg, fmt.Errorf("count change requests: %w", err)
	}
	return pg, nil
}

// Mine returns a requester's latest requests, newest first.
func (s *Service) Mine(ctx context.Context, userID primitive.ObjectID) ([]models.ChangeRequest, error) {
	return s.store.ListByRequester(ctx, userID, paging.PageSize)
}

// CountPending feeds the admin nav badge.
func (s *Service) CountPending(ctx context.Context) (int64, error) {
	return s.store.CountPending(ctx)
}

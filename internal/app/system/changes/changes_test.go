package changes_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dalemusser/schedulehub/internal/app/system/changes"
	"github.com/dalemusser/schedulehub/internal/app/system/timetable"
	timetablestore "github.com/dalemusser/schedulehub/internal/app/store/timetables"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/dalemusser/schedulehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type world struct {
	svc     *changes.Service
	entries *timetablestore.Store
	fx      *testutil.Fixtures
	days    []models.CodeValue
	periods []models.CodeValue
	secA    models.MajorSection
	secB    models.MajorSection
	room    models.Room
	room2   models.Room
	smith   models.Teacher
	jones   models.Teacher
	math    models.Subject
	entry   models.TimetableEntry
	teacher changes.Person
	admin   changes.Person
}

func newWorld(t *testing.T) *world {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	fx := testutil.NewFixtures(t, db)
	w := &world{
		svc:     changes.New(db, nil, timetable.New(db, nil, nil, nil), nil),
		entries: timetablestore.New(db),
		fx:      fx,
		teacher: changes.Person{ID: primitive.NewObjectID(), Name: "Ann Smith"},
		admin:   changes.Person{ID: primitive.NewObjectID(), Name: "Admin"},
	}
	w.days, w.periods = fx.CreateWeek(ctx, []string{"Monday", "Tuesday"}, []string{"08:00", "09:00"})
	w.secA = fx.CreateSection(ctx, "CS-A", "CS A")
	w.secB = fx.CreateSection(ctx, "CS-B", "CS B")
	w.room = fx.CreateRoom(ctx, "R101", "Room 101")
	w.room2 = fx.CreateRoom(ctx, "R102", "Room 102")
	w.smith = fx.CreateTeacher(ctx, "T1", "Ann Smith")
	w.jones = fx.CreateTeacher(ctx, "T2", "Bob Jones")
	w.math = fx.CreateSubject(ctx, "MATH", "Math", nil, nil)
	w.entry = fx.CreateEntry(ctx, testutil.EntrySpec{
		Section: w.secA, Day: w.days[0], Period: w.periods[0], Subject: w.math, Room: w.room, Teacher: w.smith,
	})
	return w
}

func (w *world) moveTo(day int) changes.Proposal {
	return changes.Proposal{
		EntryID: w.entry.ID.Hex(),
		DayID:   w.days[day].ID.Hex(),
		Reason:  "Lab is closed <b>Mondays</b>",
	}
}

func TestCreate(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	cr, err := w.svc.Create(ctx, w.teacher, w.moveTo(1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if cr.Status != models.ChangeRequestPending {
		t.Errorf("status: got %q", cr.Status)
	}
	if cr.Reason != "Lab is closed Mondays" {
		t.Errorf("reason not stripped: %q", cr.Reason)
	}
	if cr.Current.Day.Name != "Monday" || cr.Proposed.Day.Name != "Tuesday" {
		t.Errorf("snapshots: current %q proposed %q", cr.Current.Day.Name, cr.Proposed.Day.Name)
	}
	if cr.Proposed.Room.ID != w.room.ID || cr.Proposed.Teacher.ID != w.smith.ID {
		t.Error("unchanged fields should carry the current values")
	}

	_, err = w.svc.Create(ctx, w.teacher, w.moveTo(1))
	if !timetable.IsUserError(err) {
		t.Errorf("second pending request: expected user error, got %v", err)
	}
}

func TestCreate_Rejects(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	noReason := w.moveTo(1)
	noReason.Reason = "  <i></i> "
	badDay := w.moveTo(1)
	badDay.DayID = primitive.NewObjectID().Hex()

	tests := []struct {
		name string
		p    changes.Proposal
	}{
		{"blank reason", noReason},
		{"unknown day", badDay},
		{"no change", changes.Proposal{EntryID: w.entry.ID.Hex(), RoomID: w.room.ID.Hex(), Reason: "same"}},
		{"bad entry id", changes.Proposal{EntryID: "nope", Reason: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.svc.Create(ctx, w.teacher, tt.p)
			var inv *changes.InvalidError
			if !errors.As(err, &inv) && !timetable.IsUserError(err) {
				t.Errorf("expected a validation or user error, got %v", err)
			}
		})
	}
}

func TestApprove_AppliesMove(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	p := w.moveTo(1)
	p.RoomID = w.room2.ID.Hex()
	cr, err := w.svc.Create(ctx, w.teacher, p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	out, err := w.svc.Approve(ctx, cr.ID, w.admin, "ok")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if out.Status != models.ChangeRequestApproved || out.ReviewedByName != "Admin" {
		t.Errorf("review not recorded: %+v", out)
	}
	e, err := w.entries.GetByID(ctx, w.entry.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if e.Day.Name != "Tuesday" || e.Room.ID != w.room2.ID {
		t.Errorf("entry not moved: day %q room %v", e.Day.Name, e.Room.ID)
	}

	if _, err := w.svc.Approve(ctx, cr.ID, w.admin, ""); !errors.Is(err, changes.ErrNotPending) {
		t.Errorf("second approve: got %v, want ErrNotPending", err)
	}
}

func TestApprove_ConflictStaysPending(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	cr, err := w.svc.Create(ctx, w.teacher, w.moveTo(1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Room 101 gets booked on Tuesday 08:00 before review.
	w.fx.CreateEntry(ctx, testutil.EntrySpec{
		Section: w.secB, Day: w.days[1], Period: w.periods[0], Subject: w.math, Room: w.room, Teacher: w.jones,
	})

	_, err = w.svc.Approve(ctx, cr.ID, w.admin, "")
	if !timetable.IsUserError(err) {
		t.Fatalf("expected booking conflict, got %v", err)
	}
	got, err := w.svc.Get(ctx, cr.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.ChangeRequestPending {
		t.Errorf("status after failed approve: got %q, want pending", got.Status)
	}
	if got.ReviewedBy != nil || got.ReviewedAt != nil {
		t.Errorf("review fields left behind: %+v", got)
	}
	if _, err := w.svc.Reject(ctx, cr.ID, w.admin, "no room"); err != nil {
		t.Errorf("reject after failed approve: %v", err)
	}
}

// A reject racing an approve must never leave the move applied under a
// rejected request.
func TestApprove_RacingRejectStaysConsistent(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cr, err := w.svc.Create(ctx, w.teacher, w.moveTo(1))
		if err != nil {
			t.Fatalf("round %d: Create: %v", i, err)
		}

		var wg sync.WaitGroup
		var approveErr, rejectErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, approveErr = w.svc.Approve(ctx, cr.ID, w.admin, "")
		}()
		go func() {
			defer wg.Done()
			_, rejectErr = w.svc.Reject(ctx, cr.ID, w.admin, "")
		}()
		wg.Wait()

		if (approveErr == nil) == (rejectErr == nil) {
			t.Fatalf("round %d: exactly one review should win, approve=%v reject=%v", i, approveErr, rejectErr)
		}
		if approveErr != nil && !errors.Is(approveErr, changes.ErrNotPending) {
			t.Fatalf("round %d: approve: %v", i, approveErr)
		}

		got, err := w.svc.Get(ctx, cr.ID)
		if err != nil {
			t.Fatalf("round %d: Get: %v", i, err)
		}
		e, err := w.entries.GetByID(ctx, w.entry.ID)
		if err != nil {
			t.Fatalf("round %d: GetByID: %v", i, err)
		}
		moved := e.Day.ID == w.days[1].ID
		if moved != (got.Status == models.ChangeRequestApproved) {
			t.Fatalf("round %d: status %q but entry on %q", i, got.Status, e.Day.Name)
		}

		if moved {
			back, err := w.svc.Create(ctx, w.teacher, w.moveTo(0))
			if err != nil {
				t.Fatalf("round %d: Create move back: %v", i, err)
			}
			if _, err := w.svc.Approve(ctx, back.ID, w.admin, ""); err != nil {
				t.Fatalf("round %d: move back: %v", i, err)
			}
		}
	}
}

func TestReject(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	cr, err := w.svc.Create(ctx, w.teacher, w.moveTo(1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	out, err := w.svc.Reject(ctx, cr.ID, w.admin, "<script>x</script>No rooms")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if out.Status != models.ChangeRequestRejected {
		t.Errorf("status: got %q", out.Status)
	}
	if out.ReviewNote != "No rooms" {
		t.Errorf("note: got %q", out.ReviewNote)
	}
	if _, err := w.svc.Reject(ctx, primitive.NewObjectID(), w.admin, ""); !errors.Is(err, changes.ErrNotFound) {
		t.Errorf("unknown id: got %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	if _, err := w.svc.Create(ctx, w.teacher, w.moveTo(1)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	pending, err := w.svc.List(ctx, models.ChangeRequestPending, "", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending.Items) != 1 || pending.Total != 1 || pending.HasNext || pending.HasPrev {
		t.Errorf("pending page: %+v", pending)
	}
	approved, err := w.svc.List(ctx, models.ChangeRequestApproved, "", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(approved.Items) != 0 {
		t.Errorf("approved: got %d items", len(approved.Items))
	}

	mine, err := w.svc.Mine(ctx, w.teacher.ID)
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if len(mine) != 1 {
		t.Errorf("mine: got %d, want 1", len(mine))
	}
}

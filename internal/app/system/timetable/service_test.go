package timetable_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	codevaluestore "github.com/dalemusser/schedulehub/internal/app/store/codevalues"
	"github.com/dalemusser/schedulehub/internal/app/system/cellform"
	"github.com/dalemusser/schedulehub/internal/app/system/timetable"
	timetablestore "github.com/dalemusser/schedulehub/internal/app/store/timetables"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/dalemusser/schedulehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// world is a small school: two days, two periods, two sections.
type world struct {
	svc      *timetable.Service
	entries  *timetablestore.Store
	fx       *testutil.Fixtures
	days     []models.CodeValue
	periods  []models.CodeValue
	lab      models.CodeValue
	secA     models.MajorSection
	secB     models.MajorSection
	room     models.Room
	room2    models.Room
	smith    models.Teacher
	jones    models.Teacher
	math     models.Subject
	physics  models.Subject
}

func newWorld(t *testing.T, ctx context.Context) *world {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	w := &world{
		svc:     timetable.New(db, nil, nil, nil),
		entries: timetablestore.New(db),
		fx:      fx,
	}
	w.days, w.periods = fx.CreateWeek(ctx, []string{"Monday", "Tuesday"}, []string{"08:00", "09:00"})
	w.lab = fx.CreateCodeValue(ctx, models.CategorySubjectType, "LAB", "Lab", 1)
	w.secA = fx.CreateSection(ctx, "CS-A", "CS A")
	w.secB = fx.CreateSection(ctx, "CS-B", "CS B")
	w.room = fx.CreateRoom(ctx, "R101", "Room 101")
	w.room2 = fx.CreateRoom(ctx, "R102", "Room 102")
	w.smith = fx.CreateTeacher(ctx, "T1", "Ann Smith")
	w.jones = fx.CreateTeacher(ctx, "T2", "Bob Jones")
	w.math = fx.CreateSubject(ctx, "MATH", "Math", []primitive.ObjectID{w.smith.ID}, nil)
	w.physics = fx.CreateSubject(ctx, "PHY", "Physics", nil, []primitive.ObjectID{w.lab.ID})
	return w
}

func (w *world) values(day, period int, sub models.Subject, room models.Room, teacher models.Teacher) cellform.Values {
	return cellform.Values{
		DayID:     w.days[day].ID.Hex(),
		PeriodID:  w.periods[period].ID.Hex(),
		SubjectID: sub.ID.Hex(),
		RoomID:    room.ID.Hex(),
		TeacherID: teacher.ID.Hex(),
	}
}

func (w *world) entry(sec models.MajorSection, day, period int, sub models.Subject, room models.Room, teacher models.Teacher, group string) models.TimetableEntry {
	return w.fx.CreateEntry(context.Background(), testutil.EntrySpec{
		Section: sec, Day: w.days[day], Period: w.periods[period],
		Subject: sub, Room: room, Teacher: teacher, Group: group,
	})
}

func wantUserError(t *testing.T, err error, contains string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected user error containing %q, got nil", contains)
	}
	if !timetable.IsUserError(err) {
		t.Fatalf("expected user error, got %v", err)
	}
	if !strings.Contains(err.Error(), contains) {
		t.Errorf("error %q does not contain %q", err.Error(), contains)
	}
}

func TestCreate(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	w := newWorld(t, ctx)

	e, err := w.svc.Create(ctx, w.secA.ID, w.values(0, 0, w.math, w.room, w.smith))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if e.Day.Name != "Monday" || e.Period.Name != "08:00" {
		t.Errorf("slot: got %s %s", e.Day.Name, e.Period.Name)
	}
	if e.Section.Name != "CS A" || e.Subject.Name != "Math" || e.Teacher.Name != "Ann Smith" {
		t.Errorf("refs not denormalized: %+v", e)
	}

	got, err := w.entries.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Room.ID != w.room.ID {
		t.Errorf("room: got %v, want %v", got.Room.ID, w.room.ID)
	}
}

func TestCreate_Validation(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	w := newWorld(t, ctx)

	// Math is scoped to Smith.
	_, err := w.svc.Create(ctx, w.secA.ID, w.values(0, 0, w.math, w.room, w.jones))
	wantUserError(t, err, "teacher")

	// Physics is scoped to the lab type; a period id is not a subject type.
	v := w.values(0, 0, w.physics, w.room, w.jones)
	v.SubjectTypeID = w.periods[0].ID.Hex()
	_, err = w.svc.Create(ctx, w.secA.ID, v)
	wantUserError(t, err, "subject type")

	v = w.values(0, 0, w.math, w.room, w.smith)
	v.RoomID = primitive.NewObjectID().Hex()
	_, err = w.svc.Create(ctx, w.secA.ID, v)
	wantUserError(t, err, "room")

	v = w.values(0, 0, w.math, w.room, w.smith)
	v.DayID = "not-an-id"
	_, err = w.svc.Create(ctx, w.secA.ID, v)
	if !timetable.IsUserError(err) {
		t.Errorf("bad day id: expected user error, got %v", err)
	}
}

func TestCreate_Conflicts(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	w := newWorld(t, ctx)
	w.entry(w.secA, 0, 0, w.math, w.room, w.smith, "")

	tests := []struct {
		name    string
		section models.MajorSection
		v       cellform.Values
		want    string
	}{
		{"occupied cell", w.secA, w.values(0, 0, w.physics, w.room2, w.jones), "already has a class"},
		{"room double-booked", w.secB, w.values(0, 0, w.physics, w.room, w.jones), "already booked"},
		{"teacher double-booked", w.secB, w.values(0, 0, w.math, w.room2, w.smith), "already teaching"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.svc.Create(ctx, tt.section.ID, tt.v)
			wantUserError(t, err, tt.want)
		})
	}

	// Another period is free.
	if _, err := w.svc.Create(ctx, w.secB.ID, w.values(0, 1, w.math, w.room, w.smith)); err != nil {
		t.Errorf("free slot rejected: %v", err)
	}
}

func TestCreate_ConflictsSurviveDayRelabel(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	w := newWorld(t, ctx)
	w.entry(w.secA, 0, 0, w.math, w.room, w.smith, "")

	// The catalog renames Monday; the existing entry keeps its old name.
	codes := codevaluestore.New(w.fx.DB())
	if err := codes.Update(ctx, w.days[0].ID, "Mon", w.days[0].SortOrder); err != nil {
		t.Fatalf("relabel day: %v", err)
	}

	_, err := w.svc.Create(ctx, w.secA.ID, w.values(0, 0, w.physics, w.room2, w.jones))
	wantUserError(t, err, "already has a class")
	_, err = w.svc.Create(ctx, w.secB.ID, w.values(0, 0, w.physics, w.room, w.jones))
	wantUserError(t, err, "already booked")
	_, err = w.svc.Create(ctx, w.secB.ID, w.values(0, 0, w.math, w.room2, w.smith))
	wantUserError(t, err, "already teaching")
}

func TestUpdate_SelfIsNotAConflict(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	w := newWorld(t, ctx)
	e := w.entry(w.secA, 0, 0, w.math, w.room, w.smith, "")

	updated, err := w.svc.Update(ctx, e.ID, w.values(0, 0, w.math, w.room2, w.smith))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Room.ID != w.room2.ID {
		t.Errorf("room: got %v, want %v", updated.Room.ID, w.room2.ID)
	}
}

func TestUpdate_MovesWholeGroup(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	w := newWorld(t, ctx)
	a := w.entry(w.secA, 0, 0, w.math, w.room, w.smith, "g1")
	b := w.entry(w.secB, 0, 0, w.math, w.room, w.smith, "g1")

	if _, err := w.svc.Update(ctx, a.ID, w.values(1, 1, w.math, w.room2, w.smith)); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	for _, id := range []primitive.ObjectID{a.ID, b.ID} {
		got, err := w.entries.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Day.Name != "Tuesday" || got.Period.Name != "09:00" || got.Room.ID != w.room2.ID {
			t.Errorf("entry %s not moved: %+v", id.Hex(), got)
		}
		if got.CombinedGroup != "g1" {
			t.Errorf("group lost: %q", got.CombinedGroup)
		}
	}
}

func TestUpdate_NotFound(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	w := newWorld(t, ctx)

	_, err := w.svc.Update(ctx, primitive.NewObjectID(), w.values(0, 0, w.math, w.room, w.smith))
	if !errors.Is(err, timetable.ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestCombineAndSplit(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	w := newWorld(t, ctx)
	secC := w.fx.CreateSection(ctx, "CS-C", "CS C")
	src := w.entry(w.secA, 0, 0, w.math, w.room, w.smith, "")

	res, err := w.svc.Combine(ctx, src.ID, []primitive.ObjectID{w.secB.ID, secC.ID, w.secB.ID, w.secA.ID})
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	if res.Group == "" || len(res.Created) != 2 {
		t.Fatalf("Combine: group=%q created=%d", res.Group, len(res.Created))
	}
	group, err := w.entries.ListByCombinedGroup(ctx, res.Group)
	if err != nil {
		t.Fatalf("ListByCombinedGroup failed: %v", err)
	}
	if len(group) != 3 {
		t.Fatalf("group size: got %d, want 3", len(group))
	}

	// Combining again skips sections already in the group.
	again, err := w.svc.Combine(ctx, src.ID, []primitive.ObjectID{w.secB.ID})
	if err != nil {
		t.Fatalf("second Combine failed: %v", err)
	}
	if len(again.Created) != 0 || len(again.Skipped) != 1 || again.Group != res.Group {
		t.Errorf("second Combine: %+v", again)
	}

	// Split one member; the other two stay combined.
	if _, err := w.svc.Split(ctx, res.Created[0].ID); err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	group, _ = w.entries.ListByCombinedGroup(ctx, res.Group)
	if len(group) != 2 {
		t.Errorf("after split: got %d members, want 2", len(group))
	}

	// Deleting one of the last two dissolves the group.
	if _, err := w.svc.Delete(ctx, res.Created[1].ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	left, err := w.entries.GetByID(ctx, src.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if left.CombinedGroup != "" {
		t.Errorf("lone entry still grouped: %q", left.CombinedGroup)
	}

	_, err = w.svc.Split(ctx, src.ID)
	wantUserError(t, err, "not combined")
}

func TestCombine_OccupiedTarget(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	w := newWorld(t, ctx)
	src := w.entry(w.secA, 0, 0, w.math, w.room, w.smith, "")
	w.entry(w.secB, 0, 0, w.physics, w.room2, w.jones, "")

	_, err := w.svc.Combine(ctx, src.ID, []primitive.ObjectID{w.secB.ID})
	wantUserError(t, err, "already has a class")

	got, _ := w.entries.GetByID(ctx, src.ID)
	if got.CombinedGroup != "" {
		t.Errorf("source tagged despite failure: %q", got.CombinedGroup)
	}
}

func TestCombine_BusyTargetWritesNothing(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	w := newWorld(t, ctx)
	secC := w.fx.CreateSection(ctx, "CS-C", "CS C")
	src := w.entry(w.secA, 0, 0, w.math, w.room, w.smith, "")
	w.entry(secC, 0, 0, w.physics, w.room2, w.jones, "")

	// CS B is free, CS C is not: nothing may be written for either.
	_, err := w.svc.Combine(ctx, src.ID, []primitive.ObjectID{w.secB.ID, secC.ID})
	wantUserError(t, err, "CS C already has a class")

	inB, err := w.entries.ListBySection(ctx, w.secB.ID)
	if err != nil {
		t.Fatalf("ListBySection: %v", err)
	}
	if len(inB) != 0 {
		t.Errorf("free target got %d entries, want 0", len(inB))
	}
	got, _ := w.entries.GetByID(ctx, src.ID)
	if got.CombinedGroup != "" {
		t.Errorf("source tagged despite failure: %q", got.CombinedGroup)
	}
}

func TestCombine_NoTargets(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	w := newWorld(t, ctx)
	src := w.entry(w.secA, 0, 0, w.math, w.room, w.smith, "")

	_, err := w.svc.Combine(ctx, src.ID, []primitive.ObjectID{w.secA.ID})
	wantUserError(t, err, "at least one")
}

func TestSectionBackend_DrivesCellForm(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	w := newWorld(t, ctx)

	opts, err := w.svc.FormOptions(ctx)
	if err != nil {
		t.Fatalf("FormOptions failed: %v", err)
	}
	f := cellform.New(opts.ScopeLookup())
	if err := f.Open(cellform.Cell{DayID: w.days[1].ID.Hex(), PeriodID: w.periods[0].ID.Hex()}); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	mustDo(t, f.SelectSubject(w.math.ID.Hex()))
	mustDo(t, f.SelectTeacher(w.smith.ID.Hex()))
	mustDo(t, f.SelectRoom(w.room.ID.Hex()))

	if err := f.Submit(ctx, w.svc.ForSection(w.secA.ID), w.svc.Cache()); err != nil {
		t.Fatalf("Submit failed: %v (%s)", err, f.Message())
	}
	list, err := w.entries.ListBySection(ctx, w.secA.ID)
	if err != nil {
		t.Fatalf("ListBySection failed: %v", err)
	}
	if len(list) != 1 || list[0].Day.Name != "Tuesday" {
		t.Errorf("unexpected entries: %+v", list)
	}
}

func mustDo(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

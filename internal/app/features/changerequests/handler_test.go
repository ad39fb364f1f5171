package changerequests_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/dalemusser/schedulehub/internal/app/features/changerequests"
	uierrors "github.com/dalemusser/schedulehub/internal/app/features/errors"
	"github.com/dalemusser/schedulehub/internal/app/system/changes"
	"github.com/dalemusser/schedulehub/internal/app/system/timetable"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/dalemusser/schedulehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type env struct {
	h     *changerequests.Handler
	cs    *changes.Service
	days  []models.CodeValue
	smith models.Teacher
	jones models.Teacher
	entry models.TimetableEntry
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	fx := testutil.NewFixtures(t, db)
	logger := zap.NewNop()

	tt := timetable.New(db, nil, nil, logger)
	cs := changes.New(db, nil, tt, logger)
	e := &env{
		h:  changerequests.NewHandler(cs, tt, uierrors.NewErrorLogger(logger), nil, logger),
		cs: cs,
	}
	var periods []models.CodeValue
	e.days, periods = fx.CreateWeek(ctx, []string{"Monday", "Tuesday"}, []string{"08:00"})
	sec := fx.CreateSection(ctx, "CS-A", "CS A")
	room := fx.CreateRoom(ctx, "R101", "Room 101")
	e.smith = fx.CreateTeacher(ctx, "T1", "Ann Smith")
	e.jones = fx.CreateTeacher(ctx, "T2", "Bob Jones")
	math := fx.CreateSubject(ctx, "MATH", "Math", nil, nil)
	e.entry = fx.CreateEntry(ctx, testutil.EntrySpec{
		Section: sec, Day: e.days[0], Period: periods[0], Subject: math, Room: room, Teacher: e.smith,
	})
	return e
}

func (e *env) createForm() url.Values {
	return url.Values{
		"entry_id": {e.entry.ID.Hex()},
		"day_id":   {e.days[1].ID.Hex()},
		"reason":   {"Clash with lab"},
	}
}

func TestHandleCreate_OwnClass(t *testing.T) {
	e := newEnv(t)
	req := testutil.WithUser(testutil.NewFormRequest("POST", "/change-requests", e.createForm().Encode()), testutil.TeacherUser(e.smith.ID))
	rec := testutil.NewRecorder()

	e.h.HandleCreate(rec, req)

	rec.AssertRedirect(t, "/change-requests?notice=submitted")
	page, err := e.cs.List(context.Background(), models.ChangeRequestPending, "", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Proposed.Day.Name != "Tuesday" {
		t.Errorf("pending requests: %+v", page.Items)
	}
}

func TestHandleCreate_OtherTeachersClassForbidden(t *testing.T) {
	e := newEnv(t)
	req := testutil.WithUser(testutil.NewFormRequest("POST", "/change-requests", e.createForm().Encode()), testutil.TeacherUser(e.jones.ID))
	req.Header.Set("HX-Request", "true")
	rec := testutil.NewRecorder()

	e.h.HandleCreate(rec, req)

	rec.AssertStatus(t, http.StatusForbidden)
}

func TestHandleCreate_BlankReason(t *testing.T) {
	e := newEnv(t)
	form := e.createForm()
	form.Set("reason", "   ")
	req := testutil.WithUser(testutil.NewFormRequest("POST", "/change-requests", form.Encode()), testutil.TeacherUser(e.smith.ID))
	rec := testutil.NewRecorder()

	testutil.Serve(e.h.HandleCreate, rec, req)

	rec.AssertStatus(t, http.StatusUnprocessableEntity)
}

func TestReview(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	cr, err := e.cs.Create(ctx, changes.Person{ID: primitive.NewObjectID(), Name: "Ann"}, changes.Proposal{
		EntryID: e.entry.ID.Hex(), DayID: e.days[1].ID.Hex(), Reason: "Clash",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	post := func(h http.HandlerFunc, action string) *testutil.ResponseRecorder {
		req := testutil.NewFormRequest("POST", "/change-requests/"+cr.ID.Hex()+"/"+action, url.Values{"note": {"fine"}}.Encode())
		req.Header.Set("HX-Request", "true")
		req = testutil.WithUser(req, testutil.AdminUser())
		req = testutil.WithChiURLParam(req, "id", cr.ID.Hex())
		rec := testutil.NewRecorder()
		h(rec, req)
		return rec
	}

	rec := post(e.h.HandleApprove, "approve")
	rec.AssertStatus(t, http.StatusOK)
	if got := rec.Header().Get("HX-Redirect"); got != "/change-requests" {
		t.Errorf("HX-Redirect: got %q", got)
	}
	got, err := e.cs.Get(ctx, cr.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.ChangeRequestApproved {
		t.Errorf("status: got %q, want approved", got.Status)
	}

	// Deciding twice is refused.
	post(e.h.HandleReject, "reject").AssertStatus(t, http.StatusBadRequest)
}

package metricsstore_test

import (
	"testing"

	metricsstore "github.com/dalemusser/schedulehub/internal/app/store/metrics"
	"github.com/dalemusser/schedulehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFetchDashboardCounts_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	counts := metricsstore.FetchDashboardCounts(ctx, db)

	if counts != (metricsstore.Counts{}) {
		t.Errorf("expected all zero counts, got %+v", counts)
	}
}

func TestFetchDashboardCounts_WithData(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	days, periods := fixtures.CreateWeek(ctx, []string{"Monday"}, []string{"08:00", "09:00"})
	room := fixtures.CreateRoom(ctx, "R1", "Room 1")
	teacher := fixtures.CreateTeacher(ctx, "T1", "Ada Smith")
	section := fixtures.CreateSection(ctx, "S1", "CS A")
	subject := fixtures.CreateSubject(ctx, "M1", "Math", nil, nil)
	fixtures.CreateStudent(ctx, "ST1", "Student One", &section.ID)
	fixtures.CreateStudent(ctx, "ST2", "Student Two", &section.ID)
	for _, p := range periods {
		fixtures.CreateEntry(ctx, testutil.EntrySpec{
			Section: section, Day: days[0], Period: p, Subject: subject, Room: room, Teacher: teacher,
		})
	}

	counts := metricsstore.FetchDashboardCounts(ctx, db)

	want := metricsstore.Counts{Rooms: 1, Teachers: 1, Students: 2, Subjects: 1, Sections: 1, Entries: 2}
	if counts != want {
		t.Errorf("counts: got %+v, want %+v", counts, want)
	}

	tc := metricsstore.FetchTeacherCounts(ctx, db, teacher.ID, primitive.NewObjectID())
	if tc.Entries != 2 || tc.Sections != 1 || tc.PendingChanges != 0 {
		t.Errorf("teacher counts: got %+v", tc)
	}
}

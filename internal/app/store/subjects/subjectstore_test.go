package subjectstore_test

import (
	"errors"
	"testing"

	subjectstore "github.com/dalemusser/schedulehub/internal/app/store/subjects"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/dalemusser/schedulehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreateDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := subjectstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sub, err := store.Create(ctx, models.Subject{Code: "MATH", Name: " Math ", Credits: 3})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sub.TeacherIDs == nil || sub.SubjectTypeIDs == nil {
		t.Error("expected empty, non-nil scope lists")
	}
	if sub.Name != "Math" || sub.Status != "active" {
		t.Errorf("defaults: %+v", sub)
	}
	if _, err := store.Create(ctx, models.Subject{Code: "MATH", Name: "Other"}); !errors.Is(err, subjectstore.ErrDuplicateSubject) {
		t.Errorf("expected ErrDuplicateSubject, got %v", err)
	}
}

func TestStore_UpdateScopeLists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := subjectstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	t1, t2 := primitive.NewObjectID(), primitive.NewObjectID()
	sub, _ := store.Create(ctx, models.Subject{Code: "PHY", Name: "Physics", TeacherIDs: []primitive.ObjectID{t1, t2}})

	// Nil keeps the list.
	if err := store.Update(ctx, sub.ID, models.Subject{Credits: 4}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, _ := store.GetByID(ctx, sub.ID)
	if len(got.TeacherIDs) != 2 || got.Credits != 4 {
		t.Errorf("after nil update: %+v", got)
	}

	n, err := store.RemoveTeacher(ctx, t1)
	if err != nil || n != 1 {
		t.Fatalf("RemoveTeacher: %d, %v", n, err)
	}
	got, _ = store.GetByID(ctx, sub.ID)
	if len(got.TeacherIDs) != 1 || got.TeacherIDs[0] != t2 {
		t.Errorf("after RemoveTeacher: %v", got.TeacherIDs)
	}

	// Empty clears it.
	store.Update(ctx, sub.ID, models.Subject{TeacherIDs: []primitive.ObjectID{}})
	got, _ = store.GetByID(ctx, sub.ID)
	if len(got.TeacherIDs) != 0 {
		t.Errorf("expected cleared teacher list, got %v", got.TeacherIDs)
	}
}

func TestStore_ListActiveAndGetByIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := subjectstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	b, _ := store.Create(ctx, models.Subject{Code: "B", Name: "Biology"})
	a, _ := store.Create(ctx, models.Subject{Code: "A", Name: "art"})
	store.Create(ctx, models.Subject{Code: "C", Name: "Chemistry", Status: "disabled"})

	active, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 2 || active[0].ID != a.ID || active[1].ID != b.ID {
		t.Errorf("ListActive order: %+v", active)
	}

	got, _ := store.GetByIDs(ctx, []primitive.ObjectID{a.ID, primitive.NewObjectID()})
	if len(got) != 1 {
		t.Errorf("GetByIDs: got %d, want 1", len(got))
	}
}

package roomstore_test

import (
	"errors"
	"testing"

	roomstore "github.com/dalemusser/schedulehub/internal/app/store/rooms"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/dalemusser/schedulehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := roomstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Room{Code: " R101 ", Name: "  Lecture Hall Á ", Capacity: 80})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.Code != "R101" || created.Name != "Lecture Hall Á" {
		t.Errorf("fields not trimmed: %q %q", created.Code, created.Name)
	}
	if created.NameCI == "" {
		t.Error("expected NameCI to be set")
	}
	if created.Status != "active" {
		t.Errorf("expected status 'active', got %q", created.Status)
	}

	if _, err := store.Create(ctx, models.Room{Code: "R101", Name: "Other"}); !errors.Is(err, roomstore.ErrDuplicateRoom) {
		t.Errorf("expected ErrDuplicateRoom, got %v", err)
	}
}

func TestStore_Update(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := roomstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	room, _ := store.Create(ctx, models.Room{Code: "R1", Name: "Room 1", Capacity: 20})
	store.Create(ctx, models.Room{Code: "R2", Name: "Room 2"})

	if err := store.Update(ctx, room.ID, models.Room{Name: "Room One", Capacity: 30}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, err := store.GetByID(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Name != "Room One" || got.Capacity != 30 || got.Code != "R1" {
		t.Errorf("after update: %+v", got)
	}

	if err := store.Update(ctx, room.ID, models.Room{Code: "R2"}); !errors.Is(err, roomstore.ErrDuplicateRoom) {
		t.Errorf("expected ErrDuplicateRoom, got %v", err)
	}
	if err := store.Update(ctx, primitive.NewObjectID(), models.Room{Name: "x"}); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("expected ErrNoDocuments, got %v", err)
	}
}

func TestStore_DeleteAndCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := roomstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a, _ := store.Create(ctx, models.Room{Code: "A", Name: "A"})
	store.Create(ctx, models.Room{Code: "B", Name: "B", Status: "disabled"})

	n, err := store.Count(ctx, bson.M{"status": "active"})
	if err != nil || n != 1 {
		t.Errorf("Count active: %d, %v", n, err)
	}
	deleted, err := store.Delete(ctx, a.ID)
	if err != nil || deleted != 1 {
		t.Errorf("Delete: %d, %v", deleted, err)
	}
	if _, err := store.GetByID(ctx, a.ID); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("expected ErrNoDocuments after delete, got %v", err)
	}
}

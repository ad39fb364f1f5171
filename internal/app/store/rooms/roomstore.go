// internal/app/store/rooms/roomstore.go
package roomstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/schedulehub/internal/app/system/status"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateRoom = errors.New("a room with this code already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("rooms")}
}

func (s *Store) Create(ctx context.Context, room models.Room) (models.Room, error) {
	now := time.Now().UTC()
	room.ID = primitive.NewObjectID()
	room.Code = strings.TrimSpace(room.Code)
	room.Name = strings.TrimSpace(room.Name)
	room.NameCI = text.Fold(room.Name)
	room.Status = status.Default(room.Status)
	room.CreatedAt = now
	room.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, room); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Room{}, ErrDuplicateRoom
		}
		return models.Room{}, err
	}
	return room, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Room, error) {
	var room models.Room
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&room); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// Update replaces a room's mutable fields. Empty strings leave a field as is.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, room models.Room) error {
	set := bson.M{
		"capacity":   room.Capacity,
		"updated_at": time.Now().UTC(),
	}
	if v := strings.TrimSpace(room.Code); v != "" {
		set["code"] = v
	}
	if v := strings.TrimSpace(room.Name); v != "" {
		set["name"] = v
		set["name_ci"] = text.Fold(v)
	}
	if room.Building != "" {
		set["building"] = room.Building
	}
	if room.Status != "" {
		set["status"] = room.Status
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateRoom
		}
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes a room by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Find returns rooms matching the filter. Paging and sorting come from opts.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Room, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rooms []models.Room
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

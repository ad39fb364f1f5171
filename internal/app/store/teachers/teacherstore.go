// internal/app/store/teachers/teacherstore.go
package teacherstore

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

var ErrDuplicateTeacher = errors.New("a teacher with this code already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("teachers")}
}

func (s *Store) Create(ctx context.Context, t models.Teacher) (models.Teacher, error) {
	now := time.Now().UTC()
	t.ID = primitive.NewObjectID()
	t.Code = strings.TrimSpace(t.Code)
	t.FullName = strings.TrimSpace(t.FullName)
	t.FullNameCI = text.Fold(t.FullName)
	t.Email = strings.ToLower(strings.TrimSpace(t.Email))
	t.Status = status.Default(t.Status)
	t.CreatedAt = now
	t.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, t); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Teacher{}, ErrDuplicateTeacher
		}
		return models.Teacher{}, err
	}
	return t, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Teacher, error) {
	var t models.Teacher
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		return models.Teacher{}, err
	}
	return t, nil
}

// GetByIDs loads several teachers, in no particular order.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Teacher, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *Store) Update(ctx context.Context, id primitive.ObjectID, t models.Teacher) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if v := strings.TrimSpace(t.Code); v != "" {
		set["code"] = v
	}
	if v := strings.TrimSpace(t.FullName); v != "" {
		set["full_name"] = v
		set["full_name_ci"] = text.Fold(v)
	}
	if t.Email != "" {
		set["email"] = strings.ToLower(strings.TrimSpace(t.Email))
	}
	if t.Department != "" {
		set["department"] = t.Department
	}
	if t.Status != "" {
		set["status"] = t.Status
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateTeacher
		}
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes a teacher by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Teacher, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Teacher
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

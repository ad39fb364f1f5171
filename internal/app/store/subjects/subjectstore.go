// internal/app/store/subjects/subjectstore.go
package subjectstore

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

var ErrDuplicateSubject = errors.New("a subject with this code already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("subjects")}
}

func (s *Store) Create(ctx context.Context, sub models.Subject) (models.Subject, error) {
	now := time.Now().UTC()
	sub.ID = primitive.NewObjectID()
	sub.Code = strings.TrimSpace(sub.Code)
	sub.Name = strings.TrimSpace(sub.Name)
	sub.NameCI = text.Fold(sub.Name)
	if sub.TeacherIDs == nil {
		sub.TeacherIDs = []primitive.ObjectID{}
	}
	if sub.SubjectTypeIDs == nil {
		sub.SubjectTypeIDs = []primitive.ObjectID{}
	}
	sub.Status = status.Default(sub.Status)
	sub.CreatedAt = now
	sub.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, sub); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Subject{}, ErrDuplicateSubject
		}
		return models.Subject{}, err
	}
	return sub, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Subject, error) {
	var sub models.Subject
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&sub); err != nil {
		return models.Subject{}, err
	}
	return sub, nil
}

// GetByIDs loads several subjects, in no particular order.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Subject, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// ListActive returns every active subject ordered by name.
func (s *Store) ListActive(ctx context.Context) ([]models.Subject, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	return s.Find(ctx, bson.M{"status": status.Active}, opts)
}

// Update replaces mutable fields. Nil slices leave the teacher or subject
// type lists unchanged; an empty non-nil slice clears them.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, sub models.Subject) error {
	set := bson.M{
		"credits":    sub.Credits,
		"updated_at": time.Now().UTC(),
	}
	if v := strings.TrimSpace(sub.Code); v != "" {
		set["code"] = v
	}
	if v := strings.TrimSpace(sub.Name); v != "" {
		set["name"] = v
		set["name_ci"] = text.Fold(v)
	}
	if sub.TeacherIDs != nil {
		set["teacher_ids"] = sub.TeacherIDs
	}
	if sub.SubjectTypeIDs != nil {
		set["subject_type_ids"] = sub.SubjectTypeIDs
	}
	if sub.Status != "" {
		set["status"] = sub.Status
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateSubject
		}
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// RemoveTeacher drops a teacher from every subject's teacher list.
func (s *Store) RemoveTeacher(ctx context.Context, teacherID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"teacher_ids": teacherID},
		bson.M{"$pull": bson.M{"teacher_ids": teacherID}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Delete removes a subject by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Subject, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Subject
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

// internal/app/store/students/studentstore.go
package studentstore

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

var ErrDuplicateStudent = errors.New("a student with this student code already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("students")}
}

func (s *Store) Create(ctx context.Context, st models.Student) (models.Student, error) {
	now := time.Now().UTC()
	st.ID = primitive.NewObjectID()
	st.StudentCode = strings.TrimSpace(st.StudentCode)
	st.FullName = strings.TrimSpace(st.FullName)
	st.FullNameCI = text.Fold(st.FullName)
	st.Email = strings.ToLower(strings.TrimSpace(st.Email))
	st.Status = status.Default(st.Status)
	st.CreatedAt = now
	st.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, st); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Student{}, ErrDuplicateStudent
		}
		return models.Student{}, err
	}
	return st, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Student, error) {
	var st models.Student
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&st); err != nil {
		return models.Student{}, err
	}
	return st, nil
}

// Update replaces mutable fields. A nil MajorSectionID leaves the
// assignment unchanged; use Unassign to clear it.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, st models.Student) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if v := strings.TrimSpace(st.StudentCode); v != "" {
		set["student_code"] = v
	}
	if v := strings.TrimSpace(st.FullName); v != "" {
		set["full_name"] = v
		set["full_name_ci"] = text.Fold(v)
	}
	if st.Email != "" {
		set["email"] = strings.ToLower(strings.TrimSpace(st.Email))
	}
	if st.MajorSectionID != nil {
		set["major_section_id"] = *st.MajorSectionID
	}
	if st.Status != "" {
		set["status"] = st.Status
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateStudent
		}
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Unassign removes the student from their major section.
func (s *Store) Unassign(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{
		"$unset": bson.M{"major_section_id": ""},
		"$set":   bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}

// CountBySection returns the number of students in a major section.
func (s *Store) CountBySection(ctx context.Context, sectionID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"major_section_id": sectionID})
}

// Delete removes a student by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Student, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Student
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

// internal/app/store/sections/sectionstore.go
package sectionstore

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

var ErrDuplicateSection = errors.New("a major section with this code already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("major_sections")}
}

func (s *Store) Create(ctx context.Context, sec models.MajorSection) (models.MajorSection, error) {
	now := time.Now().UTC()
	sec.ID = primitive.NewObjectID()
	sec.Code = strings.TrimSpace(sec.Code)
	sec.Name = strings.TrimSpace(sec.Name)
	sec.NameCI = text.Fold(sec.Name)
	sec.Status = status.Default(sec.Status)
	sec.CreatedAt = now
	sec.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, sec); err != nil {
		if wafflemongo.IsDup(err) {
			return models.MajorSection{}, ErrDuplicateSection
		}
		return models.MajorSection{}, err
	}
	return sec, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.MajorSection, error) {
	var sec models.MajorSection
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&sec); err != nil {
		return models.MajorSection{}, err
	}
	return sec, nil
}

// GetByIDs loads several sections, in no particular order.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.MajorSection, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// ListActive returns active sections ordered by name.
func (s *Store) ListActive(ctx context.Context) ([]models.MajorSection, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	return s.Find(ctx, bson.M{"status": status.Active}, opts)
}

func (s *Store) Update(ctx context.Context, id primitive.ObjectID, sec models.MajorSection) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if v := strings.TrimSpace(sec.Code); v != "" {
		set["code"] = v
	}
	if v := strings.TrimSpace(sec.Name); v != "" {
		set["name"] = v
		set["name_ci"] = text.Fold(v)
	}
	if sec.Major != "" {
		set["major"] = sec.Major
	}
	if sec.AcademicYear != "" {
		set["academic_year"] = sec.AcademicYear
	}
	if sec.Status != "" {
		set["status"] = sec.Status
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateSection
		}
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes a section by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.MajorSection, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.MajorSection
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

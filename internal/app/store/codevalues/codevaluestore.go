// internal/app/store/codevalues/codevaluestore.go
package codevaluestore

import (
	"context"
	"errors"
	"strings"
	"time"

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

var (
	ErrDuplicateCode   = errors.New("a code value with this code already exists in the category")
	ErrInvalidCategory = errors.New("unknown code value category")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("code_values")}
}

func (s *Store) Create(ctx context.Context, cv models.CodeValue) (models.CodeValue, error) {
	cv.Category = strings.TrimSpace(cv.Category)
	if !models.IsValidCategory(cv.Category) {
		return models.CodeValue{}, ErrInvalidCategory
	}
	now := time.Now().UTC()
	cv.ID = primitive.NewObjectID()
	cv.Code = strings.TrimSpace(cv.Code)
	cv.Label = strings.TrimSpace(cv.Label)
	cv.LabelCI = text.Fold(cv.Label)
	cv.CreatedAt = now
	cv.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, cv); err != nil {
		if wafflemongo.IsDup(err) {
			return models.CodeValue{}, ErrDuplicateCode
		}
		return models.CodeValue{}, err
	}
	return cv, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.CodeValue, error) {
	var cv models.CodeValue
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&cv); err != nil {
		return models.CodeValue{}, err
	}
	return cv, nil
}

// GetByIDs loads code values by id, in no particular order.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.CodeValue, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// ListByCategory returns a category's values in display order.
func (s *Store) ListByCategory(ctx context.Context, category string) ([]models.CodeValue, error) {
	opts := options.Find().SetSort(bson.D{{Key: "sort_order", Value: 1}, {Key: "label_ci", Value: 1}, {Key: "_id", Value: 1}})
	return s.Find(ctx, bson.M{"category": category}, opts)
}

// Update changes label and sort order. The category and code are fixed.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, label string, sortOrder int) error {
	label = strings.TrimSpace(label)
	set := bson.M{
		"sort_order": sortOrder,
		"updated_at": time.Now().UTC(),
	}
	if label != "" {
		set["label"] = label
		set["label_ci"] = text.Fold(label)
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes a code value. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.CodeValue, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.CodeValue
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

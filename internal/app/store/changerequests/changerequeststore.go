// internal/app/store/changerequests/changerequeststore.go
package changerequeststore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/schedulehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotPending is returned when a review targets a request that was already decided.
var ErrNotPending = errors.New("change request is no longer pending")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("change_requests")}
}

// Create stores a new pending request.
func (s *Store) Create(ctx context.Context, cr models.ChangeRequest) (models.ChangeRequest, error) {
	now := time.Now().UTC()
	cr.ID = primitive.NewObjectID()
	cr.Status = models.ChangeRequestPending
	cr.ReviewedBy = nil
	cr.ReviewedByName = ""
	cr.ReviewNote = ""
	cr.ReviewedAt = nil
	cr.CreatedAt = now
	cr.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, cr); err != nil {
		return models.ChangeRequest{}, err
	}
	return cr, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.ChangeRequest, error) {
	var cr models.ChangeRequest
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&cr); err != nil {
		return models.ChangeRequest{}, err
	}
	return cr, nil
}

// Review records the decision on a pending request. The update matches on
// status so two reviewers cannot both decide the same request.
func (s *Store) Review(ctx context.Context, id primitive.ObjectID, decision string, reviewer primitive.ObjectID, reviewerName, note string) (models.ChangeRequest, error) {
	if decision != models.ChangeRequestApproved && decision != models.ChangeRequestRejected {
		return models.ChangeRequest{}, errors.New("invalid review decision")
	}
	now := time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var cr models.ChangeRequest
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": models.ChangeRequestPending},
		bson.M{"$set": bson.M{
			"status":           decision,
			"reviewed_by":      reviewer,
			"reviewed_by_name": reviewerName,
			"review_note":      note,
			"reviewed_at":      now,
			"updated_at":       now,
		}},
		opts,
	).Decode(&cr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, gerr := s.GetByID(ctx, id); gerr != nil {
			return models.ChangeRequest{}, gerr
		}
		return models.ChangeRequest{}, ErrNotPending
	}
	if err != nil {
		return models.ChangeRequest{}, err
	}
	return cr, nil
}

// Reopen returns a decided request to pending. It only matches the decision
// recorded in cr, so a later review is never undone.
func (s *Store) Reopen(ctx context.Context, cr models.ChangeRequest) error {
	if cr.ReviewedAt == nil {
		return ErrNotPending
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": cr.ID, "status": cr.Status, "reviewed_at": *cr.ReviewedAt},
		bson.M{
			"$set":   bson.M{"status": models.ChangeRequestPending, "updated_at": time.Now().UTC()},
			"$unset": bson.M{"reviewed_by": "", "reviewed_by_name": "", "review_note": "", "reviewed_at": ""},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotPending
	}
	return nil
}

// ListByStatus returns requests with the given status (all when empty),
// oldest first. Paging is keyset on _id through opts.
func (s *Store) ListByStatus(ctx context.Context, status string, window bson.M, opts ...*options.FindOptions) ([]models.ChangeRequest, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	for k, v := range window {
		filter[k] = v
	}
	return s.Find(ctx, filter, opts...)
}

// ListByRequester returns a user's own requests, newest first.
func (s *Store) ListByRequester(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.ChangeRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}).SetLimit(limit)
	return s.Find(ctx, bson.M{"requested_by": userID}, opts)
}

// HasPendingForEntry reports whether an entry already has an open request.
func (s *Store) HasPendingForEntry(ctx context.Context, entryID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"entry_id": entryID, "status": models.ChangeRequestPending}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CountPending counts requests awaiting review.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"status": models.ChangeRequestPending})
}

func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.ChangeRequest, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ChangeRequest
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

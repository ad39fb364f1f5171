// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryAuth     = "auth"
	CategoryAdmin    = "admin"
	CategorySchedule = "schedule"
)

// Auth event types
const (
	EventLoginSuccess             = "login_success"
	EventLoginFailedUserNotFound  = "login_failed_user_not_found"
	EventLoginFailedWrongPassword = "login_failed_wrong_password"
	EventLoginFailedUserDisabled  = "login_failed_user_disabled"
	EventLoginFailedRateLimit     = "login_failed_rate_limit"
	EventLogout                   = "logout"
	EventPasswordChanged          = "password_changed"
)

// Admin event types
const (
	EventRecordCreated = "record_created"
	EventRecordUpdated = "record_updated"
	EventRecordDeleted = "record_deleted"
)

// Schedule event types
const (
	EventEntryCreated        = "entry_created"
	EventEntryUpdated        = "entry_updated"
	EventEntryDeleted        = "entry_deleted"
	EventClassCombined       = "class_combined"
	EventClassSplit          = "class_split"
	EventChangeRequested     = "change_requested"
	EventChangeApproved      = "change_approved"
	EventChangeRejected      = "change_rejected"
	EventTimetablesGenerated = "timetables_generated"
	EventTimetablesImported  = "timetables_imported"
	EventTimetablesExported  = "timetables_exported"
)

// Event is one audit record.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Timestamp time.Time          `bson:"timestamp"`

	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	UserID  *primitive.ObjectID `bson:"user_id,omitempty"`  // affected user
	ActorID *primitive.ObjectID `bson:"actor_id,omitempty"` // who performed the action

	// Affected record, e.g. ("timetable_entries", id).
	Collection string              `bson:"collection,omitempty"`
	RecordID   *primitive.ObjectID `bson:"record_id,omitempty"`

	IP        string `bson:"ip"`
	UserAgent string `bson:"user_agent,omitempty"`

	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter narrows Query and CountByFilter.
type QueryFilter struct {
	UserID    *primitive.ObjectID
	ActorID   *primitive.ObjectID
	RecordID  *primitive.ObjectID
	Category  string
	EventType string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
	Offset    int64
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

func (f QueryFilter) toBSON() bson.M {
	m := bson.M{}
	if f.UserID != nil {
		m["user_id"] = *f.UserID
	}
	if f.ActorID != nil {
		m["actor_id"] = *f.ActorID
	}
	if f.RecordID != nil {
		m["record_id"] = *f.RecordID
	}
	if f.Category != "" {
		m["category"] = f.Category
	}
	if f.EventType != "" {
		m["event_type"] = f.EventType
	}
	if f.StartTime != nil || f.EndTime != nil {
		ts := bson.M{}
		if f.StartTime != nil {
			ts["$gte"] = *f.StartTime
		}
		if f.EndTime != nil {
			ts["$lt"] = *f.EndTime
		}
		m["timestamp"] = ts
	}
	return m
}

// Query returns events matching the filter, most recent first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	if filter.Offset > 0 {
		opts.SetSkip(filter.Offset)
	}
	cur, err := s.c.Find(ctx, filter.toBSON(), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter counts events matching the filter (Limit and Offset ignored).
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.toBSON())
}

// GetRecent returns the most recent events.
func (s *Store) GetRecent(ctx context.Context, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{Limit: limit})
}

// GetByUser returns events about one user, most recent first.
func (s *Store) GetByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{UserID: &userID, Limit: limit})
}

// GetByRecord returns the history of one record.
func (s *Store) GetByRecord(ctx context.Context, recordID primitive.ObjectID, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{RecordID: &recordID, Limit: limit})
}

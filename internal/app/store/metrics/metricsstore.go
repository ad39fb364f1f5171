package metricsstore

import (
	"context"

	"github.com/dalemusser/schedulehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Counts is the set of totals shown on the admin dashboard.
type Counts struct {
	Rooms          int64
	Teachers       int64
	Students       int64
	Subjects       int64
	Sections       int64
	Entries        int64
	PendingChanges int64
}

// TeacherCounts is what a teacher sees on their own dashboard.
type TeacherCounts struct {
	Entries        int64
	Sections       int64
	PendingChanges int64
}

// FetchDashboardCounts returns the high-level counts used by the admin dashboard.
// Tolerant: on error it returns 0 for that counter.
func FetchDashboardCounts(ctx context.Context, db *mongo.Database) Counts {
	var out Counts
	count := func(coll string, filter bson.M, dst *int64) {
		if n, err := db.Collection(coll).CountDocuments(ctx, filter); err == nil {
			*dst = n
		}
	}
	count("rooms", bson.M{}, &out.Rooms)
	count("teachers", bson.M{}, &out.Teachers)
	count("students", bson.M{}, &out.Students)
	count("subjects", bson.M{}, &out.Subjects)
	count("major_sections", bson.M{}, &out.Sections)
	count("timetable_entries", bson.M{}, &out.Entries)
	count("change_requests", bson.M{"status": models.ChangeRequestPending}, &out.PendingChanges)
	return out
}

// FetchTeacherCounts returns one teacher's totals. userID is the signed-in
// account, used for the change requests it filed.
func FetchTeacherCounts(ctx context.Context, db *mongo.Database, teacherID, userID primitive.ObjectID) TeacherCounts {
	var out TeacherCounts
	entries := db.Collection("timetable_entries")
	if n, err := entries.CountDocuments(ctx, bson.M{"teacher.id": teacherID}); err == nil {
		out.Entries = n
	}
	if ids, err := entries.Distinct(ctx, "section_id", bson.M{"teacher.id": teacherID}); err == nil {
		out.Sections = int64(len(ids))
	}
	if n, err := db.Collection("change_requests").CountDocuments(ctx, bson.M{
		"requested_by": userID,
		"status":       models.ChangeRequestPending,
	}); err == nil {
		out.PendingChanges = n
	}
	return out
}

// internal/app/store/timetables/timetablestore.go
package timetablestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/schedulehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("timetable_entries")}
}

// slotCollation compares day and period names case-insensitively so rows
// written by the generator ("MONDAY") match catalog labels ("Monday").
var slotCollation = &options.Collation{Locale: "en", Strength: 2}

func gridSort() bson.D {
	return bson.D{{Key: "day.name", Value: 1}, {Key: "period.name", Value: 1}, {Key: "_id", Value: 1}}
}

func (s *Store) Create(ctx context.Context, e models.TimetableEntry) (models.TimetableEntry, error) {
	now := time.Now().UTC()
	e.ID = primitive.NewObjectID()
	e.Day.Name = strings.TrimSpace(e.Day.Name)
	e.Period.Name = strings.TrimSpace(e.Period.Name)
	e.CreatedAt = now
	e.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, e); err != nil {
		return models.TimetableEntry{}, err
	}
	return e, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.TimetableEntry, error) {
	var e models.TimetableEntry
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		return models.TimetableEntry{}, err
	}
	return e, nil
}

// Update rewrites the slot and staffing of an entry. Section, combined group
// and creation time are kept.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, e models.TimetableEntry) error {
	set := bson.M{
		"day":        models.Ref{ID: e.Day.ID, Name: strings.TrimSpace(e.Day.Name)},
		"period":     models.Ref{ID: e.Period.ID, Name: strings.TrimSpace(e.Period.Name)},
		"subject":    e.Subject,
		"room":       e.Room,
		"teacher":    e.Teacher,
		"updated_at": time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if e.SubjectType != nil {
		set["subject_type"] = *e.SubjectType
	} else {
		update["$unset"] = bson.M{"subject_type": ""}
	}
	if e.Semester != "" {
		set["semester"] = e.Semester
	}
	res, err := s.c.UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes an entry by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListBySection returns every entry of a major section, in insertion order
// within each slot so grid assembly keeps the earliest row.
func (s *Store) ListBySection(ctx context.Context, sectionID primitive.ObjectID) ([]models.TimetableEntry, error) {
	return s.Find(ctx, bson.M{"section_id": sectionID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

// ListByTeacher returns every entry the teacher is booked for, across sections.
func (s *Store) ListByTeacher(ctx context.Context, teacherID primitive.ObjectID) ([]models.TimetableEntry, error) {
	return s.Find(ctx, bson.M{"teacher.id": teacherID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

// ListByCombinedGroup returns the entries of one combined class.
func (s *Store) ListByCombinedGroup(ctx context.Context, group string) ([]models.TimetableEntry, error) {
	if group == "" {
		return nil, nil
	}
	return s.Find(ctx, bson.M{"combined_group": group}, options.Find().SetSort(gridSort()))
}

// Slot is a day and period as embedded in entries.
type Slot struct {
	Day    models.Ref
	Period models.Ref
}

// SlotOf returns the slot an entry is held at.
func SlotOf(e models.TimetableEntry) Slot { return Slot{Day: e.Day, Period: e.Period} }

// filter matches entries at the slot by embedded id or by name. Ids survive
// catalog relabels; names cover rows written by the generator with its own ids.
func (sl Slot) filter() bson.M {
	or := bson.A{bson.M{
		"day.name":    strings.TrimSpace(sl.Day.Name),
		"period.name": strings.TrimSpace(sl.Period.Name),
	}}
	if !sl.Day.ID.IsZero() && !sl.Period.ID.IsZero() {
		or = append(or, bson.M{"day.id": sl.Day.ID, "period.id": sl.Period.ID})
	}
	return bson.M{"$or": or}
}

// FindAtSlot returns every entry, in any section, held at the slot.
// Names are compared case-insensitively.
func (s *Store) FindAtSlot(ctx context.Context, sl Slot) ([]models.TimetableEntry, error) {
	return s.Find(ctx, sl.filter(), options.Find().SetCollation(slotCollation).SetSort(bson.D{{Key: "_id", Value: 1}}))
}

// FindInSectionSlot returns the section's entries at the slot.
func (s *Store) FindInSectionSlot(ctx context.Context, sectionID primitive.ObjectID, sl Slot) ([]models.TimetableEntry, error) {
	filter := sl.filter()
	filter["section_id"] = sectionID
	return s.Find(ctx, filter, options.Find().SetCollation(slotCollation).SetSort(bson.D{{Key: "_id", Value: 1}}))
}

// refFields are the embedded references RenameRef may rewrite.
var refFields = map[string]bool{
	"section": true, "day": true, "period": true, "subject": true,
	"subject_type": true, "room": true, "teacher": true,
}

// RenameRef rewrites the denormalized name of every embedded reference to id
// under field ("room", "day", ...). It returns the number of entries changed.
func (s *Store) RenameRef(ctx context.Context, field string, id primitive.ObjectID, name string) (int64, error) {
	if !refFields[field] {
		return 0, fmt.Errorf("timetablestore: unknown reference field %q", field)
	}
	res, err := s.c.UpdateMany(ctx,
		bson.M{field + ".id": id, field + ".name": bson.M{"$ne": name}},
		bson.M{"$set": bson.M{field + ".name": name, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// SetCombinedGroup tags the entries with a combined-class group id.
func (s *Store) SetCombinedGroup(ctx context.Context, ids []primitive.ObjectID, group string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.c.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"combined_group": group, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ClearCombinedGroup detaches one entry from its combined class.
func (s *Store) ClearCombinedGroup(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{
		"$unset": bson.M{"combined_group": ""},
		"$set":   bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// CountBySection returns entry counts keyed by section id.
func (s *Store) CountBySection(ctx context.Context) (map[primitive.ObjectID]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$section_id"},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[primitive.ObjectID]int64)
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
			N  int64              `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ID] = row.N
	}
	return out, cur.Err()
}

// DeleteBySection removes every entry of a section.
func (s *Store) DeleteBySection(ctx context.Context, sectionID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"section_id": sectionID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.TimetableEntry, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.TimetableEntry
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

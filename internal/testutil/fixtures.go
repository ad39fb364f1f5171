package testutil

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func (f *Fixtures) insert(ctx context.Context, coll string, doc any) {
	f.t.Helper()
	if _, err := f.db.Collection(coll).InsertOne(ctx, doc); err != nil {
		f.t.Fatalf("failed to insert %s fixture: %v", coll, err)
	}
}

// CreateCodeValue inserts a catalog row.
func (f *Fixtures) CreateCodeValue(ctx context.Context, category, code, label string, sortOrder int) models.CodeValue {
	f.t.Helper()
	now := time.Now().UTC()
	cv := models.CodeValue{
		ID:        primitive.NewObjectID(),
		Category:  category,
		Code:      code,
		Label:     label,
		LabelCI:   text.Fold(label),
		SortOrder: sortOrder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.insert(ctx, "code_values", cv)
	return cv
}

// CreateWeek inserts the given days and periods in order and returns them.
func (f *Fixtures) CreateWeek(ctx context.Context, days, periods []string) ([]models.CodeValue, []models.CodeValue) {
	f.t.Helper()
	var ds, ps []models.CodeValue
	for i, d := range days {
		ds = append(ds, f.CreateCodeValue(ctx, models.CategoryDay, "D"+strconv.Itoa(i+1), d, i+1))
	}
	for i, p := range periods {
		ps = append(ps, f.CreateCodeValue(ctx, models.CategoryPeriod, "P"+strconv.Itoa(i+1), p, i+1))
	}
	return ds, ps
}

// CreateRoom inserts an active room.
func (f *Fixtures) CreateRoom(ctx context.Context, code, name string) models.Room {
	f.t.Helper()
	now := time.Now().UTC()
	r := models.Room{
		ID:        primitive.NewObjectID(),
		Code:      code,
		Name:      name,
		NameCI:    text.Fold(name),
		Capacity:  30,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.insert(ctx, "rooms", r)
	return r
}

// CreateTeacher inserts an active teacher.
func (f *Fixtures) CreateTeacher(ctx context.Context, code, fullName string) models.Teacher {
	f.t.Helper()
	now := time.Now().UTC()
	tc := models.Teacher{
		ID:         primitive.NewObjectID(),
		Code:       code,
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	f.insert(ctx, "teachers", tc)
	return tc
}

// CreateSection inserts an active major section.
func (f *Fixtures) CreateSection(ctx context.Context, code, name string) models.MajorSection {
	f.t.Helper()
	now := time.Now().UTC()
	s := models.MajorSection{
		ID:        primitive.NewObjectID(),
		Code:      code,
		Name:      name,
		NameCI:    text.Fold(name),
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.insert(ctx, "major_sections", s)
	return s
}

// CreateSubject inserts an active subject scoped to the given teachers and types.
func (f *Fixtures) CreateSubject(ctx context.Context, code, name string, teacherIDs, typeIDs []primitive.ObjectID) models.Subject {
	f.t.Helper()
	now := time.Now().UTC()
	if teacherIDs == nil {
		teacherIDs = []primitive.ObjectID{}
	}
	if typeIDs == nil {
		typeIDs = []primitive.ObjectID{}
	}
	s := models.Subject{
		ID:             primitive.NewObjectID(),
		Code:           code,
		Name:           name,
		NameCI:         text.Fold(name),
		Credits:        3,
		TeacherIDs:     teacherIDs,
		SubjectTypeIDs: typeIDs,
		Status:         "active",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.insert(ctx, "subjects", s)
	return s
}

// CreateStudent inserts an active student, optionally in a section.
func (f *Fixtures) CreateStudent(ctx context.Context, code, fullName string, sectionID *primitive.ObjectID) models.Student {
	f.t.Helper()
	now := time.Now().UTC()
	s := models.Student{
		ID:             primitive.NewObjectID(),
		StudentCode:    code,
		FullName:       fullName,
		FullNameCI:     text.Fold(fullName),
		MajorSectionID: sectionID,
		Status:         "active",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.insert(ctx, "students", s)
	return s
}

// EntrySpec names the pieces of a timetable entry fixture.
type EntrySpec struct {
	Section models.MajorSection
	Day     models.CodeValue
	Period  models.CodeValue
	Subject models.Subject
	Room    models.Room
	Teacher models.Teacher
	Type    *models.CodeValue
	Group   string
}

// CreateEntry inserts a timetable entry whose refs point at the given records.
func (f *Fixtures) CreateEntry(ctx context.Context, s EntrySpec) models.TimetableEntry {
	f.t.Helper()
	now := time.Now().UTC()
	e := models.TimetableEntry{
		ID:            primitive.NewObjectID(),
		SectionID:     s.Section.ID,
		Section:       models.Ref{ID: s.Section.ID, Name: s.Section.Name},
		Day:           models.Ref{ID: s.Day.ID, Name: s.Day.Label},
		Period:        models.Ref{ID: s.Period.ID, Name: s.Period.Label},
		Subject:       models.Ref{ID: s.Subject.ID, Name: s.Subject.Name},
		Room:          models.Ref{ID: s.Room.ID, Name: s.Room.Name},
		Teacher:       models.Ref{ID: s.Teacher.ID, Name: s.Teacher.FullName},
		CombinedGroup: s.Group,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if s.Type != nil {
		e.SubjectType = &models.Ref{ID: s.Type.ID, Name: s.Type.Label}
	}
	f.insert(ctx, "timetable_entries", e)
	return e
}

// CreateUser inserts an active user with a bcrypt-hashed password.
func (f *Fixtures) CreateUser(ctx context.Context, loginID, password, role string, teacherID *primitive.ObjectID) models.User {
	f.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	u := models.User{
		ID:           primitive.NewObjectID(),
		FullName:     "User " + loginID,
		FullNameCI:   text.Fold("User " + loginID),
		LoginID:      loginID,
		LoginIDCI:    text.Fold(loginID),
		PasswordHash: string(hash),
		Role:         role,
		TeacherID:    teacherID,
		Status:       "active",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.insert(ctx, "users", u)
	return u
}

// internal/domain/models/timetableentry.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ref is a denormalized reference embedded in a timetable entry.
type Ref struct {
	ID   primitive.ObjectID `bson:"id" json:"id"`
	Name string             `bson:"name" json:"name"`
}

// TimetableEntry is one class meeting: a section, at a day and period, taking
// a subject with a teacher in a room.
//
// Day and Period carry the ids of the timetable-data rows they were written
// with. Those ids are not guaranteed to match the code-value catalog, so grids
// place entries by Day.Name / Period.Name first.
//
// Entries that share a non-empty CombinedGroup are one combined class taught
// to several sections at once.
type TimetableEntry struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SectionID     primitive.ObjectID `bson:"section_id" json:"section_id"`
	Section       Ref                `bson:"section" json:"section"`
	Day           Ref                `bson:"day" json:"day"`
	Period        Ref                `bson:"period" json:"period"`
	Subject       Ref                `bson:"subject" json:"subject"`
	SubjectType   *Ref               `bson:"subject_type,omitempty" json:"subject_type,omitempty"`
	Room          Ref                `bson:"room" json:"room"`
	Teacher       Ref                `bson:"teacher" json:"teacher"`
	CombinedGroup string             `bson:"combined_group,omitempty" json:"combined_group,omitempty"`
	Semester      string             `bson:"semester,omitempty" json:"semester,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

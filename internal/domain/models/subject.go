// internal/domain/models/subject.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Subject is a course taught to major sections.
//
// TeacherIDs and SubjectTypeIDs scope the teacher and subject-type choices
// offered when a subject is placed in a timetable cell. SubjectTypeIDs point
// at code values of category "subject_type".
type Subject struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Code           string               `bson:"code" json:"code"`
	Name           string               `bson:"name" json:"name"`
	NameCI         string               `bson:"name_ci" json:"-"`
	Credits        int                  `bson:"credits" json:"credits"`
	TeacherIDs     []primitive.ObjectID `bson:"teacher_ids" json:"teacher_ids"`
	SubjectTypeIDs []primitive.ObjectID `bson:"subject_type_ids" json:"subject_type_ids"`
	Status         string               `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasTeacher reports whether id is one of the subject's teachers.
func (s Subject) HasTeacher(id primitive.ObjectID) bool {
	for _, t := range s.TeacherIDs {
		if t == id {
			return true
		}
	}
	return false
}

// HasSubjectType reports whether id is one of the subject's subject types.
func (s Subject) HasSubjectType(id primitive.ObjectID) bool {
	for _, t := range s.SubjectTypeIDs {
		if t == id {
			return true
		}
	}
	return false
}

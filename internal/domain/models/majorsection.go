// internal/domain/models/majorsection.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MajorSection is a cohort of students that shares one timetable
// (for example "CS-2024-A").
type MajorSection struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code         string             `bson:"code" json:"code"`
	Name         string             `bson:"name" json:"name"`
	NameCI       string             `bson:"name_ci" json:"-"`
	Major        string             `bson:"major,omitempty" json:"major,omitempty"`
	AcademicYear string             `bson:"academic_year,omitempty" json:"academic_year,omitempty"`
	Status       string             `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

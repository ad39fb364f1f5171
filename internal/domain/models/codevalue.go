// internal/domain/models/codevalue.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Code-value catalog categories.
const (
	CategoryDay         = "day"
	CategoryPeriod      = "period"
	CategorySubjectType = "subject_type"
)

// CodeValue is one row of the code-value catalog. Days and periods define the
// axes of every timetable grid; subject types ("theory", "lab", ...) qualify
// timetable entries.
type CodeValue struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Category  string             `bson:"category" json:"category"`
	Code      string             `bson:"code" json:"code"`
	Label     string             `bson:"label" json:"label"`
	LabelCI   string             `bson:"label_ci" json:"-"`
	SortOrder int                `bson:"sort_order" json:"sort_order"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsValidCategory reports whether c names a known catalog category.
func IsValidCategory(c string) bool {
	switch c {
	case CategoryDay, CategoryPeriod, CategorySubjectType:
		return true
	}
	return false
}

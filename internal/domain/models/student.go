// internal/domain/models/student.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Student struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	StudentCode    string              `bson:"student_code" json:"student_code"`
	FullName       string              `bson:"full_name" json:"full_name"`
	FullNameCI     string              `bson:"full_name_ci" json:"-"`
	Email          string              `bson:"email,omitempty" json:"email,omitempty"`
	MajorSectionID *primitive.ObjectID `bson:"major_section_id,omitempty" json:"major_section_id,omitempty"`
	Status         string              `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

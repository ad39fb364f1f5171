// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a dashboard account.
//
// Admins manage every part of the schedule. Teacher accounts are linked to a
// Teacher record through TeacherID and may view their own timetable and file
// change requests.
type User struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	FullName     string              `bson:"full_name" json:"full_name"`
	FullNameCI   string              `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	LoginID      string              `bson:"login_id" json:"login_id"`
	LoginIDCI    string              `bson:"login_id_ci" json:"-"`
	PasswordHash string              `bson:"password_hash,omitempty" json:"-"`
	Role         string              `bson:"role" json:"role"` // admin | teacher
	TeacherID    *primitive.ObjectID `bson:"teacher_id,omitempty" json:"teacher_id,omitempty"`
	Status       string              `bson:"status,omitempty" json:"status,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Roles understood by the dashboard.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
)

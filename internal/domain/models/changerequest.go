// internal/domain/models/changerequest.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Change request statuses.
const (
	ChangeRequestPending  = "pending"
	ChangeRequestApproved = "approved"
	ChangeRequestRejected = "rejected"
)

// SlotSnapshot records where an entry sits (or should sit) and who teaches it where.
type SlotSnapshot struct {
	Day     Ref `bson:"day" json:"day"`
	Period  Ref `bson:"period" json:"period"`
	Room    Ref `bson:"room" json:"room"`
	Teacher Ref `bson:"teacher" json:"teacher"`
}

// ChangeRequest asks an admin to move or re-staff one timetable entry.
// Proposed ids refer to the code-value catalog (day/period) and the room and
// teacher collections.
type ChangeRequest struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EntryID         primitive.ObjectID `bson:"entry_id" json:"entry_id"`
	SectionID       primitive.ObjectID `bson:"section_id" json:"section_id"`
	SectionName     string             `bson:"section_name" json:"section_name"`
	SubjectName     string             `bson:"subject_name" json:"subject_name"`
	RequestedBy     primitive.ObjectID `bson:"requested_by" json:"requested_by"`
	RequestedByName string             `bson:"requested_by_name" json:"requested_by_name"`
	Current         SlotSnapshot       `bson:"current" json:"current"`
	Proposed        SlotSnapshot       `bson:"proposed" json:"proposed"`
	Reason          string             `bson:"reason" json:"reason"`
	Status          string             `bson:"status" json:"status"`

	ReviewedBy     *primitive.ObjectID `bson:"reviewed_by,omitempty" json:"reviewed_by,omitempty"`
	ReviewedByName string              `bson:"reviewed_by_name,omitempty" json:"reviewed_by_name,omitempty"`
	ReviewNote     string              `bson:"review_note,omitempty" json:"review_note,omitempty"`
	ReviewedAt     *time.Time          `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

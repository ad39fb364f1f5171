// internal/domain/models/room.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Room struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code     string             `bson:"code" json:"code"`
	Name     string             `bson:"name" json:"name"`
	NameCI   string             `bson:"name_ci" json:"-"`
	Building string             `bson:"building,omitempty" json:"building,omitempty"`
	Capacity int                `bson:"capacity" json:"capacity"`
	Status   string             `bson:"status" json:"status"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

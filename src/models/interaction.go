package models

import (
	"reflect"
	"time"
)

var InteractionType = reflect.TypeOf(Interaction{})

// An audit record of a single HTTP request.
type Interaction struct {
	ID        int       `db:"id" json:"id"`
	Endpoint  string    `db:"endpoint" json:"endpoint"`
	Origin    string    `db:"origin" json:"origin"`
	UserID    *int      `db:"user_id" json:"userId"`
	Response  int       `db:"response" json:"response"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

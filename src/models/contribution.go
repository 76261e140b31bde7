package models

import (
	"reflect"
	"time"
)

var ContributionType = reflect.TypeOf(Contribution{})

// One tag edit made on the identity provider's post while working on a project.
type Contribution struct {
	ID             int       `db:"id" json:"id"`
	ProjectID      int       `db:"project_id" json:"projectId"`
	ProjectVersion int       `db:"project_version" json:"projectVersion"`
	UserID         int       `db:"user_id" json:"userId"`
	PostID         int       `db:"post_id" json:"postId"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

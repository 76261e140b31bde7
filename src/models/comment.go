package models

import (
	"reflect"
	"time"
)

var CommentType = reflect.TypeOf(Comment{})

// Edits made within this long after posting do not mark a comment as edited.
const CommentNinjaEditWindow = 5 * time.Minute

type Comment struct {
	ID        int        `db:"id" json:"id"`
	ProjectID int        `db:"project_id" json:"projectId"`
	UserID    int        `db:"user_id" json:"userId"`
	Content   string     `db:"content" json:"content"`
	HiddenBy  *int       `db:"hidden_by" json:"hiddenBy"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt *time.Time `db:"updated_at" json:"updatedAt"`
}

func (c *Comment) IsHidden() bool {
	return c.HiddenBy != nil
}

// Whether an edit at the given time should be recorded as an edit.
func (c *Comment) EditIsVisible(at time.Time) bool {
	return at.After(c.CreatedAt.Add(CommentNinjaEditWindow))
}

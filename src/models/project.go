package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

var ProjectType = reflect.TypeOf(Project{})
var ProjectVersionType = reflect.TypeOf(ProjectVersion{})

// How many of a project's options a contributor may pick for one post.
type SelectionMode string

const (
	SelectionModeOne  SelectionMode = "One"
	SelectionModeMany SelectionMode = "Many"
)

func (m SelectionMode) IsValid() bool {
	return m == SelectionModeOne || m == SelectionModeMany
}

func (m *SelectionMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	mode := SelectionMode(s)
	if !mode.IsValid() {
		return fmt.Errorf("unknown selection mode %q", s)
	}
	*m = mode
	return nil
}

// A choice offered to contributors, and the tag edits it applies.
type ProjectOption struct {
	Name   string   `json:"name"`
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
}

// Fields that every project version snapshot copies.
type ProjectConfig struct {
	Name         string          `db:"name" json:"name"`
	Meta         string          `db:"meta" json:"meta"`
	Description  string          `db:"description" json:"description"`
	Guidelines   string          `db:"guidelines" json:"guidelines"`
	Tags         []string        `db:"tags" json:"tags"`
	Mode         SelectionMode   `db:"mode" json:"mode"`
	Options      []ProjectOption `db:"options" json:"options"`
	Conditionals []string        `db:"conditionals" json:"conditionals"`
}

type Project struct {
	ID      int `db:"id" json:"id"`
	UserID  int `db:"user_id" json:"userId"`
	Version int `db:"version" json:"version"`

	ProjectConfig

	IsPrivate bool       `db:"is_private" json:"isPrivate"`
	IsDeleted bool       `db:"is_deleted" json:"isDeleted"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt *time.Time `db:"updated_at" json:"updatedAt"`
}

type ProjectVersion struct {
	ID        int `db:"id" json:"id"`
	ProjectID int `db:"project_id" json:"projectId"`
	Version   int `db:"version" json:"version"`

	ProjectConfig

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

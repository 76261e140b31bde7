package tagemdata

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/clynamic/tagem/src/apierr"
	"github.com/clynamic/tagem/src/db"
	"github.com/clynamic/tagem/src/models"
	"github.com/clynamic/tagem/src/oops"
	"github.com/clynamic/tagem/src/paged"
	"github.com/clynamic/tagem/src/utils"
	"github.com/clynamic/tagem/src/visibility"
	"github.com/jackc/pgx/v5"
)

var Projects = paged.New[models.Project](paged.Table{
	Name:   "project",
	Entity: "project",
	SortKeys: paged.SortKeys{
		"id":      "id",
		"name":    "name",
		"meta":    "meta",
		"version": "version",
		"created": "created_at",
		"updated": "updated_at",
		"user":    "user_id",
	},
})

var ProjectVersions = paged.New[models.ProjectVersion](paged.Table{
	Name:   "project_version",
	Entity: "project version",
	SortKeys: paged.SortKeys{
		"id":      "id",
		"version": "version",
		"created": "created_at",
	},
})

/*
Predicates that hide deleted and private projects from currentUser. Owners
always see their own projects; staff see everything.
*/
func projectVisibility(currentUser *models.User) []sq.Sqlizer {
	v := visibility.Resolve(currentUser)
	return []sq.Sqlizer{
		visibility.Predicate(v, sq.Eq{"is_deleted": false}, "user_id"),
		visibility.Predicate(v, sq.Eq{"is_private": false}, "user_id"),
	}
}

// Restricts rows with a project_id column to projects visible to currentUser.
// Returns nil when nothing needs to be hidden.
func visibleProjectIDs(currentUser *models.User) sq.Sqlizer {
	var where []sq.Sqlizer
	for _, w := range projectVisibility(currentUser) {
		if w != nil {
			where = append(where, w)
		}
	}
	if len(where) == 0 {
		return nil
	}

	sub := sq.Select("id").From(Projects.Table.Name).Where(sq.And(where))
	return sq.Expr("project_id IN (?)", sub)
}

type ProjectsQuery struct {
	paged.Options

	UserID      *int
	Name        string
	Description string
	Guidelines  string
	// Matches name, description or guidelines.
	Search string
	// Every tag must be present.
	Tags []string
}

func (q ProjectsQuery) filters() []sq.Sqlizer {
	var where []sq.Sqlizer
	if q.UserID != nil {
		where = append(where, sq.Eq{"user_id": *q.UserID})
	}
	if q.Name != "" {
		where = append(where, paged.Contains("name", q.Name))
	}
	if q.Description != "" {
		where = append(where, paged.Contains("description", q.Description))
	}
	if q.Guidelines != "" {
		where = append(where, paged.Contains("guidelines", q.Guidelines))
	}
	if q.Search != "" {
		where = append(where, sq.Or{
			paged.Contains("name", q.Search),
			paged.Contains("description", q.Search),
			paged.Contains("guidelines", q.Search),
		})
	}
	for _, tag := range q.Tags {
		where = append(where, tagContained(tag))
	}
	return where
}

func tagContained(tag string) sq.Sqlizer {
	encoded, _ := json.Marshal([]string{tag})
	return sq.Expr("tags @> ?::jsonb", string(encoded))
}

func FetchProject(ctx context.Context, dbConn db.ConnOrTx, currentUser *models.User, id int) (*models.Project, error) {
	return Projects.Read(ctx, dbConn, id, projectVisibility(currentUser)...)
}

func FetchProjects(ctx context.Context, dbConn db.ConnOrTx, currentUser *models.User, q ProjectsQuery) (*paged.Page[models.Project], error) {
	where := append(q.filters(), projectVisibility(currentUser)...)
	return Projects.Page(ctx, dbConn, q.Options, where...)
}

// A project the user cannot see is not found. Owners always see their own,
// deleted or not.
func UserOwnsProject(ctx context.Context, dbConn db.ConnOrTx, user *models.User, projectID int) (bool, error) {
	project, err := FetchProject(ctx, dbConn, user, projectID)
	if err != nil {
		return false, err
	}
	return project.UserID == user.ID, nil
}

type NewProject struct {
	UserID int `json:"userId"`

	Name         string                 `json:"name"`
	Meta         string                 `json:"meta"`
	Description  string                 `json:"description"`
	Guidelines   string                 `json:"guidelines"`
	Tags         []string               `json:"tags"`
	Mode         models.SelectionMode   `json:"mode"`
	Options      []models.ProjectOption `json:"options"`
	Conditionals []string               `json:"conditionals"`
	IsPrivate    bool                   `json:"isPrivate"`
}

func (p *NewProject) Validate() error {
	if p.Name == "" {
		return apierr.BadRequest(nil, "Project name is required")
	}
	if p.Meta == "" {
		return apierr.BadRequest(nil, "Project meta is required")
	}
	if !p.Mode.IsValid() {
		return apierr.BadRequest(nil, "Project mode must be One or Many")
	}
	return nil
}

func CreateProject(ctx context.Context, dbConn db.ConnOrTx, p NewProject) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var id int
	err := pgx.BeginFunc(ctx, dbConn, func(tx pgx.Tx) error {
		var err error
		id, err = Projects.Create(ctx, tx, paged.Values{
			"user_id":      p.UserID,
			"version":      1,
			"name":         p.Name,
			"meta":         p.Meta,
			"description":  p.Description,
			"guidelines":   p.Guidelines,
			"tags":         emptyIfNil(p.Tags),
			"mode":         p.Mode,
			"options":      emptyIfNil(p.Options),
			"conditionals": emptyIfNil(p.Conditionals),
			"is_private":   p.IsPrivate,
			"is_deleted":   false,
		})
		if err != nil {
			return err
		}
		_, err = snapshotProject(ctx, tx, id)
		return err
	})
	if err != nil {
		return 0, oops.New(err, "failed to create project")
	}
	return id, nil
}

// A nil field leaves the stored value alone.
type ProjectUpdate struct {
	Name         *string                `json:"name"`
	Description  *string                `json:"description"`
	Guidelines   *string                `json:"guidelines"`
	Tags         []string               `json:"tags"`
	Mode         *models.SelectionMode  `json:"mode"`
	Options      []models.ProjectOption `json:"options"`
	Conditionals []string               `json:"conditionals"`
	IsPrivate    *bool                  `json:"isPrivate"`
	IsDeleted    *bool                  `json:"-"`

	// When set, the update fails with a conflict unless the project is still
	// at this version.
	ExpectedVersion *int `json:"version"`
}

func (u *ProjectUpdate) values() paged.Values {
	values := paged.Values{}
	paged.SetIfPresent(values, "name", u.Name)
	paged.SetIfPresent(values, "description", u.Description)
	paged.SetIfPresent(values, "guidelines", u.Guidelines)
	paged.SetIfPresent(values, "mode", u.Mode)
	paged.SetIfPresent(values, "is_private", u.IsPrivate)
	paged.SetIfPresent(values, "is_deleted", u.IsDeleted)
	if u.Tags != nil {
		values["tags"] = u.Tags
	}
	if u.Options != nil {
		values["options"] = u.Options
	}
	if u.Conditionals != nil {
		values["conditionals"] = u.Conditionals
	}
	return values
}

/*
Applies the update and records a new version snapshot. The project row stays
locked until the snapshot is written, so concurrent updates are applied one
after another and each one gets its own version number.
*/
func UpdateProject(ctx context.Context, dbConn db.ConnOrTx, id int, u ProjectUpdate) (*models.Project, error) {
	if u.Mode != nil && !u.Mode.IsValid() {
		return nil, apierr.BadRequest(nil, "Project mode must be One or Many")
	}
	if u.Name != nil && *u.Name == "" {
		return nil, apierr.BadRequest(nil, "Project name cannot be empty")
	}

	var project *models.Project
	err := pgx.BeginFunc(ctx, dbConn, func(tx pgx.Tx) error {
		lock := paged.Psql.Select("version").From(Projects.Table.Name).Where(sq.Eq{"id": id}).Suffix("FOR UPDATE")
		current, err := db.QueryOneScalarBuilt[int](ctx, tx, lock)
		if err != nil {
			if errors.Is(err, db.NotFound) {
				return apierr.NotFoundFor(Projects.Table.Entity, id)
			}
			return err
		}
		if u.ExpectedVersion != nil && *u.ExpectedVersion != current {
			return apierr.Conflict(nil, "Project is at version %d, not %d", current, *u.ExpectedVersion)
		}

		values := u.values()
		values["version"] = current + 1
		values["updated_at"] = time.Now()
		if err := Projects.Update(ctx, tx, id, values); err != nil {
			return err
		}

		project, err = snapshotProject(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, oops.New(err, "failed to update project %d", id)
	}
	return project, nil
}

func DeleteProject(ctx context.Context, dbConn db.ConnOrTx, id int) error {
	_, err := UpdateProject(ctx, dbConn, id, ProjectUpdate{IsDeleted: utils.P(true)})
	return err
}

func RestoreProject(ctx context.Context, dbConn db.ConnOrTx, id int) error {
	_, err := UpdateProject(ctx, dbConn, id, ProjectUpdate{IsDeleted: utils.P(false)})
	return err
}

// Copies the project's current state into a new version row.
func snapshotProject(ctx context.Context, tx pgx.Tx, id int) (*models.Project, error) {
	project, err := Projects.Read(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	_, err = ProjectVersions.Create(ctx, tx, paged.Values{
		"project_id":   project.ID,
		"version":      project.Version,
		"name":         project.Name,
		"meta":         project.Meta,
		"description":  project.Description,
		"guidelines":   project.Guidelines,
		"tags":         emptyIfNil(project.Tags),
		"mode":         project.Mode,
		"options":      emptyIfNil(project.Options),
		"conditionals": emptyIfNil(project.Conditionals),
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

type ProjectVersionsQuery struct {
	paged.Options

	ProjectID *int
	Version   *int
}

func (q ProjectVersionsQuery) filters() []sq.Sqlizer {
	var where []sq.Sqlizer
	if q.ProjectID != nil {
		where = append(where, sq.Eq{"project_id": *q.ProjectID})
	}
	if q.Version != nil {
		where = append(where, sq.Eq{"version": *q.Version})
	}
	return where
}

func FetchProjectVersion(ctx context.Context, dbConn db.ConnOrTx, currentUser *models.User, id int) (*models.ProjectVersion, error) {
	return ProjectVersions.Read(ctx, dbConn, id, visibleProjectIDs(currentUser))
}

func FetchProjectVersions(ctx context.Context, dbConn db.ConnOrTx, currentUser *models.User, q ProjectVersionsQuery) (*paged.Page[models.ProjectVersion], error) {
	where := append(q.filters(), visibleProjectIDs(currentUser))
	return ProjectVersions.Page(ctx, dbConn, q.Options, where...)
}

// JSONB columns are NOT NULL, and encoding a nil slice would produce null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

package tagemdata

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/clynamic/tagem/src/apierr"
	"github.com/clynamic/tagem/src/db"
	"github.com/clynamic/tagem/src/models"
	"github.com/clynamic/tagem/src/oops"
	"github.com/clynamic/tagem/src/paged"
	"github.com/jackc/pgx/v5"
)

var Contributions = paged.New[models.Contribution](paged.Table{
	Name:   "contribution",
	Entity: "contribution",
	SortKeys: paged.SortKeys{
		"id":      "id",
		"created": "created_at",
		"post":    "post_id",
		"version": "project_version",
	},
})

type ContributionsQuery struct {
	paged.Options

	ProjectID *int
	UserID    *int
	PostID    *int
}

func (q ContributionsQuery) filters() []sq.Sqlizer {
	var where []sq.Sqlizer
	if q.ProjectID != nil {
		where = append(where, sq.Eq{"project_id": *q.ProjectID})
	}
	if q.UserID != nil {
		where = append(where, sq.Eq{"user_id": *q.UserID})
	}
	if q.PostID != nil {
		where = append(where, sq.Eq{"post_id": *q.PostID})
	}
	return where
}

func FetchContribution(ctx context.Context, dbConn db.ConnOrTx, currentUser *models.User, id int) (*models.Contribution, error) {
	return Contributions.Read(ctx, dbConn, id, visibleProjectIDs(currentUser))
}

func FetchContributions(ctx context.Context, dbConn db.ConnOrTx, currentUser *models.User, q ContributionsQuery) (*paged.Page[models.Contribution], error) {
	where := append(q.filters(), visibleProjectIDs(currentUser))
	return Contributions.Page(ctx, dbConn, q.Options, where...)
}

type NewContribution struct {
	ProjectID int `json:"projectId"`
	PostID    int `json:"postId"`
}

/*
Records that contributor edited a post for a project. The project's version at
this moment is stored with it, so later edits to the project do not change
what the contribution was made against.
*/
func CreateContribution(ctx context.Context, dbConn db.ConnOrTx, contributor *models.User, c NewContribution) (int, error) {
	if c.PostID <= 0 {
		return 0, apierr.BadRequest(nil, "Invalid post id: %d", c.PostID)
	}

	var id int
	err := pgx.BeginFunc(ctx, dbConn, func(tx pgx.Tx) error {
		project, err := FetchProject(ctx, tx, contributor, c.ProjectID)
		if err != nil {
			return err
		}

		id, err = Contributions.Create(ctx, tx, paged.Values{
			"project_id":      project.ID,
			"project_version": project.Version,
			"user_id":         contributor.ID,
			"post_id":         c.PostID,
		})
		return err
	})
	if err != nil {
		return 0, oops.New(err, "failed to create contribution")
	}
	return id, nil
}

package tagemdata

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/clynamic/tagem/src/apierr"
	"github.com/clynamic/tagem/src/db"
	"github.com/clynamic/tagem/src/models"
	"github.com/clynamic/tagem/src/oops"
	"github.com/clynamic/tagem/src/paged"
	"github.com/clynamic/tagem/src/visibility"
	"github.com/jackc/pgx/v5"
)

var Comments = paged.New[models.Comment](paged.Table{
	Name:   "comment",
	Entity: "comment",
	SortKeys: paged.SortKeys{
		"id":      "id",
		"created": "created_at",
		"updated": "updated_at",
		"user":    "user_id",
		"project": "project_id",
	},
})

// Hidden comments stay visible to their author and to whoever hid them.
func commentVisibility(currentUser *models.User) sq.Sqlizer {
	return visibility.Predicate(visibility.Resolve(currentUser), sq.Eq{"hidden_by": nil}, "user_id", "hidden_by")
}

type CommentsQuery struct {
	paged.Options

	UserID    *int
	ProjectID *int
}

func (q CommentsQuery) filters() []sq.Sqlizer {
	var where []sq.Sqlizer
	if q.UserID != nil {
		where = append(where, sq.Eq{"user_id": *q.UserID})
	}
	if q.ProjectID != nil {
		where = append(where, sq.Eq{"project_id": *q.ProjectID})
	}
	return where
}

func FetchComment(ctx context.Context, dbConn db.ConnOrTx, currentUser *models.User, id int) (*models.Comment, error) {
	return Comments.Read(ctx, dbConn, id, commentVisibility(currentUser), visibleProjectIDs(currentUser))
}

func FetchComments(ctx context.Context, dbConn db.ConnOrTx, currentUser *models.User, q CommentsQuery) (*paged.Page[models.Comment], error) {
	where := append(q.filters(), commentVisibility(currentUser), visibleProjectIDs(currentUser))
	return Comments.Page(ctx, dbConn, q.Options, where...)
}

type NewComment struct {
	ProjectID int    `json:"projectId"`
	Content   string `json:"content"`
}

// Posts a comment as author on a project the author can see.
func CreateComment(ctx context.Context, dbConn db.ConnOrTx, author *models.User, c NewComment) (int, error) {
	if strings.TrimSpace(c.Content) == "" {
		return 0, apierr.BadRequest(nil, "Comment content cannot be empty")
	}

	var id int
	err := pgx.BeginFunc(ctx, dbConn, func(tx pgx.Tx) error {
		if _, err := FetchProject(ctx, tx, author, c.ProjectID); err != nil {
			return err
		}

		var err error
		id, err = Comments.Create(ctx, tx, paged.Values{
			"project_id": c.ProjectID,
			"user_id":    author.ID,
			"content":    c.Content,
		})
		return err
	})
	if err != nil {
		return 0, oops.New(err, "failed to create comment")
	}
	return id, nil
}

// Replaces the content. Edits made shortly after posting leave no trace.
func EditComment(ctx context.Context, dbConn db.ConnOrTx, id int, content string, now time.Time) error {
	if strings.TrimSpace(content) == "" {
		return apierr.BadRequest(nil, "Comment content cannot be empty")
	}

	return pgx.BeginFunc(ctx, dbConn, func(tx pgx.Tx) error {
		comment, err := Comments.Read(ctx, tx, id)
		if err != nil {
			return err
		}

		values := paged.Values{"content": content}
		if comment.EditIsVisible(now) {
			values["updated_at"] = now
		}
		return Comments.Update(ctx, tx, id, values)
	})
}

func HideComment(ctx context.Context, dbConn db.ConnOrTx, id int, hiddenBy int) error {
	return Comments.Update(ctx, dbConn, id, paged.Values{"hidden_by": hiddenBy})
}

func RestoreComment(ctx context.Context, dbConn db.ConnOrTx, id int) error {
	return Comments.Update(ctx, dbConn, id, paged.Values{"hidden_by": nil})
}

// Authors may edit their comment unless someone else hid it.
func CanEditComment(comment *models.Comment, userID int) bool {
	if comment.UserID != userID {
		return false
	}
	return comment.HiddenBy == nil || *comment.HiddenBy == userID
}

// Authors may hide their own comment, and only whoever hid a comment may
// restore it.
func CanModerateComment(comment *models.Comment, userID int) bool {
	if comment.HiddenBy == nil {
		return comment.UserID == userID
	}
	return *comment.HiddenBy == userID
}

func UserCanEditComment(ctx context.Context, dbConn db.ConnOrTx, user *models.User, commentID int) (bool, error) {
	comment, err := FetchComment(ctx, dbConn, user, commentID)
	if err != nil {
		return false, err
	}
	return CanEditComment(comment, user.ID), nil
}

func UserCanModerateComment(ctx context.Context, dbConn db.ConnOrTx, user *models.User, commentID int) (bool, error) {
	comment, err := FetchComment(ctx, dbConn, user, commentID)
	if err != nil {
		return false, err
	}
	return CanModerateComment(comment, user.ID), nil
}

package tagemdata

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/clynamic/tagem/src/db"
	"github.com/clynamic/tagem/src/models"
	"github.com/clynamic/tagem/src/paged"
)

var Interactions = paged.New[models.Interaction](paged.Table{
	Name:   "interaction",
	Entity: "interaction",
	SortKeys: paged.SortKeys{
		"id":       "id",
		"created":  "created_at",
		"response": "response",
	},
})

type InteractionsQuery struct {
	paged.Options

	Endpoint string
	Origin   string
	UserID   *int
	Response *int
}

func (q InteractionsQuery) filters() []sq.Sqlizer {
	var where []sq.Sqlizer
	if q.Endpoint != "" {
		where = append(where, sq.Eq{"endpoint": q.Endpoint})
	}
	if q.Origin != "" {
		where = append(where, sq.Eq{"origin": q.Origin})
	}
	if q.UserID != nil {
		where = append(where, sq.Eq{"user_id": *q.UserID})
	}
	if q.Response != nil {
		where = append(where, sq.Eq{"response": *q.Response})
	}
	return where
}

func FetchInteraction(ctx context.Context, dbConn db.ConnOrTx, id int) (*models.Interaction, error) {
	return Interactions.Read(ctx, dbConn, id)
}

func FetchInteractions(ctx context.Context, dbConn db.ConnOrTx, q InteractionsQuery) (*paged.Page[models.Interaction], error) {
	return Interactions.Page(ctx, dbConn, q.Options, q.filters()...)
}

type NewInteraction struct {
	Endpoint string
	Origin   string
	UserID   *int
	Response int
}

func LogInteraction(ctx context.Context, dbConn db.ConnOrTx, i NewInteraction) (int, error) {
	return Interactions.Create(ctx, dbConn, paged.Values{
		"endpoint": i.Endpoint,
		"origin":   i.Origin,
		"user_id":  i.UserID,
		"response": i.Response,
	})
}

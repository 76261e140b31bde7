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

var Users = paged.New[models.User](paged.Table{
	Name:   "users",
	Entity: "user",
	SortKeys: paged.SortKeys{
		"id":      "id",
		"name":    "name",
		"rank":    "rank",
		"strikes": "strikes",
		"created": "created_at",
	},
})

type UsersQuery struct {
	paged.Options

	Name   string // substring
	Rank   *models.Rank
	Banned *bool
}

func (q UsersQuery) filters() []sq.Sqlizer {
	var where []sq.Sqlizer
	if q.Name != "" {
		where = append(where, paged.Contains("name", q.Name))
	}
	if q.Rank != nil {
		where = append(where, sq.Eq{"rank": *q.Rank})
	}
	if q.Banned != nil {
		where = append(where, sq.Eq{"is_banned": *q.Banned})
	}
	return where
}

func FetchUser(ctx context.Context, dbConn db.ConnOrTx, id int) (*models.User, error) {
	return Users.Read(ctx, dbConn, id)
}

// Returns nil if the user does not exist.
func FetchUserOrNil(ctx context.Context, dbConn db.ConnOrTx, id int) (*models.User, error) {
	return Users.ReadOrNil(ctx, dbConn, id)
}

func FetchUsers(ctx context.Context, dbConn db.ConnOrTx, q UsersQuery) (*paged.Page[models.User], error) {
	return Users.Page(ctx, dbConn, q.Options, q.filters()...)
}

type NewUser struct {
	ID   int
	Name string
	Rank models.Rank
}

func CreateUser(ctx context.Context, dbConn db.ConnOrTx, u NewUser) (int, error) {
	return Users.Create(ctx, dbConn, paged.Values{
		"id":   u.ID,
		"name": u.Name,
		"rank": u.Rank,
	})
}

type UserUpdate struct {
	Name     *string      `json:"-"`
	Rank     *models.Rank `json:"rank"`
	Strikes  *int         `json:"strikes"`
	IsBanned *bool        `json:"isBanned"`
}

func UpdateUser(ctx context.Context, dbConn db.ConnOrTx, id int, u UserUpdate) error {
	if u.Rank != nil && !u.Rank.IsValid() {
		return apierr.BadRequest(nil, "Unknown rank %q", *u.Rank)
	}
	if u.Strikes != nil && *u.Strikes < 0 {
		return apierr.BadRequest(nil, "Strikes cannot be negative")
	}

	values := paged.Values{}
	paged.SetIfPresent(values, "name", u.Name)
	paged.SetIfPresent(values, "rank", u.Rank)
	paged.SetIfPresent(values, "strikes", u.Strikes)
	paged.SetIfPresent(values, "is_banned", u.IsBanned)
	return Users.Update(ctx, dbConn, id, values)
}

func SetUserBanned(ctx context.Context, dbConn db.ConnOrTx, id int, banned bool) error {
	return UpdateUser(ctx, dbConn, id, UserUpdate{IsBanned: &banned})
}

/*
Brings the local copy of an identity provider account up to date, creating it
on first login. New accounts need enough contributions to earn a rank. Known
accounts keep their rank unless their contributions now earn a higher one, so
staff are never demoted by logging in.
*/
func RegisterOrRefreshUser(ctx context.Context, dbConn db.ConnOrTx, id int, name string, contributions int) (*models.User, error) {
	earned, eligible := models.RankForContributions(contributions)

	var user *models.User
	err := pgx.BeginFunc(ctx, dbConn, func(tx pgx.Tx) error {
		existing, err := FetchUserOrNil(ctx, tx, id)
		if err != nil {
			return err
		}

		if existing == nil {
			if !eligible {
				return apierr.Forbidden("Not enough contributions to register")
			}
			_, err := CreateUser(ctx, tx, NewUser{ID: id, Name: name, Rank: earned})
			if err != nil {
				return err
			}
		} else {
			update := UserUpdate{Name: &name}
			if eligible && earned.Level() > existing.Rank.Level() {
				update.Rank = &earned
			}
			if err := UpdateUser(ctx, tx, id, update); err != nil {
				return err
			}
		}

		user, err = FetchUser(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, oops.New(err, "failed to register user %d", id)
	}
	return user, nil
}

/*
Package paged provides the create/read/update/delete/page operations that
every resource shares. A resource describes its table once, and the Service
builds every query from that description with squirrel.

Every operation runs in its own transaction. When the connection passed in is
already a transaction, pgx nests it as a savepoint, so resources can combine
operations atomically by passing a transaction down.
*/
package paged

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/clynamic/tagem/src/apierr"
	"github.com/clynamic/tagem/src/db"
	"github.com/clynamic/tagem/src/oops"
	"github.com/jackc/pgx/v5"
)

// Builds Postgres-flavored SQL from squirrel builders.
var Psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Table struct {
	Name string
	// Used in error messages, like "No project found for id: 3".
	Entity   string
	IDColumn string
	SortKeys SortKeys
}

// Column values for an insert or update, keyed by column name. A nil value
// writes NULL.
type Values map[string]any

// Adds the value under column if it is present.
func SetIfPresent[T any](values Values, column string, v *T) {
	if v != nil {
		values[column] = *v
	}
}

type Service[T any] struct {
	Table   Table
	columns []string
}

func New[T any](table Table) *Service[T] {
	if table.IDColumn == "" {
		table.IDColumn = "id"
	}
	var zero T
	return &Service[T]{
		Table:   table,
		columns: db.ColumnNames(reflect.TypeOf(zero)),
	}
}

// A select of every model column, for building custom queries.
func (s *Service[T]) Select() sq.SelectBuilder {
	return Psql.Select(s.columns...).From(s.Table.Name)
}

func (s *Service[T]) byID(id int) sq.Eq {
	return sq.Eq{s.Table.IDColumn: id}
}

func (s *Service[T]) Create(ctx context.Context, conn db.ConnOrTx, values Values) (int, error) {
	q := Psql.Insert(s.Table.Name).SetMap(values).Suffix("RETURNING " + s.Table.IDColumn)

	var id int
	err := pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		var err error
		id, err = db.QueryOneScalarBuilt[int](ctx, tx, q)
		return err
	})
	if err != nil {
		return 0, oops.New(err, "failed to create %s", s.Table.Entity)
	}
	return id, nil
}

// Returns nil without an error when no matching row exists. where narrows the
// lookup, usually to rows visible to the caller.
func (s *Service[T]) ReadOrNil(ctx context.Context, conn db.ConnOrTx, id int, where ...sq.Sqlizer) (*T, error) {
	q := applyWhere(s.Select().Where(s.byID(id)), where)

	var result *T
	err := pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		var err error
		result, err = db.QueryOneBuilt[T](ctx, tx, q)
		return err
	})
	if errors.Is(err, db.NotFound) {
		return nil, nil
	} else if err != nil {
		return nil, oops.New(err, "failed to read %s %d", s.Table.Entity, id)
	}
	return result, nil
}

// Like ReadOrNil, but a missing row is a NotFound error.
func (s *Service[T]) Read(ctx context.Context, conn db.ConnOrTx, id int, where ...sq.Sqlizer) (*T, error) {
	result, err := s.ReadOrNil(ctx, conn, id, where...)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, apierr.NotFoundFor(s.Table.Entity, id)
	}
	return result, nil
}

func (s *Service[T]) Exists(ctx context.Context, conn db.ConnOrTx, id int, where ...sq.Sqlizer) (bool, error) {
	q := applyWhere(Psql.Select("1").From(s.Table.Name).Where(s.byID(id)), where)
	_, err := db.QueryOneScalarBuilt[int](ctx, conn, q)
	if errors.Is(err, db.NotFound) {
		return false, nil
	} else if err != nil {
		return false, oops.New(err, "failed to check for %s %d", s.Table.Entity, id)
	}
	return true, nil
}

func (s *Service[T]) Page(ctx context.Context, conn db.ConnOrTx, opts Options, where ...sq.Sqlizer) (*Page[T], error) {
	itemsQuery, err := s.pageQuery(opts, where)
	if err != nil {
		return nil, err
	}
	countQuery := applyWhere(Psql.Select("COUNT(*)").From(s.Table.Name), where)

	var items []*T
	var total int
	err = pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		var err error
		items, err = db.QueryBuilt[T](ctx, tx, itemsQuery)
		if err != nil {
			return err
		}
		total, err = db.QueryOneScalarBuilt[int](ctx, tx, countQuery)
		return err
	})
	if err != nil {
		return nil, oops.New(err, "failed to page %s", s.Table.Entity)
	}

	if items == nil {
		items = []*T{}
	}
	page, size := opts.Normalized()
	if opts.Unlimited {
		size = 0
	}
	return &Page[T]{
		Items: items,
		Total: total,
		Page:  page,
		Pages: NumPages(total, size),
	}, nil
}

func (s *Service[T]) pageQuery(opts Options, where []sq.Sqlizer) (sq.SelectBuilder, error) {
	column := s.Table.IDColumn
	if opts.Sort != "" {
		var err error
		column, err = s.Table.SortKeys.resolve(opts.Sort)
		if err != nil {
			return sq.SelectBuilder{}, err
		}
	}

	order := opts.Order
	if order == "" {
		order = Descending
	}

	orderBy := []string{fmt.Sprintf("%s %s", column, order.SQL())}
	if column != s.Table.IDColumn {
		// ties in the sort column still come out in a stable order
		orderBy = append(orderBy, fmt.Sprintf("%s %s", s.Table.IDColumn, order.SQL()))
	}

	q := applyWhere(s.Select(), where).OrderBy(orderBy...)
	if opts.IsLimited() {
		_, size := opts.Normalized()
		q = q.Limit(uint64(size)).Offset(uint64(opts.Offset()))
	}
	return q, nil
}

func (s *Service[T]) Update(ctx context.Context, conn db.ConnOrTx, id int, values Values, where ...sq.Sqlizer) error {
	if len(values) == 0 {
		exists, err := s.Exists(ctx, conn, id, where...)
		if err != nil {
			return err
		}
		if !exists {
			return apierr.NotFoundFor(s.Table.Entity, id)
		}
		return nil
	}

	q := Psql.Update(s.Table.Name).SetMap(values).Where(s.byID(id))
	for _, w := range where {
		if w != nil {
			q = q.Where(w)
		}
	}

	var affected int64
	err := pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		tag, err := db.ExecBuilt(ctx, tx, q)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return oops.New(err, "failed to update %s %d", s.Table.Entity, id)
	}
	if affected == 0 {
		return apierr.NotFoundFor(s.Table.Entity, id)
	}
	return nil
}

func (s *Service[T]) Delete(ctx context.Context, conn db.ConnOrTx, id int) error {
	q := Psql.Delete(s.Table.Name).Where(s.byID(id))

	var affected int64
	err := pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		tag, err := db.ExecBuilt(ctx, tx, q)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return oops.New(err, "failed to delete %s %d", s.Table.Entity, id)
	}
	if affected == 0 {
		return apierr.NotFoundFor(s.Table.Entity, id)
	}
	return nil
}

func applyWhere(q sq.SelectBuilder, where []sq.Sqlizer) sq.SelectBuilder {
	for _, w := range where {
		if w != nil {
			q = q.Where(w)
		}
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Case-sensitive substring match on column.
func Contains(column, text string) sq.Sqlizer {
	return sq.Like{column: "%" + likeEscaper.Replace(text) + "%"}
}

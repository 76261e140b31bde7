package db

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/clynamic/tagem/src/oops"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

/*
A general error to be used when no results are found. This is the error returned
by QueryOne, and can generally be used by other database helpers that fetch a single
result but find nothing.
*/
var NotFound = errors.New("not found")

// This interface should match both a direct pgx connection or a pgx transaction.
type ConnOrTx interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// Both raw database connections and transactions in pgx can begin/commit
	// transactions. For database connections it does the obvious thing; for
	// transactions it creates a "pseudo-nested transaction" but conceptually
	// works the same. See the documentation of pgx.Tx.Begin.
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Anything that can render itself as SQL plus arguments. Squirrel builders
// satisfy this.
type Sqlizer interface {
	ToSql() (string, []any, error)
}

/*
Performs a SQL query and returns a slice of all the result rows. The query is just plain SQL, but make sure to read the package documentation for details. You must explicitly provide the type argument - this is how it knows what Go type to map the results to, and it cannot be inferred.

Struct types are filled by matching result columns to `db` tags. Any other type
is treated as a scalar, and the query must return exactly one column.
*/
func Query[T any](
	ctx context.Context,
	conn ConnOrTx,
	query string,
	args ...any,
) ([]*T, error) {
	compiled := compileQuery[T](query)

	rows, err := conn.Query(ctx, compiled, args...)
	if err != nil {
		return nil, err
	}

	result, err := pgx.CollectRows(rows, rowToAddr[T]())
	if err != nil {
		return nil, oops.New(err, "failed to read query results")
	}
	return result, nil
}

/*
Identical to Query, but returns only the first result row. If there are no
rows in the result set, returns NotFound.
*/
func QueryOne[T any](
	ctx context.Context,
	conn ConnOrTx,
	query string,
	args ...any,
) (*T, error) {
	compiled := compileQuery[T](query)

	rows, err := conn.Query(ctx, compiled, args...)
	if err != nil {
		return nil, err
	}

	result, err := pgx.CollectOneRow(rows, rowToAddr[T]())
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFound
	} else if err != nil {
		return nil, oops.New(err, "failed to read query result")
	}
	return result, nil
}

/*
Identical to Query, but returns concrete values instead of pointers. More convenient
for primitive types.
*/
func QueryScalar[T any](
	ctx context.Context,
	conn ConnOrTx,
	query string,
	args ...any,
) ([]T, error) {
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	result, err := pgx.CollectRows(rows, pgx.RowTo[T])
	if err != nil {
		return nil, oops.New(err, "failed to read query results")
	}
	return result, nil
}

/*
Identical to QueryScalar, but returns only the first result value. If there are
no rows in the result set, returns NotFound.
*/
func QueryOneScalar[T any](
	ctx context.Context,
	conn ConnOrTx,
	query string,
	args ...any,
) (T, error) {
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		var zero T
		return zero, err
	}

	result, err := pgx.CollectOneRow(rows, pgx.RowTo[T])
	if errors.Is(err, pgx.ErrNoRows) {
		var zero T
		return zero, NotFound
	} else if err != nil {
		var zero T
		return zero, oops.New(err, "failed to read query result")
	}
	return result, nil
}

// Query, with the SQL produced by a builder.
func QueryBuilt[T any](ctx context.Context, conn ConnOrTx, q Sqlizer) ([]*T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, oops.New(err, "failed to build query")
	}
	return Query[T](ctx, conn, sql, args...)
}

// QueryOne, with the SQL produced by a builder.
func QueryOneBuilt[T any](ctx context.Context, conn ConnOrTx, q Sqlizer) (*T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, oops.New(err, "failed to build query")
	}
	return QueryOne[T](ctx, conn, sql, args...)
}

// QueryOneScalar, with the SQL produced by a builder.
func QueryOneScalarBuilt[T any](ctx context.Context, conn ConnOrTx, q Sqlizer) (T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		var zero T
		return zero, oops.New(err, "failed to build query")
	}
	return QueryOneScalar[T](ctx, conn, sql, args...)
}

// Exec, with the SQL produced by a builder.
func ExecBuilt(ctx context.Context, conn ConnOrTx, q Sqlizer) (pgconn.CommandTag, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, oops.New(err, "failed to build query")
	}
	return conn.Exec(ctx, sql, args...)
}

func rowToAddr[T any]() pgx.RowToFunc[*T] {
	var zero T
	if reflect.TypeOf(zero).Kind() == reflect.Struct {
		return pgx.RowToAddrOfStructByName[T]
	}
	return pgx.RowToAddrOf[T]
}

var reColumnsPlaceholder = regexp.MustCompile(`\$columns({(.*?)})?`)

func compileQuery[T any](query string) string {
	columnsMatch := reColumnsPlaceholder.FindStringSubmatch(query)
	if columnsMatch == nil {
		return query
	}

	var zero T
	destType := reflect.TypeOf(zero)
	if destType.Kind() != reflect.Struct {
		panic("$columns can only be used when querying into a struct")
	}

	prefix := columnsMatch[2]
	columns := ColumnNames(destType)
	if prefix != "" {
		prefixed := make([]string, len(columns))
		for i, name := range columns {
			prefixed[i] = prefix + "." + name
		}
		columns = prefixed
	}

	return reColumnsPlaceholder.ReplaceAllLiteralString(query, strings.Join(columns, ", "))
}

var columnNamesCache sync.Map // reflect.Type -> []string

/*
Returns the column names for a struct type, read from its `db` tags in field
order. Embedded structs without a tag contribute their own tagged fields.
*/
func ColumnNames(destType reflect.Type) []string {
	if cached, ok := columnNamesCache.Load(destType); ok {
		return cached.([]string)
	}

	names := getColumnNames(destType)
	columnNamesCache.Store(destType, names)
	return names
}

func getColumnNames(destType reflect.Type) []string {
	if destType.Kind() == reflect.Ptr {
		destType = destType.Elem()
	}
	if destType.Kind() != reflect.Struct {
		panic(fmt.Errorf("can only get column names from a struct, got type '%v'", destType))
	}

	var names []string
	for i := 0; i < destType.NumField(); i++ {
		field := destType.Field(i)
		if !field.IsExported() {
			continue
		}

		columnName := field.Tag.Get("db")
		if columnName == "-" {
			continue
		}
		if field.Anonymous && columnName == "" {
			names = append(names, getColumnNames(field.Type)...)
			continue
		}
		if columnName != "" {
			names = append(names, columnName)
		}
	}
	return names
}

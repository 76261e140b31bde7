/*
This package contains lowish-level APIs for querying the Postgres database. It maps query results onto Go types while still letting you write arbitrary SQL, or build it with squirrel.

The primary functions are Query, QueryOne and their Built variants.

Query syntax

Arguments are written as $1, $2, etc. and are passed straight through to pgx, which handles escaping and type mapping.

	names, err := db.Query[string](ctx, conn,
		`
		SELECT name
		FROM users
		WHERE
			id = ANY($1)
			AND is_banned = $2
		`,
		[]int{1, 2, 3},
		false,
	)

(Use Postgres arrays instead of IN when passing a slice.)

To fill a struct, tag its fields with `db:"column_name"` and select the special $columns placeholder:

	type User struct {
		ID   int         `db:"id"`
		Name string      `db:"name"`
		Rank models.Rank `db:"rank"`
	}
	users, err := db.Query[User](ctx, conn, `SELECT $columns FROM users`)
	// Resulting query:
	// SELECT id, name, rank FROM users

When a JOIN makes column names ambiguous, give $columns a table prefix:

	comments, err := db.Query[models.Comment](ctx, conn, `
		SELECT $columns{c}
		FROM
			comments AS c
			JOIN projects AS p ON p.id = c.project_id
		WHERE
			NOT p.is_deleted
	`)
	// Resulting query:
	// SELECT c.id, c.project_id, ... FROM ...

Built queries

The Built variants take any squirrel Sqlizer, such as a builder from paged.Psql. Columns still come from the struct tags:

	columns := db.ColumnNames(reflect.TypeOf(models.User{}))
	q := paged.Psql.Select(columns...).From("users").Where(sq.Eq{"rank": models.RankAdmin})
	admins, err := db.QueryBuilt[models.User](ctx, conn, q)
*/
package db

package migrations

import (
	"context"
	"time"

	"github.com/clynamic/tagem/src/migration/types"
	"github.com/jackc/pgx/v5"
)

func init() {
	registerMigration(CreateInitialSchema{})
}

type CreateInitialSchema struct{}

func (m CreateInitialSchema) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))
}

func (m CreateInitialSchema) Name() string {
	return "CreateInitialSchema"
}

func (m CreateInitialSchema) Description() string {
	return "Creates users, projects with their versions, comments, contributions and interactions"
}

func (m CreateInitialSchema) Up(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		CREATE TABLE users (
			id INT PRIMARY KEY,
			name VARCHAR(32) NOT NULL,
			rank TEXT NOT NULL CHECK (rank IN ('Member', 'Privileged', 'Janitor', 'Admin')),
			strikes INT NOT NULL DEFAULT 0 CHECK (strikes >= 0),
			is_banned BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);

		CREATE TABLE project (
			id INT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users (id),
			version INT NOT NULL,
			name VARCHAR(64) NOT NULL,
			meta VARCHAR(64) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			guidelines TEXT NOT NULL DEFAULT '',
			tags JSONB NOT NULL DEFAULT '[]',
			mode TEXT NOT NULL CHECK (mode IN ('One', 'Many')),
			options JSONB NOT NULL DEFAULT '[]',
			conditionals JSONB NOT NULL DEFAULT '[]',
			is_private BOOLEAN NOT NULL DEFAULT FALSE,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE,
			UNIQUE (id, meta)
		);

		CREATE TABLE project_version (
			id INT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			project_id INT NOT NULL REFERENCES project (id) ON DELETE CASCADE,
			version INT NOT NULL,
			name VARCHAR(64) NOT NULL,
			meta VARCHAR(64) NOT NULL,
			description TEXT NOT NULL,
			guidelines TEXT NOT NULL,
			tags JSONB NOT NULL,
			mode TEXT NOT NULL,
			options JSONB NOT NULL,
			conditionals JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			UNIQUE (project_id, version)
		);

		CREATE TABLE comment (
			id INT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			project_id INT NOT NULL REFERENCES project (id) ON DELETE CASCADE,
			user_id INT NOT NULL REFERENCES users (id),
			content TEXT NOT NULL,
			hidden_by INT REFERENCES users (id),
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE
		);

		CREATE TABLE contribution (
			id INT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			project_id INT NOT NULL REFERENCES project (id) ON DELETE CASCADE,
			project_version INT NOT NULL,
			user_id INT NOT NULL REFERENCES users (id),
			post_id INT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);

		CREATE TABLE interaction (
			id INT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			endpoint TEXT NOT NULL,
			origin TEXT NOT NULL,
			user_id INT,
			response INT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);
	`)
	return err
}

func (m CreateInitialSchema) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		DROP TABLE interaction;
		DROP TABLE contribution;
		DROP TABLE comment;
		DROP TABLE project_version;
		DROP TABLE project;
		DROP TABLE users;
	`)
	return err
}

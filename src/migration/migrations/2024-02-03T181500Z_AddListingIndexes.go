package migrations

import (
	"context"
	"time"

	"github.com/clynamic/tagem/src/migration/types"
	"github.com/jackc/pgx/v5"
)

func init() {
	registerMigration(AddListingIndexes{})
}

type AddListingIndexes struct{}

func (m AddListingIndexes) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2024, 2, 3, 18, 15, 0, 0, time.UTC))
}

func (m AddListingIndexes) Name() string {
	return "AddListingIndexes"
}

func (m AddListingIndexes) Description() string {
	return "Index the columns that listings filter on"
}

func (m AddListingIndexes) Up(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		CREATE INDEX project_user_id ON project (user_id);
		CREATE INDEX project_tags ON project USING GIN (tags jsonb_path_ops);
		CREATE INDEX comment_project_id ON comment (project_id);
		CREATE INDEX contribution_project_id ON contribution (project_id);
		CREATE INDEX contribution_user_id ON contribution (user_id);
		CREATE INDEX interaction_created_at ON interaction (created_at);
	`)
	return err
}

func (m AddListingIndexes) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		DROP INDEX project_user_id;
		DROP INDEX project_tags;
		DROP INDEX comment_project_id;
		DROP INDEX contribution_project_id;
		DROP INDEX contribution_user_id;
		DROP INDEX interaction_created_at;
	`)
	return err
}

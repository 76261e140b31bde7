package migration

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clynamic/tagem/src/db"
	"github.com/clynamic/tagem/src/logging"
	"github.com/clynamic/tagem/src/migration/migrations"
	"github.com/clynamic/tagem/src/migration/types"
	"github.com/clynamic/tagem/src/oops"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
)

const versionTable = "tagem_migration"

// Adds the migration commands to the root command.
func AddCommands(root *cobra.Command) {
	var listMigrations bool
	migrateCommand := &cobra.Command{
		Use:   "migrate [target migration id]",
		Short: "Run database migrations",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conn := db.NewConn(ctx)
			defer conn.Close(ctx)

			if listMigrations {
				ListMigrations(ctx, conn)
				return
			}

			targetVersion := types.MigrationVersion{}
			if len(args) > 0 {
				var err error
				targetVersion, err = types.ParseMigrationVersion(args[0])
				if err != nil {
					fmt.Printf("ERROR: bad version string: %v\n", err)
					os.Exit(1)
				}
			}
			if err := Migrate(ctx, conn, targetVersion); err != nil {
				logging.Fatal().Err(err).Msg("migration failed")
			}
		},
	}
	migrateCommand.Flags().BoolVar(&listMigrations, "list", false, "List available migrations")

	makeMigrationCommand := &cobra.Command{
		Use:   "makemigration <name> <description>...",
		Short: "Create a new database migration file",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 2 {
				fmt.Printf("You must provide a name and a description.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			name := args[0]
			description := strings.Join(args[1:], " ")

			path, err := MakeMigration(filepath.Join("src", "migration", "migrations"), name, description, time.Now())
			if err != nil {
				logging.Fatal().Err(err).Msg("failed to make migration")
			}
			fmt.Println("Successfully created migration file:")
			fmt.Println(path)
		},
	}

	root.AddCommand(migrateCommand)
	root.AddCommand(makeMigrationCommand)
	root.AddCommand(seedCommand())
}

func LatestVersion() types.MigrationVersion {
	sorted := migrations.Sorted()
	if len(sorted) == 0 {
		return types.MigrationVersion{}
	}
	return sorted[len(sorted)-1].Version()
}

func getCurrentVersion(ctx context.Context, conn db.ConnOrTx) (types.MigrationVersion, error) {
	currentVersion, err := db.QueryOneScalar[time.Time](ctx, conn, "SELECT version FROM "+versionTable)
	if err != nil {
		return types.MigrationVersion{}, err
	}
	return types.MigrationVersion(currentVersion.UTC()), nil
}

func ListMigrations(ctx context.Context, conn db.ConnOrTx) {
	currentVersion, _ := getCurrentVersion(ctx, conn)
	for _, migration := range migrations.Sorted() {
		indicator := "  "
		if migration.Version().Equal(currentVersion) {
			indicator = "✔ "
		}
		fmt.Printf("%s%v (%s: %s)\n", indicator, migration.Version(), migration.Name(), migration.Description())
	}
}

func ensureVersionTable(ctx context.Context, conn db.ConnOrTx) error {
	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+versionTable+` (
			version TIMESTAMP WITH TIME ZONE
		)
	`)
	if err != nil {
		return oops.New(err, "failed to create migration table")
	}

	numRows, err := db.QueryOneScalar[int](ctx, conn, "SELECT COUNT(*) FROM "+versionTable)
	if err != nil {
		return oops.New(err, "failed to count migration rows")
	}
	if numRows < 1 {
		_, err := conn.Exec(ctx, "INSERT INTO "+versionTable+" (version) VALUES ($1)", time.Time{})
		if err != nil {
			return oops.New(err, "failed to insert initial migration row")
		}
	}
	return nil
}

/*
Migrate rolls the database forward or back to targetVersion, one migration per
transaction. A zero targetVersion means the latest migration. Running it when
the database is already at the target does nothing.
*/
func Migrate(ctx context.Context, conn db.ConnOrTx, targetVersion types.MigrationVersion) error {
	if err := ensureVersionTable(ctx, conn); err != nil {
		return err
	}

	currentVersion, err := getCurrentVersion(ctx, conn)
	if err != nil {
		return oops.New(err, "failed to get current version")
	}
	if currentVersion.IsZero() {
		logging.Info().Msg("Running database migrations for the first time")
	} else {
		logging.Debug().Stringer("version", currentVersion).Msg("Current database version")
	}

	allMigrations := migrations.Sorted()
	if len(allMigrations) == 0 {
		return oops.New(nil, "no migrations are registered")
	}
	if targetVersion.IsZero() {
		targetVersion = allMigrations[len(allMigrations)-1].Version()
	}

	currentIndex := -1
	targetIndex := -1
	for i, migration := range allMigrations {
		if currentVersion.Equal(migration.Version()) {
			currentIndex = i
		}
		if targetVersion.Equal(migration.Version()) {
			targetIndex = i
		}
	}

	if targetIndex < 0 {
		return oops.New(nil, "could not find migration with version %v", targetVersion)
	}
	if currentIndex < 0 && !currentVersion.IsZero() {
		return oops.New(nil, "database is at unknown version %v", currentVersion)
	}

	if currentIndex < targetIndex {
		// roll forward
		for i := currentIndex + 1; i <= targetIndex; i++ {
			migration := allMigrations[i]
			logging.Info().Stringer("version", migration.Version()).Str("name", migration.Name()).Msg("Applying migration")

			err := pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
				if err := migration.Up(ctx, tx); err != nil {
					return oops.New(err, "migration %v (%s) failed", migration.Version(), migration.Name())
				}
				return setVersion(ctx, tx, migration.Version())
			})
			if err != nil {
				return err
			}
		}
	} else if currentIndex > targetIndex {
		// roll back
		for i := currentIndex; i > targetIndex; i-- {
			migration := allMigrations[i]
			previousVersion := types.MigrationVersion{}
			if i > 0 {
				previousVersion = allMigrations[i-1].Version()
			}
			logging.Info().Stringer("version", migration.Version()).Str("name", migration.Name()).Msg("Rolling back migration")

			err := pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
				if err := migration.Down(ctx, tx); err != nil {
					return oops.New(err, "rollback of %v (%s) failed", migration.Version(), migration.Name())
				}
				return setVersion(ctx, tx, previousVersion)
			})
			if err != nil {
				return err
			}
		}
	} else {
		logging.Debug().Msg("Already migrated; nothing to do")
	}

	return nil
}

func setVersion(ctx context.Context, tx pgx.Tx, version types.MigrationVersion) error {
	_, err := tx.Exec(ctx, "UPDATE "+versionTable+" SET version = $1", time.Time(version))
	if err != nil {
		return oops.New(err, "failed to update version in migrations table")
	}
	return nil
}

//go:embed migrationTemplate.txt
var migrationTemplate string

var ErrMigrationExists = errors.New("a migration file with that name already exists")

// Writes a new migration file into dir and returns its path.
func MakeMigration(dir, name, description string, now time.Time) (string, error) {
	now = now.UTC()

	result := migrationTemplate
	result = strings.ReplaceAll(result, "%NAME%", name)
	result = strings.ReplaceAll(result, "%DESCRIPTION%", fmt.Sprintf("%#v", description))
	nowConstructor := fmt.Sprintf("time.Date(%d, %d, %d, %d, %d, %d, 0, time.UTC)", now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second())
	result = strings.ReplaceAll(result, "%DATE%", nowConstructor)

	safeVersion := strings.ReplaceAll(types.MigrationVersion(now).String(), ":", "")
	path := filepath.Join(dir, fmt.Sprintf("%v_%v.go", safeVersion, name))

	if _, err := os.Stat(path); err == nil {
		return "", ErrMigrationExists
	}
	if err := os.WriteFile(path, []byte(result), 0644); err != nil {
		return "", oops.New(err, "failed to write migration file")
	}
	return path, nil
}

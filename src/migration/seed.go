package migration

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/clynamic/tagem/src/config"
	"github.com/clynamic/tagem/src/db"
	"github.com/clynamic/tagem/src/migration/types"
	"github.com/clynamic/tagem/src/models"
	"github.com/clynamic/tagem/src/tagemdata"
	"github.com/clynamic/tagem/src/utils"
	lorem "github.com/HandmadeNetwork/golorem"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/spf13/cobra"
)

type SeedOptions struct {
	Users    int
	Projects int
	// Comments and contributions per project, at most.
	Activity int
	Seed     int64
}

func seedCommand() *cobra.Command {
	var opts SeedOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Migrate to the latest version and fill the database with sample data for local dev",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conn := db.NewConnWithConfig(ctx, config.PostgresConfig{
				LogLevel: tracelog.LogLevelWarn,
			})
			defer conn.Close(ctx)

			utils.Must(Migrate(ctx, conn, types.MigrationVersion{}))
			utils.Must(SampleSeed(ctx, conn, opts))
			fmt.Println("Done!")
		},
	}
	cmd.Flags().IntVar(&opts.Users, "users", 20, "Number of regular users to create")
	cmd.Flags().IntVar(&opts.Projects, "projects", 10, "Number of projects to create")
	cmd.Flags().IntVar(&opts.Activity, "activity", 8, "Maximum comments and contributions per project")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "Random seed")
	return cmd
}

// Ids of the staff accounts every seed creates. Regular users start at 1000.
const (
	SeedAdminID   = 1
	SeedJanitorID = 2
)

/*
SampleSeed creates staff accounts, users, projects with a few versions, and
comments and contributions on them. Everything happens in one transaction.
*/
func SampleSeed(ctx context.Context, conn db.ConnOrTx, opts SeedOptions) error {
	r := rand.New(rand.NewSource(opts.Seed))

	return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		fmt.Println("Creating staff (\"admin\" and \"janitor\")...")
		if _, err := tagemdata.CreateUser(ctx, tx, tagemdata.NewUser{ID: SeedAdminID, Name: "admin", Rank: models.RankAdmin}); err != nil {
			return err
		}
		if _, err := tagemdata.CreateUser(ctx, tx, tagemdata.NewUser{ID: SeedJanitorID, Name: "janitor", Rank: models.RankJanitor}); err != nil {
			return err
		}

		fmt.Printf("Creating %d users...\n", opts.Users)
		var users []*models.User
		var creators []*models.User
		for i := 0; i < opts.Users; i++ {
			user := &models.User{
				ID:   1000 + i,
				Name: fmt.Sprintf("%s_%d", lorem.Word(4, 10), i),
				Rank: models.RankMember,
			}
			if r.Intn(3) == 0 {
				user.Rank = models.RankPrivileged
			}
			if _, err := tagemdata.CreateUser(ctx, tx, tagemdata.NewUser{ID: user.ID, Name: user.Name, Rank: user.Rank}); err != nil {
				return err
			}
			users = append(users, user)
			if user.Rank == models.RankPrivileged {
				creators = append(creators, user)
			}
		}
		if len(creators) == 0 {
			creators = append(creators, &models.User{ID: SeedAdminID, Rank: models.RankAdmin})
		}

		fmt.Printf("Creating %d projects...\n", opts.Projects)
		for i := 0; i < opts.Projects; i++ {
			owner := creators[r.Intn(len(creators))]
			projectID, err := tagemdata.CreateProject(ctx, tx, randomProject(r, owner.ID, i))
			if err != nil {
				return err
			}

			for v := r.Intn(3); v > 0; v-- {
				_, err := tagemdata.UpdateProject(ctx, tx, projectID, tagemdata.ProjectUpdate{
					Description: utils.P(lorem.Paragraph(1, 3)),
				})
				if err != nil {
					return err
				}
			}

			for a := r.Intn(opts.Activity + 1); a > 0 && len(users) > 0; a-- {
				user := users[r.Intn(len(users))]
				if r.Intn(2) == 0 {
					_, err = tagemdata.CreateComment(ctx, tx, user, tagemdata.NewComment{
						ProjectID: projectID,
						Content:   lorem.Sentence(4, 20),
					})
				} else {
					_, err = tagemdata.CreateContribution(ctx, tx, user, tagemdata.NewContribution{
						ProjectID: projectID,
						PostID:    1 + r.Intn(5_000_000),
					})
				}
				if err != nil {
					return err
				}
			}

			switch r.Intn(10) {
			case 0:
				err = tagemdata.DeleteProject(ctx, tx, projectID)
			case 1:
				_, err = tagemdata.UpdateProject(ctx, tx, projectID, tagemdata.ProjectUpdate{IsPrivate: utils.P(true)})
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func randomProject(r *rand.Rand, ownerID int, n int) tagemdata.NewProject {
	subject := lorem.Word(4, 12)
	var options []models.ProjectOption
	for i := 1 + r.Intn(4); i > 0; i-- {
		tag := lorem.Word(3, 10)
		options = append(options, models.ProjectOption{
			Name:   strings.ToUpper(tag[:1]) + tag[1:],
			Add:    []string{tag},
			Remove: []string{},
		})
	}

	mode := models.SelectionModeOne
	if r.Intn(2) == 0 {
		mode = models.SelectionModeMany
	}

	return tagemdata.NewProject{
		UserID:      ownerID,
		Name:        fmt.Sprintf("Tag %s", subject),
		Meta:        fmt.Sprintf("%s_%d", subject, n),
		Description: lorem.Paragraph(1, 2),
		Guidelines:  lorem.Sentence(8, 24),
		Tags:        []string{subject},
		Mode:        mode,
		Options:     options,
	}
}

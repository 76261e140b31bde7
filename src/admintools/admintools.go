package admintools

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/clynamic/tagem/src/apierr"
	"github.com/clynamic/tagem/src/auth"
	"github.com/clynamic/tagem/src/config"
	"github.com/clynamic/tagem/src/db"
	"github.com/clynamic/tagem/src/models"
	"github.com/clynamic/tagem/src/tagemdata"
	"github.com/clynamic/tagem/src/website"
	"github.com/spf13/cobra"
)

func init() {
	adminCommand := &cobra.Command{
		Use:   "admin",
		Short: "Miscellaneous admin commands",
	}
	website.WebsiteCommand.AddCommand(adminCommand)

	createUserCommand := &cobra.Command{
		Use:   "createuser [e621 id] [name] [rank]",
		Short: "Creates a user ahead of their first login, usually to make them staff",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 3 {
				fmt.Printf("You must provide an id, a name, and a rank.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			id := parseUserID(args[0])
			rank := parseRank(args[2])

			ctx := context.Background()
			conn := db.NewConn(ctx)
			defer conn.Close(ctx)

			_, err := tagemdata.CreateUser(ctx, conn, tagemdata.NewUser{ID: id, Name: args[1], Rank: rank})
			exitOnError(err)

			fmt.Printf("Created %s '%s' with id %d\n", rank, args[1], id)
		},
	}
	adminCommand.AddCommand(createUserCommand)

	setRankCommand := &cobra.Command{
		Use:   "setrank [user id] [rank]",
		Short: "Changes a user's rank",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 2 {
				fmt.Printf("You must provide a user id and a rank.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			id := parseUserID(args[0])
			rank := parseRank(args[1])

			ctx := context.Background()
			conn := db.NewConn(ctx)
			defer conn.Close(ctx)

			exitOnError(tagemdata.UpdateUser(ctx, conn, id, tagemdata.UserUpdate{Rank: &rank}))

			fmt.Printf("User %d is now %s\n", id, rank)
		},
	}
	adminCommand.AddCommand(setRankCommand)

	banCommand := &cobra.Command{
		Use:   "ban [user id]",
		Short: "Bans a user",
		Run: func(cmd *cobra.Command, args []string) {
			setBanned(cmd, args, true)
		},
	}
	adminCommand.AddCommand(banCommand)

	unbanCommand := &cobra.Command{
		Use:   "unban [user id]",
		Short: "Lifts a user's ban",
		Run: func(cmd *cobra.Command, args []string) {
			setBanned(cmd, args, false)
		},
	}
	adminCommand.AddCommand(unbanCommand)

	var tokenLifetime time.Duration
	tokenCommand := &cobra.Command{
		Use:   "token [user id]",
		Short: "Prints a session token for a user, for testing the API without e621",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 {
				fmt.Printf("You must provide a user id.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			id := parseUserID(args[0])

			ctx := context.Background()
			conn := db.NewConn(ctx)
			defer conn.Close(ctx)

			user, err := tagemdata.FetchUser(ctx, conn, id)
			exitOnError(err)

			key, err := auth.LoadOrCreateKey(config.Config.Auth.KeyFile)
			exitOnError(err)

			token, err := auth.MintToken(key, user, tokenLifetime, time.Now())
			exitOnError(err)

			fmt.Println(token)
		},
	}
	tokenCommand.Flags().DurationVar(&tokenLifetime, "lifetime", time.Hour, "How long the token stays valid")
	adminCommand.AddCommand(tokenCommand)
}

func setBanned(cmd *cobra.Command, args []string, banned bool) {
	if len(args) < 1 {
		fmt.Printf("You must provide a user id.\n\n")
		cmd.Usage()
		os.Exit(1)
	}

	id := parseUserID(args[0])

	ctx := context.Background()
	conn := db.NewConn(ctx)
	defer conn.Close(ctx)

	exitOnError(tagemdata.SetUserBanned(ctx, conn, id, banned))

	if banned {
		fmt.Printf("User %d was banned\n", id)
	} else {
		fmt.Printf("User %d was restored\n", id)
	}
}

func parseUserID(arg string) int {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		fmt.Printf("'%s' is not a valid user id\n", arg)
		os.Exit(1)
	}
	return id
}

func parseRank(arg string) models.Rank {
	rank, err := models.ParseRank(arg)
	if err != nil {
		fmt.Printf("'%s' is not a rank. Valid ranks are %v\n", arg, models.AllRanks)
		os.Exit(1)
	}
	return rank
}

// Client mistakes get their message printed; anything else panics with the
// full error.
func exitOnError(err error) {
	if err == nil {
		return
	}
	kind, message := apierr.Classify(err)
	if kind == apierr.KindInternal {
		panic(err)
	}
	fmt.Println(message)
	os.Exit(1)
}

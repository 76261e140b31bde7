package website

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/clynamic/tagem/src/auth"
	"github.com/clynamic/tagem/src/config"
	"github.com/clynamic/tagem/src/db"
	"github.com/clynamic/tagem/src/e621"
	"github.com/clynamic/tagem/src/logging"
	"github.com/clynamic/tagem/src/migration"
	"github.com/clynamic/tagem/src/migration/types"
	"github.com/spf13/cobra"
)

var WebsiteCommand = &cobra.Command{
	Use:   "tagem",
	Short: "Run the Tag 'em API server",
	Run: func(cmd *cobra.Command, args []string) {
		defer logging.LogPanics(nil)
		logging.Info().Msg("Hello, Tag 'em!")

		ctx := context.Background()

		conn := db.NewConnPool(ctx)
		defer conn.Close()
		if err := db.WaitForConnection(ctx, conn, time.Minute); err != nil {
			logging.Fatal().Err(err).Msg("could not connect to the database")
		}
		if err := migration.Migrate(ctx, conn, types.MigrationVersion{}); err != nil {
			logging.Fatal().Err(err).Msg("failed to migrate the database")
		}

		key, err := auth.LoadOrCreateKey(config.Config.Auth.KeyFile)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to load the token signing key")
		}

		var wg sync.WaitGroup

		// Create HTTP server
		wg.Add(1)
		server := http.Server{
			Addr:              config.Config.Addr,
			Handler:           NewWebsiteRoutes(conn, key, e621.NewClient(config.Config.E621)),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logging.Info().Str("addr", config.Config.Addr).Msg("Serving the API")
			serverErr := server.ListenAndServe()
			if !errors.Is(serverErr, http.ErrServerClosed) {
				logging.Error().Err(serverErr).Msg("Server shut down unexpectedly")
			}
			// The wg.Done() happens in the shutdown logic below.
		}()

		// Wait for SIGINT or SIGTERM in the background and trigger graceful shutdown
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-signals // First signal (start shutdown)
			logging.Info().Msg("Shutting down the API server")

			const timeout = 10 * time.Second

			// Gracefully shut down the HTTP server
			go func() {
				timeoutCtx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				err := server.Shutdown(timeoutCtx)
				if err != nil {
					logging.Warn().Err(err).Msg("Server did not shut down gracefully")
				}
				wg.Done()
			}()

			<-signals // Second signal (force quit)
			logging.Warn().Msg("Forcibly killed the API server")
			os.Exit(1)
		}()

		// Wait for all of the above to finish, then exit
		wg.Wait()
	},
}

func init() {
	migration.AddCommands(WebsiteCommand)
}

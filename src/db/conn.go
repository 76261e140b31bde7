package db

import (
	"context"
	"time"

	"github.com/clynamic/tagem/src/config"
	"github.com/clynamic/tagem/src/logging"
	"github.com/clynamic/tagem/src/oops"
	"github.com/clynamic/tagem/src/utils"
	zerologadapter "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/jpillora/backoff"
)

// Creates a new connection to the Tag 'em database.
// This connection is not safe for concurrent use.
func NewConn(ctx context.Context) *pgx.Conn {
	return NewConnWithConfig(ctx, config.PostgresConfig{})
}

func NewConnWithConfig(ctx context.Context, cfg config.PostgresConfig) *pgx.Conn {
	cfg = overrideDefaultConfig(cfg)

	pgcfg, err := pgx.ParseConfig(cfg.DSN())
	if err != nil {
		panic(oops.New(err, "failed to parse database config"))
	}
	pgcfg.Tracer = newTracer(cfg)

	conn, err := pgx.ConnectConfig(ctx, pgcfg)
	if err != nil {
		panic(oops.New(err, "failed to connect to database"))
	}

	return conn
}

// Creates a connection pool for the Tag 'em database.
// The resulting pool is safe for concurrent use.
func NewConnPool(ctx context.Context) *pgxpool.Pool {
	return NewConnPoolWithConfig(ctx, config.PostgresConfig{})
}

func NewConnPoolWithConfig(ctx context.Context, cfg config.PostgresConfig) *pgxpool.Pool {
	cfg = overrideDefaultConfig(cfg)

	pgcfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		panic(oops.New(err, "failed to parse database config"))
	}
	pgcfg.MinConns = cfg.MinConn
	pgcfg.MaxConns = cfg.MaxConn
	pgcfg.ConnConfig.Tracer = newTracer(cfg)

	// Pools connect lazily, so this does not fail when the database is down.
	conn, err := pgxpool.NewWithConfig(ctx, pgcfg)
	if err != nil {
		panic(oops.New(err, "failed to create database connection pool"))
	}

	return conn
}

func newTracer(cfg config.PostgresConfig) pgx.QueryTracer {
	return &tracelog.TraceLog{
		Logger:   zerologadapter.NewLogger(*logging.GlobalLogger()),
		LogLevel: cfg.LogLevel,
	}
}

func overrideDefaultConfig(cfg config.PostgresConfig) config.PostgresConfig {
	return config.PostgresConfig{
		User:     utils.OrDefault(cfg.User, config.Config.Postgres.User),
		Password: utils.OrDefault(cfg.Password, config.Config.Postgres.Password),
		Hostname: utils.OrDefault(cfg.Hostname, config.Config.Postgres.Hostname),
		Port:     utils.OrDefault(cfg.Port, config.Config.Postgres.Port),
		DbName:   utils.OrDefault(cfg.DbName, config.Config.Postgres.DbName),
		LogLevel: utils.OrDefault(cfg.LogLevel, config.Config.Postgres.LogLevel),
		MinConn:  utils.OrDefault(cfg.MinConn, config.Config.Postgres.MinConn),
		MaxConn:  utils.OrDefault(cfg.MaxConn, config.Config.Postgres.MaxConn),
	}
}

type Pinger interface {
	Ping(ctx context.Context) error
}

/*
Blocks until the database answers a ping, retrying with exponential backoff.
Gives up after maxWait has elapsed or the context is cancelled.
*/
func WaitForConnection(ctx context.Context, conn Pinger, maxWait time.Duration) error {
	boff := backoff.Backoff{
		Min:    250 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
	}
	deadline := time.Now().Add(maxWait)

	for {
		err := conn.Ping(ctx)
		if err == nil {
			return nil
		}

		wait := boff.Duration()
		if time.Now().Add(wait).After(deadline) {
			return oops.New(err, "database did not become available within %v", maxWait)
		}

		logging.Warn().Err(err).Dur("retry_in", wait).Msg("Database is not available yet")
		if err := utils.SleepContext(ctx, wait); err != nil {
			return oops.New(err, "stopped waiting for the database")
		}
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

var Config TagemConfig

func init() {
	// A missing .env is normal outside of local development.
	_ = godotenv.Load()

	cfg, err := Load(os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	Config = cfg
}

// Reads the configuration using the given lookup function, which is usually
// os.LookupEnv.
func Load(lookup func(string) (string, bool)) (TagemConfig, error) {
	env := envReader{lookup: lookup}

	cfg := TagemConfig{
		Env:      Environment(env.str("TAGEM_ENV", string(Dev))),
		Addr:     ":" + strconv.Itoa(env.int("PORT", 8080)),
		HostUrls: env.list("HOST_URL", "HOST_URLS"),
		LogLevel: env.logLevel("LOG_LEVEL", zerolog.InfoLevel),
		Postgres: PostgresConfig{
			User:     env.str("POSTGRES_USER", "tagem"),
			Password: env.str("POSTGRES_PASSWORD", "password"),
			Hostname: env.str("POSTGRES_HOST", "localhost"),
			Port:     env.int("POSTGRES_PORT", 5432),
			DbName:   env.str("POSTGRES_DB", "tagem"),
			LogLevel: env.pgLogLevel("POSTGRES_LOG_LEVEL", tracelog.LogLevelWarn),
			MinConn:  int32(env.int("POSTGRES_MIN_CONN", 2)),
			MaxConn:  int32(env.int("POSTGRES_MAX_CONN", 10)),
		},
		Auth: AuthConfig{
			KeyFile:       env.str("JWT_KEY_FILE", "jwt.key"),
			TokenLifetime: env.duration("TOKEN_LIFETIME", 30*24*time.Hour),
		},
		E621: E621Config{
			BaseUrl:   strings.TrimSuffix(env.str("E621_URL", "https://e621.net"), "/"),
			UserAgent: env.str("E621_USER_AGENT", "tagem/1.0.0 (binaryfloof)"),
		},
	}

	// USE_DISK=false keeps data out of the main database, in a throwaway one.
	if !env.bool("USE_DISK", true) {
		cfg.Postgres.DbName += "_mem"
	}

	if cfg.Env != Dev && cfg.Env != Live {
		env.fail("TAGEM_ENV", string(cfg.Env))
	}

	if env.err != nil {
		return TagemConfig{}, env.err
	}
	return cfg, nil
}

type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *envReader) fail(name, value string) {
	if r.err == nil {
		r.err = fmt.Errorf("bad value for %s: %q", name, value)
	}
}

func (r *envReader) str(name, def string) string {
	if v, ok := r.lookup(name); ok && v != "" {
		return v
	}
	return def
}

func (r *envReader) int(name string, def int) int {
	v, ok := r.lookup(name)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		r.fail(name, v)
		return def
	}
	return i
}

func (r *envReader) bool(name string, def bool) bool {
	v, ok := r.lookup(name)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(name, v)
		return def
	}
	return b
}

func (r *envReader) duration(name string, def time.Duration) time.Duration {
	v, ok := r.lookup(name)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(name, v)
		return def
	}
	return d
}

func (r *envReader) logLevel(name string, def zerolog.Level) zerolog.Level {
	v, ok := r.lookup(name)
	if !ok || v == "" {
		return def
	}
	level, err := zerolog.ParseLevel(strings.ToLower(v))
	if err != nil {
		r.fail(name, v)
		return def
	}
	return level
}

func (r *envReader) pgLogLevel(name string, def tracelog.LogLevel) tracelog.LogLevel {
	v, ok := r.lookup(name)
	if !ok || v == "" {
		return def
	}
	level, err := tracelog.LogLevelFromString(strings.ToLower(v))
	if err != nil {
		r.fail(name, v)
		return def
	}
	return level
}

// Collects comma-separated values from all the given variables, in order.
func (r *envReader) list(names ...string) []string {
	var result []string
	for _, name := range names {
		v, ok := r.lookup(name)
		if !ok {
			continue
		}
		for _, item := range strings.Split(v, ",") {
			item = strings.TrimSpace(item)
			if item != "" {
				result = append(result, item)
			}
		}
	}
	return result
}

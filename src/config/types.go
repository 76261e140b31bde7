package config

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

type Environment string

const (
	Live Environment = "live"
	Dev  Environment = "dev"
)

type TagemConfig struct {
	Env      Environment
	Addr     string
	HostUrls []string
	LogLevel zerolog.Level
	Postgres PostgresConfig
	Auth     AuthConfig
	E621     E621Config
}

type PostgresConfig struct {
	User     string
	Password string
	Hostname string
	Port     int
	DbName   string
	LogLevel tracelog.LogLevel
	MinConn  int32
	MaxConn  int32
}

func (info PostgresConfig) DSN() string {
	return fmt.Sprintf("user=%s password=%s host=%s port=%d dbname=%s", info.User, info.Password, info.Hostname, info.Port, info.DbName)
}

type AuthConfig struct {
	KeyFile       string
	TokenLifetime time.Duration
}

type E621Config struct {
	BaseUrl   string
	UserAgent string
}

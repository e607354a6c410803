package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// DatabaseURL selects the backend: a postgres DSN for postgres,
	// anything else is treated as a sqlite file path. The sqlite default
	// forces synchronous commits so a trade append survives a crash.
	DatabaseURL  string `envconfig:"DATABASE_URL" default:"file:tradingbot.db?_journal_mode=WAL&_synchronous=FULL"`
	GormLogLevel int    `envconfig:"GORM_LOG_LEVEL" default:"2"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

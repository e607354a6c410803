package backtest

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	EndDt   time.Time `envconfig:"BACKTEST_END_DATE"`
	MaxBars int       `envconfig:"BACKTEST_MAX_BARS" default:"5000"`
	Equity  float64   `envconfig:"BACKTEST_EQUITY" default:"10000"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}

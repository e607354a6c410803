package connectors

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Exchange  string `envconfig:"EXCHANGE" default:"bybit"`
	APIKey    string `envconfig:"API_KEY"`
	APISecret string `envconfig:"API_SECRET"`

	BybitBaseURL  string `envconfig:"BYBIT_BASE_URL" default:"https://api.bybit.com"`
	BybitWSURL    string `envconfig:"BYBIT_WS_URL" default:"wss://stream.bybit.com/v5/public/spot"`
	KlineInterval string `envconfig:"KLINE_INTERVAL" default:"60"`

	// PaperEquity is the simulated account value used for sizing when no
	// real account is queried.
	PaperEquity float64 `envconfig:"PAPER_EQUITY" default:"10000"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

package ohlcvcrypto

import (
	"context"
	"net/http"
	"time"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradingbot/src/database"
	"tradingbot/src/model"
	"tradingbot/src/repository"
)

const (
	Duration1m = "1m"
	Duration1h = "1h"
)

// OHLCVCrypto backfills historical candles into the candles table so the
// strategies have a warm window on first start.
type OHLCVCrypto struct {
	Log      *logger.Entry
	Repo     *repository.CandleRepository
	Config   *Config
	exchange goex.API
}

func (o *OHLCVCrypto) Start() error {
	o.Config = GetConfig()

	if o.Repo == nil {
		if err := database.InitMainDB(); err != nil {
			o.Log.WithError(err).Error("Failed to connect to database")
			return err
		}
		o.Repo = repository.NewCandleRepository()
	}

	o.exchange = o.newBinanceInstance()

	if o.Config.AutoMode {
		if err := o.determineStartPoint(); err != nil {
			return err
		}
	}

	return o.aggregateAndSave()
}

func (*OHLCVCrypto) newBinanceInstance() *binance.Binance {
	apiConfig := &goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   binance.GLOBAL_API_BASE_URL,
	}
	return binance.NewWithConfig(apiConfig)
}

func (o *OHLCVCrypto) pair() string {
	return o.Config.Symbol + o.Config.Quote
}

func (o *OHLCVCrypto) aggregateAndSave() error {
	series, err := o.fetchOHLCVSeries()
	if err != nil {
		return err
	}

	candles := make([]model.Candle, 0, len(series))
	for i := range series {
		result := series[i]
		candles = append(candles, model.Candle{
			Symbol:   o.pair(),
			Datetime: time.Unix(result.Timestamp, 0).UTC(),
			Open:     decimal.NewFromFloat(result.Open),
			High:     decimal.NewFromFloat(result.High),
			Low:      decimal.NewFromFloat(result.Low),
			Close:    decimal.NewFromFloat(result.Close),
			Volume:   decimal.NewFromFloat(result.Vol),
		})
	}

	if err := o.Repo.Upsert(context.Background(), candles); err != nil {
		o.Log.WithError(err).Error("aggregateAndSave, Upsert, ")
		return err
	}

	o.Log.WithFields(logger.Fields{
		"Symbol": o.pair(),
		"Bars":   len(candles),
	}).Info("OHLCV data inserted or updated in database")
	return nil
}

// determineStartPoint resumes one interval before the newest stored bar
// so the possibly partial last row is rewritten.
func (o *OHLCVCrypto) determineStartPoint() error {
	o.Config.StartDt = o.Config.StartDt.Add(-o.parseDuration())
	o.Config.EndDt = time.Now()

	latest, err := o.Repo.LatestDatetime(context.Background(), o.pair())
	if err != nil {
		o.Log.WithError(err).Error("Failed to query latest datetime")
		return err
	}

	if latest.IsZero() {
		o.Log.
			WithField("StartDt", o.Config.StartDt.String()).
			WithField("EndDt", o.Config.EndDt.String()).
			Info("no existing bars, starting from the configured StartDt")
		return nil
	}

	o.Config.StartDt = latest.Add(-o.parseDuration())
	o.Log.
		WithField("StartDt", o.Config.StartDt.String()).
		WithField("EndDt", o.Config.EndDt.String()).
		Info("determineStartPoint valid date found")
	return nil
}

func (o *OHLCVCrypto) fetchOHLCVSeries() ([]goex.Kline, error) {
	targetSymbol := goex.NewCurrencyPair(goex.Currency{Symbol: o.Config.Symbol}, goex.Currency{Symbol: o.Config.Quote})

	const millis = 1000
	klines, err := o.exchange.GetKlineRecords(
		targetSymbol,
		o.parseDurationToGoex(),
		o.Config.Limit,
		goex.OptionalParameter{}.
			Optional("startTime", o.Config.StartDt.Unix()*millis).
			Optional("endTime", o.Config.EndDt.Unix()*millis),
	)
	if err != nil {
		return nil, err
	}

	return klines, nil
}

func (o *OHLCVCrypto) parseDuration() time.Duration {
	var duration time.Duration
	switch o.Config.DurationStr {
	case Duration1m:
		duration = time.Minute
	case Duration1h:
		duration = time.Hour
	default:
		panic("invalid DURATION env var")
	}
	return duration
}

func (o *OHLCVCrypto) parseDurationToGoex() goex.KlinePeriod {
	var duration goex.KlinePeriod
	switch o.Config.DurationStr {
	case Duration1m:
		duration = goex.KLINE_PERIOD_1MIN
	case Duration1h:
		duration = goex.KLINE_PERIOD_1H
	default:
		panic("invalid DURATION env var")
	}
	return duration
}

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"tradingbot/cmd/backtest"
	"tradingbot/cmd/bot"
	"tradingbot/cmd/ohlcvcrypto"
	"tradingbot/cmd/report"
	"tradingbot/src/executors"
	"tradingbot/src/repository"
)

var Version string

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}

	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	_ = godotenv.Load()
	SetupLogger()

	app := cli.NewApp()
	app.Name = "tradingbot"
	app.Usage = "The tradingbot command line interface"
	app.Version = Version

	app.Commands = []cli.Command{
		botCMD,
		streamCMD,
		reportCMD,
		backtestCMD,
		ohlcvCryptoCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes configuration and ledger failures from plain
// errors in case a supervisor wants to treat them differently.
func exitCode(err error) int {
	var cfgErr *executors.ConfigError
	if errors.As(err, &cfgErr) {
		return 2
	}
	if errors.Is(err, repository.ErrLedgerWrite) {
		return 3
	}
	return 1
}

var (
	botCMD = cli.Command{
		Name:        "bot",
		Usage:       "run the trading bot in polling mode",
		Action:      botAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the trading bot, evaluating the strategy once per interval`,
	}
	streamCMD = cli.Command{
		Name:        "stream",
		Usage:       "run the trading bot in streaming mode",
		Action:      streamAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the trading bot on websocket bar-close events`,
	}
	reportCMD = cli.Command{
		Name:        "report",
		Usage:       "print a performance report over the trade ledger",
		Action:      reportAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Print trade statistics and recent trades, then exit`,
	}
	backtestCMD = cli.Command{
		Name:        "backtest",
		Usage:       "replay stored candles through the strategy",
		Action:      backtestAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Replay stored OHLCV candles through the configured strategy and print a performance report`,
	}
	ohlcvCryptoCMD = cli.Command{
		Name:        "ohlcv_crypto",
		Usage:       "backfill OHLCV candles",
		Action:      ohlcvCryptoAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Backfill historical OHLCV candles into the database`,
	}
)

func botAction(_ *cli.Context) error {
	logrus.Info("Starting bot CMD")

	b := &bot.Bot{}
	if err := b.Start(bot.ModePolling); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func streamAction(_ *cli.Context) error {
	logrus.Info("Starting stream CMD")

	b := &bot.Bot{}
	if err := b.Start(bot.ModeStreaming); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func reportAction(_ *cli.Context) error {
	logrus.Info("Starting report CMD")

	r := &report.Report{}
	if err := r.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func backtestAction(_ *cli.Context) error {
	logrus.Info("Starting backtest CMD")

	b := &backtest.Backtest{}
	if err := b.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

// ohlcvCryptoAction backfills OHLCV candles for the configured pair.
func ohlcvCryptoAction(_ *cli.Context) error {
	logrus.Info("Starting OHLCV crypto CMD")

	o := &ohlcvcrypto.OHLCVCrypto{
		Log: logrus.WithField("cmd", "ohlcv_crypto"),
	}
	if err := o.Start(); err != nil {
		logrus.WithError(err).Error("Starting OHLCV cmd")
		return err
	}
	return nil
}

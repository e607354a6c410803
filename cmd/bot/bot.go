package bot

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"tradingbot/src/database"
	"tradingbot/src/executors"
	"tradingbot/src/performance"
	"tradingbot/src/repository"
	"tradingbot/src/server"
)

type Mode string

const (
	ModePolling   Mode = "polling"
	ModeStreaming Mode = "streaming"
)

type Bot struct{}

func (b *Bot) Start(mode Mode) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to main database")
		return err
	}

	// Status endpoints run for the lifetime of the bot.
	tracker := performance.NewTracker(repository.NewTradeRepository())
	go server.StartServer(ctx, server.GetConfig().Port, tracker)

	logrus.WithField("mode", mode).Info("Starting trading bot")

	var err error
	switch mode {
	case ModeStreaming:
		err = executors.StartStream(ctx)
	default:
		err = executors.StartLoop(ctx)
	}
	if err != nil {
		logrus.WithError(err).Error("Trading bot stopped with error")
		return err
	}
	return nil
}

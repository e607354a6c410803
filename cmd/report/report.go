package report

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"tradingbot/src/database"
	"tradingbot/src/performance"
	"tradingbot/src/repository"
)

type Report struct{}

func (r *Report) Start() error {
	ctx := context.Background()

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to main database")
		return err
	}

	trades, err := repository.NewTradeRepository().ListAll(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to read the trade ledger")
		return err
	}

	snapshot := performance.Compute(trades)
	fmt.Print(performance.FormatReport(snapshot))
	return nil
}

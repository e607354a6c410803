package connectors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
)

// PaperConnector simulates an exchange for dry runs. Every order fills
// immediately at the request's reference price and no capital moves.
type PaperConnector struct {
	mu      sync.Mutex
	equity  float64
	history []FillEvent
	fills   chan FillEvent
}

func NewPaperConnector(startingEquity float64) *PaperConnector {
	if startingEquity <= 0 {
		startingEquity = 10000
	}
	return &PaperConnector{
		equity: startingEquity,
		fills:  make(chan FillEvent, 16),
	}
}

func (p *PaperConnector) TestConnection() error { return nil }

func (p *PaperConnector) AccountEquity(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.equity, nil
}

func (p *PaperConnector) SubmitOrder(ctx context.Context, req OrderRequest) (string, error) {
	if req.Size <= 0 {
		return "", fmt.Errorf("%w: non-positive size %f", ErrRejectedOrder, req.Size)
	}
	if req.Price <= 0 {
		return "", fmt.Errorf("%w: no reference price for paper fill", ErrRejectedOrder)
	}

	orderID := uuid.New().String()
	fill := FillEvent{
		OrderID:   orderID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Price:     req.Price,
		Size:      req.Size,
		Timestamp: time.Now().UTC(),
	}

	p.mu.Lock()
	p.history = append(p.history, fill)
	p.mu.Unlock()

	logger.WithFields(logger.Fields{
		"symbol": req.Symbol,
		"side":   req.Side,
		"qty":    req.Size,
		"price":  req.Price,
	}).Info("[PAPER TRADE] order filled")

	select {
	case p.fills <- fill:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	return orderID, nil
}

func (p *PaperConnector) FillEvents() <-chan FillEvent {
	return p.fills
}

func (p *PaperConnector) FillHistory(ctx context.Context, symbol string, since time.Time) ([]FillEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]FillEvent, 0, len(p.history))
	for _, f := range p.history {
		if f.Symbol != symbol {
			continue
		}
		if !since.IsZero() && f.Timestamp.Before(since) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// AdjustEquity applies realized pnl so subsequent sizing reflects the
// simulated account balance.
func (p *PaperConnector) AdjustEquity(delta float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.equity += delta
}

package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"

	"tradingbot/src/model"
	"tradingbot/src/utils"
)

const (
	defaultBybitWSURL = "wss://stream.bybit.com/v5/public/spot"
	wsHandshakeWait   = 10 * time.Second
	wsPingInterval    = 20 * time.Second
	wsReadLimit       = 1 << 20
)

type bybitWSMessage struct {
	Op      string   `json:"op,omitempty"`
	Args    []string `json:"args,omitempty"`
	Success bool     `json:"success,omitempty"`
	RetMsg  string   `json:"ret_msg,omitempty"`
	Topic   string   `json:"topic,omitempty"`
	Data    []struct {
		Start   int64  `json:"start"`
		Open    string `json:"open"`
		High    string `json:"high"`
		Low     string `json:"low"`
		Close   string `json:"close"`
		Volume  string `json:"volume"`
		Confirm bool   `json:"confirm"`
	} `json:"data,omitempty"`
}

// BybitStream subscribes to the public kline websocket and emits one bar
// per interval close. In-progress updates (confirm=false) are dropped so
// consumers only ever see finished bars.
type BybitStream struct {
	wsURL    string
	interval string
}

func NewBybitStream(wsURL, klineInterval string) *BybitStream {
	if wsURL == "" {
		wsURL = defaultBybitWSURL
	}
	if klineInterval == "" {
		klineInterval = "60"
	}
	return &BybitStream{wsURL: wsURL, interval: klineInterval}
}

func (s *BybitStream) Subscribe(ctx context.Context, symbol string) (<-chan model.Candle, error) {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeWait}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrGatewayUnavailable, s.wsURL, err)
	}
	conn.SetReadLimit(wsReadLimit)

	topic := fmt.Sprintf("kline.%s.%s", s.interval, symbol)
	sub := bybitWSMessage{Op: "subscribe", Args: []string{topic}}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %v", ErrGatewayUnavailable, topic, err)
	}

	out := make(chan model.Candle, 8)

	go s.pingLoop(ctx, conn)
	go s.readLoop(ctx, conn, symbol, topic, out)

	logger.WithFields(logger.Fields{"topic": topic, "url": s.wsURL}).Info("kline stream subscribed")
	return out, nil
}

func (s *BybitStream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteJSON(bybitWSMessage{Op: "ping"}); err != nil {
				conn.Close()
				return
			}
		}
	}
}

func (s *BybitStream) readLoop(ctx context.Context, conn *websocket.Conn, symbol, topic string, out chan<- model.Candle) {
	defer close(out)
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.WithError(err).WithField("topic", topic).Warn("kline stream closed")
			}
			return
		}

		var msg bybitWSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.WithError(err).Warn("skipping malformed stream message")
			continue
		}

		if msg.Op != "" || msg.Topic != topic {
			continue
		}

		for _, bar := range msg.Data {
			if !bar.Confirm {
				continue
			}
			candle, err := parseStreamBar(symbol, bar.Start, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
			if err != nil {
				logger.WithError(err).Warn("skipping malformed stream bar")
				continue
			}
			select {
			case out <- candle:
			case <-ctx.Done():
				return
			}
		}
	}
}

func parseStreamBar(symbol string, startMs int64, open, high, low, closePx, volume string) (model.Candle, error) {
	fields := make([]float64, 5)
	for i, raw := range []string{open, high, low, closePx, volume} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("bad stream field %q: %w", raw, err)
		}
		fields[i] = v
	}

	return model.Candle{
		Symbol:   symbol,
		Datetime: utils.ResetTime(time.UnixMilli(startMs).UTC(), "minute"),
		Open:     decimalFromFloat(fields[0]),
		High:     decimalFromFloat(fields[1]),
		Low:      decimalFromFloat(fields[2]),
		Close:    decimalFromFloat(fields[3]),
		Volume:   decimalFromFloat(fields[4]),
	}, nil
}

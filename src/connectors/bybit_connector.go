package connectors

// REST client for the Bybit v5 API, resty only with internal retry.

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"tradingbot/src/model"
)

const (
	defaultBybitBaseURL    = "https://api.bybit.com"
	bybitCategorySpot      = "spot"
	bybitRecvWindow        = "5000"
	defaultRetryAttempts   = 4
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
	fillLookupAttempts     = 3
	fillLookupDelay        = 300 * time.Millisecond
)

type bybitBaseResp struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

type bybitKlineResult struct {
	Symbol string     `json:"symbol"`
	List   [][]string `json:"list"`
}

type bybitOrderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

type bybitWalletResult struct {
	List []struct {
		TotalEquity string `json:"totalEquity"`
	} `json:"list"`
}

type bybitExecutionResult struct {
	List []struct {
		OrderID   string `json:"orderId"`
		Symbol    string `json:"symbol"`
		Side      string `json:"side"`
		ExecPrice string `json:"execPrice"`
		ExecQty   string `json:"execQty"`
		ExecTime  string `json:"execTime"`
	} `json:"list"`
}

// BybitClient talks to the live exchange. It implements both
// ExchangeConnector and MarketDataSource.
type BybitClient struct {
	apiKey        string
	apiSecret     string
	klineInterval string
	http          *resty.Client
	fills         chan FillEvent
}

func NewBybitClient(apiKey, apiSecret, baseURL, klineInterval string) *BybitClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBybitBaseURL
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if klineInterval == "" {
		klineInterval = "60"
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &BybitClient{
		apiKey:        apiKey,
		apiSecret:     apiSecret,
		klineInterval: klineInterval,
		http:          httpClient,
		fills:         make(chan FillEvent, 16),
	}
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	return r.StatusCode() == 429 || r.StatusCode() >= 500
}

// -----------------------------
// AUTH
//
// Bybit v5 signs timestamp + apiKey + recvWindow + payload with
// HMAC-SHA256, hex encoded. The payload is the raw query string for GETs
// and the JSON body for POSTs.
// -----------------------------

func (c *BybitClient) sign(timestamp, payload string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	_, _ = mac.Write([]byte(timestamp + c.apiKey + bybitRecvWindow + payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *BybitClient) authHeaders(payload string) map[string]string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return map[string]string{
		"X-BAPI-API-KEY":     c.apiKey,
		"X-BAPI-TIMESTAMP":   ts,
		"X-BAPI-RECV-WINDOW": bybitRecvWindow,
		"X-BAPI-SIGN":        c.sign(ts, payload),
	}
}

// -----------------------------
// LOW-LEVEL REQUESTS
// -----------------------------

func (c *BybitClient) doGet(ctx context.Context, endpoint string, params url.Values, auth bool, out any) error {
	query := params.Encode()

	req := c.http.R().SetContext(ctx).SetQueryParamsFromValues(params)
	if auth {
		req.SetHeaders(c.authHeaders(query))
	}

	resp, err := req.Get(endpoint)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrGatewayUnavailable, endpoint, err)
	}
	if resp.StatusCode() >= 500 {
		return fmt.Errorf("%w: GET %s: status %d", ErrGatewayUnavailable, endpoint, resp.StatusCode())
	}

	return c.decode(endpoint, resp.Body(), out)
}

func (c *BybitClient) doPost(ctx context.Context, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", endpoint, err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeaders(c.authHeaders(string(payload))).
		SetBody(payload).
		Post(endpoint)
	if err != nil {
		return fmt.Errorf("%w: POST %s: %v", ErrGatewayUnavailable, endpoint, err)
	}
	if resp.StatusCode() >= 500 {
		return fmt.Errorf("%w: POST %s: status %d", ErrGatewayUnavailable, endpoint, resp.StatusCode())
	}

	return c.decode(endpoint, resp.Body(), out)
}

func (c *BybitClient) decode(endpoint string, body []byte, out any) error {
	var base bybitBaseResp
	if err := json.Unmarshal(body, &base); err != nil {
		return fmt.Errorf("%w: %s: malformed response: %v", ErrGatewayUnavailable, endpoint, err)
	}
	if base.RetCode != 0 {
		return fmt.Errorf("%w: %s: retCode %d: %s", ErrRejectedOrder, endpoint, base.RetCode, base.RetMsg)
	}
	if out != nil {
		if err := json.Unmarshal(base.Result, out); err != nil {
			return fmt.Errorf("%w: %s: malformed result: %v", ErrGatewayUnavailable, endpoint, err)
		}
	}
	return nil
}

// -----------------------------
// PUBLIC API
// -----------------------------

func (c *BybitClient) TestConnection() error {
	return c.doGet(context.Background(), "/v5/market/time", nil, false, nil)
}

// LatestCandles returns the most recent closed bars, oldest first.
func (c *BybitClient) LatestCandles(ctx context.Context, symbol string, count int) ([]model.Candle, error) {
	if count <= 0 {
		count = 200
	}

	params := url.Values{}
	params.Set("category", bybitCategorySpot)
	params.Set("symbol", symbol)
	params.Set("interval", c.klineInterval)
	params.Set("limit", strconv.Itoa(count))

	var result bybitKlineResult
	if err := c.doGet(ctx, "/v5/market/kline", params, false, &result); err != nil {
		return nil, err
	}

	// Bybit returns klines newest first: [start, open, high, low, close, volume, turnover].
	candles := make([]model.Candle, 0, len(result.List))
	for i := len(result.List) - 1; i >= 0; i-- {
		row := result.List[i]
		if len(row) < 6 {
			continue
		}
		candle, err := parseKlineRow(symbol, row)
		if err != nil {
			logger.WithError(err).WithField("symbol", symbol).Warn("skipping malformed kline row")
			continue
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseKlineRow(symbol string, row []string) (model.Candle, error) {
	ms, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("bad kline timestamp %q: %w", row[0], err)
	}

	fields := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("bad kline field %q: %w", row[i+1], err)
		}
		fields[i] = v
	}

	return model.Candle{
		Symbol:   symbol,
		Datetime: time.UnixMilli(ms).UTC(),
		Open:     decimalFromFloat(fields[0]),
		High:     decimalFromFloat(fields[1]),
		Low:      decimalFromFloat(fields[2]),
		Close:    decimalFromFloat(fields[3]),
		Volume:   decimalFromFloat(fields[4]),
	}, nil
}

func (c *BybitClient) AccountEquity(ctx context.Context) (float64, error) {
	params := url.Values{}
	params.Set("accountType", "UNIFIED")

	var result bybitWalletResult
	if err := c.doGet(ctx, "/v5/account/wallet-balance", params, true, &result); err != nil {
		return 0, err
	}
	if len(result.List) == 0 {
		return 0, fmt.Errorf("%w: wallet-balance returned no accounts", ErrGatewayUnavailable)
	}

	equity, err := strconv.ParseFloat(result.List[0].TotalEquity, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad totalEquity %q", ErrGatewayUnavailable, result.List[0].TotalEquity)
	}
	return equity, nil
}

// SubmitOrder places a market order and schedules a fill lookup; the
// resulting execution is delivered on FillEvents.
func (c *BybitClient) SubmitOrder(ctx context.Context, req OrderRequest) (string, error) {
	body := map[string]string{
		"category":  bybitCategorySpot,
		"symbol":    req.Symbol,
		"side":      req.Side,
		"orderType": req.Type,
		"qty":       strconv.FormatFloat(req.Size, 'f', -1, 64),
	}

	var result bybitOrderResult
	if err := c.doPost(ctx, "/v5/order/create", body, &result); err != nil {
		return "", err
	}

	logger.WithFields(logger.Fields{
		"symbol":   req.Symbol,
		"side":     req.Side,
		"qty":      req.Size,
		"order_id": result.OrderID,
	}).Info("order submitted")

	go c.lookupFill(ctx, req.Symbol, result.OrderID)

	return result.OrderID, nil
}

// lookupFill polls the execution list for the order's fill and pushes it
// onto the fill channel. Market orders normally execute on the first try.
func (c *BybitClient) lookupFill(ctx context.Context, symbol, orderID string) {
	for attempt := 0; attempt < fillLookupAttempts; attempt++ {
		fills, err := c.executions(ctx, symbol, orderID, time.Time{})
		if err == nil && len(fills) > 0 {
			c.fills <- fills[len(fills)-1]
			return
		}
		if err != nil {
			logger.WithError(err).WithField("order_id", orderID).Warn("fill lookup failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(fillLookupDelay):
		}
	}
	logger.WithField("order_id", orderID).Warn("no fill found for order; awaiting timeout")
}

func (c *BybitClient) FillEvents() <-chan FillEvent {
	return c.fills
}

func (c *BybitClient) FillHistory(ctx context.Context, symbol string, since time.Time) ([]FillEvent, error) {
	return c.executions(ctx, symbol, "", since)
}

func (c *BybitClient) executions(ctx context.Context, symbol, orderID string, since time.Time) ([]FillEvent, error) {
	params := url.Values{}
	params.Set("category", bybitCategorySpot)
	params.Set("symbol", symbol)
	if orderID != "" {
		params.Set("orderId", orderID)
	}
	if !since.IsZero() {
		params.Set("startTime", strconv.FormatInt(since.UnixMilli(), 10))
	}

	var result bybitExecutionResult
	if err := c.doGet(ctx, "/v5/execution/list", params, true, &result); err != nil {
		return nil, err
	}

	// Bybit lists executions newest first.
	fills := make([]FillEvent, 0, len(result.List))
	for i := len(result.List) - 1; i >= 0; i-- {
		row := result.List[i]
		price, err := strconv.ParseFloat(row.ExecPrice, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.ParseFloat(row.ExecQty, 64)
		if err != nil {
			continue
		}
		ms, _ := strconv.ParseInt(row.ExecTime, 10, 64)
		fills = append(fills, FillEvent{
			OrderID:   row.OrderID,
			Symbol:    row.Symbol,
			Side:      row.Side,
			Price:     price,
			Size:      qty,
			Timestamp: time.UnixMilli(ms).UTC(),
		})
	}
	return fills, nil
}

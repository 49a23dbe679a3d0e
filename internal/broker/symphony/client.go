// Package symphony implements the broker collaborator against an
// XTS-style interactive + market-data HTTP API with a streamed quote
// feed. It owns transport and payload encoding only; retry policy
// belongs to callers.
package symphony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/broker"
	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/stream"
)

const (
	sessionPath        = "/interactive/user/session"
	ordersPath         = "/interactive/orders"
	masterContractPath = "/apimarketdata/instruments/master"
	streamPath         = "/apimarketdata/socket"

	transactTimeLayout = "02-01-2006 15:04:05"
	ltpMessageCode     = 1512
)

// Option configures the client.
type Option struct {
	BaseURL   string
	StreamURL string
	APIKey    string
	APISecret string
	Source    string

	HTTPTimeout  time.Duration
	Backoff      stream.Backoff
	MaxReconnect int
}

// Client is a broker.Broker over the symphony wire protocol.
type Client struct {
	opt    Option
	http   *http.Client
	token  string
	userID string

	ws *stream.Client
}

var _ broker.Broker = (*Client)(nil)

// New builds an unauthenticated client; Login must run first.
func New(opt Option) *Client {
	timeout := opt.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opt.Source == "" {
		opt.Source = "WebAPI"
	}
	return &Client{
		opt:  opt,
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Login(ctx context.Context) (broker.SessionTokens, error) {
	req := loginRequest{
		AppKey:    c.opt.APIKey,
		SecretKey: c.opt.APISecret,
		Source:    c.opt.Source,
	}

	var resp loginResponse
	if err := c.post(ctx, sessionPath, req, &resp); err != nil {
		return broker.SessionTokens{}, errors.Wrap(err, "login")
	}
	if resp.Type != "success" {
		return broker.SessionTokens{}, errors.Errorf("login rejected: %s", resp.Description)
	}

	c.token = resp.Result.Token
	c.userID = resp.Result.UserID
	return broker.SessionTokens{
		InteractiveToken: resp.Result.Token,
		MarketDataToken:  resp.Result.Token,
		UserID:           resp.Result.UserID,
	}, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, sessionPath, nil, nil); err != nil {
		return errors.Wrap(err, "logout")
	}
	c.token = ""
	return nil
}

// ConnectStream dials the quote feed and pumps parsed ticks into the
// handlers. It returns once the first connection attempt resolves;
// the feed keeps running until ctx is done or the reconnect budget is
// exhausted, at which point OnClose fires.
func (c *Client) ConnectStream(ctx context.Context, h broker.StreamHandlers) error {
	url := fmt.Sprintf("%s%s?token=%s&userID=%s", c.opt.StreamURL, streamPath, c.token, c.userID)

	ws, err := stream.New(stream.Config{
		URL:                    url,
		Backoff:                c.opt.Backoff,
		MaxConsecutiveFailures: c.opt.MaxReconnect,
		PingInterval:           25 * time.Second,
		OnConnect: func(ctx context.Context, _ *stream.Client) error {
			if h.OnConnect != nil {
				h.OnConnect()
			}
			return nil
		},
		OnMessage: func(payload []byte) {
			var tick tickPayload
			if err := json.Unmarshal(payload, &tick); err != nil {
				return
			}
			if tick.MessageCode != ltpMessageCode {
				return
			}
			if h.OnMessage != nil {
				h.OnMessage(tick.ExchangeSegment, tick.ExchangeInstrumentID, decimalFloat(tick.LastTradedPrice))
			}
		},
		OnGiveUp: func(err error) {
			if h.OnClose != nil {
				h.OnClose(err)
			}
		},
	})
	if err != nil {
		return errors.Wrap(err, "build stream")
	}

	c.ws = ws
	go func() {
		if err := ws.Run(ctx); err != nil && ctx.Err() == nil {
			logs.Errorf("quote stream stopped, err: %+v", err)
		}
	}()
	return nil
}

func (c *Client) Subscribe(ctx context.Context, segment, token string) error {
	if c.ws == nil {
		return errors.New("subscribe before stream connect")
	}
	req := subscribeRequest{
		Instruments: []subscribeInstrument{{
			ExchangeSegment:      segment,
			ExchangeInstrumentID: token,
		}},
		MessageCode: ltpMessageCode,
	}
	if err := c.ws.WriteJSON(req); err != nil {
		return errors.Wrap(err, "write subscribe payload").With("segment", segment).With("token", token)
	}
	return nil
}

func (c *Client) MasterContract(ctx context.Context) ([]model.Instrument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opt.BaseURL+masterContractPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch master contract")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("master contract http %d: %s", resp.StatusCode, body)
	}

	return parseMasterContract(resp.Body)
}

func (c *Client) PlaceOrder(ctx context.Context, req broker.PlaceOrderRequest) (string, string, error) {
	payload := placeOrderRequest{
		ExchangeSegment:      req.Segment,
		ExchangeInstrumentID: req.Token,
		OrderSide:            string(req.Side),
		OrderType:            string(req.OrderType),
		ProductType:          "NRML",
		TimeInForce:          "DAY",
		OrderQuantity:        req.Qty,
		LimitPrice:           req.Price,
	}

	var resp placeOrderResponse
	if err := c.post(ctx, ordersPath, payload, &resp); err != nil {
		return "", "", errors.Wrap(err, "place order")
	}
	orderID := strconv.FormatInt(resp.Result.AppOrderID, 10)
	if resp.Type != "success" {
		return orderID, resp.Description, errors.Errorf("order rejected: %s", resp.Description)
	}
	return orderID, "success", nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	path := fmt.Sprintf("%s?appOrderID=%s", ordersPath, orderID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return errors.Wrap(err, "cancel order").With("orderID", orderID)
	}
	return nil
}

func (c *Client) OrderBook(ctx context.Context) ([]broker.OrderRecord, error) {
	var resp orderBookResponse
	if err := c.do(ctx, http.MethodGet, ordersPath, nil, &resp); err != nil {
		return nil, errors.Wrap(err, "fetch order book")
	}

	records := make([]broker.OrderRecord, 0, len(resp.Result))
	for _, row := range resp.Result {
		records = append(records, broker.OrderRecord{
			AppOrderID:              strconv.FormatInt(row.AppOrderID, 10),
			OrderStatus:             row.OrderStatus,
			OrderSide:               enum.OrderSide(row.OrderSide),
			OrderType:               enum.OrderType(row.OrderType),
			OrderQuantity:           row.OrderQuantity,
			LeavesQuantity:          row.LeavesQuantity,
			OrderAverageTradedPrice: decimalFloat(row.OrderAverageTradedPrice),
			ExchangeTransactTime:    parseTransactTime(row.ExchangeTransactTime),
		})
	}
	return records, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.opt.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("http %d: %s", resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func decimalFloat(d decimal.Decimal) float64 {
	f, err := strconv.ParseFloat(d.String(), 64)
	if err != nil {
		return 0
	}
	return f
}

func parseTransactTime(s string) int64 {
	if s == "" {
		return 0
	}
	t, err := time.ParseInLocation(transactTimeLayout, s, time.Local)
	if err != nil {
		return 0
	}
	return t.Unix()
}

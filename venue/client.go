// Package venue is the HTTP client for the prediction-market exchange:
// order submission, market quotes and settlement outcomes.
package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"predictor/market"
)

const (
	// DemoURL is the venue's paper/demo environment.
	DemoURL = "https://demo-api.predictex.example.com"
	// LiveURL is the venue's production environment.
	LiveURL = "https://api.predictex.example.com"
)

// ErrAuth marks an authentication/authorization failure. The engine counts
// these toward the ledger's consecutive-auth-failure hard stop.
var ErrAuth = errors.New("venue: authentication failed")

// ErrNoOutcome is returned when a market has not settled yet.
var ErrNoOutcome = errors.New("venue: market not settled")

// Client is a venue API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a venue client. Pass demo=true for the paper
// environment.
func NewClient(token string, demo bool) *Client {
	baseURL := LiveURL
	if demo {
		baseURL = DemoURL
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, ErrAuth)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

type quoteResponse struct {
	Ticker         string  `json:"ticker"`
	YesBid         int     `json:"yes_bid"`
	YesAsk         int     `json:"yes_ask"`
	MinutesToClose float64 `json:"minutes_to_close"`
	Time           string  `json:"time"`
}

// GetQuote returns the current book for one market.
func (c *Client) GetQuote(ctx context.Context, ticker string) (market.Quote, error) {
	var qr quoteResponse
	if err := c.do(ctx, http.MethodGet, "/v1/markets/"+ticker, nil, &qr); err != nil {
		return market.Quote{}, err
	}

	q := market.Quote{
		Ticker:         qr.Ticker,
		Bid:            market.Price(qr.YesBid),
		Ask:            market.Price(qr.YesAsk),
		MinutesToClose: qr.MinutesToClose,
	}
	if t, err := time.Parse(time.RFC3339, qr.Time); err == nil {
		q.Time = t
	}
	return q, nil
}

type orderRequest struct {
	ClientOrderID string `json:"client_order_id"`
	Ticker        string `json:"ticker"`
	Side          string `json:"side"`
	Count         int    `json:"count"`
	LimitPrice    int    `json:"limit_price"`
}

type orderResponse struct {
	OrderID   string `json:"order_id"`
	FillPrice int    `json:"fill_price"`
	Status    string `json:"status"`
}

// PlaceOrder submits a limit order and returns the venue's reference id and
// fill price. The client order id makes accidental resubmission detectable
// venue-side, but callers still must not retry automatically.
func (c *Client) PlaceOrder(ctx context.Context, order market.Order) (string, market.Price, error) {
	req := orderRequest{
		ClientOrderID: order.ID,
		Ticker:        order.Ticker,
		Side:          string(order.Side),
		Count:         order.Contracts,
		LimitPrice:    int(order.LimitPrice),
	}
	var or orderResponse
	if err := c.do(ctx, http.MethodPost, "/v1/orders", req, &or); err != nil {
		return "", 0, err
	}
	if or.OrderID == "" {
		return "", 0, fmt.Errorf("venue accepted order %s without a reference id", order.ID)
	}
	return or.OrderID, market.Price(or.FillPrice), nil
}

type outcomeResponse struct {
	Ticker  string `json:"ticker"`
	Settled bool   `json:"settled"`
	Result  string `json:"result"` // "YES" or "NO" once settled
}

// GetOutcome queries a market's terminal outcome. Returns ErrNoOutcome while
// the market is still open or unresolved.
func (c *Client) GetOutcome(ctx context.Context, ticker string) (market.Outcome, error) {
	var or outcomeResponse
	if err := c.do(ctx, http.MethodGet, "/v1/markets/"+ticker+"/result", nil, &or); err != nil {
		return "", err
	}
	if !or.Settled {
		return "", fmt.Errorf("market %s: %w", ticker, ErrNoOutcome)
	}
	switch market.Outcome(or.Result) {
	case market.OutcomeYes, market.OutcomeNo:
		return market.Outcome(or.Result), nil
	default:
		return "", fmt.Errorf("market %s: unrecognized result %q", ticker, or.Result)
	}
}

package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	bybit "github.com/bybit-exchange/bybit.go.api"
	"golang.org/x/time/rate"

	"arbiscan/config"
	"arbiscan/logger"
	"arbiscan/models"
)

// Client fetches spot tickers from Bybit's unified trading API.
type Client struct {
	id      models.VenueID
	client  *bybit.Client
	limiter *rate.Limiter
	log     *logger.Log
}

// tickersResult mirrors the v5 market/tickers result payload.
type tickersResult struct {
	Category string `json:"category"`
	List     []struct {
		Symbol    string `json:"symbol"`
		Bid1Price string `json:"bid1Price"`
		Ask1Price string `json:"ask1Price"`
		Volume24h string `json:"volume24h"`
	} `json:"list"`
}

// instrumentsResult mirrors the v5 market/instruments-info result payload.
type instrumentsResult struct {
	Category string `json:"category"`
	List     []struct {
		Symbol    string `json:"symbol"`
		BaseCoin  string `json:"baseCoin"`
		QuoteCoin string `json:"quoteCoin"`
		Status    string `json:"status"`
	} `json:"list"`
}

// New creates a Bybit market-data source bound to the venue configuration.
func New(vc config.VenueConfig, timeout time.Duration) *Client {
	log := logger.GetLogger()

	transport := &http.Transport{
		MaxIdleConns:        vc.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: vc.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     vc.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     vc.ConnectionPool.IdleConnTimeout,
		DisableCompression:  false,
	}
	httpClient := &http.Client{Transport: transport, Timeout: timeout}

	base := vc.BaseURL
	if base == "" {
		base = "https://api.bybit.com"
	}
	client := bybit.NewBybitHttpClient("", "", bybit.WithBaseURL(base))
	client.HTTPClient = httpClient

	rl := vc.RateLimit
	rps := rl.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := rl.BurstSize
	if burst <= 0 {
		burst = 1
	}

	log.WithComponent("bybit_venue").WithFields(logger.Fields{
		"base_url": base,
		"timeout":  timeout,
	}).Info("bybit venue initialized")

	return &Client{
		id:      models.VenueID(vc.Name),
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log,
	}
}

func (c *Client) ID() models.VenueID { return c.id }

// nativeSymbol maps BTC/USDT to Bybit's BTCUSDT form.
func nativeSymbol(in models.Instrument) string {
	return in.Base + in.Quote
}

// Instruments returns all spot pairs in Trading status.
func (c *Client) Instruments(ctx context.Context) ([]models.Instrument, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := map[string]interface{}{"category": "spot", "limit": 1000}
	resp, err := c.client.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("bybit instruments info: %w", err)
	}

	payload, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("bybit instruments info: marshal result: %w", err)
	}
	var result instrumentsResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("bybit instruments info: decode result: %w", err)
	}

	out := make([]models.Instrument, 0, len(result.List))
	for _, s := range result.List {
		if s.Status != "Trading" {
			continue
		}
		out = append(out, models.Instrument{Base: s.BaseCoin, Quote: s.QuoteCoin})
	}
	return out, nil
}

// FetchTicker retrieves the spot ticker for one instrument.
func (c *Client) FetchTicker(ctx context.Context, in models.Instrument) (models.Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.Quote{}, err
	}

	symbol := nativeSymbol(in)
	params := map[string]interface{}{"category": "spot", "symbol": symbol}
	resp, err := c.client.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return models.Quote{}, fmt.Errorf("bybit ticker %s: %w", symbol, err)
	}

	payload, err := json.Marshal(resp.Result)
	if err != nil {
		return models.Quote{}, fmt.Errorf("bybit ticker %s: marshal result: %w", symbol, err)
	}
	var result tickersResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return models.Quote{}, fmt.Errorf("bybit ticker %s: decode result: %w", symbol, err)
	}
	if len(result.List) == 0 {
		return models.Quote{}, fmt.Errorf("bybit ticker %s: empty response", symbol)
	}

	t := result.List[0]
	bid, err := strconv.ParseFloat(t.Bid1Price, 64)
	if err != nil {
		return models.Quote{}, fmt.Errorf("bybit ticker %s: bad bid %q: %w", symbol, t.Bid1Price, err)
	}
	ask, err := strconv.ParseFloat(t.Ask1Price, 64)
	if err != nil {
		return models.Quote{}, fmt.Errorf("bybit ticker %s: bad ask %q: %w", symbol, t.Ask1Price, err)
	}
	volume, err := strconv.ParseFloat(t.Volume24h, 64)
	if err != nil {
		return models.Quote{}, fmt.Errorf("bybit ticker %s: bad volume %q: %w", symbol, t.Volume24h, err)
	}

	return models.Quote{
		Venue:      c.id,
		Instrument: in,
		Bid:        bid,
		Ask:        ask,
		Volume:     volume,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

func (c *Client) Close() error {
	c.client.HTTPClient.CloseIdleConnections()
	return nil
}

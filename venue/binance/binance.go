package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"

	"arbiscan/config"
	"arbiscan/logger"
	"arbiscan/models"
)

// Client fetches spot tickers from Binance through the binance-go client.
type Client struct {
	id      models.VenueID
	client  *binance.Client
	limiter *rate.Limiter
	log     *logger.Log
}

// New creates a Binance market-data source bound to the venue configuration.
func New(vc config.VenueConfig, timeout time.Duration) *Client {
	log := logger.GetLogger()

	transport := &http.Transport{
		MaxIdleConns:        vc.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: vc.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     vc.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     vc.ConnectionPool.IdleConnTimeout,
		DisableCompression:  false,
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}

	client := binance.NewClient("", "")
	client.HTTPClient = httpClient
	if vc.BaseURL != "" {
		client.BaseURL = vc.BaseURL
	}

	rl := vc.RateLimit
	rps := rl.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := rl.BurstSize
	if burst <= 0 {
		burst = 1
	}

	log.WithComponent("binance_venue").WithFields(logger.Fields{
		"max_idle_conns":     vc.ConnectionPool.MaxIdleConns,
		"max_conns_per_host": vc.ConnectionPool.MaxConnsPerHost,
		"timeout":            timeout,
	}).Info("binance venue initialized")

	return &Client{
		id:      models.VenueID(vc.Name),
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log,
	}
}

func (c *Client) ID() models.VenueID { return c.id }

// nativeSymbol maps BTC/USDT to Binance's BTCUSDT form.
func nativeSymbol(in models.Instrument) string {
	return in.Base + in.Quote
}

// Instruments returns all spot pairs in TRADING status.
func (c *Client) Instruments(ctx context.Context) ([]models.Instrument, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	info, err := c.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance exchange info: %w", err)
	}

	out := make([]models.Instrument, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		out = append(out, models.Instrument{Base: s.BaseAsset, Quote: s.QuoteAsset})
	}
	return out, nil
}

// FetchTicker retrieves the 24h stats for one instrument, which carry the
// current best bid/ask alongside the base-currency volume.
func (c *Client) FetchTicker(ctx context.Context, in models.Instrument) (models.Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.Quote{}, err
	}

	symbol := nativeSymbol(in)
	stats, err := c.client.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return models.Quote{}, fmt.Errorf("binance ticker %s: %w", symbol, err)
	}
	if len(stats) == 0 {
		return models.Quote{}, fmt.Errorf("binance ticker %s: empty response", symbol)
	}

	s := stats[0]
	bid, err := strconv.ParseFloat(s.BidPrice, 64)
	if err != nil {
		return models.Quote{}, fmt.Errorf("binance ticker %s: bad bid %q: %w", symbol, s.BidPrice, err)
	}
	ask, err := strconv.ParseFloat(s.AskPrice, 64)
	if err != nil {
		return models.Quote{}, fmt.Errorf("binance ticker %s: bad ask %q: %w", symbol, s.AskPrice, err)
	}
	volume, err := strconv.ParseFloat(s.Volume, 64)
	if err != nil {
		return models.Quote{}, fmt.Errorf("binance ticker %s: bad volume %q: %w", symbol, s.Volume, err)
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

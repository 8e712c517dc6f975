package kucoin

import (
	"context"
	"fmt"
	"strconv"
	"time"

	api "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/api"
	spotmarket "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/generate/spot/market"
	sdktype "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/types"
	"golang.org/x/time/rate"

	"arbiscan/config"
	"arbiscan/logger"
	"arbiscan/models"
)

// Client fetches spot tickers from KuCoin through the universal SDK.
type Client struct {
	id        models.VenueID
	marketAPI spotmarket.MarketAPI
	limiter   *rate.Limiter
	log       *logger.Log
}

// New creates a KuCoin market-data source bound to the venue configuration.
func New(vc config.VenueConfig, timeout time.Duration) *Client {
	log := logger.GetLogger()

	baseURL := vc.BaseURL
	if baseURL == "" {
		baseURL = "https://api.kucoin.com"
	}

	transportOpt := sdktype.NewTransportOptionBuilder().
		SetMaxIdleConns(vc.ConnectionPool.MaxIdleConns).
		SetMaxIdleConnsPerHost(vc.ConnectionPool.MaxIdleConns).
		SetMaxConnsPerHost(vc.ConnectionPool.MaxConnsPerHost).
		SetIdleConnTimeout(vc.ConnectionPool.IdleConnTimeout).
		SetTimeout(timeout).
		Build()

	option := sdktype.NewClientOptionBuilder().
		WithSpotEndpoint(baseURL).
		WithTransportOption(transportOpt).
		Build()

	client := api.NewClient(option)
	marketAPI := client.RestService().GetSpotService().GetMarketAPI()

	rl := vc.RateLimit
	rps := rl.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := rl.BurstSize
	if burst <= 0 {
		burst = 1
	}

	log.WithComponent("kucoin_venue").WithFields(logger.Fields{
		"base_url": baseURL,
		"timeout":  timeout,
	}).Info("kucoin venue initialized")

	return &Client{
		id:        models.VenueID(vc.Name),
		marketAPI: marketAPI,
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		log:       log,
	}
}

func (c *Client) ID() models.VenueID { return c.id }

// nativeSymbol maps BTC/USDT to KuCoin's BTC-USDT form.
func nativeSymbol(in models.Instrument) string {
	return in.Base + "-" + in.Quote
}

// Instruments returns all spot pairs with trading enabled.
func (c *Client) Instruments(ctx context.Context) ([]models.Instrument, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := spotmarket.NewGetAllSymbolsReqBuilder().Build()
	resp, err := c.marketAPI.GetAllSymbols(req, ctx)
	if err != nil {
		return nil, fmt.Errorf("kucoin symbols: %w", err)
	}

	out := make([]models.Instrument, 0, len(resp.Data))
	for _, s := range resp.Data {
		if !s.EnableTrading {
			continue
		}
		out = append(out, models.Instrument{Base: s.BaseCurrency, Quote: s.QuoteCurrency})
	}
	return out, nil
}

// FetchTicker retrieves the 24h stats for one instrument. KuCoin reports the
// best bid as "buy" and the best ask as "sell".
func (c *Client) FetchTicker(ctx context.Context, in models.Instrument) (models.Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.Quote{}, err
	}

	symbol := nativeSymbol(in)
	req := spotmarket.NewGet24hrStatsReqBuilder().SetSymbol(symbol).Build()
	resp, err := c.marketAPI.Get24hrStats(req, ctx)
	if err != nil {
		return models.Quote{}, fmt.Errorf("kucoin ticker %s: %w", symbol, err)
	}

	bid, err := parsePrice(resp.Buy)
	if err != nil {
		return models.Quote{}, fmt.Errorf("kucoin ticker %s: bad bid %q: %w", symbol, resp.Buy, err)
	}
	ask, err := parsePrice(resp.Sell)
	if err != nil {
		return models.Quote{}, fmt.Errorf("kucoin ticker %s: bad ask %q: %w", symbol, resp.Sell, err)
	}
	volume, err := parsePrice(resp.Vol)
	if err != nil {
		return models.Quote{}, fmt.Errorf("kucoin ticker %s: bad volume %q: %w", symbol, resp.Vol, err)
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

// parsePrice treats KuCoin's empty fields as zero; an instrument with no
// trades in 24h reports "" rather than "0".
func parsePrice(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func (c *Client) Close() error {
	return nil
}

package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"arbiscan/config"
	"arbiscan/logger"
	"arbiscan/models"
)

// Client fetches spot tickers from the OKX public REST API. OKX has no Go SDK
// worth carrying, so this talks to /api/v5 directly.
type Client struct {
	id         models.VenueID
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Log
}

// New creates an OKX market-data source bound to the venue configuration.
func New(vc config.VenueConfig, timeout time.Duration) *Client {
	log := logger.GetLogger()

	baseURL := vc.BaseURL
	if baseURL == "" {
		baseURL = "https://www.okx.com"
	}

	transport := &http.Transport{
		MaxIdleConns:        vc.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: vc.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     vc.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     vc.ConnectionPool.IdleConnTimeout,
		DisableCompression:  false,
	}

	// OKX rejects default Go user agents behind its CDN.
	httpClient := &http.Client{
		Transport: userAgentTransport{agent: "curl/8.5.0", base: transport},
		Timeout:   timeout,
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

	log.WithComponent("okx_venue").WithFields(logger.Fields{
		"base_url": baseURL,
		"timeout":  timeout,
	}).Info("okx venue initialized")

	return &Client{
		id:         models.VenueID(vc.Name),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		log:        log,
	}
}

func (c *Client) ID() models.VenueID { return c.id }

// nativeSymbol maps BTC/USDT to OKX's BTC-USDT instId form.
func nativeSymbol(in models.Instrument) string {
	return in.Base + "-" + in.Quote
}

type apiResponse struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// get issues one GET against the public API and unwraps the v5 envelope.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("okx %s: unexpected status %d", path, resp.StatusCode)
	}

	var wrapper apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return fmt.Errorf("okx %s: decode: %w", path, err)
	}
	if wrapper.Code != "0" {
		return fmt.Errorf("okx %s: code %s: %s", path, wrapper.Code, wrapper.Msg)
	}
	return json.Unmarshal(wrapper.Data, out)
}

// Instruments returns all live spot pairs.
func (c *Client) Instruments(ctx context.Context) ([]models.Instrument, error) {
	var data []struct {
		InstID   string `json:"instId"`
		BaseCcy  string `json:"baseCcy"`
		QuoteCcy string `json:"quoteCcy"`
		State    string `json:"state"`
	}

	query := url.Values{"instType": {"SPOT"}}
	if err := c.get(ctx, "/api/v5/public/instruments", query, &data); err != nil {
		return nil, fmt.Errorf("okx instruments: %w", err)
	}

	out := make([]models.Instrument, 0, len(data))
	for _, inst := range data {
		if inst.State != "live" {
			continue
		}
		out = append(out, models.Instrument{Base: inst.BaseCcy, Quote: inst.QuoteCcy})
	}
	return out, nil
}

// FetchTicker retrieves the spot ticker for one instrument.
func (c *Client) FetchTicker(ctx context.Context, in models.Instrument) (models.Quote, error) {
	symbol := nativeSymbol(in)

	var data []struct {
		InstID string `json:"instId"`
		BidPx  string `json:"bidPx"`
		AskPx  string `json:"askPx"`
		Vol24h string `json:"vol24h"`
	}

	query := url.Values{"instId": {symbol}}
	if err := c.get(ctx, "/api/v5/market/ticker", query, &data); err != nil {
		return models.Quote{}, fmt.Errorf("okx ticker %s: %w", symbol, err)
	}
	if len(data) == 0 {
		return models.Quote{}, fmt.Errorf("okx ticker %s: empty response", symbol)
	}

	t := data[0]
	bid, err := parsePrice(t.BidPx)
	if err != nil {
		return models.Quote{}, fmt.Errorf("okx ticker %s: bad bid %q: %w", symbol, t.BidPx, err)
	}
	ask, err := parsePrice(t.AskPx)
	if err != nil {
		return models.Quote{}, fmt.Errorf("okx ticker %s: bad ask %q: %w", symbol, t.AskPx, err)
	}
	volume, err := parsePrice(t.Vol24h)
	if err != nil {
		return models.Quote{}, fmt.Errorf("okx ticker %s: bad volume %q: %w", symbol, t.Vol24h, err)
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

// parsePrice treats OKX's empty fields as zero; an instrument with no book
// reports "" rather than "0".
func parsePrice(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// Close releases idle connections held by the pool.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

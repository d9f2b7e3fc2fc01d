package yahoo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ayarullin/finvizor/internal/contracts"
	"github.com/ayarullin/finvizor/pkg/config"
	"github.com/ayarullin/finvizor/pkg/httputil"
	"github.com/ayarullin/finvizor/pkg/logger"
	"github.com/ayarullin/finvizor/pkg/redis"
)

// Client fetches analyst estimates from the Yahoo Finance
// quoteSummary API. All Yahoo requests go through this client.
type Client struct {
	httpClient *httputil.Client
	cache      *redis.Cache
	logger     *logger.Logger

	baseURL  string
	cacheTTL time.Duration
}

// NewClient creates a new Yahoo Finance client
func NewClient(cfg *config.Config, cache *redis.Cache, log *logger.Logger) *Client {
	return &Client{
		httpClient: httputil.NewWithTimeout(log, cfg.Yahoo.HTTPTimeout),
		cache:      cache,
		logger:     log,
		baseURL:    cfg.Yahoo.BaseURL,
		cacheTTL:   cfg.Yahoo.CacheTTL,
	}
}

// quoteSummary mirrors the subset of the financialData module the
// advisor reads
type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			FinancialData struct {
				RecommendationMean rawValue `json:"recommendationMean"`
				TargetLowPrice     rawValue `json:"targetLowPrice"`
				CurrentPrice       rawValue `json:"currentPrice"`
				TargetMeanPrice    rawValue `json:"targetMeanPrice"`
				TargetHighPrice    rawValue `json:"targetHighPrice"`
			} `json:"financialData"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

type rawValue struct {
	Raw *float64 `json:"raw"`
}

// FetchEstimate returns the analyst estimate for one ticker, serving
// from the Redis cache within its TTL. The cache keeps weekend and
// re-run cycles on the last trading day's data.
func (c *Client) FetchEstimate(ctx context.Context, ticker string) (*contracts.Estimate, error) {
	cacheKey := fmt.Sprintf("estimate:%s:%s", ticker, time.Now().Format("2006-01-02"))

	var cached contracts.Estimate
	if hit, err := c.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	estimate, err := c.fetchEstimate(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, cacheKey, estimate, c.cacheTTL); err != nil {
		c.logger.WithError(err).WithField("ticker", ticker).Warn("Failed to cache estimate")
	}

	return estimate, nil
}

func (c *Client) fetchEstimate(ctx context.Context, ticker string) (*contracts.Estimate, error) {
	// Finviz prints share classes with @, Yahoo with a dot
	symbol := strings.ReplaceAll(ticker, "@", ".")
	url := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=financialData", c.baseURL, symbol)

	var resp quoteSummaryResponse
	if err := c.httpClient.GetJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("quoteSummary %s: %w", ticker, err)
	}

	if resp.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("quoteSummary %s: %s", ticker, resp.QuoteSummary.Error.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("quoteSummary %s: empty result", ticker)
	}

	data := resp.QuoteSummary.Result[0].FinancialData
	fields := []*float64{
		data.RecommendationMean.Raw,
		data.TargetLowPrice.Raw,
		data.CurrentPrice.Raw,
		data.TargetMeanPrice.Raw,
		data.TargetHighPrice.Raw,
	}
	for _, field := range fields {
		if field == nil {
			return nil, fmt.Errorf("quoteSummary %s: incomplete financialData", ticker)
		}
	}

	return &contracts.Estimate{
		Rating:       *data.RecommendationMean.Raw,
		LowTarget:    *data.TargetLowPrice.Raw,
		CurrentPrice: *data.CurrentPrice.Raw,
		AvgTarget:    *data.TargetMeanPrice.Raw,
		HighTarget:   *data.TargetHighPrice.Raw,
	}, nil
}

// FetchEstimates fetches estimates for many tickers. A per-ticker
// failure is recorded as a nil estimate so callers can tell "no data"
// from "not requested"; it never fails the batch.
func (c *Client) FetchEstimates(ctx context.Context, tickers []string) map[string]*contracts.Estimate {
	estimates := make(map[string]*contracts.Estimate, len(tickers))

	for _, ticker := range tickers {
		select {
		case <-ctx.Done():
			return estimates
		default:
		}

		estimate, err := c.FetchEstimate(ctx, ticker)
		if err != nil {
			c.logger.WithError(err).WithField("ticker", ticker).Warn("Estimate fetch failed")
			estimates[ticker] = nil
			continue
		}
		estimates[ticker] = estimate
	}

	c.logger.WithFields(map[string]interface{}{
		"requested": len(tickers),
		"fetched":   len(estimates),
	}).Info("Fetched analyst estimates")

	return estimates
}

// Price looks up a ticker's current market price from its estimate.
// It satisfies the ledger's price lookup contract.
func (c *Client) Price(ctx context.Context) func(ticker string) (float64, error) {
	return func(ticker string) (float64, error) {
		estimate, err := c.FetchEstimate(ctx, ticker)
		if err != nil {
			return 0, err
		}
		return estimate.CurrentPrice, nil
	}
}

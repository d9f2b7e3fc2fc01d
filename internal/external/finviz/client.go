package finviz

import (
	"github.com/ayarullin/finvizor/pkg/config"
	"github.com/ayarullin/finvizor/pkg/httputil"
	"github.com/ayarullin/finvizor/pkg/logger"
)

// browserUA keeps the screener from serving the bot-wall page
const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Client scrapes the Finviz screener. All Finviz requests go through
// this client.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger

	baseURL  string
	pageSize int
	maxRows  int
}

// NewClient creates a new Finviz client
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	httpClient := httputil.NewWithTimeout(log, cfg.Finviz.HTTPTimeout).
		WithRateLimit(cfg.Finviz.RatePerSec).
		WithUserAgent(browserUA)

	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    cfg.Finviz.BaseURL,
		pageSize:   cfg.Finviz.PageSize,
		maxRows:    cfg.Finviz.MaxRows,
	}
}

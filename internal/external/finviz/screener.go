package finviz

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ayarullin/finvizor/internal/contracts"
)

// Metric identifies one screener ordering to scrape
type Metric struct {
	// Name appears in logs
	Name string
	// Order is the screener's o= sort parameter
	Order string
	// View is the screener's v= table layout
	View int
	// ValueColumn is the 0-based td index of the metric value
	ValueColumn int
	// Transform maps the parsed cell value to the stored raw value
	Transform func(float64) float64
}

// The two metrics the advisor ranks on. E/P is derived from the P/E
// column so that "bigger is better" holds for both raw values.
var (
	MetricEP = Metric{
		Name:        "ep",
		Order:       "pe",
		View:        111,
		ValueColumn: 7,
		Transform:   func(pe float64) float64 { return 100 / pe },
	}
	MetricROE = Metric{
		Name:        "roe",
		Order:       "-roe",
		View:        161,
		ValueColumn: 5,
		Transform:   func(roe float64) float64 { return roe },
	}
)

// FetchRanking walks the screener's pagination for one metric and
// returns every parsed row in scan order. Individual page failures
// are logged and skipped: a partially scraped table is still useful
// because fusion carries missing tickers forward. Three consecutive
// empty pages end the walk early.
func (c *Client) FetchRanking(ctx context.Context, metric Metric) ([]contracts.MetricSample, error) {
	var samples []contracts.MetricSample
	emptyPages := 0

	for offset := 1; offset <= c.maxRows; offset += c.pageSize {
		select {
		case <-ctx.Done():
			return samples, ctx.Err()
		default:
		}

		pageURL := fmt.Sprintf("%s/screener.ashx?v=%d&ft=3&o=%s&r=%d",
			c.baseURL, metric.View, metric.Order, offset)

		page, err := c.fetchPage(ctx, pageURL, metric)
		if err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"metric": metric.Name,
				"offset": offset,
			}).Warn("Failed to fetch screener page")
			continue
		}

		if len(page) == 0 {
			emptyPages++
			if emptyPages >= 3 {
				break
			}
			continue
		}
		emptyPages = 0

		samples = append(samples, page...)
	}

	c.logger.WithFields(map[string]interface{}{
		"metric": metric.Name,
		"count":  len(samples),
	}).Info("Fetched screener ranking")

	return samples, nil
}

// fetchPage downloads and parses one screener page
func (c *Client) fetchPage(ctx context.Context, pageURL string, metric Metric) ([]contracts.MetricSample, error) {
	resp, err := c.httpClient.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	return c.parseRows(doc, metric), nil
}

// parseRows extracts ranking rows from the screener result table
func (c *Client) parseRows(doc *goquery.Document, metric Metric) []contracts.MetricSample {
	var samples []contracts.MetricSample

	doc.Find(`table[bgcolor="#d3d3d3"] tr[valign="top"]`).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() <= metric.ValueColumn {
			return
		}

		rank, err := strconv.Atoi(strings.TrimSpace(cells.Eq(0).Text()))
		if err != nil || rank < 1 {
			return
		}

		ticker := strings.TrimSpace(cells.Eq(1).Text())
		if ticker == "" {
			return
		}

		sample := contracts.MetricSample{Ticker: ticker, Rank: rank}
		if value, err := parseCellValue(cells.Eq(metric.ValueColumn).Text()); err == nil {
			transformed := metric.Transform(value)
			if !math.IsInf(transformed, 0) && !math.IsNaN(transformed) {
				sample.RawValue = &transformed
			}
		}

		samples = append(samples, sample)
	})

	return samples
}

// parseCellValue parses a numeric screener cell, tolerating a percent
// suffix and the dash Finviz prints for missing values
func parseCellValue(text string) (float64, error) {
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "%"))
	if text == "" || text == "-" {
		return 0, fmt.Errorf("empty cell")
	}
	return strconv.ParseFloat(text, 64)
}

package yahoo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayarullin/finvizor/pkg/config"
	"github.com/ayarullin/finvizor/pkg/logger"
	"github.com/ayarullin/finvizor/pkg/redis"
)

const quoteBody = `{"quoteSummary":{"result":[{"financialData":{
"recommendationMean":{"raw":1.8},
"targetLowPrice":{"raw":120.0},
"currentPrice":{"raw":150.5},
"targetMeanPrice":{"raw":180.0},
"targetHighPrice":{"raw":220.0}
}}],"error":null}}`

func testClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	cfg := &config.Config{
		Yahoo: config.YahooConfig{
			BaseURL:     serverURL,
			HTTPTimeout: 5 * time.Second,
			CacheTTL:    time.Hour,
		},
		Redis: config.RedisConfig{Enabled: false},
	}

	rdb, err := redis.New(cfg)
	require.NoError(t, err)

	client := NewClient(cfg, redis.NewCache(rdb, "finvizor"), logger.NewWriter(io.Discard))
	client.httpClient.DisableRetry()
	return client
}

func TestFetchEstimate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v10/finance/quoteSummary/AAPL", r.URL.Path)
		assert.Equal(t, "financialData", r.URL.Query().Get("modules"))
		fmt.Fprint(w, quoteBody)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	estimate, err := client.FetchEstimate(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, 1.8, estimate.Rating)
	assert.Equal(t, 120.0, estimate.LowTarget)
	assert.Equal(t, 150.5, estimate.CurrentPrice)
	assert.Equal(t, 180.0, estimate.AvgTarget)
	assert.Equal(t, 220.0, estimate.HighTarget)
}

func TestFetchEstimate_NormalizesTicker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v10/finance/quoteSummary/BRK.B", r.URL.Path)
		fmt.Fprint(w, quoteBody)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.FetchEstimate(context.Background(), "BRK@B")
	require.NoError(t, err)
}

func TestFetchEstimate_IncompleteData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quoteSummary":{"result":[{"financialData":{
			"recommendationMean":{"raw":1.8},
			"targetLowPrice":{},
			"currentPrice":{"raw":150.5},
			"targetMeanPrice":{"raw":180.0},
			"targetHighPrice":{"raw":220.0}}}],"error":null}}`)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	_, err := client.FetchEstimate(context.Background(), "AAPL")
	assert.Error(t, err, "missing fields are an error, never defaulted to zero")
}

func TestFetchEstimates_FailuresKeptAsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v10/finance/quoteSummary/BAD" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, quoteBody)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	estimates := client.FetchEstimates(context.Background(), []string{"AAPL", "BAD"})

	require.Len(t, estimates, 2)
	assert.NotNil(t, estimates["AAPL"])
	assert.Nil(t, estimates["BAD"], "fetch failure is a nil entry, not a missing one")
}

func TestPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, quoteBody)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	lookup := client.Price(context.Background())

	price, err := lookup("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 150.5, price)
}

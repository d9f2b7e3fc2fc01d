package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayarullin/finvizor/internal/contracts"
	"github.com/ayarullin/finvizor/internal/storage"
	"github.com/ayarullin/finvizor/pkg/config"
	"github.com/ayarullin/finvizor/pkg/logger"
)

func testNotifier(apiURL string, enabled bool) *Telegram {
	n := NewTelegram(config.TelegramConfig{BotToken: "123456789:test", Enabled: enabled},
		logger.NewWriter(io.Discard))
	n.apiURL = apiURL
	n.client.DisableRetry()
	return n
}

func TestSendDeliversMessage(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := testNotifier(srv.URL, true)
	err := n.Send(context.Background(), 42, "hello")
	require.NoError(t, err)

	assert.Equal(t, int64(42), got.ChatID)
	assert.Equal(t, "hello", got.Text)
}

func TestSendReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error_code":403,"description":"bot was blocked by the user"}`))
	}))
	defer srv.Close()

	n := testNotifier(srv.URL, true)
	err := n.Send(context.Background(), 42, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestSendDisabledIsNoop(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	n := testNotifier(srv.URL, false)
	require.NoError(t, n.Send(context.Background(), 42, "hello"))
	assert.False(t, called)
}

func TestBroadcastSkipsFailedChats(t *testing.T) {
	var delivered []int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.ChatID == 2 {
			w.Write([]byte(`{"ok":false,"error_code":403,"description":"blocked"}`))
			return
		}
		delivered = append(delivered, req.ChatID)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := testNotifier(srv.URL, true)
	n.Broadcast(context.Background(), []storage.Subscriber{
		{ChatID: 1}, {ChatID: 2}, {ChatID: 3},
	}, "report")

	assert.Equal(t, []int64{1, 3}, delivered)
}

func TestFormatReport(t *testing.T) {
	rows := []contracts.EstimateRow{
		{
			CompositeRow: contracts.CompositeRow{Ticker: "AAPL"},
			Estimate:     &contracts.Estimate{Rating: 1.5, CurrentPrice: 100, AvgTarget: 120},
		},
		{
			CompositeRow: contracts.CompositeRow{Ticker: "MSFT"},
			Estimate:     &contracts.Estimate{Rating: 2.0, CurrentPrice: 200, AvgTarget: 250},
		},
	}

	msg := FormatReport(rows, true, 105000, 0.05)

	assert.True(t, strings.HasPrefix(msg, "Portfolio recommendation changed"))
	assert.Contains(t, msg, "1. AAPL rating 1.50, price 100.00, target 120.00")
	assert.Contains(t, msg, "2. MSFT")
	assert.Contains(t, msg, "Net worth: 105000.00 (+5.00%)")
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ayarullin/finvizor/internal/contracts"
	"github.com/ayarullin/finvizor/internal/storage"
	"github.com/ayarullin/finvizor/pkg/config"
	"github.com/ayarullin/finvizor/pkg/httputil"
	"github.com/ayarullin/finvizor/pkg/logger"
)

// Telegram sends advisor reports through the Telegram Bot API.
type Telegram struct {
	client  *httputil.Client
	logger  *logger.Logger
	apiURL  string
	enabled bool
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// NewTelegram creates a Telegram notifier. When disabled every method
// is a no-op, so callers never have to branch on configuration.
func NewTelegram(cfg config.TelegramConfig, log *logger.Logger) *Telegram {
	return &Telegram{
		client:  httputil.New(log),
		logger:  log,
		apiURL:  fmt.Sprintf("https://api.telegram.org/bot%s", cfg.BotToken),
		enabled: cfg.Enabled,
	}
}

// Enabled reports whether notifications are configured
func (t *Telegram) Enabled() bool {
	return t.enabled
}

// Send delivers a single message to one chat
func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	if !t.enabled {
		return nil
	}

	resp, err := t.client.PostJSON(ctx, t.apiURL+"/sendMessage", sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	var result sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode telegram response: %w", err)
	}

	if !result.OK {
		return fmt.Errorf("telegram API error %d: %s", result.ErrorCode, result.Description)
	}

	return nil
}

// Broadcast sends the message to every subscriber. A failed delivery
// is logged and skipped so one blocked chat never starves the rest.
func (t *Telegram) Broadcast(ctx context.Context, subscribers []storage.Subscriber, text string) {
	if !t.enabled {
		return
	}

	for _, sub := range subscribers {
		if err := t.Send(ctx, sub.ChatID, text); err != nil {
			t.logger.WithError(err).
				WithField("chat_id", sub.ChatID).
				Warn("Failed to deliver notification")
			continue
		}
	}
}

// FormatReport renders the cycle result as a plain-text message.
func FormatReport(selected []contracts.EstimateRow, changed bool, netWorth, profitability float64) string {
	var b strings.Builder

	if changed {
		b.WriteString("Portfolio recommendation changed\n\n")
	} else {
		b.WriteString("Portfolio recommendation unchanged\n\n")
	}

	for i, row := range selected {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(row.Ticker)
		if row.Estimate != nil {
			fmt.Fprintf(&b, " rating %.2f, price %.2f, target %.2f",
				row.Estimate.Rating, row.Estimate.CurrentPrice, row.Estimate.AvgTarget)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nNet worth: %.2f (%+.2f%%)", netWorth, profitability*100)

	return b.String()
}

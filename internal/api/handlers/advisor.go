package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/ayarullin/finvizor/internal/assets"
	"github.com/ayarullin/finvizor/internal/contracts"
	"github.com/ayarullin/finvizor/internal/engine"
	"github.com/ayarullin/finvizor/internal/storage"
	"github.com/ayarullin/finvizor/pkg/logger"
)

// SubscriberStore manages notification subscriptions
type SubscriberStore interface {
	Subscribe(ctx context.Context, chatID int64, name string) error
	Unsubscribe(ctx context.Context, chatID int64) error
	ListActive(ctx context.Context) ([]storage.Subscriber, error)
}

// AdvisorHandler serves the advisor's API endpoints
type AdvisorHandler struct {
	engine     *engine.Engine
	rankings   engine.RankingStore
	selections engine.SelectionStore
	ledgers    engine.LedgerStore
	history    engine.HistoryStore
	subs       SubscriberStore
	estimates  engine.EstimateSource
	logger     *logger.Logger
}

// NewAdvisorHandler creates a new advisor handler
func NewAdvisorHandler(
	eng *engine.Engine,
	rankings engine.RankingStore,
	selections engine.SelectionStore,
	ledgers engine.LedgerStore,
	history engine.HistoryStore,
	subs SubscriberStore,
	estimates engine.EstimateSource,
	log *logger.Logger,
) *AdvisorHandler {
	return &AdvisorHandler{
		engine:     eng,
		rankings:   rankings,
		selections: selections,
		ledgers:    ledgers,
		history:    history,
		subs:       subs,
		estimates:  estimates,
		logger:     log,
	}
}

// GetRanking returns the latest composite ranking in summary-rank order
// GET /api/v1/ranking?limit=50
func (h *AdvisorHandler) GetRanking(w http.ResponseWriter, r *http.Request) {
	table, err := h.rankings.LoadLatest(r.Context(), time.Now().AddDate(0, 0, 1))
	if err != nil {
		h.logger.WithError(err).Error("Failed to load ranking")
		respondError(w, http.StatusInternalServerError, "Failed to load ranking")
		return
	}

	rows := table.Ordered()

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}
	if limit < len(rows) {
		rows = rows[:limit]
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rows),
		"rows":  rows,
	})
}

// GetTicker returns one ticker's composite row with its current
// analyst estimate
// GET /api/v1/ranking/{ticker}
func (h *AdvisorHandler) GetTicker(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])

	table, err := h.rankings.LoadLatest(r.Context(), time.Now().AddDate(0, 0, 1))
	if err != nil {
		h.logger.WithError(err).Error("Failed to load ranking")
		respondError(w, http.StatusInternalServerError, "Failed to load ranking")
		return
	}

	row, ok := table[ticker]
	if !ok {
		respondError(w, http.StatusNotFound, "Ticker not in the latest ranking")
		return
	}

	estimates := h.estimates.FetchEstimates(r.Context(), []string{ticker})

	respondJSON(w, http.StatusOK, contracts.EstimateRow{
		CompositeRow: row,
		Estimate:     estimates[ticker],
	})
}

// GetSelection returns the most recent candidate selection
// GET /api/v1/selection
func (h *AdvisorHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	tickers, err := h.selections.LoadLatest(r.Context(), time.Now().AddDate(0, 0, 1))
	if err != nil {
		h.logger.WithError(err).Error("Failed to load selection")
		respondError(w, http.StatusInternalServerError, "Failed to load selection")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(tickers),
		"tickers": tickers,
	})
}

// portfolioResponse is the GetPortfolio payload
type portfolioResponse struct {
	InitialFunds  float64            `json:"initial_funds"`
	FreeFunds     float64            `json:"free_funds"`
	Positions     map[string]int     `json:"positions"`
	Lots          []assets.SharesLot `json:"lots"`
	NetWorth      *float64           `json:"net_worth,omitempty"`
	Profitability *float64           `json:"profitability,omitempty"`
}

// GetPortfolio returns the persisted ledger with the latest recorded
// valuation
// GET /api/v1/portfolio
func (h *AdvisorHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	state, ok, err := h.ledgers.Load(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load ledger")
		respondError(w, http.StatusInternalServerError, "Failed to load portfolio")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "No portfolio yet")
		return
	}

	positions := make(map[string]int)
	for _, lot := range state.Lots {
		if !lot.Closed {
			positions[lot.Ticker] += lot.Number
		}
	}

	resp := portfolioResponse{
		InitialFunds: state.InitialFunds,
		FreeFunds:    state.FreeFunds,
		Positions:    positions,
		Lots:         state.Lots,
	}

	if history, err := h.history.Load(r.Context()); err == nil {
		if latest, err := history.Latest(); err == nil {
			resp.NetWorth = &latest
			if state.InitialFunds > 0 {
				profitability := latest/state.InitialFunds - 1.0
				resp.Profitability = &profitability
			}
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetHistory returns the valuation history, or the profitability of a
// date range when from and to are given
// GET /api/v1/history?from=2026-01-02&to=2026-08-31
func (h *AdvisorHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.history.Load(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load history")
		respondError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}

	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")

	if fromStr == "" && toStr == "" {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"count":   history.Len(),
			"entries": history.Entries(),
		})
		return
	}

	from, err := time.Parse(assets.DateKey, fromStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid from date, want YYYY-MM-DD")
		return
	}
	to, err := time.Parse(assets.DateKey, toStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid to date, want YYYY-MM-DD")
		return
	}

	profitability, err := history.RangeProfitability(from, to)
	if err != nil {
		if errors.Is(err, contracts.ErrNoHistory) {
			respondError(w, http.StatusNotFound, "No valuations in range")
			return
		}
		h.logger.WithError(err).Error("Failed to compute range profitability")
		respondError(w, http.StatusInternalServerError, "Failed to compute profitability")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"from":          fromStr,
		"to":            toStr,
		"profitability": profitability,
	})
}

// subscribeRequest is the Subscribe payload
type subscribeRequest struct {
	ChatID int64  `json:"chat_id"`
	Name   string `json:"name"`
}

// Subscribe registers a Telegram chat for recommendation delivery
// POST /api/v1/subscribers
func (h *AdvisorHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatID == 0 {
		respondError(w, http.StatusBadRequest, "chat_id is required")
		return
	}

	if err := h.subs.Subscribe(r.Context(), req.ChatID, req.Name); err != nil {
		h.logger.WithError(err).Error("Failed to subscribe chat")
		respondError(w, http.StatusInternalServerError, "Failed to subscribe")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"chat_id":    req.ChatID,
		"subscribed": true,
	})
}

// Unsubscribe disables recommendation delivery for a chat
// DELETE /api/v1/subscribers/{chat_id}
func (h *AdvisorHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(mux.Vars(r)["chat_id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid chat id")
		return
	}

	if err := h.subs.Unsubscribe(r.Context(), chatID); err != nil {
		h.logger.WithError(err).Error("Failed to unsubscribe chat")
		respondError(w, http.StatusInternalServerError, "Failed to unsubscribe")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"chat_id":    chatID,
		"subscribed": false,
	})
}

// ListSubscribers returns the chats with recommendations enabled
// GET /api/v1/subscribers
func (h *AdvisorHandler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subs.ListActive(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list subscribers")
		respondError(w, http.StatusInternalServerError, "Failed to list subscribers")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":       len(subs),
		"subscribers": subs,
	})
}

// RunCycle triggers an advisor cycle outside the schedule. The cycle
// runs in the background; the response only acknowledges the start.
// POST /api/v1/cycle
func (h *AdvisorHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		if _, err := h.engine.RunCycle(ctx, time.Now()); err != nil {
			h.logger.WithError(err).Error("Manual advisor cycle failed")
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
	})
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayarullin/finvizor/internal/assets"
	"github.com/ayarullin/finvizor/internal/contracts"
	"github.com/ayarullin/finvizor/internal/external/finviz"
	"github.com/ayarullin/finvizor/internal/notify"
	"github.com/ayarullin/finvizor/internal/ranking"
	"github.com/ayarullin/finvizor/internal/storage"
	"github.com/ayarullin/finvizor/internal/universe"
	"github.com/ayarullin/finvizor/pkg/logger"
)

// MetricSource fetches one screener ranking
type MetricSource interface {
	FetchRanking(ctx context.Context, metric finviz.Metric) ([]contracts.MetricSample, error)
}

// EstimateSource fetches analyst estimates and spot prices
type EstimateSource interface {
	FetchEstimates(ctx context.Context, tickers []string) map[string]*contracts.Estimate
	Price(ctx context.Context) func(ticker string) (float64, error)
}

// RankingStore persists composite ranking tables
type RankingStore interface {
	Save(ctx context.Context, date time.Time, table contracts.RankingTable) error
	LoadLatest(ctx context.Context, before time.Time) (contracts.RankingTable, error)
}

// SelectionStore persists the picked ticker sets
type SelectionStore interface {
	Save(ctx context.Context, date time.Time, tickers []string) error
	LoadLatest(ctx context.Context, before time.Time) ([]string, error)
}

// LedgerStore persists the portfolio ledger
type LedgerStore interface {
	Save(ctx context.Context, state assets.State) error
	Load(ctx context.Context) (assets.State, bool, error)
}

// HistoryStore persists daily valuations
type HistoryStore interface {
	Record(ctx context.Context, date time.Time, value float64) error
	Load(ctx context.Context) (*assets.ValuationHistory, error)
}

// SubscriberStore lists notification subscribers
type SubscriberStore interface {
	ListActive(ctx context.Context) ([]storage.Subscriber, error)
}

// Notifier delivers cycle reports
type Notifier interface {
	Enabled() bool
	Broadcast(ctx context.Context, subs []storage.Subscriber, text string)
}

// Config holds the engine parameters
type Config struct {
	TopN         int
	InitialFunds float64
}

// Result summarizes one completed advisor cycle.
type Result struct {
	Date          time.Time
	Selected      []contracts.EstimateRow
	Changed       bool
	NetWorth      float64
	Profitability float64
}

// Engine runs the daily advisor cycle: scrape both rankings, fuse
// them with the previous table, merge analyst estimates, pick the
// best candidates and rebalance the simulated portfolio. Nothing is
// persisted until the whole cycle has succeeded.
type Engine struct {
	mu sync.Mutex

	metrics    MetricSource
	estimates  EstimateSource
	rankings   RankingStore
	selections SelectionStore
	ledgers    LedgerStore
	history    HistoryStore
	subs       SubscriberStore
	notifier   Notifier

	universe *universe.Universe
	fuser    *ranking.Fuser
	selector *ranking.Selector
	logger   *logger.Logger
	cfg      Config
}

// New creates an advisor engine
func New(
	cfg Config,
	metrics MetricSource,
	estimates EstimateSource,
	rankings RankingStore,
	selections SelectionStore,
	ledgers LedgerStore,
	history HistoryStore,
	subs SubscriberStore,
	notifier Notifier,
	uni *universe.Universe,
	log *logger.Logger,
) *Engine {
	return &Engine{
		metrics:    metrics,
		estimates:  estimates,
		rankings:   rankings,
		selections: selections,
		ledgers:    ledgers,
		history:    history,
		subs:       subs,
		notifier:   notifier,
		universe:   uni,
		fuser:      ranking.NewFuser(log),
		selector:   ranking.NewSelector(log),
		logger:     log,
		cfg:        cfg,
	}
}

// RunCycle executes one full advisor cycle for the given day. Only
// one cycle runs at a time; a second caller blocks until the first
// finishes.
func (e *Engine) RunCycle(ctx context.Context, now time.Time) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	e.logger.WithField("date", now.Format(assets.DateKey)).Info("Advisor cycle started")

	ep, roe, err := e.fetchRankings(ctx)
	if err != nil {
		return nil, err
	}

	previous, err := e.rankings.LoadLatest(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("load previous ranking: %w", err)
	}

	table := e.fuser.Fuse(ep, roe, e.universe.Set(), previous)
	if len(table) == 0 {
		return nil, fmt.Errorf("ranking fusion produced no rows")
	}

	// Estimates are only fetched for the head of the ranking. The
	// selector never looks past this window.
	ordered := table.Ordered()
	window := ranking.CandidateWindow(e.cfg.TopN)
	if window > len(ordered) {
		window = len(ordered)
	}
	head := make([]string, 0, window)
	for _, row := range ordered[:window] {
		head = append(head, row.Ticker)
	}

	estimates := e.estimates.FetchEstimates(ctx, head)
	rows := ranking.Merge(table, estimates)

	prevSelection, err := e.selections.LoadLatest(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("load previous selection: %w", err)
	}

	selected, changed := e.selector.Select(rows, e.cfg.TopN, prevSelection)

	ledger, err := e.loadLedger(ctx)
	if err != nil {
		return nil, err
	}

	prices := e.priceLookup(ctx, estimates)

	targets := make([]string, 0, len(selected))
	for _, row := range selected {
		targets = append(targets, row.Ticker)
	}
	ledger.Rebalance(targets, prices, now)

	netWorth, err := ledger.NetWorth(prices)
	if err != nil {
		return nil, fmt.Errorf("portfolio valuation: %w", err)
	}
	profitability, err := ledger.TotalProfitability(prices)
	if err != nil {
		return nil, fmt.Errorf("portfolio profitability: %w", err)
	}

	if err := e.persist(ctx, now, table, targets, ledger, netWorth); err != nil {
		return nil, err
	}

	result := &Result{
		Date:          now,
		Selected:      selected,
		Changed:       changed,
		NetWorth:      netWorth,
		Profitability: profitability,
	}

	e.notifySubscribers(ctx, result)

	e.logger.WithFields(map[string]interface{}{
		"selected":  targets,
		"changed":   changed,
		"net_worth": netWorth,
		"duration":  time.Since(start),
	}).Info("Advisor cycle completed")

	return result, nil
}

// fetchRankings scrapes both metric rankings concurrently
func (e *Engine) fetchRankings(ctx context.Context) (ep, roe []contracts.MetricSample, err error) {
	var wg sync.WaitGroup
	var epErr, roeErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		ep, epErr = e.metrics.FetchRanking(ctx, finviz.MetricEP)
	}()
	go func() {
		defer wg.Done()
		roe, roeErr = e.metrics.FetchRanking(ctx, finviz.MetricROE)
	}()
	wg.Wait()

	if epErr != nil {
		return nil, nil, fmt.Errorf("fetch E/P ranking: %w", epErr)
	}
	if roeErr != nil {
		return nil, nil, fmt.Errorf("fetch ROE ranking: %w", roeErr)
	}

	return ep, roe, nil
}

// loadLedger restores the persisted ledger or starts a fresh one
func (e *Engine) loadLedger(ctx context.Context) (*assets.Ledger, error) {
	state, ok, err := e.ledgers.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if !ok {
		e.logger.WithField("initial_funds", e.cfg.InitialFunds).Info("Starting fresh portfolio")
		return assets.NewLedger(e.cfg.InitialFunds, e.logger), nil
	}
	return assets.FromState(state, e.logger), nil
}

// priceLookup resolves prices from the fetched estimates first and
// falls back to a live quote for tickers outside the estimate window,
// such as held positions that dropped out of the ranking.
func (e *Engine) priceLookup(ctx context.Context, estimates map[string]*contracts.Estimate) assets.PriceLookup {
	live := e.estimates.Price(ctx)
	return func(ticker string) (float64, error) {
		if est, ok := estimates[ticker]; ok && est != nil && est.CurrentPrice > 0 {
			return est.CurrentPrice, nil
		}
		return live(ticker)
	}
}

func (e *Engine) persist(ctx context.Context, now time.Time, table contracts.RankingTable,
	targets []string, ledger *assets.Ledger, netWorth float64) error {

	if err := e.rankings.Save(ctx, now, table); err != nil {
		return fmt.Errorf("save ranking: %w", err)
	}
	if err := e.selections.Save(ctx, now, targets); err != nil {
		return fmt.Errorf("save selection: %w", err)
	}
	if err := e.ledgers.Save(ctx, ledger.Snapshot()); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	if err := e.history.Record(ctx, now, netWorth); err != nil {
		return fmt.Errorf("record valuation: %w", err)
	}
	return nil
}

// notifySubscribers reports a changed recommendation to every active
// subscriber. Notification failures never fail the cycle.
func (e *Engine) notifySubscribers(ctx context.Context, result *Result) {
	if !result.Changed || e.notifier == nil || !e.notifier.Enabled() {
		return
	}

	subs, err := e.subs.ListActive(ctx)
	if err != nil {
		e.logger.WithError(err).Warn("Failed to list subscribers")
		return
	}
	if len(subs) == 0 {
		return
	}

	text := notify.FormatReport(result.Selected, result.Changed, result.NetWorth, result.Profitability)
	e.notifier.Broadcast(ctx, subs, text)
}

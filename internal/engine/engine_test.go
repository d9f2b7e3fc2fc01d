package engine

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayarullin/finvizor/internal/assets"
	"github.com/ayarullin/finvizor/internal/contracts"
	"github.com/ayarullin/finvizor/internal/external/finviz"
	"github.com/ayarullin/finvizor/internal/storage"
	"github.com/ayarullin/finvizor/internal/universe"
	"github.com/ayarullin/finvizor/pkg/logger"
)

type fakeMetrics struct {
	ep  []contracts.MetricSample
	roe []contracts.MetricSample
	err error
}

func (f *fakeMetrics) FetchRanking(_ context.Context, metric finviz.Metric) ([]contracts.MetricSample, error) {
	if f.err != nil {
		return nil, f.err
	}
	if metric.Name == finviz.MetricEP.Name {
		return f.ep, nil
	}
	return f.roe, nil
}

type fakeEstimates struct {
	estimates map[string]*contracts.Estimate
	prices    map[string]float64
}

func (f *fakeEstimates) FetchEstimates(_ context.Context, tickers []string) map[string]*contracts.Estimate {
	out := make(map[string]*contracts.Estimate, len(tickers))
	for _, t := range tickers {
		out[t] = f.estimates[t]
	}
	return out
}

func (f *fakeEstimates) Price(_ context.Context) func(string) (float64, error) {
	return func(ticker string) (float64, error) {
		price, ok := f.prices[ticker]
		if !ok {
			return 0, fmt.Errorf("no quote for %s: %w", ticker, contracts.ErrMissingPrice)
		}
		return price, nil
	}
}

// fakeStore backs every store interface through thin per-interface
// adapters so one struct can observe the whole persistence surface.
type fakeStore struct {
	ranking        contracts.RankingTable
	rankingSaved   bool
	selection      []string
	selectionSaved bool
	ledger         *assets.State
	ledgerSaved    bool
	valuations     map[string]float64
	subscribers    []storage.Subscriber
}

func newFakeStore() *fakeStore {
	return &fakeStore{valuations: make(map[string]float64)}
}

type rankingStore struct{ s *fakeStore }

func (r rankingStore) Save(_ context.Context, _ time.Time, table contracts.RankingTable) error {
	r.s.ranking = table
	r.s.rankingSaved = true
	return nil
}
func (r rankingStore) LoadLatest(context.Context, time.Time) (contracts.RankingTable, error) {
	if r.s.ranking == nil {
		return contracts.RankingTable{}, nil
	}
	return r.s.ranking, nil
}

type selectionStore struct{ s *fakeStore }

func (r selectionStore) Save(_ context.Context, _ time.Time, tickers []string) error {
	r.s.selection = tickers
	r.s.selectionSaved = true
	return nil
}
func (r selectionStore) LoadLatest(context.Context, time.Time) ([]string, error) {
	return r.s.selection, nil
}

type ledgerStore struct{ s *fakeStore }

func (r ledgerStore) Save(_ context.Context, state assets.State) error {
	r.s.ledger = &state
	r.s.ledgerSaved = true
	return nil
}
func (r ledgerStore) Load(context.Context) (assets.State, bool, error) {
	if r.s.ledger == nil {
		return assets.State{}, false, nil
	}
	return *r.s.ledger, true, nil
}

type historyStore struct{ s *fakeStore }

func (r historyStore) Record(_ context.Context, date time.Time, value float64) error {
	r.s.valuations[date.Format(assets.DateKey)] = value
	return nil
}
func (r historyStore) Load(context.Context) (*assets.ValuationHistory, error) {
	return assets.FromEntries(r.s.valuations), nil
}

type subscriberStore struct{ s *fakeStore }

func (r subscriberStore) ListActive(context.Context) ([]storage.Subscriber, error) {
	return r.s.subscribers, nil
}

type fakeNotifier struct {
	enabled   bool
	delivered []string
}

func (f *fakeNotifier) Enabled() bool { return f.enabled }
func (f *fakeNotifier) Broadcast(_ context.Context, subs []storage.Subscriber, text string) {
	for range subs {
		f.delivered = append(f.delivered, text)
	}
}

func sample(ticker string, rank int, value float64) contracts.MetricSample {
	return contracts.MetricSample{Ticker: ticker, Rank: rank, RawValue: &value}
}

func undervalued(rating, price, target float64) *contracts.Estimate {
	return &contracts.Estimate{Rating: rating, CurrentPrice: price, AvgTarget: target}
}

func newTestEngine(store *fakeStore, metrics *fakeMetrics, estimates *fakeEstimates,
	notifier *fakeNotifier, uni *universe.Universe, cfg Config) *Engine {
	return New(cfg, metrics, estimates,
		rankingStore{store}, selectionStore{store}, ledgerStore{store},
		historyStore{store}, subscriberStore{store}, notifier,
		uni, logger.NewWriter(io.Discard))
}

func TestRunCycle_FullPipeline(t *testing.T) {
	store := newFakeStore()
	store.subscribers = []storage.Subscriber{{ChatID: 1}}

	metrics := &fakeMetrics{
		ep:  []contracts.MetricSample{sample("AAA", 1, 12.5), sample("BBB", 2, 10.0)},
		roe: []contracts.MetricSample{sample("AAA", 1, 30.0), sample("BBB", 2, 25.0)},
	}
	estimates := &fakeEstimates{
		estimates: map[string]*contracts.Estimate{
			"AAA": undervalued(1.5, 100, 130),
			"BBB": undervalued(2.0, 50, 60),
		},
		prices: map[string]float64{"AAA": 100, "BBB": 50},
	}
	notifier := &fakeNotifier{enabled: true}

	e := newTestEngine(store, metrics, estimates, notifier,
		universe.FromTickers("AAA", "BBB"), Config{TopN: 2, InitialFunds: 1000})

	now := time.Date(2026, 9, 1, 21, 0, 0, 0, time.UTC)
	result, err := e.RunCycle(context.Background(), now)
	require.NoError(t, err)

	assert.True(t, result.Changed)
	require.Len(t, result.Selected, 2)
	assert.Equal(t, "AAA", result.Selected[0].Ticker)
	assert.Equal(t, "BBB", result.Selected[1].Ticker)

	// Funds split evenly: 5 AAA at 100 and 10 BBB at 50, nothing left
	assert.InDelta(t, 1000.0, result.NetWorth, 1e-9)
	assert.InDelta(t, 0.0, result.Profitability, 1e-9)

	assert.True(t, store.rankingSaved)
	assert.True(t, store.selectionSaved)
	assert.True(t, store.ledgerSaved)
	assert.InDelta(t, 1000.0, store.valuations[now.Format(assets.DateKey)], 1e-9)
	assert.InDelta(t, 0.0, store.ledger.FreeFunds, 1e-9)
	require.Len(t, store.ledger.Lots, 2)
	assert.Equal(t, 5, store.ledger.Lots[0].Number)
	assert.Equal(t, 10, store.ledger.Lots[1].Number)

	assert.Len(t, notifier.delivered, 1)
}

func TestRunCycle_UnchangedSelectionSkipsNotification(t *testing.T) {
	store := newFakeStore()
	store.subscribers = []storage.Subscriber{{ChatID: 1}}
	store.selection = []string{"AAA"}

	metrics := &fakeMetrics{
		ep:  []contracts.MetricSample{sample("AAA", 1, 12.5)},
		roe: []contracts.MetricSample{sample("AAA", 1, 30.0)},
	}
	estimates := &fakeEstimates{
		estimates: map[string]*contracts.Estimate{"AAA": undervalued(1.5, 100, 130)},
		prices:    map[string]float64{"AAA": 100},
	}
	notifier := &fakeNotifier{enabled: true}

	e := newTestEngine(store, metrics, estimates, notifier,
		universe.FromTickers("AAA"), Config{TopN: 1, InitialFunds: 1000})

	result, err := e.RunCycle(context.Background(), time.Date(2026, 9, 1, 21, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.False(t, result.Changed)
	assert.Empty(t, notifier.delivered)
}

func TestRunCycle_FetchFailureAborts(t *testing.T) {
	store := newFakeStore()
	metrics := &fakeMetrics{err: fmt.Errorf("screener unreachable")}
	estimates := &fakeEstimates{}

	e := newTestEngine(store, metrics, estimates, &fakeNotifier{},
		universe.FromTickers("AAA"), Config{TopN: 1, InitialFunds: 1000})

	_, err := e.RunCycle(context.Background(), time.Now())
	require.Error(t, err)
	assert.False(t, store.rankingSaved)
	assert.False(t, store.ledgerSaved)
}

func TestRunCycle_ValuationFailureSkipsPersistence(t *testing.T) {
	store := newFakeStore()
	// Held position with no available quote: rebalance cannot sell it
	// and valuation must fail, leaving stores untouched.
	store.ledger = &assets.State{
		InitialFunds: 1000,
		FreeFunds:    0,
		Lots: []assets.SharesLot{
			{Ticker: "ZZZ", Number: 10, OpenPrice: 100, OpenDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)},
		},
	}

	metrics := &fakeMetrics{
		ep:  []contracts.MetricSample{sample("AAA", 1, 12.5)},
		roe: []contracts.MetricSample{sample("AAA", 1, 30.0)},
	}
	estimates := &fakeEstimates{
		estimates: map[string]*contracts.Estimate{"AAA": undervalued(1.5, 100, 130)},
		prices:    map[string]float64{"AAA": 100},
	}

	e := newTestEngine(store, metrics, estimates, &fakeNotifier{},
		universe.FromTickers("AAA"), Config{TopN: 1, InitialFunds: 1000})

	_, err := e.RunCycle(context.Background(), time.Date(2026, 9, 1, 21, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrMissingPrice)

	assert.False(t, store.rankingSaved)
	assert.False(t, store.selectionSaved)
	assert.False(t, store.ledgerSaved)
	assert.Empty(t, store.valuations)
}

func TestRunCycle_CarryForwardFromPreviousTable(t *testing.T) {
	store := newFakeStore()
	// BBB vanished from today's scrape but survives through the
	// previous table's ranks.
	store.ranking = contracts.RankingTable{
		"BBB": {Ticker: "BBB", EPRank: 2, ROERank: 2, SummaryRank: 4},
	}

	metrics := &fakeMetrics{
		ep:  []contracts.MetricSample{sample("AAA", 1, 12.5)},
		roe: []contracts.MetricSample{sample("AAA", 1, 30.0)},
	}
	estimates := &fakeEstimates{
		estimates: map[string]*contracts.Estimate{
			"AAA": undervalued(1.5, 100, 130),
			"BBB": undervalued(1.0, 50, 70),
		},
		prices: map[string]float64{"AAA": 100, "BBB": 50},
	}

	e := newTestEngine(store, metrics, estimates, &fakeNotifier{},
		universe.FromTickers("AAA", "BBB"), Config{TopN: 2, InitialFunds: 1000})

	result, err := e.RunCycle(context.Background(), time.Date(2026, 9, 1, 21, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	tickers := make([]string, 0, len(result.Selected))
	for _, row := range result.Selected {
		tickers = append(tickers, row.Ticker)
	}
	assert.Contains(t, tickers, "BBB")
}

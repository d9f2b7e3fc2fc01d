package assets

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ayarullin/finvizor/internal/contracts"
	"github.com/ayarullin/finvizor/pkg/logger"
)

// PriceLookup resolves a ticker to its current market price
type PriceLookup func(ticker string) (float64, error)

// Ledger is the simulated portfolio: free cash plus every lot ever
// opened. Closed lots are kept for historical profitability. The
// ledger is the single mutable resource of a cycle; all mutations go
// through its mutex so buy/sell/rebalance never interleave.
type Ledger struct {
	mu sync.Mutex

	initialFunds float64
	freeFunds    float64
	lots         []*SharesLot

	logger *logger.Logger
}

// State is the ledger's persistable form: plain records, no behavior
type State struct {
	InitialFunds float64     `json:"initial_funds"`
	FreeFunds    float64     `json:"free_funds"`
	Lots         []SharesLot `json:"lots"`
}

// NewLedger creates an empty ledger with the given starting cash
func NewLedger(initialFunds float64, log *logger.Logger) *Ledger {
	return &Ledger{
		initialFunds: initialFunds,
		freeFunds:    initialFunds,
		logger:       log,
	}
}

// FromState restores a ledger from its persisted form
func FromState(state State, log *logger.Logger) *Ledger {
	l := &Ledger{
		initialFunds: state.InitialFunds,
		freeFunds:    state.FreeFunds,
		lots:         make([]*SharesLot, 0, len(state.Lots)),
		logger:       log,
	}
	for i := range state.Lots {
		lot := state.Lots[i]
		l.lots = append(l.lots, &lot)
	}
	return l
}

// Snapshot returns the ledger's persistable form
func (l *Ledger) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	state := State{
		InitialFunds: l.initialFunds,
		FreeFunds:    l.freeFunds,
		Lots:         make([]SharesLot, 0, len(l.lots)),
	}
	for _, lot := range l.lots {
		state.Lots = append(state.Lots, *lot)
	}
	return state
}

// FreeFunds returns the current free cash balance
func (l *Ledger) FreeFunds() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.freeFunds
}

// InitialFunds returns the starting cash balance
func (l *Ledger) InitialFunds() float64 {
	return l.initialFunds
}

// Buy opens a new lot. Fails with ErrInsufficientFunds and no
// mutation when the order cost exceeds free funds.
func (l *Ledger) Buy(ticker string, number int, price float64, date time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buy(ticker, number, price, date)
}

func (l *Ledger) buy(ticker string, number int, price float64, date time.Time) error {
	cost := float64(number) * price
	if cost > l.freeFunds {
		return fmt.Errorf("buy %d %s at %.2f needs %.2f, have %.2f: %w",
			number, ticker, price, cost, l.freeFunds, contracts.ErrInsufficientFunds)
	}

	l.lots = append(l.lots, &SharesLot{
		Ticker:    ticker,
		Number:    number,
		OpenPrice: price,
		OpenDate:  date,
	})
	l.freeFunds -= cost

	l.logger.WithFields(map[string]interface{}{
		"ticker":     ticker,
		"number":     number,
		"price":      price,
		"free_funds": l.freeFunds,
	}).Debug("Bought shares")

	return nil
}

// Sell liquidates number shares of ticker at one uniform price,
// consuming open lots FIFO by open date (insertion order on equal
// dates). The last partially consumed lot is split: a closed piece
// carries the sold remainder, the original stays open with what is
// left. Fails with ErrInsufficientShares and no mutation when open
// shares are fewer than requested.
func (l *Ledger) Sell(ticker string, number int, price float64, date time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sell(ticker, number, price, date)
}

func (l *Ledger) sell(ticker string, number int, price float64, date time.Time) error {
	open := l.openLots(ticker)

	total := 0
	for _, lot := range open {
		total += lot.Number
	}
	if total < number {
		return fmt.Errorf("sell %d %s but only %d open: %w",
			number, ticker, total, contracts.ErrInsufficientShares)
	}

	// FIFO: oldest cost basis liquidated first. SliceStable keeps
	// insertion order as the tie-break on equal open dates.
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].OpenDate.Before(open[j].OpenDate)
	})

	remaining := number
	for _, lot := range open {
		if remaining == 0 {
			break
		}
		if lot.Number <= remaining {
			remaining -= lot.Number
			lot.close(price, date)
			continue
		}
		closed := lot.split(remaining, price, date)
		l.lots = append(l.lots, &closed)
		remaining = 0
	}

	// Sale proceeds are priced at the uniform market price of the
	// order, independent of each lot's original purchase price.
	l.freeFunds += float64(number) * price

	l.logger.WithFields(map[string]interface{}{
		"ticker":     ticker,
		"number":     number,
		"price":      price,
		"free_funds": l.freeFunds,
	}).Debug("Sold shares")

	return nil
}

// openLots returns pointers to the open lots for one ticker in
// insertion order
func (l *Ledger) openLots(ticker string) []*SharesLot {
	var open []*SharesLot
	for _, lot := range l.lots {
		if lot.Ticker == ticker && !lot.Closed {
			open = append(open, lot)
		}
	}
	return open
}

// Positions returns open share counts grouped by ticker. Tickers with
// no open lots are absent.
func (l *Ledger) Positions() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.positions()
}

func (l *Ledger) positions() map[string]int {
	positions := make(map[string]int)
	for _, lot := range l.lots {
		if !lot.Closed {
			positions[lot.Ticker] += lot.Number
		}
	}
	return positions
}

// NetWorth values the ledger at current prices: free funds plus every
// open lot at its looked-up price. A lookup failure for any held
// ticker aborts the whole valuation; a partial net worth is never
// reported.
func (l *Ledger) NetWorth(prices PriceLookup) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.netWorth(prices)
}

func (l *Ledger) netWorth(prices PriceLookup) (float64, error) {
	worth := l.freeFunds
	for _, lot := range l.lots {
		if lot.Closed {
			continue
		}
		price, err := prices(lot.Ticker)
		if err != nil {
			return 0, fmt.Errorf("valuation of %s: %w: %v", lot.Ticker, contracts.ErrMissingPrice, err)
		}
		worth += float64(lot.Number) * price
	}
	return worth, nil
}

// TotalProfitability is the ledger's lifetime return at current prices
func (l *Ledger) TotalProfitability(prices PriceLookup) (float64, error) {
	worth, err := l.NetWorth(prices)
	if err != nil {
		return 0, err
	}
	return worth/l.initialFunds - 1.0, nil
}

// Rebalance aligns holdings with the target tickers: every held
// ticker outside the target set is sold to zero, then free funds are
// spread over targets not yet held. Targets are processed in the
// given order (the selection's rating order); each ticker's unspent
// integer-share remainder rolls forward to the tickers after it, so
// allocation is greedy and order matters. Per-ticker buy or sell
// failures are logged and skipped, never aborting the pass.
func (l *Ledger) Rebalance(targets []string, prices PriceLookup, date time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	targetSet := make(map[string]bool, len(targets))
	for _, ticker := range targets {
		targetSet[ticker] = true
	}

	// Sell everything that fell out of the selection
	for ticker, number := range l.positions() {
		if targetSet[ticker] {
			continue
		}
		price, err := prices(ticker)
		if err != nil {
			l.logger.WithError(err).WithField("ticker", ticker).Warn("Skipping sale, no price")
			continue
		}
		if err := l.sell(ticker, number, price, date); err != nil {
			l.logger.WithError(err).WithField("ticker", ticker).Warn("Skipping sale")
		}
	}

	held := l.positions()
	var toBuy []string
	for _, ticker := range targets {
		if held[ticker] == 0 {
			toBuy = append(toBuy, ticker)
		}
	}
	if len(toBuy) == 0 {
		return
	}

	// Even split of the cash freed above, with each ticker's unspent
	// remainder carried to the next one
	base := l.freeFunds / float64(len(toBuy))
	carry := 0.0
	for _, ticker := range toBuy {
		alloc := base + carry
		price, err := prices(ticker)
		if err != nil {
			l.logger.WithError(err).WithField("ticker", ticker).Warn("Skipping purchase, no price")
			carry = alloc
			continue
		}

		number := int(math.Floor(alloc / price))
		if number <= 0 {
			carry = alloc
			continue
		}

		if err := l.buy(ticker, number, price, date); err != nil {
			l.logger.WithError(err).WithField("ticker", ticker).Warn("Skipping purchase")
			carry = alloc
			continue
		}
		carry = alloc - float64(number)*price
	}

	l.logger.WithFields(map[string]interface{}{
		"targets":    len(targets),
		"bought":     len(toBuy),
		"free_funds": l.freeFunds,
	}).Info("Rebalance completed")
}

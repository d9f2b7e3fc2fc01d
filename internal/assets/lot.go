package assets

import "time"

// SharesLot is a quantity of one ticker bought together at one price
// and date, tracked separately for FIFO accounting. A lot is created
// on buy, may be split once by a partial sell, and is immutable after
// it closes.
type SharesLot struct {
	Ticker     string    `json:"ticker"`
	Number     int       `json:"number"`
	OpenPrice  float64   `json:"open_price"`
	OpenDate   time.Time `json:"open_date"`
	ClosePrice float64   `json:"close_price,omitempty"`
	CloseDate  time.Time `json:"close_date,omitempty"`
	Closed     bool      `json:"closed"`
}

// close marks the lot sold at the given price and date
func (l *SharesLot) close(price float64, date time.Time) {
	l.ClosePrice = price
	l.CloseDate = date
	l.Closed = true
}

// split carves number shares out of an open lot into a new closed lot
// sold at the given price and date. The receiver keeps the remainder
// and stays open.
func (l *SharesLot) split(number int, price float64, date time.Time) SharesLot {
	closed := SharesLot{
		Ticker:     l.Ticker,
		Number:     number,
		OpenPrice:  l.OpenPrice,
		OpenDate:   l.OpenDate,
		ClosePrice: price,
		CloseDate:  date,
		Closed:     true,
	}
	l.Number -= number
	return closed
}

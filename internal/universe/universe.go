package universe

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Universe is the fixed whitelist of tickers eligible for ranking
// and selection
type Universe struct {
	tickers map[string]bool
}

// Load reads the whitelist file: one ticker per line, blank lines and
// #-comments ignored, tickers upper-cased.
func Load(path string) (*Universe, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe file: %w", err)
	}
	defer file.Close()

	tickers := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tickers[strings.ToUpper(line)] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read universe file: %w", err)
	}

	if len(tickers) == 0 {
		return nil, fmt.Errorf("universe file %s contains no tickers", path)
	}

	return &Universe{tickers: tickers}, nil
}

// FromTickers builds a universe from an explicit list, mainly for tests
func FromTickers(tickers ...string) *Universe {
	set := make(map[string]bool, len(tickers))
	for _, ticker := range tickers {
		set[strings.ToUpper(ticker)] = true
	}
	return &Universe{tickers: set}
}

// Contains reports whether the ticker is whitelisted
func (u *Universe) Contains(ticker string) bool {
	return u.tickers[ticker]
}

// Set returns the whitelist as a set
func (u *Universe) Set() map[string]bool {
	return u.tickers
}

// Len returns the whitelist size
func (u *Universe) Len() int {
	return len(u.tickers)
}
